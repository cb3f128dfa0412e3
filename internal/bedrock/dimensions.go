package bedrock

// DimensionGroup is one thematic block of the scoring rubric.
type DimensionGroup struct {
	Title      string
	Dimensions []Dimension
}

// Dimension is one 0-100 scored axis of a track analysis.
type Dimension struct {
	Name        string
	Description string
}

// Groups is the full scoring rubric, in prompt order.
var Groups = []DimensionGroup{
	{
		Title: "ENERGY AND TEMPO",
		Dimensions: []Dimension{
			{"high_energy", "Music that triggers intense physical and mental activation"},
			{"medium_energy", "Music with moderate energy"},
			{"low_energy", "Calm, relaxing music"},
			{"fast_tempo", "Accelerated rhythm that invites movement"},
			{"mid_tempo", "Moderate rhythm, comfortable for most activities"},
			{"slow_tempo", "Slow rhythm, suited to reflection"},
		},
	},
	{
		Title: "EMOTIONAL SPECTRUM",
		Dimensions: []Dimension{
			{"euphoria", "Intense joy, celebration, musical ecstasy"},
			{"melancholy", "Beautiful sadness, nostalgia, emotional reflection"},
			{"serenity", "Inner peace, calm, emotional balance"},
			{"dramatic_intensity", "Strong emotions, drama, passion"},
			{"mystery", "Enigmatic atmospheres, suspense"},
			{"warmth", "Feeling of comfort, home, an emotional embrace"},
		},
	},
	{
		Title: "SITUATIONAL CONTEXTS",
		Dimensions: []Dimension{
			{"workout", "Perfect for physical activity and training"},
			{"focus_work", "Ideal for tasks that demand mental focus"},
			{"social_party", "Music for sharing, dancing, celebrating in a group"},
			{"introspection", "For moments of personal reflection"},
			{"relaxation", "For unwinding and releasing tension"},
			{"travel", "Ideal soundtrack for being on the move"},
		},
	},
	{
		Title: "CULTURAL DIMENSIONS",
		Dimensions: []Dimension{
			{"retro_nostalgia", "Evokes past eras, vintage references"},
			{"experimental", "Innovative sounds, breaks conventions"},
			{"underground", "Cultural authenticity, far from the mainstream"},
			{"universality", "Broad appeal, transcends cultural barriers"},
			{"regionality", "Strongly tied to one specific culture"},
			{"timelessness", "Transcends eras, always sounds relevant"},
		},
	},
	{
		Title: "PSYCHOLOGICAL EFFECTS",
		Dimensions: []Dimension{
			{"creative_stimulation", "Catalyzes creative thinking"},
			{"emotional_processing", "Helps process complex emotions"},
			{"mental_escape", "Provides disconnection from everyday reality"},
			{"motivation_drive", "Generates determination and willpower"},
			{"philosophical_contemplation", "Invites deep reflection on existence"},
			{"social_connection", "Fosters feelings of belonging and community"},
		},
	},
}

// DimensionNames returns every dimension name in rubric order.
func DimensionNames() []string {
	var names []string
	for _, g := range Groups {
		for _, d := range g.Dimensions {
			names = append(names, d.Name)
		}
	}
	return names
}
