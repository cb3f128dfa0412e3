// Package profiles clusters users by listening behavior and assigns each one
// a named music personality.
package profiles

import (
	"strings"

	"github.com/ragp/spotifire/internal/athena"
)

// Profile identifiers, in assignment priority order.
const (
	MusicAddict        = "music_addict"
	UndergroundHunter  = "underground_hunter"
	NightOwl           = "night_owl"
	MainstreamExplorer = "mainstream_explorer"
	CasualListener     = "casual_listener"
)

// DefaultCluster is the cluster users fall into when no profile data
// exists for them.
const DefaultCluster = 4

// Definition describes one music personality.
type Definition struct {
	ID              string
	Name            string
	Emoji           string
	Description     string
	Characteristics []string
	Criteria        string
}

// Definitions holds every personality, keyed by profile id.
var Definitions = map[string]Definition{
	MainstreamExplorer: {
		ID:          MainstreamExplorer,
		Name:        "Mainstream Explorer",
		Emoji:       "🎯",
		Description: "Rides the wave of what everyone is listening to, always on top of the hits.",
		Characteristics: []string{
			"High average popularity",
			"Moderate listening volume",
			"Daytime listening habits",
		},
		Criteria: "popularity above 65, steady daily activity, peak hours during the day",
	},
	UndergroundHunter: {
		ID:          UndergroundHunter,
		Name:        "Underground Hunter",
		Emoji:       "🔍",
		Description: "Digs for hidden gems far from the charts and keeps discovering new artists.",
		Characteristics: []string{
			"Low average popularity",
			"High exploration ratio",
			"Wide artist diversity",
		},
		Criteria: "popularity below 45, exploration above 25%, diverse artist pool",
	},
	MusicAddict: {
		ID:          MusicAddict,
		Name:        "Music Addict",
		Emoji:       "⚡",
		Description: "Music is the soundtrack of the whole day, every day, across many artists.",
		Characteristics: []string{
			"Very high daily intensity",
			"Large artist diversity",
			"Constant discovery",
		},
		Criteria: "more than 15 plays per day, over 50 distinct artists",
	},
	NightOwl: {
		ID:          NightOwl,
		Name:        "Night Owl",
		Emoji:       "🌙",
		Description: "Comes alive after dark, with most listening between dusk and dawn.",
		Characteristics: []string{
			"High night listening share",
			"Late peak hour",
			"Weekend leaning",
		},
		Criteria: "night listening above 40%, peak hour at 22:00 or later",
	},
	CasualListener: {
		ID:          CasualListener,
		Name:        "Casual Listener",
		Emoji:       "🎵",
		Description: "Enjoys music in the background without chasing novelty or volume.",
		Characteristics: []string{
			"Light daily intensity",
			"Familiar, popular tracks",
			"Low exploration",
		},
		Criteria: "under 8 plays per day, popularity between 50 and 70",
	},
}

// priority breaks ties when several profiles score equally.
var priority = []string{MusicAddict, UndergroundHunter, NightOwl, MainstreamExplorer, CasualListener}

// classify scores every profile against one user's features and picks the
// highest scorer, falling back to casual listener when nothing matches.
func classify(f athena.UserFeatures) string {
	scores := map[string]int{}

	switch {
	case f.AvgPopularity > 65:
		scores[MainstreamExplorer] += 3
	case f.AvgPopularity > 55:
		scores[MainstreamExplorer]++
	}
	if f.DailyListeningIntensity > 3 && f.DailyListeningIntensity < 15 {
		scores[MainstreamExplorer] += 2
	}
	if f.PeakHour >= 9 && f.PeakHour <= 18 {
		scores[MainstreamExplorer] += 2
	}

	switch {
	case f.AvgPopularity < 45:
		scores[UndergroundHunter] += 3
	case f.AvgPopularity < 55:
		scores[UndergroundHunter]++
	}
	switch {
	case f.ExplorationRatio > 25:
		scores[UndergroundHunter] += 2
	case f.ExplorationRatio > 15:
		scores[UndergroundHunter]++
	}
	if f.ArtistDiversity > 30 {
		scores[UndergroundHunter] += 2
	}

	switch {
	case f.DailyListeningIntensity > 15:
		scores[MusicAddict] += 4
	case f.DailyListeningIntensity > 8:
		scores[MusicAddict] += 2
	}
	switch {
	case f.ArtistDiversity > 50:
		scores[MusicAddict] += 2
	case f.ArtistDiversity > 25:
		scores[MusicAddict]++
	}
	if f.ExplorationRatio > 20 {
		scores[MusicAddict]++
	}

	switch {
	case f.NightPreferenceRatio > 40:
		scores[NightOwl] += 3
	case f.NightPreferenceRatio > 25:
		scores[NightOwl]++
	}
	switch {
	case f.PeakHour >= 22 || f.PeakHour <= 6:
		scores[NightOwl] += 3
	case f.PeakHour >= 20:
		scores[NightOwl]++
	}
	if f.WeekendPreferenceRatio > 60 {
		scores[NightOwl]++
	}

	if f.DailyListeningIntensity < 8 {
		scores[CasualListener] += 2
	}
	if f.AvgPopularity >= 50 && f.AvgPopularity <= 70 {
		scores[CasualListener] += 2
	}
	if f.ExplorationRatio < 20 {
		scores[CasualListener]++
	}
	if f.LikeRatio < 10 {
		scores[CasualListener]++
	}

	best, bestScore := CasualListener, 0
	for _, id := range priority {
		if scores[id] > bestScore {
			best, bestScore = id, scores[id]
		}
	}
	return best
}

func joinList(items []string) string {
	return strings.Join(items, "; ")
}
