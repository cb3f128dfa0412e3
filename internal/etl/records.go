// Package etl turns raw collected snapshots into analytics-ready parquet
// datasets partitioned per user.
package etl

import "time"

// PlayRow is one cleaned listening event in the user_tracks dataset.
// Timestamps carry both UTC and Mexico City wall time so Athena queries
// can group by local listening hour without timezone math.
type PlayRow struct {
	UserID          string    `parquet:"user_id"`
	PlayedAtUTC     time.Time `parquet:"played_at_utc,timestamp"`
	PlayedAtMexico  time.Time `parquet:"played_at_mexico,timestamp"`
	TrackID         string    `parquet:"track_id"`
	TrackName       string    `parquet:"track_name"`
	ArtistID        string    `parquet:"artist_id"`
	ArtistName      string    `parquet:"artist_name"`
	AlbumID         string    `parquet:"album_id"`
	AlbumName       string    `parquet:"album_name"`
	DurationMS      int64     `parquet:"duration_ms"`
	DurationMinutes float64   `parquet:"duration_minutes"`
	Popularity      int32     `parquet:"popularity"`
	Explicit        bool      `parquet:"explicit"`
	PlayHour        int32     `parquet:"play_hour"`
	PlayDayOfWeek   int32     `parquet:"play_day_of_week"`
	PlayMonth       int32     `parquet:"play_month"`
	PlayYear        int32     `parquet:"play_year"`
	Season          string    `parquet:"season"`
	ProcessedAt     time.Time `parquet:"processed_at,timestamp"`
}

// LikeRow is one saved track in the likes dataset.
type LikeRow struct {
	UserID          string    `parquet:"user_id"`
	AddedAtUTC      time.Time `parquet:"added_at_utc,timestamp"`
	AddedAtMexico   time.Time `parquet:"added_at_mexico,timestamp"`
	TrackID         string    `parquet:"track_id"`
	TrackName       string    `parquet:"track_name"`
	ArtistsID       string    `parquet:"artists_id"`
	AlbumID         string    `parquet:"album_id"`
	TrackPopularity int32     `parquet:"track_popularity"`
	Explicit        bool      `parquet:"explicit"`
	DurationMS      int64     `parquet:"duration_ms"`
	ProcessedAt     time.Time `parquet:"processed_at,timestamp"`
}

// TopTrackRow is one ranked favorite in the top_tracks dataset.
type TopTrackRow struct {
	UserID          string    `parquet:"user_id"`
	AddedAtUTC      time.Time `parquet:"added_at_utc,timestamp"`
	AddedAtMexico   time.Time `parquet:"added_at_mexico,timestamp"`
	TrackID         string    `parquet:"track_id"`
	TrackName       string    `parquet:"track_name"`
	ArtistsID       string    `parquet:"artists_id"`
	AlbumID         string    `parquet:"album_id"`
	TrackPopularity int32     `parquet:"track_popularity"`
	Explicit        bool      `parquet:"explicit"`
	DurationMS      int64     `parquet:"duration_ms"`
	IthPreference   int32     `parquet:"ith_preference"`
	ProcessedAt     time.Time `parquet:"processed_at,timestamp"`
}

// FollowedArtistRow is one followed artist in the followed_artists dataset.
type FollowedArtistRow struct {
	UserID      string    `parquet:"user_id"`
	ArtistID    string    `parquet:"artist_id"`
	ProcessedAt time.Time `parquet:"processed_at,timestamp"`
}

// DimensionRow is one scored track in the track_dimensions dataset. The 30
// rubric scores come straight from the model; the derived metrics below them
// are computed here so dashboards never re-aggregate raw dimensions.
type DimensionRow struct {
	TrackID    string `parquet:"track_id"`
	TrackName  string `parquet:"track_name"`
	ArtistName string `parquet:"artist_name"`
	AlbumName  string `parquet:"album_name"`

	HighEnergy                 float64 `parquet:"high_energy"`
	MediumEnergy               float64 `parquet:"medium_energy"`
	LowEnergy                  float64 `parquet:"low_energy"`
	FastTempo                  float64 `parquet:"fast_tempo"`
	MidTempo                   float64 `parquet:"mid_tempo"`
	SlowTempo                  float64 `parquet:"slow_tempo"`
	Euphoria                   float64 `parquet:"euphoria"`
	Melancholy                 float64 `parquet:"melancholy"`
	Serenity                   float64 `parquet:"serenity"`
	DramaticIntensity          float64 `parquet:"dramatic_intensity"`
	Mystery                    float64 `parquet:"mystery"`
	Warmth                     float64 `parquet:"warmth"`
	Workout                    float64 `parquet:"workout"`
	FocusWork                  float64 `parquet:"focus_work"`
	SocialParty                float64 `parquet:"social_party"`
	Introspection              float64 `parquet:"introspection"`
	Relaxation                 float64 `parquet:"relaxation"`
	Travel                     float64 `parquet:"travel"`
	RetroNostalgia             float64 `parquet:"retro_nostalgia"`
	Experimental               float64 `parquet:"experimental"`
	Underground                float64 `parquet:"underground"`
	Universality               float64 `parquet:"universality"`
	Regionality                float64 `parquet:"regionality"`
	Timelessness               float64 `parquet:"timelessness"`
	CreativeStimulation        float64 `parquet:"creative_stimulation"`
	EmotionalProcessing        float64 `parquet:"emotional_processing"`
	MentalEscape               float64 `parquet:"mental_escape"`
	MotivationDrive            float64 `parquet:"motivation_drive"`
	PhilosophicalContemplation float64 `parquet:"philosophical_contemplation"`
	SocialConnection           float64 `parquet:"social_connection"`

	OverallEnergy     float64 `parquet:"overall_energy"`
	DominantTempo     string  `parquet:"dominant_tempo"`
	PositiveValence   float64 `parquet:"positive_valence"`
	NegativeValence   float64 `parquet:"negative_valence"`
	FitnessScore      float64 `parquet:"fitness_score"`
	RelaxationScore   float64 `parquet:"relaxation_score"`
	SocialScore       float64 `parquet:"social_score"`
	CreativeScore     float64 `parquet:"creative_score"`
	MainstreamFactor  float64 `parquet:"mainstream_factor"`
	TemporalRelevance float64 `parquet:"temporal_relevance"`

	AnalysisTimestamp time.Time `parquet:"analysis_timestamp,timestamp"`
	AnalysisModel     string    `parquet:"analysis_model"`
	AnalysisVersion   string    `parquet:"analysis_version"`
	ConfidenceScore   float64   `parquet:"confidence_score"`
}
