package athena

import (
	"context"
	"time"
)

// featuresTimeout covers the heaviest aggregation in the system.
const featuresTimeout = 120 * time.Second

// UserFeatures is one user's behavioral feature vector for clustering.
type UserFeatures struct {
	UserID                  string
	DailyActivity           int
	ArtistDiversity         int
	TrackDiversity          int
	AvgPopularity           float64
	PeakHour                int
	ExplicitPercentage      float64
	AvgTrackDuration        float64
	PopularityVariance      float64
	NightPreferenceRatio    float64
	WeekendPreferenceRatio  float64
	WorkHoursRatio          float64
	TotalLikes              int
	AvgLikePopularity       float64
	LikedArtistsCount       int
	TotalFollows            int
	TotalTopTracks          int
	AvgTopPopularity        float64
	TopArtistsDiversity     int
	LikeRatio               float64
	FollowRatio             float64
	LikeSelectivity         float64
	ExplorationRatio        float64
	DailyListeningIntensity float64
}

// featuresQuery joins play behavior with library signals per user. Users
// with fewer than 20 plays carry too little signal and are excluded.
const featuresQuery = `
WITH user_stats AS (
	SELECT
		user_id,
		COUNT(*) AS total_plays,
		COUNT(DISTINCT artist_id) AS artist_diversity,
		COUNT(DISTINCT track_id) AS track_diversity,
		AVG(popularity) AS avg_popularity,
		AVG(duration_minutes) AS avg_track_duration,
		VARIANCE(popularity) AS popularity_variance,
		SUM(CASE WHEN explicit THEN 1 ELSE 0 END) AS explicit_plays,
		SUM(CASE WHEN play_hour >= 22 OR play_hour <= 5 THEN 1 ELSE 0 END) AS night_plays,
		SUM(CASE WHEN play_hour BETWEEN 9 AND 17 THEN 1 ELSE 0 END) AS work_plays,
		SUM(CASE WHEN play_day_of_week IN (1, 7) THEN 1 ELSE 0 END) AS weekend_plays
	FROM user_tracks
	GROUP BY user_id
	HAVING COUNT(*) >= 20
),
peak_hours AS (
	SELECT user_id, play_hour,
		ROW_NUMBER() OVER (PARTITION BY user_id ORDER BY COUNT(*) DESC) AS rn
	FROM user_tracks
	GROUP BY user_id, play_hour
),
user_likes AS (
	SELECT user_id,
		COUNT(*) AS total_likes,
		AVG(track_popularity) AS avg_like_popularity,
		COUNT(DISTINCT artists_id) AS liked_artists_count
	FROM likes
	WHERE artists_id IS NOT NULL AND artists_id != ''
	GROUP BY user_id
),
user_follows AS (
	SELECT user_id, COUNT(DISTINCT artist_id) AS total_follows
	FROM followed_artists
	GROUP BY user_id
),
user_tops AS (
	SELECT user_id,
		COUNT(*) AS total_top_tracks,
		AVG(track_popularity) AS avg_top_popularity,
		COUNT(DISTINCT artists_id) AS top_artists_diversity
	FROM top_tracks
	WHERE artists_id IS NOT NULL AND artists_id != ''
	GROUP BY user_id
)
SELECT
	s.user_id,
	s.total_plays AS daily_activity,
	s.artist_diversity,
	s.track_diversity,
	COALESCE(ROUND(s.avg_popularity, 2), 50.0) AS avg_popularity,
	COALESCE(p.play_hour, 12) AS peak_hour,
	ROUND(s.explicit_plays * 100.0 / s.total_plays, 2) AS explicit_percentage,
	COALESCE(ROUND(s.avg_track_duration, 2), 0.0) AS avg_track_duration,
	COALESCE(ROUND(s.popularity_variance, 2), 0.0) AS popularity_variance,
	ROUND(s.night_plays * 100.0 / s.total_plays, 2) AS night_preference_ratio,
	ROUND(s.weekend_plays * 100.0 / s.total_plays, 2) AS weekend_preference_ratio,
	ROUND(s.work_plays * 100.0 / s.total_plays, 2) AS work_hours_ratio,
	COALESCE(l.total_likes, 0) AS total_likes,
	COALESCE(ROUND(l.avg_like_popularity, 2), 0.0) AS avg_like_popularity,
	COALESCE(l.liked_artists_count, 0) AS liked_artists_count,
	COALESCE(f.total_follows, 0) AS total_follows,
	COALESCE(t.total_top_tracks, 0) AS total_top_tracks,
	COALESCE(ROUND(t.avg_top_popularity, 2), 0.0) AS avg_top_popularity,
	COALESCE(t.top_artists_diversity, 0) AS top_artists_diversity,
	ROUND(COALESCE(l.total_likes, 0) * 100.0 / s.total_plays, 2) AS like_ratio,
	ROUND(COALESCE(f.total_follows, 0) * 100.0 / s.artist_diversity, 2) AS follow_ratio,
	ROUND(COALESCE(l.total_likes, 0) * 100.0 / s.track_diversity, 2) AS like_selectivity,
	ROUND(s.artist_diversity * 100.0 / s.total_plays, 2) AS exploration_ratio,
	ROUND(s.total_plays / 30.0, 2) AS daily_listening_intensity
FROM user_stats s
LEFT JOIN (SELECT user_id, play_hour FROM peak_hours WHERE rn = 1) p ON s.user_id = p.user_id
LEFT JOIN user_likes l ON s.user_id = l.user_id
LEFT JOIN user_follows f ON s.user_id = f.user_id
LEFT JOIN user_tops t ON s.user_id = t.user_id
ORDER BY s.total_plays DESC`

// UserFeatureVectors computes the clustering features for every active user.
func (s *Insights) UserFeatureVectors(ctx context.Context) ([]UserFeatures, error) {
	rows, err := s.runner.QueryWithTimeout(ctx, featuresQuery, featuresTimeout)
	if err != nil {
		return nil, err
	}

	features := make([]UserFeatures, 0, len(rows))
	for _, row := range rows {
		features = append(features, UserFeatures{
			UserID:                  cell(row, 0),
			DailyActivity:           cellInt(row, 1),
			ArtistDiversity:         cellInt(row, 2),
			TrackDiversity:          cellInt(row, 3),
			AvgPopularity:           cellFloat(row, 4),
			PeakHour:                cellInt(row, 5),
			ExplicitPercentage:      cellFloat(row, 6),
			AvgTrackDuration:        cellFloat(row, 7),
			PopularityVariance:      cellFloat(row, 8),
			NightPreferenceRatio:    cellFloat(row, 9),
			WeekendPreferenceRatio:  cellFloat(row, 10),
			WorkHoursRatio:          cellFloat(row, 11),
			TotalLikes:              cellInt(row, 12),
			AvgLikePopularity:       cellFloat(row, 13),
			LikedArtistsCount:       cellInt(row, 14),
			TotalFollows:            cellInt(row, 15),
			TotalTopTracks:          cellInt(row, 16),
			AvgTopPopularity:        cellFloat(row, 17),
			TopArtistsDiversity:     cellInt(row, 18),
			LikeRatio:               cellFloat(row, 19),
			FollowRatio:             cellFloat(row, 20),
			LikeSelectivity:         cellFloat(row, 21),
			ExplorationRatio:        cellFloat(row, 22),
			DailyListeningIntensity: cellFloat(row, 23),
		})
	}
	return features, nil
}
