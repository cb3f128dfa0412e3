package athena

import (
	"context"
	"fmt"

	"github.com/ragp/spotifire/internal/bedrock"
)

// AnalysisStats reports rubric scoring coverage over the track catalog.
type AnalysisStats struct {
	TracksAvailable      int     `json:"total_tracks_available"`
	TracksAnalyzed       int     `json:"tracks_analyzed"`
	TracksPending        int     `json:"tracks_pending"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

// UnprocessedTracks returns up to limit distinct played tracks that have no
// dimension scores yet.
func (s *Insights) UnprocessedTracks(ctx context.Context, limit int) ([]bedrock.Track, error) {
	sql := fmt.Sprintf(`
		SELECT DISTINCT u.track_id, u.track_name, u.artist_name, u.album_name
		FROM user_tracks u
		LEFT JOIN track_dimensions p ON u.track_id = p.track_id
		WHERE u.track_id IS NOT NULL
			AND u.track_name IS NOT NULL
			AND u.artist_name IS NOT NULL
			AND u.album_name IS NOT NULL
			AND p.track_id IS NULL
		ORDER BY u.track_name
		LIMIT %d`, limit)

	rows, err := s.runner.Query(ctx, sql)
	if err != nil {
		return nil, err
	}

	tracks := make([]bedrock.Track, 0, len(rows))
	for _, row := range rows {
		tracks = append(tracks, bedrock.Track{
			TrackID:    cell(row, 0),
			TrackName:  cell(row, 1),
			ArtistName: cell(row, 2),
			AlbumName:  cell(row, 3),
		})
	}
	return tracks, nil
}

// AnalysisProgress reports how much of the catalog has been scored.
func (s *Insights) AnalysisProgress(ctx context.Context) (AnalysisStats, error) {
	sql := `
		WITH stats AS (
			SELECT
				COUNT(DISTINCT u.track_id) AS total_tracks,
				COUNT(DISTINCT p.track_id) AS analyzed_tracks
			FROM user_tracks u
			LEFT JOIN track_dimensions p ON u.track_id = p.track_id
		)
		SELECT
			total_tracks,
			analyzed_tracks,
			total_tracks - analyzed_tracks AS pending_tracks,
			ROUND(analyzed_tracks * 100.0 / NULLIF(total_tracks, 0), 2) AS completion_percentage
		FROM stats`

	rows, err := s.runner.Query(ctx, sql)
	if err != nil {
		return AnalysisStats{}, err
	}
	if len(rows) == 0 {
		return AnalysisStats{}, nil
	}

	row := rows[0]
	return AnalysisStats{
		TracksAvailable:      cellInt(row, 0),
		TracksAnalyzed:       cellInt(row, 1),
		TracksPending:        cellInt(row, 2),
		CompletionPercentage: cellFloat(row, 3),
	}, nil
}
