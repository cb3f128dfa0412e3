package etl

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ragp/spotifire/internal/collector"
)

// ProcessLikes builds the likes dataset from a user's likes_list.json.
// Duplicates collapse on (track_id, added_at_utc) and the output is sorted
// by save time.
func (p *Processor) ProcessLikes(userID string) (*Result, error) {
	var records []collector.LikedTrackRecord
	if err := readHistory(collector.UserDir(p.dataDir, userID), collector.LikesFile, &records); err != nil {
		return nil, err
	}

	processedAt := p.now().UTC()
	seen := map[string]bool{}
	var rows []LikeRow
	skipped := 0

	for _, rec := range records {
		addedAt, err := time.Parse(time.RFC3339, rec.AddedAt)
		if err != nil || rec.TrackID == "" {
			skipped++
			continue
		}
		key := rec.TrackID + "|" + addedAt.UTC().Format(time.RFC3339)
		if seen[key] {
			skipped++
			continue
		}
		seen[key] = true

		rows = append(rows, LikeRow{
			UserID:          userID,
			AddedAtUTC:      addedAt.UTC(),
			AddedAtMexico:   addedAt.UTC().In(p.loc),
			TrackID:         rec.TrackID,
			TrackName:       orDefault(rec.TrackName, unknownTrack),
			ArtistsID:       rec.ArtistID,
			AlbumID:         rec.AlbumID,
			TrackPopularity: int32(rec.Popularity),
			Explicit:        rec.Explicit,
			DurationMS:      int64(rec.DurationMS),
			ProcessedAt:     processedAt,
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].AddedAtUTC.Before(rows[j].AddedAtUTC) })

	path := p.OutputPath(DatasetLikes, userID)
	if err := writeParquet(path, rows); err != nil {
		return nil, err
	}

	p.log.Infow("built likes", "user", userID, "rows", len(rows), "skipped", skipped)
	return &Result{Dataset: DatasetLikes, Path: path, Rows: len(rows), Skipped: skipped}, nil
}

// ProcessTopTracks builds the top_tracks dataset. Duplicates collapse on
// (track_id, ith_preference) and the output is sorted by rank.
func (p *Processor) ProcessTopTracks(userID string) (*Result, error) {
	var records []collector.TopTrackRecord
	if err := readHistory(collector.UserDir(p.dataDir, userID), collector.TopTracksFile, &records); err != nil {
		return nil, err
	}

	processedAt := p.now().UTC()
	seen := map[string]bool{}
	var rows []TopTrackRow
	skipped := 0

	for _, rec := range records {
		if rec.TrackID == "" {
			skipped++
			continue
		}
		key := fmt.Sprintf("%s|%d", rec.TrackID, rec.IthPreference)
		if seen[key] {
			skipped++
			continue
		}
		seen[key] = true

		rows = append(rows, TopTrackRow{
			UserID:          userID,
			AddedAtUTC:      processedAt,
			AddedAtMexico:   processedAt.In(p.loc),
			TrackID:         rec.TrackID,
			TrackName:       orDefault(rec.TrackName, unknownTrack),
			ArtistsID:       rec.ArtistID,
			AlbumID:         rec.AlbumID,
			TrackPopularity: int32(rec.Popularity),
			Explicit:        rec.Explicit,
			DurationMS:      int64(rec.DurationMS),
			IthPreference:   int32(rec.IthPreference),
			ProcessedAt:     processedAt,
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].IthPreference < rows[j].IthPreference })

	path := p.OutputPath(DatasetTopTracks, userID)
	if err := writeParquet(path, rows); err != nil {
		return nil, err
	}

	p.log.Infow("built top_tracks", "user", userID, "rows", len(rows), "skipped", skipped)
	return &Result{Dataset: DatasetTopTracks, Path: path, Rows: len(rows), Skipped: skipped}, nil
}

// ProcessFollowedArtists builds the followed_artists dataset, deduplicated
// by artist id.
func (p *Processor) ProcessFollowedArtists(userID string) (*Result, error) {
	var records []collector.FollowedArtistRecord
	if err := readHistory(collector.UserDir(p.dataDir, userID), collector.FollowedArtistsFile, &records); err != nil {
		return nil, err
	}

	processedAt := p.now().UTC()
	seen := map[string]bool{}
	var rows []FollowedArtistRow
	skipped := 0

	for _, rec := range records {
		if rec.ArtistID == "" || seen[rec.ArtistID] {
			skipped++
			continue
		}
		seen[rec.ArtistID] = true
		rows = append(rows, FollowedArtistRow{
			UserID:      userID,
			ArtistID:    rec.ArtistID,
			ProcessedAt: processedAt,
		})
	}

	path := p.OutputPath(DatasetFollowedArtists, userID)
	if err := writeParquet(path, rows); err != nil {
		return nil, err
	}

	p.log.Infow("built followed_artists", "user", userID, "rows", len(rows), "skipped", skipped)
	return &Result{Dataset: DatasetFollowedArtists, Path: path, Rows: len(rows), Skipped: skipped}, nil
}

// ProcessUser builds every dataset a user has raw data for. Missing history
// files are fine; the collector may not have harvested them yet.
func (p *Processor) ProcessUser(userID string) ([]*Result, error) {
	var results []*Result

	plays, err := p.ProcessPlays(userID)
	if err != nil {
		return nil, err
	}
	results = append(results, plays)

	for _, build := range []func(string) (*Result, error){p.ProcessLikes, p.ProcessTopTracks, p.ProcessFollowedArtists} {
		res, err := build(userID)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func readHistory(dir, file string, v any) error {
	data, err := os.ReadFile(filepath.Join(dir, file))
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", file, err)
	}
	return nil
}
