package collector

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ragp/spotifire/internal/spotifyapi"
)

// snapshotTimeFormat is the timestamp embedded in snapshot filenames.
const snapshotTimeFormat = "20060102_150405"

// snapshotHeader is the column order of a recently-played snapshot CSV.
var snapshotHeader = []string{
	"played_at",
	"track_name",
	"artist_name",
	"album_name",
	"track_id",
	"artist_id",
	"album_id",
	"duration_ms",
	"popularity",
	"explicit",
}

// UserDir returns the snapshot directory of one user.
func UserDir(dataDir, userID string) string {
	return filepath.Join(dataDir, "collected", userID)
}

// WriteSnapshot writes one recently-played CSV snapshot for a user and
// returns the file path. An empty feed still produces a header-only file,
// which keeps collection gaps visible.
func WriteSnapshot(dataDir, userID string, plays []spotifyapi.Play, now time.Time) (string, error) {
	dir := UserDir(dataDir, userID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}

	name := fmt.Sprintf("recently_played_%s.csv", now.Format(snapshotTimeFormat))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating snapshot file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(snapshotHeader); err != nil {
		return "", fmt.Errorf("writing snapshot header: %w", err)
	}
	for _, p := range plays {
		row := []string{
			p.PlayedAt.UTC().Format(time.RFC3339),
			p.TrackName,
			p.ArtistName,
			p.AlbumName,
			p.TrackID,
			p.ArtistID,
			p.AlbumID,
			strconv.Itoa(p.DurationMS),
			strconv.Itoa(p.Popularity),
			strconv.FormatBool(p.Explicit),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("writing snapshot row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flushing snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing snapshot: %w", err)
	}
	return path, nil
}
