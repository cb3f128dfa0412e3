package etl

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/ragp/spotifire/internal/collector"
)

// All local-time derivations use Mexico City wall time.
const localTimeZone = "America/Mexico_City"

const (
	unknownTrack  = "Unknown Track"
	unknownArtist = "Unknown Artist"
	unknownAlbum  = "Unknown Album"
)

// Datasets under the processed prefix, locally and in S3.
const (
	DatasetUserTracks      = "user_tracks"
	DatasetLikes           = "likes"
	DatasetTopTracks       = "top_tracks"
	DatasetFollowedArtists = "followed_artists"
	DatasetDimensions      = "track_dimensions"
)

// Processor converts one user's raw snapshots into parquet datasets.
type Processor struct {
	log     *zap.SugaredLogger
	dataDir string
	loc     *time.Location
	now     func() time.Time
}

// New creates a Processor rooted at dataDir.
func New(log *zap.SugaredLogger, dataDir string) (*Processor, error) {
	loc, err := time.LoadLocation(localTimeZone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %s: %w", localTimeZone, err)
	}
	return &Processor{log: log, dataDir: dataDir, loc: loc, now: time.Now}, nil
}

// Result summarizes one dataset build.
type Result struct {
	Dataset string
	Path    string
	Rows    int
	Skipped int
}

// OutputPath is where a user's dataset file lands locally.
func (p *Processor) OutputPath(dataset, userID string) string {
	return filepath.Join(p.dataDir, "processed", dataset, userID+".parquet")
}

// Users lists every user with collected snapshots.
func (p *Processor) Users() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(p.dataDir, "collected"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading collected directory: %w", err)
	}
	var users []string
	for _, e := range entries {
		if e.IsDir() {
			users = append(users, e.Name())
		}
	}
	return users, nil
}

// ProcessPlays builds the user_tracks dataset from every recently played
// snapshot of one user. Rows missing a timestamp, track id or artist id are
// dropped, duplicates collapse on (track_id, played_at_utc), and the output
// is sorted by play time.
func (p *Processor) ProcessPlays(userID string) (*Result, error) {
	userDir := collector.UserDir(p.dataDir, userID)
	entries, err := os.ReadDir(userDir)
	if err != nil {
		return nil, fmt.Errorf("reading snapshots for %s: %w", userID, err)
	}

	processedAt := p.now().UTC()
	seen := map[string]bool{}
	var rows []PlayRow
	skipped := 0

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "recently_played_") || filepath.Ext(name) != ".csv" {
			continue
		}
		records, err := readSnapshot(filepath.Join(userDir, name))
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			row, ok := p.cleanPlay(userID, rec, processedAt)
			if !ok {
				skipped++
				continue
			}
			key := row.TrackID + "|" + row.PlayedAtUTC.Format(time.RFC3339)
			if seen[key] {
				skipped++
				continue
			}
			seen[key] = true
			rows = append(rows, row)
		}
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].PlayedAtUTC.Before(rows[j].PlayedAtUTC) })

	path := p.OutputPath(DatasetUserTracks, userID)
	if err := writeParquet(path, rows); err != nil {
		return nil, err
	}

	p.log.Infow("built user_tracks", "user", userID, "rows", len(rows), "skipped", skipped)
	return &Result{Dataset: DatasetUserTracks, Path: path, Rows: len(rows), Skipped: skipped}, nil
}

// cleanPlay validates one raw snapshot record and derives the local-time
// listening columns.
func (p *Processor) cleanPlay(userID string, rec map[string]string, processedAt time.Time) (PlayRow, bool) {
	playedAt, err := time.Parse(time.RFC3339, rec["played_at"])
	if err != nil || rec["track_id"] == "" || rec["artist_id"] == "" {
		return PlayRow{}, false
	}

	playedUTC := playedAt.UTC()
	local := playedUTC.In(p.loc)
	durationMS, _ := strconv.ParseInt(rec["duration_ms"], 10, 64)
	popularity, _ := strconv.Atoi(rec["popularity"])
	explicit := rec["explicit"] == "true"

	return PlayRow{
		UserID:          userID,
		PlayedAtUTC:     playedUTC,
		PlayedAtMexico:  local,
		TrackID:         rec["track_id"],
		TrackName:       orDefault(rec["track_name"], unknownTrack),
		ArtistID:        rec["artist_id"],
		ArtistName:      orDefault(rec["artist_name"], unknownArtist),
		AlbumID:         rec["album_id"],
		AlbumName:       orDefault(rec["album_name"], unknownAlbum),
		DurationMS:      durationMS,
		DurationMinutes: round2(float64(durationMS) / 60000),
		Popularity:      int32(popularity),
		Explicit:        explicit,
		PlayHour:        int32(local.Hour()),
		PlayDayOfWeek:   dayOfWeek(local),
		PlayMonth:       int32(local.Month()),
		PlayYear:        int32(local.Year()),
		Season:          season(local.Month()),
		ProcessedAt:     processedAt,
	}, true
}

// readSnapshot reads one snapshot CSV into header-keyed records.
func readSnapshot(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(all) < 2 {
		return nil, nil
	}

	header := all[0]
	records := make([]map[string]string, 0, len(all)-1)
	for _, row := range all[1:] {
		rec := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func orDefault(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// dayOfWeek numbers days 1 (Sunday) through 7 (Saturday), matching the
// convention the insight queries depend on.
func dayOfWeek(t time.Time) int32 {
	return int32(t.Weekday()) + 1
}

func season(m time.Month) string {
	switch {
	case m >= time.March && m <= time.May:
		return "Spring"
	case m >= time.June && m <= time.August:
		return "Summer"
	case m >= time.September && m <= time.November:
		return "Fall"
	default:
		return "Winter"
	}
}
