package etl

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ragp/spotifire/internal/bedrock"
	"github.com/ragp/spotifire/internal/collector"
	"github.com/ragp/spotifire/internal/spotifyapi"
)

var testNow = time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC)

func newTestProcessor(t *testing.T) (*Processor, string) {
	t.Helper()
	dataDir := t.TempDir()
	p, err := New(zap.NewNop().Sugar(), dataDir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	p.now = func() time.Time { return testNow }
	return p, dataDir
}

func writeSnapshot(t *testing.T, dataDir, userID string, plays []spotifyapi.Play, at time.Time) {
	t.Helper()
	if _, err := collector.WriteSnapshot(dataDir, userID, plays, at); err != nil {
		t.Fatalf("WriteSnapshot() error = %v", err)
	}
}

func TestProcessPlays(t *testing.T) {
	p, dataDir := newTestProcessor(t)

	winterPlay := spotifyapi.Play{
		PlayedAt:   time.Date(2025, 1, 15, 3, 30, 0, 0, time.UTC),
		TrackName:  "  Song A  ",
		ArtistName: "Artist A",
		AlbumName:  "",
		TrackID:    "t1",
		ArtistID:   "a1",
		AlbumID:    "al1",
		DurationMS: 215000,
		Popularity: 73,
		Explicit:   true,
	}
	summerPlay := spotifyapi.Play{
		PlayedAt:   time.Date(2025, 6, 21, 23, 30, 0, 0, time.UTC),
		TrackName:  "Song B",
		ArtistName: "Artist B",
		TrackID:    "t2",
		ArtistID:   "a2",
		DurationMS: 180000,
	}
	noArtist := spotifyapi.Play{
		PlayedAt:  time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC),
		TrackName: "Orphan",
		TrackID:   "t3",
	}

	// two snapshots sharing the winter play, so it must dedupe
	writeSnapshot(t, dataDir, "alice", []spotifyapi.Play{winterPlay, summerPlay, noArtist}, testNow)
	writeSnapshot(t, dataDir, "alice", []spotifyapi.Play{winterPlay}, testNow.Add(time.Hour))

	res, err := p.ProcessPlays("alice")
	if err != nil {
		t.Fatalf("ProcessPlays() error = %v", err)
	}
	if res.Rows != 2 {
		t.Errorf("Rows = %d, want 2", res.Rows)
	}
	if res.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2 (one duplicate, one missing artist)", res.Skipped)
	}

	rows, err := readParquet[PlayRow](res.Path)
	if err != nil {
		t.Fatalf("readParquet() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	// sorted by play time, so the January play comes first
	winter := rows[0]
	if winter.TrackID != "t1" {
		t.Fatalf("first row = %q, want t1", winter.TrackID)
	}
	if winter.UserID != "alice" {
		t.Errorf("UserID = %q", winter.UserID)
	}
	if winter.TrackName != "Song A" {
		t.Errorf("TrackName = %q, want trimmed", winter.TrackName)
	}
	if winter.AlbumName != "Unknown Album" {
		t.Errorf("AlbumName = %q", winter.AlbumName)
	}
	// 03:30 UTC is 21:30 the previous day in Mexico City
	if winter.PlayHour != 21 {
		t.Errorf("PlayHour = %d, want 21", winter.PlayHour)
	}
	if winter.PlayDayOfWeek != 3 {
		t.Errorf("PlayDayOfWeek = %d, want 3 (Tuesday)", winter.PlayDayOfWeek)
	}
	if winter.PlayMonth != 1 || winter.PlayYear != 2025 {
		t.Errorf("month/year = %d/%d", winter.PlayMonth, winter.PlayYear)
	}
	if winter.Season != "Winter" {
		t.Errorf("Season = %q", winter.Season)
	}
	if winter.DurationMinutes != 3.58 {
		t.Errorf("DurationMinutes = %v, want 3.58", winter.DurationMinutes)
	}
	if !winter.Explicit || winter.Popularity != 73 {
		t.Errorf("explicit/popularity = %v/%d", winter.Explicit, winter.Popularity)
	}

	summer := rows[1]
	if summer.Season != "Summer" {
		t.Errorf("Season = %q, want Summer", summer.Season)
	}
	if summer.PlayDayOfWeek != 7 {
		t.Errorf("PlayDayOfWeek = %d, want 7 (Saturday)", summer.PlayDayOfWeek)
	}
}

func TestProcessLikes(t *testing.T) {
	p, dataDir := newTestProcessor(t)
	dir := collector.UserDir(dataDir, "alice")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	likesJSON := `[
		{"track_id": "t2", "track_name": "Later", "artist_id": "a2", "added_at": "2025-02-01T00:00:00Z", "popularity": 40, "duration_ms": 180000},
		{"track_id": "t1", "track_name": "Earlier", "artist_id": "a1", "added_at": "2025-01-01T00:00:00Z", "popularity": 80, "duration_ms": 200000, "explicit": true},
		{"track_id": "t1", "track_name": "Earlier", "artist_id": "a1", "added_at": "2025-01-01T00:00:00Z"},
		{"track_id": "t3", "track_name": "Broken", "added_at": "not-a-date"}
	]`
	if err := os.WriteFile(filepath.Join(dir, collector.LikesFile), []byte(likesJSON), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := p.ProcessLikes("alice")
	if err != nil {
		t.Fatalf("ProcessLikes() error = %v", err)
	}
	if res.Rows != 2 || res.Skipped != 2 {
		t.Errorf("Rows/Skipped = %d/%d, want 2/2", res.Rows, res.Skipped)
	}

	rows, err := readParquet[LikeRow](res.Path)
	if err != nil {
		t.Fatalf("readParquet() error = %v", err)
	}
	if rows[0].TrackID != "t1" || rows[1].TrackID != "t2" {
		t.Errorf("order = %q, %q, want t1, t2", rows[0].TrackID, rows[1].TrackID)
	}
	if rows[0].ArtistsID != "a1" || rows[0].TrackPopularity != 80 || !rows[0].Explicit {
		t.Errorf("t1 row = %+v", rows[0])
	}
}

func TestProcessTopTracks(t *testing.T) {
	p, dataDir := newTestProcessor(t)
	dir := collector.UserDir(dataDir, "alice")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	topJSON := `[
		{"track_id": "t2", "track_name": "Second", "artist_id": "a2", "ith_preference": 2},
		{"track_id": "t1", "track_name": "First", "artist_id": "a1", "ith_preference": 1},
		{"track_id": "t1", "track_name": "First", "artist_id": "a1", "ith_preference": 1}
	]`
	if err := os.WriteFile(filepath.Join(dir, collector.TopTracksFile), []byte(topJSON), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := p.ProcessTopTracks("alice")
	if err != nil {
		t.Fatalf("ProcessTopTracks() error = %v", err)
	}
	if res.Rows != 2 || res.Skipped != 1 {
		t.Errorf("Rows/Skipped = %d/%d, want 2/1", res.Rows, res.Skipped)
	}

	rows, err := readParquet[TopTrackRow](res.Path)
	if err != nil {
		t.Fatalf("readParquet() error = %v", err)
	}
	if rows[0].IthPreference != 1 || rows[1].IthPreference != 2 {
		t.Errorf("rank order = %d, %d", rows[0].IthPreference, rows[1].IthPreference)
	}
}

func TestProcessFollowedArtists(t *testing.T) {
	p, dataDir := newTestProcessor(t)
	dir := collector.UserDir(dataDir, "alice")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	followedJSON := `[
		{"artist_id": "a1", "artist_name": "Artist A"},
		{"artist_id": "a1", "artist_name": "Artist A"},
		{"artist_id": "a2", "artist_name": "Artist B"}
	]`
	if err := os.WriteFile(filepath.Join(dir, collector.FollowedArtistsFile), []byte(followedJSON), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := p.ProcessFollowedArtists("alice")
	if err != nil {
		t.Fatalf("ProcessFollowedArtists() error = %v", err)
	}
	if res.Rows != 2 || res.Skipped != 1 {
		t.Errorf("Rows/Skipped = %d/%d, want 2/1", res.Rows, res.Skipped)
	}
}

func fullDimensions(base float64) map[string]float64 {
	dims := map[string]float64{}
	for _, name := range bedrock.DimensionNames() {
		dims[name] = base
	}
	return dims
}

func TestProcessDimensions(t *testing.T) {
	p, _ := newTestProcessor(t)

	scores := fullDimensions(60)
	scores["high_energy"] = 150 // clamps to 100
	scores["low_energy"] = -5   // clamps to 0
	scores["fast_tempo"] = 20
	scores["mid_tempo"] = 90
	scores["slow_tempo"] = 10
	scores["universality"] = 80
	scores["underground"] = 20

	incomplete := fullDimensions(50)
	delete(incomplete, "warmth")

	file := &bedrock.AnalysisFile{Analyses: []bedrock.TrackAnalysis{
		{TrackID: "t2", TrackName: "Zeta", ArtistName: "Band B", AlbumName: "B", Dimensions: fullDimensions(50)},
		{TrackID: "t1", TrackName: "Alpha", ArtistName: "Band A", AlbumName: "A", Dimensions: scores},
		{TrackID: "t3", TrackName: "Partial", ArtistName: "Band C", AlbumName: "C", Dimensions: incomplete},
		{TrackID: "t4", TrackName: "", ArtistName: "Band D", AlbumName: "D", Dimensions: fullDimensions(50)},
	}}

	res, err := p.ProcessDimensions(file)
	if err != nil {
		t.Fatalf("ProcessDimensions() error = %v", err)
	}
	if res.Rows != 2 || res.Skipped != 2 {
		t.Errorf("Rows/Skipped = %d/%d, want 2/2", res.Rows, res.Skipped)
	}

	rows, err := readParquet[DimensionRow](res.Path)
	if err != nil {
		t.Fatalf("readParquet() error = %v", err)
	}
	if rows[0].ArtistName != "Band A" || rows[1].ArtistName != "Band B" {
		t.Errorf("sort order = %q, %q", rows[0].ArtistName, rows[1].ArtistName)
	}

	got := rows[0]
	if got.HighEnergy != 100 || got.LowEnergy != 0 {
		t.Errorf("clamped scores = %v, %v", got.HighEnergy, got.LowEnergy)
	}
	// (100 + 60 + 0) / 3
	if got.OverallEnergy != 53.33 {
		t.Errorf("OverallEnergy = %v, want 53.33", got.OverallEnergy)
	}
	if got.DominantTempo != "mid_tempo" {
		t.Errorf("DominantTempo = %q", got.DominantTempo)
	}
	// (80 - 20) / 2
	if got.MainstreamFactor != 30 {
		t.Errorf("MainstreamFactor = %v, want 30", got.MainstreamFactor)
	}
	if got.AnalysisModel != "claude-3-5-sonnet" || got.AnalysisVersion != "1.0" || got.ConfidenceScore != 85 {
		t.Errorf("metadata = %q/%q/%v", got.AnalysisModel, got.AnalysisVersion, got.ConfidenceScore)
	}
}
