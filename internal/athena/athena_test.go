package athena

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"go.uber.org/zap"
)

// fakeAthena resolves queries by substring and completes them instantly.
type fakeAthena struct {
	results map[string][][]string
	header  []string
	pageLen int
	failure string

	queries []string
}

func (f *fakeAthena) StartQueryExecution(_ context.Context, params *athena.StartQueryExecutionInput, _ ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error) {
	f.queries = append(f.queries, aws.ToString(params.QueryString))
	id := fmt.Sprintf("q-%d", len(f.queries))
	return &athena.StartQueryExecutionOutput{QueryExecutionId: aws.String(id)}, nil
}

func (f *fakeAthena) GetQueryExecution(_ context.Context, _ *athena.GetQueryExecutionInput, _ ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error) {
	status := &types.QueryExecutionStatus{State: types.QueryExecutionStateSucceeded}
	if f.failure != "" {
		status = &types.QueryExecutionStatus{
			State:             types.QueryExecutionStateFailed,
			StateChangeReason: aws.String(f.failure),
		}
	}
	return &athena.GetQueryExecutionOutput{
		QueryExecution: &types.QueryExecution{Status: status},
	}, nil
}

func (f *fakeAthena) GetQueryResults(_ context.Context, params *athena.GetQueryResultsInput, _ ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error) {
	var data [][]string
	sql := f.queries[len(f.queries)-1]
	for needle, rows := range f.results {
		if strings.Contains(sql, needle) {
			data = rows
			break
		}
	}

	all := append([][]string{f.header}, data...)
	start := 0
	if params.NextToken != nil {
		fmt.Sscanf(*params.NextToken, "%d", &start)
	}
	pageLen := f.pageLen
	if pageLen == 0 {
		pageLen = len(all)
	}
	end := min(start+pageLen, len(all))

	out := &athena.GetQueryResultsOutput{ResultSet: &types.ResultSet{}}
	for _, row := range all[start:end] {
		var cells []types.Datum
		for _, v := range row {
			if v == "" {
				cells = append(cells, types.Datum{})
			} else {
				cells = append(cells, types.Datum{VarCharValue: aws.String(v)})
			}
		}
		out.ResultSet.Rows = append(out.ResultSet.Rows, types.Row{Data: cells})
	}
	if end < len(all) {
		out.NextToken = aws.String(fmt.Sprintf("%d", end))
	}
	return out, nil
}

func newTestInsights(fake *fakeAthena) *Insights {
	runner := NewRunner(zap.NewNop().Sugar(), fake, "spotify_analytics", "s3://bucket/athena-results/")
	runner.pollInterval = time.Millisecond
	s := NewInsights(zap.NewNop().Sugar(), runner)
	s.now = func() time.Time { return time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestQuerySkipsHeaderAndPaginates(t *testing.T) {
	fake := &fakeAthena{
		header: []string{"a", "b"},
		results: map[string][][]string{
			"SELECT": {{"1", "x"}, {"2", ""}, {"3", "z"}},
		},
		pageLen: 2,
	}
	s := newTestInsights(fake)

	rows, err := s.runner.Query(context.Background(), "SELECT a, b FROM t")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[1][1] != "" {
		t.Errorf("null cell = %q, want empty", rows[1][1])
	}
}

func TestQueryFailureSurfacesReason(t *testing.T) {
	fake := &fakeAthena{failure: "TABLE_NOT_FOUND: user_tracks"}
	s := newTestInsights(fake)

	_, err := s.runner.Query(context.Background(), "SELECT 1")
	if err == nil || !strings.Contains(err.Error(), "TABLE_NOT_FOUND") {
		t.Errorf("error = %v, want state change reason", err)
	}
}

func TestTopArtists(t *testing.T) {
	fake := &fakeAthena{
		header: []string{"artist_name", "play_count", "unique_tracks"},
		results: map[string][][]string{
			"GROUP BY artist_name": {
				{"Artist A", "42", "12"},
				{"Artist B", "30", "8"},
			},
		},
	}
	s := newTestInsights(fake)

	stats, err := s.TopArtists(context.Background(), "alice", 10)
	if err != nil {
		t.Fatalf("TopArtists() error = %v", err)
	}
	if len(stats) != 2 || stats[0].ArtistName != "Artist A" || stats[0].PlayCount != 42 {
		t.Errorf("stats = %+v", stats)
	}
	if !strings.Contains(fake.queries[0], "date('2025-03-23')") {
		t.Errorf("query window = %q, want 90 days back", fake.queries[0])
	}
}

func TestDailyPatternZeroFills(t *testing.T) {
	fake := &fakeAthena{
		header: []string{"play_hour", "play_count"},
		results: map[string][][]string{
			"GROUP BY play_hour": {{"8", "5"}, {"22", "11"}},
		},
	}
	s := newTestInsights(fake)

	hours, err := s.DailyPattern(context.Background(), "alice")
	if err != nil {
		t.Fatalf("DailyPattern() error = %v", err)
	}
	if len(hours) != 24 {
		t.Fatalf("hours = %d, want 24", len(hours))
	}
	if hours[8].PlayCount != 5 || hours[22].PlayCount != 11 || hours[0].PlayCount != 0 {
		t.Errorf("counts = %+v", hours)
	}
	if hours[8].HourLabel != "08:00" {
		t.Errorf("HourLabel = %q", hours[8].HourLabel)
	}
}

func TestWeekdayWeekendPercentages(t *testing.T) {
	fake := &fakeAthena{
		header: []string{"day_type", "play_count", "active_days", "avg_popularity"},
		results: map[string][][]string{
			"day_type": {
				{"weekend", "30", "8", "62.5"},
				{"weekday", "70", "20", "55.1"},
			},
		},
	}
	s := newTestInsights(fake)

	stats, err := s.WeekdayWeekend(context.Background(), "alice")
	if err != nil {
		t.Fatalf("WeekdayWeekend() error = %v", err)
	}
	if stats[0].DayType != "weekday" || stats[1].DayType != "weekend" {
		t.Errorf("order = %+v", stats)
	}
	if stats[0].Percentage != 70 || stats[1].Percentage != 30 {
		t.Errorf("percentages = %v, %v", stats[0].Percentage, stats[1].Percentage)
	}
}

func TestPopularityTiers(t *testing.T) {
	fake := &fakeAthena{
		header: []string{"tier", "play_count", "unique_artists", "avg_popularity"},
		results: map[string][][]string{
			"emergent": {
				{"emergent", "10", "6", "31.2"},
				{"established", "60", "15", "81.0"},
				{"growing", "30", "12", "55.0"},
			},
		},
	}
	s := newTestInsights(fake)

	breakdown, err := s.PopularityTiers(context.Background(), "alice")
	if err != nil {
		t.Fatalf("PopularityTiers() error = %v", err)
	}
	if breakdown.TotalPlays != 100 {
		t.Errorf("TotalPlays = %d", breakdown.TotalPlays)
	}
	if breakdown.DominantTier != "established" {
		t.Errorf("DominantTier = %q", breakdown.DominantTier)
	}
	for _, tier := range breakdown.Tiers {
		if tier.Tier == "emergent" && tier.Percentage != 10 {
			t.Errorf("emergent percentage = %v", tier.Percentage)
		}
	}
}

func TestBuildSummaryDegradesGracefully(t *testing.T) {
	fake := &fakeAthena{failure: "no such table"}
	s := newTestInsights(fake)

	summary := s.BuildSummary(context.Background(), "alice")
	if summary.UserID != "alice" || summary.PeriodDays != 90 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.TopArtists == nil || len(summary.TopArtists) != 0 {
		t.Errorf("TopArtists = %v, want empty slice", summary.TopArtists)
	}
	if summary.Popularity.DominantTier != "unknown" {
		t.Errorf("DominantTier = %q", summary.Popularity.DominantTier)
	}
	if summary.TasteProfile != "Explorer" {
		t.Errorf("TasteProfile = %q", summary.TasteProfile)
	}
	if summary.ActivityLevel != "Casual" {
		t.Errorf("ActivityLevel = %q", summary.ActivityLevel)
	}
}

func TestTasteProfileAndActivityLevel(t *testing.T) {
	profiles := map[string]string{
		"emergent":    "Underground Digger",
		"growing":     "Balanced Explorer",
		"established": "Mainstream Lover",
		"unknown":     "Explorer",
	}
	for tier, want := range profiles {
		if got := tasteProfile(tier); got != want {
			t.Errorf("tasteProfile(%q) = %q, want %q", tier, got, want)
		}
	}

	levels := []struct {
		plays, days int
		want        string
	}{
		{600, 10, "Very Active"},
		{300, 10, "Active"},
		{100, 10, "Moderate"},
		{30, 10, "Casual"},
		{0, 0, "Casual"},
	}
	for _, tt := range levels {
		stats := []DayTypeStat{{PlayCount: tt.plays, ActiveDays: tt.days}}
		if got := activityLevel(stats); got != tt.want {
			t.Errorf("activityLevel(%d plays, %d days) = %q, want %q", tt.plays, tt.days, got, tt.want)
		}
	}
}

func TestUnprocessedTracks(t *testing.T) {
	fake := &fakeAthena{
		header: []string{"track_id", "track_name", "artist_name", "album_name"},
		results: map[string][][]string{
			"LEFT JOIN track_dimensions": {
				{"t1", "Song A", "Artist A", "Album A"},
			},
		},
	}
	s := newTestInsights(fake)

	tracks, err := s.UnprocessedTracks(context.Background(), 50)
	if err != nil {
		t.Fatalf("UnprocessedTracks() error = %v", err)
	}
	if len(tracks) != 1 || tracks[0].TrackID != "t1" || tracks[0].AlbumName != "Album A" {
		t.Errorf("tracks = %+v", tracks)
	}
	if !strings.Contains(fake.queries[0], "LIMIT 50") {
		t.Errorf("query = %q, want LIMIT 50", fake.queries[0])
	}
}

func TestAnalysisProgress(t *testing.T) {
	fake := &fakeAthena{
		header: []string{"total_tracks", "analyzed_tracks", "pending_tracks", "completion_percentage"},
		results: map[string][][]string{
			"WITH stats": {{"200", "150", "50", "75.00"}},
		},
	}
	s := newTestInsights(fake)

	stats, err := s.AnalysisProgress(context.Background())
	if err != nil {
		t.Fatalf("AnalysisProgress() error = %v", err)
	}
	if stats.TracksAvailable != 200 || stats.TracksAnalyzed != 150 || stats.TracksPending != 50 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.CompletionPercentage != 75 {
		t.Errorf("CompletionPercentage = %v", stats.CompletionPercentage)
	}
}

func TestUserFeatureVectors(t *testing.T) {
	row := []string{
		"alice", "300", "45", "120", "62.50", "22", "12.00", "3.40", "210.00",
		"41.00", "28.00", "35.00", "80", "58.00", "30", "12", "50", "70.00",
		"25", "26.67", "26.67", "66.67", "15.00", "10.00",
	}
	fake := &fakeAthena{
		header: make([]string, len(row)),
		results: map[string][][]string{
			"WITH user_stats": {row},
		},
	}
	s := newTestInsights(fake)

	features, err := s.UserFeatureVectors(context.Background())
	if err != nil {
		t.Fatalf("UserFeatureVectors() error = %v", err)
	}
	if len(features) != 1 {
		t.Fatalf("features = %d, want 1", len(features))
	}
	f := features[0]
	if f.UserID != "alice" || f.DailyActivity != 300 || f.PeakHour != 22 {
		t.Errorf("features = %+v", f)
	}
	if f.NightPreferenceRatio != 41 || f.DailyListeningIntensity != 10 {
		t.Errorf("ratios = %v, %v", f.NightPreferenceRatio, f.DailyListeningIntensity)
	}
	if f.TotalLikes != 80 || f.TopArtistsDiversity != 25 {
		t.Errorf("library features = %+v", f)
	}
}
