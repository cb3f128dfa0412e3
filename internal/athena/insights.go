package athena

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Insight window defaults, in days.
const (
	TopArtistsDays = 90
	ActivityDays   = 30
)

// ArtistStat is one row of the top artists ranking.
type ArtistStat struct {
	ArtistName   string `json:"artist_name"`
	PlayCount    int    `json:"play_count"`
	UniqueTracks int    `json:"unique_tracks"`
}

// HourlyActivity is one slot of the 24-hour listening clock.
type HourlyActivity struct {
	Hour      int    `json:"hour"`
	HourLabel string `json:"hour_label"`
	PlayCount int    `json:"play_count"`
}

// DayTypeStat compares weekday and weekend listening.
type DayTypeStat struct {
	DayType       string  `json:"day_type"`
	PlayCount     int     `json:"play_count"`
	ActiveDays    int     `json:"active_days"`
	AvgPopularity float64 `json:"avg_popularity"`
	Percentage    float64 `json:"percentage"`
}

// PopularityTier buckets plays by how mainstream the track is.
type PopularityTier struct {
	Tier          string  `json:"tier"`
	PlayCount     int     `json:"play_count"`
	UniqueArtists int     `json:"unique_artists"`
	AvgPopularity float64 `json:"avg_popularity"`
	Percentage    float64 `json:"percentage"`
}

// PopularityBreakdown is the tier split plus its summary line.
type PopularityBreakdown struct {
	Tiers        []PopularityTier `json:"tiers"`
	TotalPlays   int              `json:"total_plays"`
	DominantTier string           `json:"dominant_tier"`
}

// Summary is the full insight bundle for one user. A sub-query that fails
// leaves its section empty rather than sinking the whole summary.
type Summary struct {
	UserID         string              `json:"user_id"`
	PeriodDays     int                 `json:"period_days"`
	GeneratedAt    time.Time           `json:"generated_at"`
	TopArtists     []ArtistStat        `json:"top_artists"`
	HourlyActivity []HourlyActivity    `json:"hourly_activity"`
	DayTypes       []DayTypeStat       `json:"day_types"`
	Popularity     PopularityBreakdown `json:"popularity"`
	TasteProfile   string              `json:"taste_profile"`
	ActivityLevel  string              `json:"activity_level"`
}

// Insights computes listening statistics for one user at a time.
type Insights struct {
	log    *zap.SugaredLogger
	runner *Runner
	now    func() time.Time
}

// NewInsights creates an Insights service on top of a query runner.
func NewInsights(log *zap.SugaredLogger, runner *Runner) *Insights {
	return &Insights{log: log, runner: runner, now: time.Now}
}

func quote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func (s *Insights) sinceDate(days int) string {
	return s.now().AddDate(0, 0, -days).Format("2006-01-02")
}

// TopArtists ranks the user's most played artists over the last 90 days.
func (s *Insights) TopArtists(ctx context.Context, userID string, limit int) ([]ArtistStat, error) {
	sql := fmt.Sprintf(`
		SELECT artist_name, COUNT(*) AS play_count, COUNT(DISTINCT track_id) AS unique_tracks
		FROM user_tracks
		WHERE user_id = '%s' AND date(played_at_mexico) >= date('%s')
		GROUP BY artist_name
		ORDER BY play_count DESC
		LIMIT %d`, quote(userID), s.sinceDate(TopArtistsDays), limit)

	rows, err := s.runner.Query(ctx, sql)
	if err != nil {
		return nil, err
	}

	stats := make([]ArtistStat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, ArtistStat{
			ArtistName:   cell(row, 0),
			PlayCount:    cellInt(row, 1),
			UniqueTracks: cellInt(row, 2),
		})
	}
	return stats, nil
}

// DailyPattern returns plays per hour of day over the last 30 days, with
// every hour present even when silent.
func (s *Insights) DailyPattern(ctx context.Context, userID string) ([]HourlyActivity, error) {
	sql := fmt.Sprintf(`
		SELECT play_hour, COUNT(*) AS play_count
		FROM user_tracks
		WHERE user_id = '%s' AND date(played_at_mexico) >= date('%s')
		GROUP BY play_hour`, quote(userID), s.sinceDate(ActivityDays))

	rows, err := s.runner.Query(ctx, sql)
	if err != nil {
		return nil, err
	}

	counts := map[int]int{}
	for _, row := range rows {
		counts[cellInt(row, 0)] = cellInt(row, 1)
	}

	hours := make([]HourlyActivity, 24)
	for h := range hours {
		hours[h] = HourlyActivity{
			Hour:      h,
			HourLabel: fmt.Sprintf("%02d:00", h),
			PlayCount: counts[h],
		}
	}
	return hours, nil
}

// WeekdayWeekend splits the last 30 days of listening into weekday and
// weekend behavior.
func (s *Insights) WeekdayWeekend(ctx context.Context, userID string) ([]DayTypeStat, error) {
	sql := fmt.Sprintf(`
		SELECT
			CASE WHEN play_day_of_week IN (1, 7) THEN 'weekend' ELSE 'weekday' END AS day_type,
			COUNT(*) AS play_count,
			COUNT(DISTINCT date(played_at_mexico)) AS active_days,
			ROUND(AVG(popularity), 1) AS avg_popularity
		FROM user_tracks
		WHERE user_id = '%s' AND date(played_at_mexico) >= date('%s')
		GROUP BY 1`, quote(userID), s.sinceDate(ActivityDays))

	rows, err := s.runner.Query(ctx, sql)
	if err != nil {
		return nil, err
	}

	stats := make([]DayTypeStat, 0, len(rows))
	total := 0
	for _, row := range rows {
		stat := DayTypeStat{
			DayType:       cell(row, 0),
			PlayCount:     cellInt(row, 1),
			ActiveDays:    cellInt(row, 2),
			AvgPopularity: cellFloat(row, 3),
		}
		total += stat.PlayCount
		stats = append(stats, stat)
	}
	for i := range stats {
		if total > 0 {
			stats[i].Percentage = round1(float64(stats[i].PlayCount) * 100 / float64(total))
		}
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].DayType < stats[j].DayType })
	return stats, nil
}

// PopularityTiers buckets the last 30 days of plays into emergent, growing
// and established artists by track popularity.
func (s *Insights) PopularityTiers(ctx context.Context, userID string) (PopularityBreakdown, error) {
	sql := fmt.Sprintf(`
		SELECT
			CASE
				WHEN popularity <= 40 THEN 'emergent'
				WHEN popularity <= 70 THEN 'growing'
				ELSE 'established'
			END AS tier,
			COUNT(*) AS play_count,
			COUNT(DISTINCT artist_id) AS unique_artists,
			ROUND(AVG(popularity), 1) AS avg_popularity
		FROM user_tracks
		WHERE user_id = '%s' AND date(played_at_mexico) >= date('%s') AND popularity IS NOT NULL
		GROUP BY 1`, quote(userID), s.sinceDate(ActivityDays))

	rows, err := s.runner.Query(ctx, sql)
	if err != nil {
		return PopularityBreakdown{}, err
	}

	breakdown := PopularityBreakdown{DominantTier: "unknown"}
	for _, row := range rows {
		tier := PopularityTier{
			Tier:          cell(row, 0),
			PlayCount:     cellInt(row, 1),
			UniqueArtists: cellInt(row, 2),
			AvgPopularity: cellFloat(row, 3),
		}
		breakdown.TotalPlays += tier.PlayCount
		breakdown.Tiers = append(breakdown.Tiers, tier)
	}

	best := 0
	for i := range breakdown.Tiers {
		if breakdown.TotalPlays > 0 {
			breakdown.Tiers[i].Percentage = round1(float64(breakdown.Tiers[i].PlayCount) * 100 / float64(breakdown.TotalPlays))
		}
		if breakdown.Tiers[i].PlayCount > best {
			best = breakdown.Tiers[i].PlayCount
			breakdown.DominantTier = breakdown.Tiers[i].Tier
		}
	}
	return breakdown, nil
}

// BuildSummary gathers every insight for one user. Failures degrade to
// empty sections so the dashboard always renders.
func (s *Insights) BuildSummary(ctx context.Context, userID string) Summary {
	summary := Summary{
		UserID:      userID,
		PeriodDays:  TopArtistsDays,
		GeneratedAt: s.now().UTC(),
	}

	var err error
	if summary.TopArtists, err = s.TopArtists(ctx, userID, 10); err != nil {
		s.log.Warnw("top artists failed", "user_id", userID, "error", err)
		summary.TopArtists = []ArtistStat{}
	}
	if summary.HourlyActivity, err = s.DailyPattern(ctx, userID); err != nil {
		s.log.Warnw("daily pattern failed", "user_id", userID, "error", err)
		summary.HourlyActivity = []HourlyActivity{}
	}
	if summary.DayTypes, err = s.WeekdayWeekend(ctx, userID); err != nil {
		s.log.Warnw("weekday split failed", "user_id", userID, "error", err)
		summary.DayTypes = []DayTypeStat{}
	}
	if summary.Popularity, err = s.PopularityTiers(ctx, userID); err != nil {
		s.log.Warnw("popularity tiers failed", "user_id", userID, "error", err)
		summary.Popularity = PopularityBreakdown{DominantTier: "unknown"}
	}

	summary.TasteProfile = tasteProfile(summary.Popularity.DominantTier)
	summary.ActivityLevel = activityLevel(summary.DayTypes)
	return summary
}

func tasteProfile(dominantTier string) string {
	switch dominantTier {
	case "emergent":
		return "Underground Digger"
	case "growing":
		return "Balanced Explorer"
	case "established":
		return "Mainstream Lover"
	default:
		return "Explorer"
	}
}

func activityLevel(dayTypes []DayTypeStat) string {
	plays, days := 0, 0
	for _, dt := range dayTypes {
		plays += dt.PlayCount
		days += dt.ActiveDays
	}
	if days == 0 {
		return "Casual"
	}
	perDay := float64(plays) / float64(days)
	switch {
	case perDay > 50:
		return "Very Active"
	case perDay > 20:
		return "Active"
	case perDay > 5:
		return "Moderate"
	default:
		return "Casual"
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
