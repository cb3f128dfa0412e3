// Package insights gates dashboard insight cards on how long a user has
// been collecting listening data.
package insights

import (
	"time"
)

// Insight keys, in unlock order.
const (
	BasicPatterns     = "basic_patterns"
	GenreDistribution = "genre_distribution"
	WeeklyTrends      = "weekly_trends"
	ArtistDiscovery   = "artist_discovery"
)

// maxDashboardCards caps how many insight cards the dashboard shows.
const maxDashboardCards = 3

// Insight is one gated dashboard card. Progress is how far this card is
// toward unlocking, 0-100; an unlocked card is always 100.
type Insight struct {
	Key          string `json:"key"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	RequiredDays int    `json:"required_days"`
	Unlocked     bool   `json:"unlocked"`
	UnlockInDays int    `json:"unlock_in_days"`
	Progress     int    `json:"progress"`
}

// Status is the full unlock picture for one user.
type Status struct {
	DaysCollected int      `json:"days_collected"`
	Progress      int      `json:"progress"`
	Insights      []Insight `json:"insights"`
	Cards         []Insight `json:"cards"`
	NextMilestone *Insight  `json:"next_milestone,omitempty"`
}

// catalog lists every insight with its data requirement.
var catalog = []Insight{
	{
		Key:          BasicPatterns,
		Title:        "Listening Patterns",
		Description:  "Your daily rhythm: when you listen and how much.",
		RequiredDays: 3,
	},
	{
		Key:          GenreDistribution,
		Title:        "Artist Breakdown",
		Description:  "Which artists and sounds dominate your rotation.",
		RequiredDays: 7,
	},
	{
		Key:          WeeklyTrends,
		Title:        "Weekly Trends",
		Description:  "How your listening shifts between weekdays and weekends.",
		RequiredDays: 14,
	},
	{
		Key:          ArtistDiscovery,
		Title:        "Discovery Radar",
		Description:  "How deep you dig beyond the charts.",
		RequiredDays: 21,
	},
}

// Evaluate computes the unlock status given when collection started.
func Evaluate(since, now time.Time) Status {
	days := 0
	if !since.IsZero() && now.After(since) {
		days = int(now.Sub(since).Hours() / 24)
	}
	return ForDays(days)
}

// ForDays computes the unlock status for a known number of collected days.
func ForDays(days int) Status {
	status := Status{DaysCollected: days}

	completed := 0
	for _, ins := range catalog {
		ins.Unlocked = days >= ins.RequiredDays
		if ins.Unlocked {
			completed++
			ins.UnlockInDays = 0
		} else {
			ins.UnlockInDays = ins.RequiredDays - days
		}
		ins.Progress = clampPercent(days * 100 / ins.RequiredDays)
		status.Insights = append(status.Insights, ins)
	}

	status.Progress = clampPercent(completed * 100 / len(catalog))

	// Locked cards stay on the dashboard as teasers with their progress.
	for _, ins := range status.Insights {
		if len(status.Cards) < maxDashboardCards {
			status.Cards = append(status.Cards, ins)
		}
	}

	// next milestone is the locked insight closest to unlocking
	for i := range status.Insights {
		ins := status.Insights[i]
		if ins.Unlocked {
			continue
		}
		if status.NextMilestone == nil || ins.UnlockInDays < status.NextMilestone.UnlockInDays {
			status.NextMilestone = &status.Insights[i]
		}
	}
	return status
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
