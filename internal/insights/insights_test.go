package insights

import (
	"testing"
	"time"
)

func TestForDays(t *testing.T) {
	tests := []struct {
		days          int
		wantUnlocked  int
		wantProgress  int
		wantMilestone string
		wantCards     int
	}{
		{0, 0, 0, BasicPatterns, 3},
		{2, 0, 0, BasicPatterns, 3},
		{3, 1, 25, GenreDistribution, 3},
		{7, 2, 50, WeeklyTrends, 3},
		{14, 3, 75, ArtistDiscovery, 3},
		{21, 4, 100, "", 3},
		{365, 4, 100, "", 3},
	}
	for _, tt := range tests {
		status := ForDays(tt.days)

		unlocked := 0
		for _, ins := range status.Insights {
			if ins.Unlocked {
				unlocked++
			}
		}
		if unlocked != tt.wantUnlocked {
			t.Errorf("ForDays(%d) unlocked = %d, want %d", tt.days, unlocked, tt.wantUnlocked)
		}
		if status.Progress != tt.wantProgress {
			t.Errorf("ForDays(%d) progress = %d, want %d", tt.days, status.Progress, tt.wantProgress)
		}
		if len(status.Cards) != tt.wantCards {
			t.Errorf("ForDays(%d) cards = %d, want %d", tt.days, len(status.Cards), tt.wantCards)
		}
		switch {
		case tt.wantMilestone == "" && status.NextMilestone != nil:
			t.Errorf("ForDays(%d) milestone = %q, want none", tt.days, status.NextMilestone.Key)
		case tt.wantMilestone != "" && (status.NextMilestone == nil || status.NextMilestone.Key != tt.wantMilestone):
			t.Errorf("ForDays(%d) milestone = %+v, want %q", tt.days, status.NextMilestone, tt.wantMilestone)
		}
	}
}

func TestUnlockInDaysCountdown(t *testing.T) {
	status := ForDays(5)
	for _, ins := range status.Insights {
		switch ins.Key {
		case BasicPatterns:
			if !ins.Unlocked || ins.UnlockInDays != 0 || ins.Progress != 100 {
				t.Errorf("basic_patterns = %+v", ins)
			}
		case GenreDistribution:
			if ins.Unlocked || ins.UnlockInDays != 2 || ins.Progress != 71 {
				t.Errorf("genre_distribution = %+v", ins)
			}
		case ArtistDiscovery:
			if ins.UnlockInDays != 16 || ins.Progress != 23 {
				t.Errorf("artist_discovery = %+v", ins)
			}
		}
	}
}

func TestLockedCardsCarryProgress(t *testing.T) {
	status := ForDays(2)

	if len(status.Cards) != 3 {
		t.Fatalf("cards = %d, want 3 teasers for a new user", len(status.Cards))
	}
	for _, card := range status.Cards {
		if card.Unlocked {
			t.Errorf("card %s unlocked after 2 days", card.Key)
		}
		if card.Key == BasicPatterns && card.Progress != 66 {
			t.Errorf("basic_patterns progress = %d, want 66", card.Progress)
		}
		if card.Key == GenreDistribution && card.Progress != 28 {
			t.Errorf("genre_distribution progress = %d, want 28", card.Progress)
		}
	}
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC)

	status := Evaluate(now.AddDate(0, 0, -10), now)
	if status.DaysCollected != 10 {
		t.Errorf("DaysCollected = %d, want 10", status.DaysCollected)
	}

	status = Evaluate(time.Time{}, now)
	if status.DaysCollected != 0 || status.Progress != 0 {
		t.Errorf("zero start = %+v", status)
	}

	// a start in the future must not go negative
	status = Evaluate(now.AddDate(0, 0, 5), now)
	if status.DaysCollected != 0 {
		t.Errorf("future start DaysCollected = %d, want 0", status.DaysCollected)
	}
}
