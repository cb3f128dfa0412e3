package profiles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/ragp/spotifire/internal/storage"
)

// downloader fetches one object from the bucket. *storage.Uploader
// satisfies it.
type downloader interface {
	DownloadFile(ctx context.Context, key, localPath string) error
}

// StoredProfile is one row of the profiles CSV as the dashboard consumes it.
type StoredProfile struct {
	UserID          string  `json:"user_id"`
	Cluster         int     `json:"cluster"`
	Name            string  `json:"profile_name"`
	Emoji           string  `json:"profile_emoji"`
	Description     string  `json:"profile_description"`
	Characteristics string  `json:"profile_characteristics"`
	AvgPopularity   float64 `json:"avg_popularity"`
	DailyIntensity  float64 `json:"daily_listening_intensity"`
}

// ProfileShare is one personality's share of all profiled users.
type ProfileShare struct {
	Name       string  `json:"profile_name"`
	Emoji      string  `json:"profile_emoji"`
	UserCount  int     `json:"user_count"`
	Percentage float64 `json:"percentage"`
}

// Lookup serves per-user profiles from the generated CSV, pulling it from
// S3 when the local copy is missing.
type Lookup struct {
	log       *zap.SugaredLogger
	store     downloader
	localPath string
	key       string

	mu       sync.RWMutex
	profiles map[string]StoredProfile
	loaded   bool
}

// NewLookup creates a Lookup. key is the object key of the profiles CSV
// under the ml prefix.
func NewLookup(log *zap.SugaredLogger, store downloader, dataDir, key string) *Lookup {
	return &Lookup{
		log:       log,
		store:     store,
		localPath: filepath.Join(dataDir, "ml", ProfilesFile),
		key:       key,
		profiles:  map[string]StoredProfile{},
	}
}

// defaultProfile is what users get before any profile generation ran.
func defaultProfile(userID string) StoredProfile {
	def := Definitions[CasualListener]
	return StoredProfile{
		UserID:          userID,
		Cluster:         DefaultCluster,
		Name:            def.Name,
		Emoji:           def.Emoji,
		Description:     def.Description,
		Characteristics: joinList(def.Characteristics),
	}
}

// Profile returns the stored personality for one user, or the default
// casual listener when none is known.
func (l *Lookup) Profile(ctx context.Context, userID string) StoredProfile {
	if err := l.ensureLoaded(ctx); err != nil {
		l.log.Warnw("profiles unavailable", "error", err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if p, ok := l.profiles[userID]; ok {
		return p
	}
	return defaultProfile(userID)
}

// Shares reports how users distribute across personalities.
func (l *Lookup) Shares(ctx context.Context) []ProfileShare {
	if err := l.ensureLoaded(ctx); err != nil {
		l.log.Warnw("profiles unavailable", "error", err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	counts := map[string]*ProfileShare{}
	var order []string
	for _, p := range l.profiles {
		share, ok := counts[p.Name]
		if !ok {
			share = &ProfileShare{Name: p.Name, Emoji: p.Emoji}
			counts[p.Name] = share
			order = append(order, p.Name)
		}
		share.UserCount++
	}

	total := len(l.profiles)
	shares := make([]ProfileShare, 0, len(order))
	for _, name := range order {
		share := *counts[name]
		if total > 0 {
			share.Percentage = round2(float64(share.UserCount) * 100 / float64(total))
		}
		shares = append(shares, share)
	}
	return shares
}

// Refresh drops the cached CSV and re-downloads it from S3.
func (l *Lookup) Refresh(ctx context.Context) error {
	l.mu.Lock()
	l.loaded = false
	l.profiles = map[string]StoredProfile{}
	l.mu.Unlock()

	if err := os.Remove(l.localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing cached profiles: %w", err)
	}
	return l.ensureLoaded(ctx)
}

func (l *Lookup) ensureLoaded(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return nil
	}

	if _, err := os.Stat(l.localPath); errors.Is(err, os.ErrNotExist) {
		if l.store == nil {
			l.loaded = true
			return nil
		}
		if err := l.store.DownloadFile(ctx, l.key, l.localPath); err != nil {
			l.loaded = true
			if errors.Is(err, storage.ErrNotFound) {
				l.log.Infow("no generated profiles yet", "key", l.key)
				return nil
			}
			return err
		}
	}

	records, err := readCSV(l.localPath)
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}
	for _, rec := range records {
		cluster, _ := strconv.Atoi(rec["cluster"])
		popularity, _ := strconv.ParseFloat(rec["avg_popularity"], 64)
		intensity, _ := strconv.ParseFloat(rec["daily_listening_intensity"], 64)
		l.profiles[rec["user_id"]] = StoredProfile{
			UserID:          rec["user_id"],
			Cluster:         cluster,
			Name:            rec["profile_name"],
			Emoji:           rec["profile_emoji"],
			Description:     rec["profile_description"],
			Characteristics: rec["profile_characteristics"],
			AvgPopularity:   popularity,
			DailyIntensity:  intensity,
		}
	}
	l.loaded = true
	l.log.Infow("loaded profiles", "users", len(l.profiles))
	return nil
}
