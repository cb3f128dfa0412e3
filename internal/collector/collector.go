// Package collector harvests Spotify listening data into local snapshots.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/ragp/spotifire/internal/spotifyapi"
	"github.com/ragp/spotifire/internal/tokens"
)

const (
	// DefaultInterval is the cadence of the periodic collection loop.
	DefaultInterval = time.Hour

	fetchAttempts = 3
	fetchDelay    = 2 * time.Second
)

// Fetcher is the slice of the Spotify API the collector needs.
// *spotifyapi.Client satisfies it; tests substitute a fake.
type Fetcher interface {
	RecentlyPlayed(ctx context.Context) ([]spotifyapi.Play, error)
	AllSavedTracks(ctx context.Context) ([]spotifyapi.LikedTrack, error)
	AllTopTracks(ctx context.Context, timeRange string) ([]spotifyapi.TopTrack, error)
	FollowedArtists(ctx context.Context) ([]spotifyapi.Artist, error)
	Token() (*oauth2.Token, error)
}

// Service runs collection passes over every user with a stored token.
type Service struct {
	log     *zap.SugaredLogger
	store   *tokens.Store
	dataDir string
	limiter *rate.Limiter

	// retryDelay is the base backoff between fetch attempts.
	retryDelay time.Duration

	// newFetcher builds an API client for one user's token.
	newFetcher func(ctx context.Context, token *tokens.UserToken) Fetcher
}

// New creates a collection service over the given token store.
func New(log *zap.SugaredLogger, store *tokens.Store, auth *spotifyauth.Authenticator, dataDir string) *Service {
	return &Service{
		log:        log,
		store:      store,
		dataDir:    dataDir,
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 1),
		retryDelay: fetchDelay,
		newFetcher: func(ctx context.Context, token *tokens.UserToken) Fetcher {
			return spotifyapi.NewFromToken(ctx, auth, &token.Token)
		},
	}
}

// Run executes collection passes every interval until ctx is cancelled.
// The wait is shortened by the time a pass took so the cadence holds.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	for {
		start := time.Now()
		if err := s.CollectAll(ctx); err != nil {
			s.log.Errorw("collection pass failed", "error", err)
		}

		elapsed := time.Since(start)
		wait := interval - elapsed
		if wait < 0 {
			wait = 0
		}
		s.log.Infow("collection pass complete", "elapsed", elapsed.Round(time.Millisecond), "next_in", wait.Round(time.Second))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// CollectAll snapshots the recently-played feed of every known user.
// A failing user is logged and skipped; the pass continues.
func (s *Service) CollectAll(ctx context.Context) error {
	users, err := s.store.List()
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	if len(users) == 0 {
		s.log.Info("no users with stored tokens, nothing to collect")
		return nil
	}

	collected := 0
	for _, user := range users {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := s.collectUser(ctx, user); err != nil {
			s.log.Warnw("skipping user", "user_id", user.UserID, "error", err)
			continue
		}
		collected++
	}

	s.log.Infow("collected recently played", "users", collected, "total", len(users))
	return nil
}

func (s *Service) collectUser(ctx context.Context, user *tokens.UserToken) error {
	fetcher := s.newFetcher(ctx, user)

	var plays []spotifyapi.Play
	err := retry.Do(
		func() error {
			var err error
			plays, err = fetcher.RecentlyPlayed(ctx)
			return err
		},
		retry.Attempts(fetchAttempts),
		retry.Delay(s.retryDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("fetching recently played: %w", err)
	}

	path, err := WriteSnapshot(s.dataDir, user.UserID, plays, time.Now())
	if err != nil {
		return err
	}
	s.log.Infow("wrote snapshot", "user_id", user.UserID, "plays", len(plays), "file", path)

	s.persistRotatedToken(user, fetcher)
	return nil
}

// persistRotatedToken writes back a token the oauth2 transport refreshed
// during the API calls, so the next pass starts from the fresh one.
func (s *Service) persistRotatedToken(user *tokens.UserToken, fetcher Fetcher) {
	tok, err := fetcher.Token()
	if err != nil || tok == nil {
		return
	}
	if tok.AccessToken == user.AccessToken {
		return
	}
	user.Token = *tok
	if err := s.store.Save(user); err != nil {
		s.log.Warnw("failed to persist refreshed token", "user_id", user.UserID, "error", err)
	}
}
