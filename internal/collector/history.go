package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ragp/spotifire/internal/spotifyapi"
	"github.com/ragp/spotifire/internal/tokens"
)

// History snapshot filenames inside a user's collected directory.
const (
	LikesFile           = "likes_list.json"
	TopTracksFile       = "top_tracks.json"
	FollowedArtistsFile = "followed_artists.json"
)

// LikedTrackRecord is one row of likes_list.json.
type LikedTrackRecord struct {
	TrackID    string `json:"track_id"`
	TrackName  string `json:"track_name"`
	ArtistName string `json:"artist_name"`
	ArtistID   string `json:"artist_id"`
	AlbumName  string `json:"album_name"`
	AlbumID    string `json:"album_id"`
	DurationMS int    `json:"duration_ms"`
	Popularity int    `json:"popularity"`
	Explicit   bool   `json:"explicit"`
	AddedAt    string `json:"added_at"`
}

// TopTrackRecord is one row of top_tracks.json.
type TopTrackRecord struct {
	TrackID       string `json:"track_id"`
	TrackName     string `json:"track_name"`
	ArtistName    string `json:"artist_name"`
	ArtistID      string `json:"artist_id"`
	AlbumName     string `json:"album_name"`
	AlbumID       string `json:"album_id"`
	DurationMS    int    `json:"duration_ms"`
	Popularity    int    `json:"popularity"`
	Explicit      bool   `json:"explicit"`
	IthPreference int    `json:"ith_preference"`
	TimeRange     string `json:"time_range"`
}

// FollowedArtistRecord is one row of followed_artists.json.
type FollowedArtistRecord struct {
	ArtistID   string   `json:"artist_id"`
	ArtistName string   `json:"artist_name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
	Followers  int      `json:"followers"`
}

// HarvestHistory fetches the full library history (likes, long-term top
// tracks, followed artists) for one user, or for every user when userID is
// empty. A failing user is logged and skipped.
func (s *Service) HarvestHistory(ctx context.Context, userID string) error {
	var users []*tokens.UserToken
	if userID != "" {
		user, err := s.store.Load(userID)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("no stored token for user %q", userID)
		}
		users = append(users, user)
	} else {
		all, err := s.store.List()
		if err != nil {
			return fmt.Errorf("listing users: %w", err)
		}
		users = all
	}
	if len(users) == 0 {
		s.log.Info("no users with stored tokens, nothing to harvest")
		return nil
	}

	for _, user := range users {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := s.harvestUserHistory(ctx, user); err != nil {
			if userID != "" {
				return err
			}
			s.log.Warnw("skipping user", "user_id", user.UserID, "error", err)
		}
	}
	return nil
}

func (s *Service) harvestUserHistory(ctx context.Context, user *tokens.UserToken) error {
	fetcher := s.newFetcher(ctx, user)
	dir := UserDir(s.dataDir, user.UserID)

	likes, err := fetcher.AllSavedTracks(ctx)
	if err != nil {
		return fmt.Errorf("fetching saved tracks: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, LikesFile), convertLikes(likes)); err != nil {
		return err
	}
	s.log.Infow("wrote likes history", "user_id", user.UserID, "tracks", len(likes))

	top, err := fetcher.AllTopTracks(ctx, spotifyapi.RangeLongTerm)
	if err != nil {
		return fmt.Errorf("fetching top tracks: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, TopTracksFile), convertTopTracks(top)); err != nil {
		return err
	}
	s.log.Infow("wrote top tracks history", "user_id", user.UserID, "tracks", len(top))

	followed, err := fetcher.FollowedArtists(ctx)
	if err != nil {
		return fmt.Errorf("fetching followed artists: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, FollowedArtistsFile), convertFollowed(followed)); err != nil {
		return err
	}
	s.log.Infow("wrote followed artists history", "user_id", user.UserID, "artists", len(followed))

	s.persistRotatedToken(user, fetcher)
	return nil
}

func convertLikes(likes []spotifyapi.LikedTrack) []LikedTrackRecord {
	records := make([]LikedTrackRecord, len(likes))
	for i, lt := range likes {
		addedAt := ""
		if !lt.AddedAt.IsZero() {
			addedAt = lt.AddedAt.UTC().Format(time.RFC3339)
		}
		records[i] = LikedTrackRecord{
			TrackID:    lt.TrackID,
			TrackName:  lt.TrackName,
			ArtistName: lt.ArtistName,
			ArtistID:   lt.ArtistID,
			AlbumName:  lt.AlbumName,
			AlbumID:    lt.AlbumID,
			DurationMS: lt.DurationMS,
			Popularity: lt.Popularity,
			Explicit:   lt.Explicit,
			AddedAt:    addedAt,
		}
	}
	return records
}

func convertTopTracks(top []spotifyapi.TopTrack) []TopTrackRecord {
	records := make([]TopTrackRecord, len(top))
	for i, tt := range top {
		records[i] = TopTrackRecord{
			TrackID:       tt.TrackID,
			TrackName:     tt.TrackName,
			ArtistName:    tt.ArtistName,
			ArtistID:      tt.ArtistID,
			AlbumName:     tt.AlbumName,
			AlbumID:       tt.AlbumID,
			DurationMS:    tt.DurationMS,
			Popularity:    tt.Popularity,
			Explicit:      tt.Explicit,
			IthPreference: tt.IthPreference,
			TimeRange:     tt.TimeRange,
		}
	}
	return records
}

func convertFollowed(artists []spotifyapi.Artist) []FollowedArtistRecord {
	records := make([]FollowedArtistRecord, len(artists))
	for i, a := range artists {
		records[i] = FollowedArtistRecord{
			ArtistID:   a.ID,
			ArtistName: a.Name,
			Genres:     a.Genres,
			Popularity: a.Popularity,
			Followers:  a.Followers,
		}
	}
	return records
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
