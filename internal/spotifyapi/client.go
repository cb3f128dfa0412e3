// Package spotifyapi wraps the Spotify Web API for harvesting and dashboards.
package spotifyapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const (
	// maxTracksPerRequest is the Spotify cap on a single GetTracks call.
	maxTracksPerRequest = 50

	// recentlyPlayedLimit is the hard API maximum for the recent feed.
	recentlyPlayedLimit = 50
)

// Valid time ranges for top-item rankings.
const (
	RangeShortTerm  = "short_term"
	RangeMediumTerm = "medium_term"
	RangeLongTerm   = "long_term"
)

// Client wraps the Spotify API client with harvest-oriented methods.
type Client struct {
	api *spotify.Client
}

// New creates a Client over an already-authenticated API client.
func New(api *spotify.Client) *Client {
	return &Client{api: api}
}

// NewFromToken builds a Client from a stored OAuth token. The underlying
// http client refreshes the token transparently when it has expired.
func NewFromToken(ctx context.Context, auth *spotifyauth.Authenticator, token *oauth2.Token) *Client {
	httpClient := auth.Client(ctx, token)
	return New(spotify.New(httpClient, spotify.WithRetry(true)))
}

// NewFromHTTPClient builds a Client over a custom http client. Used by tests
// to point the wrapper at a fake API server.
func NewFromHTTPClient(httpClient *http.Client, opts ...spotify.ClientOption) *Client {
	return New(spotify.New(httpClient, opts...))
}

// Token returns the current (possibly rotated) OAuth token.
func (c *Client) Token() (*oauth2.Token, error) {
	return c.api.Token()
}

// CurrentUser returns the authenticated user's id and display name.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting current user: %w", err)
	}
	return &User{ID: user.ID, DisplayName: user.DisplayName}, nil
}

// RecentlyPlayed returns the user's most recent plays, newest first.
// Track popularity is not part of the recent feed, so the tracks are
// re-fetched in bulk to fill it in.
func (c *Client) RecentlyPlayed(ctx context.Context) ([]Play, error) {
	items, err := c.api.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{
		Limit: recentlyPlayedLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching recently played: %w", err)
	}

	popularity, err := c.trackPopularity(ctx, trackIDs(items))
	if err != nil {
		return nil, err
	}

	plays := make([]Play, 0, len(items))
	for _, item := range items {
		artistName, artistID := primaryArtist(item.Track.Artists)
		plays = append(plays, Play{
			PlayedAt:   item.PlayedAt,
			TrackName:  item.Track.Name,
			ArtistName: artistName,
			AlbumName:  item.Track.Album.Name,
			TrackID:    item.Track.ID.String(),
			ArtistID:   artistID,
			AlbumID:    item.Track.Album.ID.String(),
			DurationMS: int(item.Track.Duration),
			Popularity: popularity[item.Track.ID],
			Explicit:   item.Track.Explicit,
		})
	}
	return plays, nil
}

// AllSavedTracks retrieves the user's complete liked-songs library.
func (c *Client) AllSavedTracks(ctx context.Context) ([]LikedTrack, error) {
	page, err := c.api.CurrentUsersTracks(ctx, spotify.Limit(50))
	if err != nil {
		return nil, fmt.Errorf("fetching saved tracks: %w", err)
	}

	var tracks []LikedTrack
	for {
		for _, saved := range page.Tracks {
			tracks = append(tracks, convertSavedTrack(saved))
		}

		err = c.api.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("fetching next page: %w", err)
		}
	}
	return tracks, nil
}

// AllTopTracks retrieves the user's full top-track ranking for a time range.
func (c *Client) AllTopTracks(ctx context.Context, timeRange string) ([]TopTrack, error) {
	tr, err := parseRange(timeRange)
	if err != nil {
		return nil, err
	}

	page, err := c.api.CurrentUsersTopTracks(ctx, spotify.Limit(50), spotify.Timerange(tr))
	if err != nil {
		return nil, fmt.Errorf("fetching top tracks: %w", err)
	}

	var tracks []TopTrack
	for {
		for _, ft := range page.Tracks {
			tracks = append(tracks, convertTopTrack(ft, len(tracks)+1, timeRange))
		}

		err = c.api.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("fetching next page: %w", err)
		}
	}
	return tracks, nil
}

// TopArtists returns up to limit of the user's top artists for a time range.
func (c *Client) TopArtists(ctx context.Context, timeRange string, limit int) ([]Artist, error) {
	tr, err := parseRange(timeRange)
	if err != nil {
		return nil, err
	}

	page, err := c.api.CurrentUsersTopArtists(ctx, spotify.Limit(limit), spotify.Timerange(tr))
	if err != nil {
		return nil, fmt.Errorf("fetching top artists: %w", err)
	}

	artists := make([]Artist, 0, len(page.Artists))
	for _, fa := range page.Artists {
		artists = append(artists, convertArtist(fa))
	}
	return artists, nil
}

// FollowedArtists retrieves every artist the user follows, walking the
// cursor pages to exhaustion.
func (c *Client) FollowedArtists(ctx context.Context) ([]Artist, error) {
	var artists []Artist
	after := ""
	for {
		opts := []spotify.RequestOption{spotify.Limit(50)}
		if after != "" {
			opts = append(opts, spotify.After(after))
		}

		page, err := c.api.CurrentUsersFollowedArtists(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("fetching followed artists: %w", err)
		}

		for _, fa := range page.Artists {
			artists = append(artists, convertArtist(fa))
		}

		if page.Cursor.After == "" || len(page.Artists) == 0 {
			break
		}
		after = page.Cursor.After
	}
	return artists, nil
}

// trackPopularity bulk-fetches popularity for the given track ids.
func (c *Client) trackPopularity(ctx context.Context, ids []spotify.ID) (map[spotify.ID]int, error) {
	popularity := make(map[spotify.ID]int, len(ids))
	for i := 0; i < len(ids); i += maxTracksPerRequest {
		end := min(i+maxTracksPerRequest, len(ids))
		full, err := c.api.GetTracks(ctx, ids[i:end])
		if err != nil {
			return nil, fmt.Errorf("fetching track details: %w", err)
		}
		for _, ft := range full {
			if ft != nil {
				popularity[ft.ID] = int(ft.Popularity)
			}
		}
	}
	return popularity, nil
}

// trackIDs collects the distinct track ids of a recent-plays feed.
func trackIDs(items []spotify.RecentlyPlayedItem) []spotify.ID {
	seen := make(map[spotify.ID]bool, len(items))
	var ids []spotify.ID
	for _, item := range items {
		if item.Track.ID == "" || seen[item.Track.ID] {
			continue
		}
		seen[item.Track.ID] = true
		ids = append(ids, item.Track.ID)
	}
	return ids
}

func convertSavedTrack(saved spotify.SavedTrack) LikedTrack {
	artistName, artistID := primaryArtist(saved.Artists)

	// Spotify sends added_at as an RFC3339 string; zero value on failure.
	addedAt, _ := time.Parse(time.RFC3339, saved.AddedAt)

	return LikedTrack{
		TrackID:    saved.ID.String(),
		TrackName:  saved.Name,
		ArtistName: artistName,
		ArtistID:   artistID,
		AlbumName:  saved.Album.Name,
		AlbumID:    saved.Album.ID.String(),
		DurationMS: int(saved.Duration),
		Popularity: int(saved.Popularity),
		Explicit:   saved.Explicit,
		AddedAt:    addedAt,
	}
}

func convertTopTrack(ft spotify.FullTrack, rank int, timeRange string) TopTrack {
	artistName, artistID := primaryArtist(ft.Artists)
	return TopTrack{
		TrackID:       ft.ID.String(),
		TrackName:     ft.Name,
		ArtistName:    artistName,
		ArtistID:      artistID,
		AlbumName:     ft.Album.Name,
		AlbumID:       ft.Album.ID.String(),
		DurationMS:    int(ft.Duration),
		Popularity:    int(ft.Popularity),
		Explicit:      ft.Explicit,
		IthPreference: rank,
		TimeRange:     timeRange,
	}
}

func convertArtist(fa spotify.FullArtist) Artist {
	imageURL := ""
	if len(fa.Images) > 0 {
		imageURL = fa.Images[0].URL
	}
	return Artist{
		ID:         fa.ID.String(),
		Name:       fa.Name,
		Genres:     fa.Genres,
		Popularity: int(fa.Popularity),
		Followers:  int(fa.Followers.Count),
		ImageURL:   imageURL,
	}
}

// primaryArtist returns the first credited artist's name and id.
func primaryArtist(artists []spotify.SimpleArtist) (string, string) {
	if len(artists) == 0 {
		return "", ""
	}
	return strings.TrimSpace(artists[0].Name), artists[0].ID.String()
}

func parseRange(timeRange string) (spotify.Range, error) {
	switch timeRange {
	case RangeShortTerm:
		return spotify.ShortTermRange, nil
	case RangeMediumTerm:
		return spotify.MediumTermRange, nil
	case RangeLongTerm:
		return spotify.LongTermRange, nil
	default:
		return "", fmt.Errorf("invalid time range %q", timeRange)
	}
}
