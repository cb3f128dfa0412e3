package spotifyapi

import "time"

// Play is one entry from the user's recently-played feed.
type Play struct {
	PlayedAt   time.Time
	TrackName  string
	ArtistName string
	AlbumName  string
	TrackID    string
	ArtistID   string
	AlbumID    string
	DurationMS int
	Popularity int
	Explicit   bool
}

// LikedTrack is one track from the user's saved library.
type LikedTrack struct {
	TrackID    string
	TrackName  string
	ArtistName string
	ArtistID   string
	AlbumName  string
	AlbumID    string
	DurationMS int
	Popularity int
	Explicit   bool
	AddedAt    time.Time
}

// TopTrack is one entry of the user's top-track ranking.
// IthPreference is the 1-based rank within the requested time range.
type TopTrack struct {
	TrackID       string
	TrackName     string
	ArtistName    string
	ArtistID      string
	AlbumName     string
	AlbumID       string
	DurationMS    int
	Popularity    int
	Explicit      bool
	IthPreference int
	TimeRange     string
}

// Artist is a followed or top artist.
type Artist struct {
	ID         string
	Name       string
	Genres     []string
	Popularity int
	Followers  int
	ImageURL   string
}

// User identifies the authenticated Spotify account.
type User struct {
	ID          string
	DisplayName string
}
