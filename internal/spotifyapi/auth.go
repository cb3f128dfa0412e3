package spotifyapi

import (
	spotifyauth "github.com/zmb3/spotify/v2/auth"
)

// Scopes requested during the OAuth flow. Everything the collector and the
// dashboard read is covered here; asking once avoids re-consent later.
var Scopes = []string{
	spotifyauth.ScopeUserReadRecentlyPlayed,
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopeUserFollowRead,
}

// NewAuthenticator builds the Spotify OAuth2 authenticator used by both the
// web login flow and the background token refresh.
func NewAuthenticator(clientID, clientSecret, redirectURI string) *spotifyauth.Authenticator {
	return spotifyauth.New(
		spotifyauth.WithClientID(clientID),
		spotifyauth.WithClientSecret(clientSecret),
		spotifyauth.WithRedirectURL(redirectURI),
		spotifyauth.WithScopes(Scopes...),
	)
}
