package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ragp/spotifire/internal/athena"
	"github.com/ragp/spotifire/internal/collector"
	"github.com/ragp/spotifire/internal/db"
	"github.com/ragp/spotifire/internal/insights"
	"github.com/ragp/spotifire/internal/profiles"
	"github.com/ragp/spotifire/internal/spotifyapi"
	"github.com/ragp/spotifire/internal/tokens"
)

const (
	recentPlaysShown = 10
	topArtistsShown  = 5
)

// apiClient is the slice of the Spotify API the handlers need.
// *spotifyapi.Client satisfies it; tests substitute a fake.
type apiClient interface {
	CurrentUser(ctx context.Context) (*spotifyapi.User, error)
	RecentlyPlayed(ctx context.Context) ([]spotifyapi.Play, error)
	TopArtists(ctx context.Context, timeRange string, limit int) ([]spotifyapi.Artist, error)
	Token() (*oauth2.Token, error)
}

// Handlers contains the HTTP handlers for the web application. The analytics
// dependencies are optional; without them the dashboard renders with live
// Spotify data only.
type Handlers struct {
	log       *zap.SugaredLogger
	auth      *spotifyauth.Authenticator
	sessions  SessionManager
	templates *Templates
	tokens    *tokens.Store
	dataDir   string

	users    *db.UserRepository
	insights *athena.Insights
	profiles *profiles.Lookup

	// newClient builds an API client for one session's token.
	newClient func(ctx context.Context, token *oauth2.Token) apiClient
}

// NewHandlers creates a Handlers instance.
func NewHandlers(log *zap.SugaredLogger, auth *spotifyauth.Authenticator, sessions SessionManager, templates *Templates, tokenStore *tokens.Store, dataDir string) *Handlers {
	return &Handlers{
		log:       log,
		auth:      auth,
		sessions:  sessions,
		templates: templates,
		tokens:    tokenStore,
		dataDir:   dataDir,
		newClient: func(ctx context.Context, token *oauth2.Token) apiClient {
			return spotifyapi.NewFromToken(ctx, auth, token)
		},
	}
}

// WithUsers enables user persistence on login.
func (h *Handlers) WithUsers(users *db.UserRepository) *Handlers {
	h.users = users
	return h
}

// WithAnalytics enables the insight and profile sections of the dashboard.
func (h *Handlers) WithAnalytics(ins *athena.Insights, lookup *profiles.Lookup) *Handlers {
	h.insights = ins
	h.profiles = lookup
	return h
}

// Home handles the home page (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)

	data := HomePageData{
		PageData: PageData{
			Title:       "Spotifire",
			CurrentPath: r.URL.Path,
		},
		Authenticated: session != nil,
	}
	if session != nil {
		data.User = &UserData{ID: session.UserID, Name: session.UserName}
	}

	h.render(w, "home", data)
}

// Login initiates the Spotify OAuth flow (GET /auth/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()

	// State cookie guards the callback against CSRF
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})

	http.Redirect(w, r, h.auth.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback handles the OAuth callback from Spotify (GET /callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil {
		http.Error(w, "Missing state cookie", http.StatusBadRequest)
		return
	}

	state := r.URL.Query().Get("state")
	if state != stateCookie.Value {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Error(w, fmt.Sprintf("Spotify auth error: %s", errMsg), http.StatusBadRequest)
		return
	}

	token, err := h.auth.Token(r.Context(), state, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusInternalServerError)
		return
	}

	client := h.newClient(r.Context(), token)
	user, err := client.CurrentUser(r.Context())
	if err != nil {
		http.Error(w, "Failed to get user info", http.StatusInternalServerError)
		return
	}

	// Persist the token so the background collector picks this user up
	if err := h.saveToken(token, user.ID, user.DisplayName); err != nil {
		h.log.Errorw("saving user token", "user_id", user.ID, "error", err)
		http.Error(w, "Failed to store credentials", http.StatusInternalServerError)
		return
	}

	if h.users != nil {
		if err := h.users.Upsert(r.Context(), &db.User{ID: user.ID, DisplayName: user.DisplayName}); err != nil {
			h.log.Warnw("upserting user", "user_id", user.ID, "error", err)
		}
	}

	session, err := h.sessions.Create(r.Context(), token, user.ID, user.DisplayName)
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	h.sessions.SetCookie(w, session)

	http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
}

// Logout clears the session and redirects to home (POST /auth/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session != nil {
		h.sessions.Delete(r.Context(), session.ID)
	}

	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// AuthStatus reports the current session as JSON (GET /auth/status).
func (h *Handlers) AuthStatus(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session == nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user_id":       session.UserID,
		"display_name":  session.UserName,
		"token_expiry":  session.Token.Expiry,
	})
}

// RecentPlay is one row of the dashboard's recent activity list.
type RecentPlay struct {
	TrackName  string `json:"track_name"`
	ArtistName string `json:"artist_name"`
	PlayedOn   string `json:"played_on"`
}

// TopArtistCard is one favorite artist on the dashboard. Popularity is
// rounded down to the nearest ten to read as a tier rather than a score.
type TopArtistCard struct {
	Name       string `json:"name"`
	Popularity int    `json:"popularity"`
	Genres     string `json:"genres"`
}

// DashboardPayload is what the dashboard shows, in both HTML and JSON form.
type DashboardPayload struct {
	RecentPlays []RecentPlay           `json:"recent_plays"`
	TopArtists  []TopArtistCard        `json:"top_artists"`
	Insights    insights.Status        `json:"insights"`
	Profile     profiles.StoredProfile `json:"profile"`
}

// DashboardData feeds the dashboard template.
type DashboardData struct {
	PageData
	DashboardPayload
}

// Dashboard renders the main dashboard (GET /dashboard).
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session == nil {
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	data := DashboardData{
		PageData: PageData{
			Title:       "Dashboard",
			User:        &UserData{ID: session.UserID, Name: session.UserName},
			CurrentPath: r.URL.Path,
		},
		DashboardPayload: h.buildDashboard(r.Context(), session),
	}

	h.render(w, "dashboard", data)
}

// RefreshDashboard recomputes the dashboard payload as JSON for async
// refresh (POST /dashboard/refresh).
func (h *Handlers) RefreshDashboard(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	writeJSON(w, http.StatusOK, h.buildDashboard(r.Context(), session))
}

// APIInsights returns the Athena-backed listening summary (GET /api/insights).
func (h *Handlers) APIInsights(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	if h.insights == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "analytics not configured"})
		return
	}

	writeJSON(w, http.StatusOK, h.insights.BuildSummary(r.Context(), session.UserID))
}

// buildDashboard assembles the dashboard from live Spotify calls plus the
// gated insights and the stored profile. A failing Spotify call degrades to
// an empty section rather than an error page.
func (h *Handlers) buildDashboard(ctx context.Context, session *Session) DashboardPayload {
	client := h.newClient(ctx, session.Token)

	payload := DashboardPayload{
		Insights: insights.Evaluate(h.collectionStart(session.UserID), time.Now()),
	}

	plays, err := client.RecentlyPlayed(ctx)
	if err != nil {
		h.log.Warnw("recently played failed", "user_id", session.UserID, "error", err)
	}
	for i, p := range plays {
		if i >= recentPlaysShown {
			break
		}
		payload.RecentPlays = append(payload.RecentPlays, RecentPlay{
			TrackName:  p.TrackName,
			ArtistName: p.ArtistName,
			PlayedOn:   p.PlayedAt.Format("2006-01-02"),
		})
	}

	artists, err := client.TopArtists(ctx, spotifyapi.RangeShortTerm, topArtistsShown)
	if err != nil {
		h.log.Warnw("top artists failed", "user_id", session.UserID, "error", err)
	}
	for _, a := range artists {
		payload.TopArtists = append(payload.TopArtists, TopArtistCard{
			Name:       a.Name,
			Popularity: a.Popularity / 10 * 10,
			Genres:     strings.Join(a.Genres, ", "),
		})
	}

	if h.profiles != nil {
		payload.Profile = h.profiles.Profile(ctx, session.UserID)
	}

	h.persistRotatedToken(ctx, session, client)
	return payload
}

// persistRotatedToken writes a token refreshed during the live calls back to
// the session and the token store, so the next request and the collector
// both start from the fresh one.
func (h *Handlers) persistRotatedToken(ctx context.Context, session *Session, client apiClient) {
	fresh, err := client.Token()
	if err != nil || fresh == nil || fresh.AccessToken == session.Token.AccessToken {
		return
	}

	h.sessions.UpdateToken(ctx, session.ID, fresh)
	session.Token = fresh
	if err := h.saveToken(fresh, session.UserID, session.UserName); err != nil {
		h.log.Warnw("persisting rotated token", "user_id", session.UserID, "error", err)
	}
}

func (h *Handlers) saveToken(token *oauth2.Token, userID, displayName string) error {
	return h.tokens.Save(&tokens.UserToken{
		Token:       *token,
		UserID:      userID,
		DisplayName: displayName,
		Scope:       strings.Join(spotifyapi.Scopes, " "),
	})
}

// collectionStart finds when data collection began for a user: the oldest
// snapshot on disk, or the stored token's timestamp before the first
// collection pass lands. Zero time means no data yet.
func (h *Handlers) collectionStart(userID string) time.Time {
	if earliest := h.earliestSnapshot(userID); !earliest.IsZero() {
		return earliest
	}
	if token, err := h.tokens.Load(userID); err == nil && token != nil {
		return token.LastUpdated
	}
	return time.Time{}
}

func (h *Handlers) earliestSnapshot(userID string) time.Time {
	entries, err := os.ReadDir(collector.UserDir(h.dataDir, userID))
	if err != nil {
		return time.Time{}
	}

	var earliest time.Time
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "recently_played_") || filepath.Ext(name) != ".csv" {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, "recently_played_"), ".csv")
		ts, err := time.Parse("20060102_150405", stamp)
		if err != nil {
			continue
		}
		if earliest.IsZero() || ts.Before(earliest) {
			earliest = ts
		}
	}
	return earliest
}

func (h *Handlers) render(w http.ResponseWriter, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.Render(w, page, data); err != nil {
		h.log.Errorw("rendering template", "page", page, "error", err)
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
