package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/meltforce/ironpro/internal/models"
	"tailscale.com/client/tailscale/apitype"
)

type contextKey int

const (
	userInfoKey contextKey = iota
	profileKey
)

// UserInfo is the network identity of the caller.
type UserInfo struct {
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// WhoIser resolves the tailnet identity behind a remote address.
// *local.Client from tailscale.com/client/local satisfies it.
type WhoIser interface {
	WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
}

// ProfileResolver maps a network identity to a stored profile.
type ProfileResolver interface {
	GetOrCreateProfile(ctx context.Context, login, displayName string) (*models.Profile, error)
}

// APIKeyAuth returns middleware that validates the X-API-Key header.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				http.Error(w, `{"error":"missing API key"}`, http.StatusUnauthorized)
				return
			}
			if key != apiKey {
				http.Error(w, `{"error":"invalid API key"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DevIdentity attributes every request to a fixed login. Used when the
// server runs without Tailscale.
func DevIdentity(login string, profiles ProfileResolver, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			serveAs(w, r, next, UserInfo{Login: login, DisplayName: login}, profiles, log)
		})
	}
}

// TailscaleIdentity resolves the caller with a WhoIs lookup on the tailnet.
func TailscaleIdentity(lc WhoIser, profiles ProfileResolver, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who, err := lc.WhoIs(r.Context(), r.RemoteAddr)
			if err != nil || who.UserProfile == nil {
				log.Warn("whois failed", "remote", r.RemoteAddr, "error", err)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unknown tailnet identity"})
				return
			}
			info := UserInfo{Login: who.UserProfile.LoginName, DisplayName: who.UserProfile.DisplayName}
			serveAs(w, r, next, info, profiles, log)
		})
	}
}

func serveAs(w http.ResponseWriter, r *http.Request, next http.Handler, info UserInfo, profiles ProfileResolver, log *slog.Logger) {
	p, err := profiles.GetOrCreateProfile(r.Context(), info.Login, info.DisplayName)
	if err != nil {
		log.Error("resolving profile", "login", info.Login, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "resolving profile"})
		return
	}
	ctx := context.WithValue(r.Context(), userInfoKey, info)
	ctx = context.WithValue(ctx, profileKey, p)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// userInfoFromContext returns the caller's network identity.
func userInfoFromContext(r *http.Request) UserInfo {
	if info, ok := r.Context().Value(userInfoKey).(UserInfo); ok {
		return info
	}
	return UserInfo{}
}

// profileFromContext returns the caller's profile, or nil outside the
// identity middleware.
func profileFromContext(r *http.Request) *models.Profile {
	p, _ := r.Context().Value(profileKey).(*models.Profile)
	return p
}

// mustProfile writes 401 and returns false when the request has no profile.
func mustProfile(w http.ResponseWriter, r *http.Request) (*models.Profile, bool) {
	p := profileFromContext(r)
	if p == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return nil, false
	}
	return p, true
}

// mustTrainer is mustProfile restricted to trainers.
func mustTrainer(w http.ResponseWriter, r *http.Request) (*models.Profile, bool) {
	p, ok := mustProfile(w, r)
	if !ok {
		return nil, false
	}
	if p.Role != models.RoleTrainer {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "trainer only"})
		return nil, false
	}
	return p, true
}

// RequestLogging returns middleware that logs each request.
func RequestLogging(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).String(),
			)
		})
	}
}

// CORS adds permissive CORS headers for local development.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers stream through the logging middleware.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
