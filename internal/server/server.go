package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	sessionDuration = 24 * time.Hour
	locationWindow  = 24 * time.Hour
	locationLimit   = 500
	tokenBytes      = 32
)

// Analytics is the store surface the HTTP handlers need.
type Analytics interface {
	SaveLocation(ctx context.Context, visitorID string, lat, lng float64, zone string) (string, error)
	RecentLocations(ctx context.Context, since time.Time, limit int) ([]VisitorLocation, error)
	Stats(ctx context.Context, since time.Time) (*VisitorStats, error)
	CreateAdminSession(ctx context.Context, token string, expiresAt time.Time) error
	ValidToken(ctx context.Context, token string, now time.Time) bool
}

// Config tunes the HTTP surface.
type Config struct {
	Addr           string   `yaml:"addr" mapstructure:"addr"`
	AdminPassword  string   `yaml:"admin_password" mapstructure:"admin_password"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	// LoginPerMinute caps admin login attempts across all clients.
	LoginPerMinute int `yaml:"login_per_minute" mapstructure:"login_per_minute"`
}

// DefaultConfig returns the shipped server settings.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8787",
		AllowedOrigins: []string{"*"},
		LoginPerMinute: 10,
	}
}

// Server wires the analytics store into the admin HTTP API.
type Server struct {
	store        Analytics
	cfg          Config
	loginLimiter *rate.Limiter
	now          func() time.Time
}

func New(store Analytics, cfg Config) *Server {
	perMin := cfg.LoginPerMinute
	if perMin <= 0 {
		perMin = 10
	}
	return &Server{
		store:        store,
		cfg:          cfg,
		loginLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin),
		now:          time.Now,
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	r.Use(countRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok")) //nolint:errcheck
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/location", s.handleLocation)
	r.Post("/api/admin/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/api/admin/locations", s.handleLocations)
		r.Get("/api/admin/stats", s.handleStats)
	})

	return r
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		httpRequests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(ww.Status())).Inc()
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type locationRequest struct {
	VisitorID string   `json:"visitorId"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Zone      string   `json:"zone"`
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.VisitorID == "" || req.Latitude == nil || req.Longitude == nil {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	if _, err := s.store.SaveLocation(r.Context(), req.VisitorID, *req.Latitude, *req.Longitude, req.Zone); err != nil {
		zap.L().Error("server: save location", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save location")
		return
	}
	locationWrites.Inc()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.loginLimiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "Too many login attempts")
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if s.cfg.AdminPassword == "" || req.Password != s.cfg.AdminPassword {
		loginFailures.Inc()
		writeError(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	token, err := newToken()
	if err != nil {
		zap.L().Error("server: generate token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to login")
		return
	}
	expiresAt := s.now().Add(sessionDuration)
	if err := s.store.CreateAdminSession(r.Context(), token, expiresAt); err != nil {
		zap.L().Error("server: create admin session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to login")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":     token,
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if !s.store.ValidToken(r.Context(), auth[len(prefix):], s.now()) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	since := s.now().Add(-locationWindow)
	locations, err := s.store.RecentLocations(r.Context(), since, locationLimit)
	if err != nil {
		zap.L().Error("server: fetch locations", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch locations")
		return
	}
	if locations == nil {
		locations = []VisitorLocation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locations})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context(), s.now().Add(-locationWindow))
	if err != nil {
		zap.L().Error("server: fetch stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
