// Package server exposes the session manager over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/valpere/barem-scraper/internal/barem"
	"github.com/valpere/barem-scraper/internal/config"
	"github.com/valpere/barem-scraper/internal/monitoring"
	"github.com/valpere/barem-scraper/internal/session"
	"github.com/valpere/barem-scraper/internal/utils"
)

// Identity payload served on "/".
const (
	ServiceName = "Alliance Healthcare Scrapper"
	APIVersion  = "1.0.0"
)

// Service is the part of session.Manager the HTTP facade uses.
type Service interface {
	State() session.State
	Authenticate(ctx context.Context) bool
	FetchPricingTiers(ctx context.Context, itemID int) *barem.FetchResult
}

// Server is the HTTP facade.
type Server struct {
	cfg     config.ServerConfig
	svc     Service
	metrics *monitoring.MetricsManager
	log     utils.Logger

	limiter *utils.RateLimiter
	cache   *expirable.LRU[int, *barem.FetchResult]

	router     *mux.Router
	httpServer *http.Server
}

// New builds the router. metrics may be nil.
func New(cfg config.ServerConfig, svc Service, metrics *monitoring.MetricsManager, log utils.Logger) *Server {
	if log == nil {
		log = utils.NewNopLogger()
	}

	s := &Server{
		cfg:     cfg,
		svc:     svc,
		metrics: metrics,
		log:     log.WithField("component", "http"),
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter = utils.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.CacheTTL > 0 {
		s.cache = expirable.NewLRU[int, *barem.FetchResult](cfg.CacheSize, nil, cfg.CacheTTL)
	}

	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/get-barem/{itemId}", s.rateLimit(http.HandlerFunc(s.handleGetBarem))).Methods(http.MethodGet)
	r.Handle("/login", s.rateLimit(http.HandlerFunc(s.handleLogin))).Methods(http.MethodPost)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.MetricsHandler()).Methods(http.MethodGet)
	}
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Infof("listening on %s", s.cfg.ListenAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type healthResponse struct {
	Status       string     `json:"status"`
	BrowserReady bool       `json:"browser_ready"`
	LoggedIn     bool       `json:"logged_in"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}

type loginResponse struct {
	Success  bool `json:"success"`
	LoggedIn bool `json:"logged_in"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": ServiceName,
		"version": APIVersion,
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.svc.State()
	status := "starting"
	if state.BrowserReady {
		status = "healthy"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       status,
		BrowserReady: state.BrowserReady,
		LoggedIn:     state.LoggedIn,
		LastLoginAt:  state.LastLoginAt,
	})
}

func (s *Server) handleGetBarem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.Atoi(mux.Vars(r)["itemId"])
	if err != nil || itemID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "itemId must be a positive integer"})
		return
	}
	if !s.svc.State().BrowserReady {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: "Browser not ready"})
		return
	}

	if s.cache != nil {
		cached, ok := s.cache.Get(itemID)
		s.recordCacheLookup(ok)
		if ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	// A client hanging up must not abort a login or fetch other callers may
	// be queued behind.
	result := s.svc.FetchPricingTiers(context.WithoutCancel(r.Context()), itemID)
	if s.cache != nil && result.Success {
		s.cache.Add(itemID, result)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ok := s.svc.Authenticate(context.WithoutCancel(r.Context()))
	if ok && s.cache != nil {
		s.cache.Purge()
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Success:  ok,
		LoggedIn: s.svc.State().LoggedIn,
	})
}

func (s *Server) recordCacheLookup(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(hit)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
