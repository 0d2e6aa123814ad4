package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/horus/internal/service"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "horus_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "horus_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "endpoint"})
)

const (
	codeInternal   = "INTERNAL_ERROR"
	codeBadRequest = "BAD_REQUEST"
	codeForbidden  = "FORBIDDEN"

	adminTokenHeader = "X-Admin-Token"
	requestIDHeader  = "X-Request-Id"
)

type Options struct {
	// AdminToken, when set, is required in X-Admin-Token for administrative routes.
	AdminToken     string
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

type Handler struct {
	duels       *service.DuelService
	accounts    *service.AccountService
	ranking     *service.RankingService
	friends     *service.FriendService
	tournaments *service.TournamentService
	db          Pinger

	adminToken string
	timeout    time.Duration
	log        *slog.Logger
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Services struct {
	Store       Pinger
	Duels       *service.DuelService
	Accounts    *service.AccountService
	Ranking     *service.RankingService
	Friends     *service.FriendService
	Tournaments *service.TournamentService
}

func NewHandler(svc Services, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		duels:       svc.Duels,
		accounts:    svc.Accounts,
		ranking:     svc.Ranking,
		friends:     svc.Friends,
		tournaments: svc.Tournaments,
		db:          svc.Store,
		adminToken:  opts.AdminToken,
		timeout:     opts.RequestTimeout,
		log:         logger,
	}
}

// Router wires every route onto a new mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.withRequestContext, h.instrument)

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/", h.Banner).Methods("GET")

	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/user-exists/{username}", h.UserExists).Methods("GET")
	r.HandleFunc("/user/save", h.SaveProfile).Methods("POST")
	r.HandleFunc("/user/update-field", h.UpdateField).Methods("POST")
	r.HandleFunc("/user/set-status", h.SetStatus).Methods("POST")
	r.HandleFunc("/user/{username}", h.GetProfile).Methods("GET")
	r.HandleFunc("/users/get", h.ListUsers).Methods("GET")

	r.HandleFunc("/ranking/global", h.GlobalRanking).Methods("GET")
	r.HandleFunc("/competitive/reset-all", h.requireAdmin(h.ResetCompetitive)).Methods("POST")

	r.HandleFunc("/friends/get", h.Friends).Methods("POST")
	r.HandleFunc("/friends/send", h.SendFriendRequest).Methods("POST")
	r.HandleFunc("/friends/accept", h.AcceptFriendRequest).Methods("POST")
	r.HandleFunc("/friends/reject", h.RejectFriendRequest).Methods("POST")
	r.HandleFunc("/friends/remove", h.RemoveFriend).Methods("POST")

	r.HandleFunc("/tournament/get", h.Tournaments).Methods("GET")
	r.HandleFunc("/tournament/create", h.CreateTournament).Methods("POST")
	r.HandleFunc("/tournament/update", h.UpdateTournament).Methods("POST")
	r.HandleFunc("/tournament/finish", h.FinishTournament).Methods("POST")

	r.HandleFunc("/duel/send", h.SendDuel).Methods("POST")
	r.HandleFunc("/duel/accept", h.AcceptDuel).Methods("POST")
	r.HandleFunc("/duel/reject", h.RejectDuel).Methods("POST")
	r.HandleFunc("/duel/expire", h.requireAdmin(h.ExpireDuel)).Methods("POST")
	r.HandleFunc("/duel/current/{username}", h.CurrentDuel).Methods("GET")
	r.HandleFunc("/duel/report", h.ReportDuel).Methods("POST")
	r.HandleFunc("/duel/check/{duelId}", h.CheckDuel).Methods("GET")

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			loggerFrom(r).Error("health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Banner(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "online",
		"service":   "Horus",
		"timestamp": time.Now().UnixMilli(),
	})
}

type ctxKey int

const loggerKey ctxKey = iota

// withRequestContext tags the request with an id, a scoped logger and a deadline.
func (h *Handler) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		ctx := context.WithValue(r.Context(), loggerKey, h.log.With("request_id", reqID))
		if h.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.timeout)
			defer cancel()
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency per route template.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		timer := prometheus.NewTimer(httpLatency.WithLabelValues(r.Method, endpoint))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		timer.ObserveDuration()
		httpReqTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}

func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken != "" && r.Header.Get(adminTokenHeader) != h.adminToken {
			loggerFrom(r).Warn("admin route refused", "path", r.URL.Path)
			respondJSON(w, http.StatusForbidden, map[string]any{"ok": false, "error": codeForbidden})
			return
		}
		next(w, r)
	}
}

func loggerFrom(r *http.Request) *slog.Logger {
	if l, ok := r.Context().Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// decode reads a JSON body; a malformed body has already been answered when it returns false.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": codeBadRequest})
		return false
	}
	return true
}

// fail answers a domain error as {okKey: false, error: CODE} with 200 and any
// other error as a logged 500 that leaks no detail.
func fail(w http.ResponseWriter, r *http.Request, err error, okKey string) {
	if code := service.CodeOf(err); code != "" {
		respondJSON(w, http.StatusOK, map[string]any{okKey: false, "error": code})
		return
	}
	loggerFrom(r).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	respondJSON(w, http.StatusInternalServerError, map[string]any{okKey: false, "error": codeInternal})
}

// internalError logs err and answers 500 with a route-specific body.
func internalError(w http.ResponseWriter, r *http.Request, err error, body any) {
	loggerFrom(r).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	respondJSON(w, http.StatusInternalServerError, body)
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
