package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/NepsyCrawler/internal/app"
	"github.com/NepsyCrawler/internal/domain"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SyncRunner is what the admin surface triggers.
type SyncRunner interface {
	RunOne(ctx context.Context, entity string, category domain.Category, opts domain.SyncOptions) app.Report
}

type syncResponse struct {
	Entity   string `json:"entity"`
	Category string `json:"category"`
	Added    int    `json:"added"`
	Skipped  bool   `json:"skipped"`
	Partial  bool   `json:"partial"`
	Fetched  int    `json:"fetched"`
	Report   string `json:"report"`
	Error    string `json:"error,omitempty"`
}

// NewRouter serves /health, /metrics and POST /sync/{category}/{symbol}. The sync call
// blocks until the entity is merged; ?full=true skips the watermark. defaults carry the
// configured limits every triggered sync starts from.
func NewRouter(runner SyncRunner, defaults domain.SyncOptions) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprintf(w, "OK"); err != nil {
			_ = err
		}
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/sync/{category}/{symbol}", syncHandler(runner, defaults)).Methods("POST")
	return r
}

func NewHTTPServer(port string, runner SyncRunner, defaults domain.SyncOptions) *http.Server {
	return &http.Server{
		Addr:    ":" + port,
		Handler: NewRouter(runner, defaults),
	}
}

func syncHandler(runner SyncRunner, defaults domain.SyncOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		category, err := domain.ParseCategory(vars["category"])
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		entity := strings.ToUpper(vars["symbol"])
		if category == domain.CategoryFloorsheet {
			entity = domain.FloorsheetEntity
		}

		opts := defaults
		if full := r.URL.Query().Get("full"); full != "" {
			v, err := strconv.ParseBool(full)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid full=%q", full), http.StatusBadRequest)
				return
			}
			opts.FullRescan = v
		}

		rep := runner.RunOne(r.Context(), entity, category, opts)
		resp := syncResponse{
			Entity:   entity,
			Category: string(category),
			Added:    rep.Result.Added,
			Skipped:  rep.Result.Skipped,
			Partial:  rep.Result.Partial,
			Fetched:  rep.Result.Fetched,
			Report:   rep.String(),
		}

		status := http.StatusOK
		if rep.Err != nil {
			resp.Error = rep.Err.Error()
			switch {
			case errors.Is(rep.Err, app.ErrAlreadyRunning):
				status = http.StatusConflict
			case errors.Is(rep.Err, domain.ErrNotFound):
				status = http.StatusNotFound
			default:
				status = http.StatusBadGateway
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Warn("Failed to encode sync response", "error", err)
		}
	}
}
