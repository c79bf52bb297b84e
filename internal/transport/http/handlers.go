package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"fudata/internal/config"
	"fudata/internal/gold"
	"fudata/pkg/contracts/domain"
)

// DataHandler serves persisted gold artifacts. It reads straight from the
// partitioned store; nothing here mutates state.
type DataHandler struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewDataHandler creates a data handler over the store layout.
func NewDataHandler(paths *config.Paths, logger *slog.Logger) *DataHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataHandler{
		paths:  paths,
		logger: logger.With(slog.String("component", "data_handler")),
	}
}

// Routes returns the data routes.
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/symbols", h.GetSymbols)
	r.Route("/symbols/{symbol}", func(r chi.Router) {
		r.Use(h.SymbolCtx)
		r.Get("/summaries", h.GetSummaries)
		r.Get("/summaries/{expiry}", h.GetSummary)
		r.Get("/days", h.GetDays)
	})
	return r
}

// SymbolCtx validates the symbol path parameter.
func (h *DataHandler) SymbolCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := chi.URLParam(r, "symbol")
		if symbol == "" || len(symbol) > 20 {
			h.renderError(w, r, http.StatusBadRequest, "invalid symbol")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetSymbols handles GET /api/symbols.
func (h *DataHandler) GetSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := gold.ListSymbols(h.paths)
	if err != nil {
		h.serverError(w, r, "list symbols", err)
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	render.JSON(w, r, map[string]interface{}{"symbols": symbols})
}

// GetSummaries handles GET /api/symbols/{symbol}/summaries.
func (h *DataHandler) GetSummaries(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	summaries, err := gold.ListSummaries(h.paths, symbol)
	if err != nil {
		h.serverError(w, r, "list summaries", err)
		return
	}
	if summaries == nil {
		summaries = []domain.GoldSummaryRecord{}
	}
	render.JSON(w, r, map[string]interface{}{
		"symbol":    symbol,
		"summaries": summaries,
	})
}

// GetSummary handles GET /api/symbols/{symbol}/summaries/{expiry}.
func (h *DataHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	expiry, err := domain.ParseDate(chi.URLParam(r, "expiry"))
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "expiry must be YYYY-MM-DD")
		return
	}

	summary, found, err := gold.LoadSummary(h.paths, symbol, expiry)
	if err != nil {
		h.serverError(w, r, "load summary", err)
		return
	}
	if !found {
		h.renderError(w, r, http.StatusNotFound, "summary not found")
		return
	}
	render.JSON(w, r, summary)
}

// GetDays handles GET /api/symbols/{symbol}/days?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *DataHandler) GetDays(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	days, err := gold.LoadDays(h.paths, symbol, from, to)
	if err != nil {
		h.serverError(w, r, "load days", err)
		return
	}
	if days == nil {
		days = []domain.GoldDayRecord{}
	}
	render.JSON(w, r, map[string]interface{}{
		"symbol": symbol,
		"from":   from.Format(domain.DateOnly),
		"to":     to.Format(domain.DateOnly),
		"days":   days,
	})
}

func (h *DataHandler) parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")
	if fromStr == "" || toStr == "" {
		h.renderError(w, r, http.StatusBadRequest, "from and to query parameters are required")
		return time.Time{}, time.Time{}, false
	}
	from, err := domain.ParseDate(fromStr)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	to, err := domain.ParseDate(toStr)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	if to.Before(from) {
		h.renderError(w, r, http.StatusBadRequest, "to must not precede from")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (h *DataHandler) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]interface{}{
		"status": status,
		"error":  message,
	})
}

func (h *DataHandler) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("op", op),
		slog.String("error", err.Error()))
	h.renderError(w, r, http.StatusInternalServerError, "internal error")
}

// HealthHandler reports process and store health.
type HealthHandler struct {
	paths   *config.Paths
	started time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(paths *config.Paths) *HealthHandler {
	return &HealthHandler{paths: paths, started: time.Now().UTC()}
}

// HealthCheck handles GET /api/health.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	symbols, err := gold.ListSymbols(h.paths)
	status := "healthy"
	if err != nil {
		status = "degraded"
	}
	render.JSON(w, r, map[string]interface{}{
		"status":         status,
		"storage_root":   h.paths.Root,
		"symbols":        len(symbols),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}
