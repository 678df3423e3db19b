package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	models "FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	domsvc "FinSignal/internal/domain/service"
	icache "FinSignal/internal/service/cache"
	"FinSignal/internal/service/metrics"
	"FinSignal/internal/service/ratelimit"
	"FinSignal/internal/usecase"
	xhttp "FinSignal/pkg/http"
	xlogger "FinSignal/pkg/logger"
	xutil "FinSignal/pkg/util"

	"github.com/labstack/echo/v4"
)

// SignalsEchoHandler serves the signal API over Echo. Read endpoints go
// through a byte-level response cache and a per-remote token bucket.
type SignalsEchoHandler struct {
	logger     *xlogger.Logger
	dispatcher *usecase.SignalDispatcher
	engine     *usecase.HybridEngine
	agg        domsvc.TimeframeAggregator
	storage    domrepo.SignalStorage
	zones      domsvc.ZoneClassifier
	stream     domrepo.ReadingStream
	cache      icache.BytesCache
	rl         *ratelimit.Limiter
	respTTL    time.Duration
}

func NewSignalsEchoHandler(
	logger *xlogger.Logger,
	dispatcher *usecase.SignalDispatcher,
	engine *usecase.HybridEngine,
	agg domsvc.TimeframeAggregator,
	storage domrepo.SignalStorage,
	zones domsvc.ZoneClassifier,
) *SignalsEchoHandler {
	metrics.Register()
	return &SignalsEchoHandler{
		logger:     logger,
		dispatcher: dispatcher,
		engine:     engine,
		agg:        agg,
		storage:    storage,
		zones:      zones,
		rl:         ratelimit.New(),
		respTTL:    10 * time.Second,
	}
}

// SetCache injects a response cache for the read endpoints.
func (h *SignalsEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetCacheTTL overrides the snapshot cache window. Recent-history responses
// stay cached three times as long.
func (h *SignalsEchoHandler) SetCacheTTL(d time.Duration) {
	if d > 0 {
		h.respTTL = d
	}
}

// SetStream lets the health endpoint report intake connectivity.
func (h *SignalsEchoHandler) SetStream(s domrepo.ReadingStream) { h.stream = s }

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signal", h.Snapshot)
	g.POST("/evaluate", h.Evaluate)
	g.GET("/signals/recent", h.Recent)
	g.GET("/zones/resolve", h.ResolveZone)
	e.GET("/healthz", h.Health)
}

// Snapshot aggregates the instrument's live snapshots without touching the
// dedup window, storage or the notifier.
func (h *SignalsEchoHandler) Snapshot(c echo.Context) error {
	start := time.Now()
	endpoint := "signal"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.SnapshotSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":signal", 5, 2) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}

	cacheKey := "signal:" + req.Instrument
	if done, err := h.serveCached(c, endpoint, cacheKey); done {
		return err
	}

	agg := h.dispatcher.Preview(c.Request().Context(), req.Instrument)
	if len(agg.PerTimeframe) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no evaluations for %s yet", req.Instrument))
	}
	return h.respondCached(c, cacheKey, models.NewAggregateView(&agg), h.respTTL)
}

// Evaluate runs the evaluator stack over caller-supplied readings as a
// self-contained batch. With emit=true the outcome also passes through the
// dedup gate, storage and the notifier.
func (h *SignalsEchoHandler) Evaluate(c echo.Context) error {
	start := time.Now()
	endpoint := "evaluate"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.EvaluateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":evaluate", 3, 1) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}

	readings, verr := buildReadings(req)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	perTF := h.engine.EvaluateBatch(c.Request().Context(), readings)

	if req.Emit {
		agg, emitted, err := h.dispatcher.Dispatch(c.Request().Context(), req.Instrument, perTF)
		if err != nil {
			metrics.APIErrors.WithLabelValues(endpoint).Inc()
			h.logger.Error("evaluate dispatch error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		res := models.EvaluateResponse{Aggregate: models.NewAggregateView(agg)}
		for i := range emitted {
			res.Emitted = append(res.Emitted, models.NewSignalView(&emitted[i]))
		}
		return xhttp.SuccessResponse(c, res)
	}

	agg := h.agg.Aggregate(req.Instrument, perTF)
	return xhttp.SuccessResponse(c, models.EvaluateResponse{Aggregate: models.NewAggregateView(&agg)})
}

// Recent returns persisted signals for an instrument inside a time range.
// The range defaults to the trailing 24 hours.
func (h *SignalsEchoHandler) Recent(c echo.Context) error {
	start := time.Now()
	endpoint := "recent"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.RecentSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":recent", 5, 2) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}

	to := time.Now().UTC()
	if req.To != "" {
		t, ok := xutil.ParseTime(req.To)
		if !ok {
			return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
				Code: "ERR_FORMAT", Field: "to", Message: "to must be RFC3339 or unix seconds",
			}})
		}
		to = t.UTC()
	}
	from := to.Add(-24 * time.Hour)
	if req.From != "" {
		t, ok := xutil.ParseTime(req.From)
		if !ok {
			return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
				Code: "ERR_FORMAT", Field: "from", Message: "from must be RFC3339 or unix seconds",
			}})
		}
		from = t.UTC()
	}

	cacheKey := "recent:" + req.Instrument + ":" + from.Format(time.RFC3339) + ":" +
		to.Format(time.RFC3339) + ":" + strconv.Itoa(req.Limit)
	if done, err := h.serveCached(c, endpoint, cacheKey); done {
		return err
	}

	rows, err := h.storage.Recent(c.Request().Context(), req.Instrument, from, to, req.Limit)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("recent query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	views := make([]models.SignalView, 0, len(rows))
	for _, s := range rows {
		views = append(views, models.NewSignalView(s))
	}
	list := &xhttp.ListDataResponse{Rows: views, Total: int64(len(views))}
	return h.respondCached(c, cacheKey, list, 3*h.respTTL)
}

// ResolveZone reports the zone a raw value classifies into after the
// instrument-to-market-template fallback chain. Debugging aid for threshold
// authors.
func (h *SignalsEchoHandler) ResolveZone(c echo.Context) error {
	start := time.Now()
	endpoint := "zones"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.ResolveZoneRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":zones", 5, 2) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}

	z := h.zones.Match(c.Request().Context(), req.Instrument, domrepo.Timeframe(req.TF), req.Indicator, req.Value)
	return xhttp.SuccessResponse(c, models.ZoneResolution{
		Instrument: req.Instrument,
		TF:         req.TF,
		Indicator:  req.Indicator,
		Value:      req.Value,
		Zone:       string(z),
		Direction:  string(h.zones.Side(z)),
		Extremity:  h.zones.Extremity(z),
	})
}

// Health reports dependency status. Storage failure flips the status code;
// a disconnected intake only degrades the body.
func (h *SignalsEchoHandler) Health(c echo.Context) error {
	checks := map[string]string{}
	code := http.StatusOK

	if h.storage != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.storage.Health(ctx); err != nil {
			checks["storage"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	}
	if h.stream != nil {
		if h.stream.IsConnected() {
			checks["intake"] = "ok"
		} else {
			checks["intake"] = "disconnected"
		}
	}

	body := models.HealthStatus{Status: "ok", Checks: checks}
	if code != http.StatusOK || checks["intake"] == "disconnected" {
		body.Status = "degraded"
	}
	return c.JSON(code, body)
}

// serveCached replies from the response cache when a fresh entry exists.
func (h *SignalsEchoHandler) serveCached(c echo.Context, endpoint, key string) (bool, error) {
	if h.cache == nil {
		return false, nil
	}
	b, ok, err := h.cache.GetBytes(key)
	if err != nil {
		h.logger.Warn("api cache get error", xlogger.String("key", key), xlogger.Error(err))
		return false, nil
	}
	if !ok {
		return false, nil
	}
	metrics.CacheHits.WithLabelValues(endpoint).Inc()
	return true, c.JSONBlob(http.StatusOK, b)
}

// respondCached writes the standard envelope and stores the rendered bytes
// so the next hit inside ttl skips evaluation entirely.
func (h *SignalsEchoHandler) respondCached(c echo.Context, key string, data interface{}, ttl time.Duration) error {
	if h.cache == nil {
		return xhttp.SuccessResponse(c, data)
	}
	b, err := json.Marshal(xhttp.APIResponse{
		Status:  http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    data,
	})
	if err != nil {
		return xhttp.SuccessResponse(c, data)
	}
	if err := h.cache.SetBytes(key, b, ttl); err != nil {
		h.logger.Warn("api cache set error", xlogger.String("key", key), xlogger.Error(err))
	}
	return c.JSONBlob(http.StatusOK, b)
}

// buildReadings converts evaluate payloads into domain readings, rejecting
// duplicate timeframes so the batch stays one-reading-per-rung.
func buildReadings(req *models.EvaluateRequest) ([]*models.IndicatorReading, []xhttp.ValidationError) {
	readings := make([]*models.IndicatorReading, 0, len(req.Readings))
	seen := make(map[string]bool, len(req.Readings))
	for _, p := range req.Readings {
		if seen[p.TF] {
			return nil, []xhttp.ValidationError{{
				Code: "ERR_DUPLICATE", Field: "readings", Message: "duplicate timeframe " + p.TF,
			}}
		}
		seen[p.TF] = true

		ts := time.Now().UTC()
		if p.TS != "" {
			parsed, ok := xutil.ParseTime(p.TS)
			if !ok {
				return nil, []xhttp.ValidationError{{
					Code: "ERR_FORMAT", Field: "ts", Message: "ts must be RFC3339 or unix seconds",
				}}
			}
			ts = parsed.UTC()
		}
		readings = append(readings, &models.IndicatorReading{
			InstrumentID: req.Instrument,
			Timeframe:    p.TF,
			Timestamp:    ts,
			Values:       p.Values,
		})
	}
	return readings, nil
}

var _ xhttp.Handler = (*SignalsEchoHandler)(nil)
