// Package server exposes the market over HTTP/JSON: command endpoints for
// build, unwind, liquidate, update, and parameter governance, plus the query
// surface. All 1e18-scaled amounts travel as base-10 decimal strings so no
// precision is lost to JSON numbers.
package server

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"PerpMarket/internal/ledger"
	"PerpMarket/internal/market"
	"PerpMarket/internal/observability"
	"PerpMarket/internal/query"
	"PerpMarket/internal/risk"
	"PerpMarket/internal/roller"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server holds the HTTP handler state. queries is nil when no event log is
// attached; the history routes answer 503 in that case.
type Server struct {
	market  *market.Market
	params  *risk.Store
	queries *query.Service
	health  *observability.HealthChecker
	metrics *observability.Metrics
	log     zerolog.Logger
}

func New(m *market.Market, params *risk.Store, queries *query.Service, health *observability.HealthChecker, metrics *observability.Metrics, log zerolog.Logger) *Server {
	return &Server{market: m, params: params, queries: queries, health: health, metrics: metrics, log: log}
}

// Router builds the chi router with the full route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/market", s.instrument("market", s.handleMarketState))
		r.Get("/snapshots", s.instrument("snapshots", s.handleSnapshots))
		r.Get("/params", s.instrument("params", s.handleGetParams))
		r.Post("/params", s.instrument("set_param", s.handleSetParam))
		r.Get("/positions/{owner}/{id}", s.instrument("position", s.handlePosition))
		r.Get("/quote", s.instrument("quote", s.handleQuote))
		r.Get("/data-valid", s.instrument("data_valid", s.handleDataValid))
		r.Get("/cap", s.instrument("cap", s.handleCap))
		r.Get("/events", s.instrument("events", s.handleListEvents))
		r.Get("/events/{sequence}", s.instrument("event", s.handleGetEvent))
		r.Get("/funding-history", s.instrument("funding_history", s.handleFundingHistory))
		r.Post("/build", s.instrument("build", s.handleBuild))
		r.Post("/unwind", s.instrument("unwind", s.handleUnwind))
		r.Post("/liquidate", s.instrument("liquidate", s.handleLiquidate))
		r.Post("/update", s.instrument("update", s.handleUpdate))
	})
	return r
}

func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		h(ww, r)
		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(endpoint, strconv.Itoa(ww.Status())).Inc()
			s.metrics.HTTPDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

type buildRequest struct {
	Owner      string `json:"owner"`
	Collateral string `json:"collateral"`
	Leverage   string `json:"leverage"`
	IsLong     bool   `json:"isLong"`
	PriceLimit string `json:"priceLimit"`
}

type unwindRequest struct {
	Owner      string `json:"owner"`
	PositionID uint64 `json:"positionId"`
	Fraction   string `json:"fraction"`
	PriceLimit string `json:"priceLimit"`
}

type liquidateRequest struct {
	Sender     string `json:"sender"`
	Owner      string `json:"owner"`
	PositionID uint64 `json:"positionId"`
}

type setParamRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	owner, err := uuid.Parse(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner")
		return
	}
	collateral, ok := parseAmount(req.Collateral)
	if !ok || collateral.Sign() < 0 {
		writeError(w, http.StatusBadRequest, "invalid collateral")
		return
	}
	leverage, ok := parseAmount(req.Leverage)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid leverage")
		return
	}
	priceLimit, ok := parseAmount(req.PriceLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid priceLimit")
		return
	}

	id, err := s.market.Build(owner, collateral, leverage, req.IsLong, priceLimit)
	if err != nil {
		s.writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"positionId": id})
}

func (s *Server) handleUnwind(w http.ResponseWriter, r *http.Request) {
	var req unwindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	owner, err := uuid.Parse(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner")
		return
	}
	fraction, ok := parseAmount(req.Fraction)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid fraction")
		return
	}
	priceLimit, ok := parseAmount(req.PriceLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid priceLimit")
		return
	}

	if err := s.market.Unwind(owner, req.PositionID, fraction, priceLimit); err != nil {
		s.writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sender, err := uuid.Parse(req.Sender)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sender")
		return
	}
	owner, err := uuid.Parse(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner")
		return
	}

	if err := s.market.Liquidate(sender, owner, req.PositionID); err != nil {
		s.writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	d, err := s.market.Update()
	if err != nil {
		s.writeMarketError(w, err)
		return
	}
	body := map[string]interface{}{
		"timestamp":      d.Timestamp,
		"microWindow":    d.MicroWindow,
		"macroWindow":    d.MacroWindow,
		"priceMicro":     d.PriceOverMicroWindow.String(),
		"priceMacro":     d.PriceOverMacroWindow.String(),
		"priceMacroPrev": d.PriceOneMacroWindowAgo.String(),
		"hasReserve":     d.HasReserve,
	}
	if d.HasReserve {
		body["reserve"] = d.ReserveOverMicroWindow.String()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleMarketState(w http.ResponseWriter, r *http.Request) {
	st := s.market.State()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"oiLong":              st.OiLong.String(),
		"oiShort":             st.OiShort.String(),
		"oiLongShares":        st.OiLongShares.String(),
		"oiShortShares":       st.OiShortShares.String(),
		"timestampUpdateLast": st.TimestampUpdateLast,
		"nextPositionId":      st.NextPositionID,
		"openPositions":       st.OpenPositions,
		"sequence":            st.Sequence,
	})
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	ask := s.market.SnapshotVolumeAsk()
	bid := s.market.SnapshotVolumeBid()
	minted := s.market.SnapshotMinted()
	encode := func(snap roller.Snapshot) map[string]interface{} {
		return map[string]interface{}{
			"timestampLast": snap.TimestampLast,
			"windowLast":    snap.WindowLast,
			"valueLast":     snap.ValueLast.String(),
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"volumeAsk": encode(ask),
		"volumeBid": encode(bid),
		"minted":    encode(minted),
	})
}

func (s *Server) handleGetParams(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]string)
	for _, name := range risk.Names() {
		p, _ := risk.ParamFromName(name)
		out[name] = s.params.Get(p).String()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetParam(w http.ResponseWriter, r *http.Request) {
	var req setParamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, ok := risk.ParamFromName(req.Name)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown parameter")
		return
	}
	v, ok := parseAmount(req.Value)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid value")
		return
	}
	if err := s.market.SetParam(p, v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	owner, err := uuid.Parse(chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner")
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid position id")
		return
	}
	pos, ok := s.market.Position(owner, id)
	if !ok {
		writeError(w, http.StatusNotFound, "position not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"owner":      owner.String(),
		"positionId": id,
		"notional":   pos.NotionalInitial.String(),
		"debt":       pos.DebtInitial.String(),
		"cost":       pos.Cost().String(),
		"oiShares":   pos.OiSharesInitial.String(),
		"entryPrice": pos.EntryPrice().String(),
		"isLong":     pos.IsLong,
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	notional, ok := parseAmount(r.URL.Query().Get("notional"))
	if !ok || notional.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, "invalid notional")
		return
	}
	side := r.URL.Query().Get("side")
	if side != "long" && side != "short" {
		writeError(w, http.StatusBadRequest, "side must be long or short")
		return
	}
	price, oi, err := s.market.Quote(notional, side == "long")
	if err != nil {
		s.writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"price": price.String(),
		"oi":    oi.String(),
	})
}

func (s *Server) handleDataValid(w http.ResponseWriter, r *http.Request) {
	valid, err := s.market.DataIsValid()
	if err != nil {
		s.writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"dataIsValid": valid})
}

func (s *Server) handleCap(w http.ResponseWriter, r *http.Request) {
	adjusted, err := s.market.CapNotionalAdjusted()
	if err != nil {
		s.writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"capNotionalAdjusted": adjusted.String()})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.queries == nil {
		writeError(w, http.StatusServiceUnavailable, "event log not attached")
		return
	}
	after, _ := strconv.ParseUint(r.URL.Query().Get("after"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := s.queries.ListEvents(r.Context(), after, limit, r.URL.Query().Get("type"))
	if err != nil {
		s.log.Error().Err(err).Msg("event list query failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	if s.queries == nil {
		writeError(w, http.StatusServiceUnavailable, "event log not attached")
		return
	}
	seq, err := strconv.ParseUint(chi.URLParam(r, "sequence"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sequence")
		return
	}
	e, err := s.queries.GetEvent(r.Context(), seq)
	if err != nil {
		s.log.Error().Err(err).Msg("event query failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleFundingHistory(w http.ResponseWriter, r *http.Request) {
	if s.queries == nil {
		writeError(w, http.StatusServiceUnavailable, "event log not attached")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	before, _ := strconv.ParseUint(r.URL.Query().Get("before"), 10, 64)
	entries, asOf, err := s.queries.FundingHistory(r.Context(), limit, before)
	if err != nil {
		s.log.Error().Err(err).Msg("funding history query failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries":      entries,
		"asOfSequence": asOf,
	})
}

// writeMarketError maps the market's rejection taxonomy onto HTTP status
// codes: not-found is 404, precondition failures are 422, balance shortfalls
// are 409, anything else is an infrastructure 500.
func (s *Server) writeMarketError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrPositionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, market.ErrLeverageBelowMinimum),
		errors.Is(err, market.ErrLeverageAboveMaximum),
		errors.Is(err, market.ErrCollateralBelowMinimum),
		errors.Is(err, market.ErrOiZero),
		errors.Is(err, market.ErrOiAboveCap),
		errors.Is(err, market.ErrLiquidatable),
		errors.Is(err, market.ErrNotLiquidatable),
		errors.Is(err, market.ErrSlippage),
		errors.Is(err, market.ErrFractionBelowMinimum),
		errors.Is(err, market.ErrFractionAboveMaximum):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseAmount decodes a base-10 decimal string into a 1e18-scaled integer.
func parseAmount(s string) (*big.Int, bool) {
	if s == "" {
		return nil, false
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
