package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"LendLedger/internal/core"
	"LendLedger/internal/market"
	"LendLedger/internal/observability"
	"LendLedger/internal/query"
	"LendLedger/internal/registry"
	"LendLedger/internal/token"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// callerHeader carries the caller's address. There is no authentication
// layer in front of this service; the header is trusted as-is.
const callerHeader = "X-Caller"

// Server exposes the lending engine over HTTP/JSON.
type Server struct {
	engine  *core.Engine
	history *query.Service
	health  *observability.HealthChecker
	metrics *observability.Metrics
	log     zerolog.Logger
}

func New(
	engine *core.Engine,
	history *query.Service,
	health *observability.HealthChecker,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Server {
	return &Server{
		engine:  engine,
		history: history,
		health:  health,
		metrics: metrics,
		log:     log,
	}
}

// Router builds the HTTP route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/markets", s.handleListMarkets)
		r.Post("/markets", s.handleAddMarket)

		r.Route("/markets/{market}", func(r chi.Router) {
			r.Get("/rates", s.handleRates)
			r.Get("/positions/{account}", s.handlePosition)
			r.Post("/mint", s.handleMint)
			r.Post("/redeem", s.handleRedeem)
			r.Post("/borrow", s.handleBorrow)
			r.Post("/repay", s.handleRepay)
			r.Put("/price", s.handleChangePrice)
			r.Put("/collateral-factor", s.handleChangeCollateralFactor)
		})

		r.Post("/admins", s.handleAddAdmin)
		r.Get("/accounts/{account}/liquidity", s.handleLiquidity)
		r.Get("/accounts/{account}/liquidity/hypothetical", s.handleHypotheticalLiquidity)
		r.Get("/operations", s.handleOperationHistory)
	})

	return r
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if s.metrics != nil {
			endpoint := r.Method + " " + r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				endpoint = r.Method + " " + rctx.RoutePattern()
			}
			s.metrics.HTTPRequests.WithLabelValues(endpoint, strconv.Itoa(ww.Status())).Inc()
			s.metrics.HTTPDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	})
}

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (token.Address, bool) {
	caller := r.Header.Get(callerHeader)
	if caller == "" {
		writeError(w, http.StatusBadRequest, "missing "+callerHeader+" header")
		return "", false
	}
	return token.Address(caller), true
}

type amountRequest struct {
	Amount float64 `json:"amount"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps domain errors onto HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var (
		insufficientUnderlying *market.InsufficientUnderlyingError
		insufficientCollateral *registry.InsufficientCollateralError
		insufficientFunds      *token.InsufficientFundsError
	)

	switch {
	case errors.Is(err, registry.ErrAdminRequired):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, registry.ErrMarketNotListed),
		errors.Is(err, market.ErrNoAccount):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrMarketAlreadyListed),
		errors.Is(err, market.ErrAccountAlreadyOpened):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &insufficientUnderlying),
		errors.As(err, &insufficientCollateral),
		errors.As(err, &insufficientFunds),
		errors.Is(err, market.ErrInsufficientCash),
		errors.Is(err, market.ErrInsufficientSupply):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	names, err := s.engine.MarketNames(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"markets": names})
}

func (s *Server) handleAddMarket(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req struct {
		Name     string  `json:"name"`
		PriceUSD float64 `json:"price_usd"`
		Custody  string  `json:"custody"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Custody == "" {
		writeError(w, http.StatusBadRequest, "name and custody are required")
		return
	}

	err := s.engine.AddMarket(r.Context(), caller, req.Name, req.PriceUSD, token.Address(req.Custody))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"market": req.Name})
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	rates, err := s.engine.Rates(r.Context(), chi.URLParam(r, "market"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rates)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "market")
	account := token.Address(chi.URLParam(r, "account"))

	pos, found, err := s.engine.Position(r.Context(), name, account)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, market.ErrNoAccount.Error())
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	minted, err := s.engine.Mint(r.Context(), caller, chi.URLParam(r, "market"), req.Amount)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"claim_tokens": minted})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	burned, err := s.engine.Redeem(r.Context(), caller, chi.URLParam(r, "market"), req.Amount)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"claim_tokens": burned})
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.engine.Borrow(r.Context(), caller, chi.URLParam(r, "market"), req.Amount); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "borrowed"})
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.engine.RepayBorrow(r.Context(), caller, chi.URLParam(r, "market"), req.Amount); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "repaid"})
}

func (s *Server) handleChangePrice(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		PriceUSD float64 `json:"price_usd"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.engine.ChangePriceOracle(r.Context(), caller, chi.URLParam(r, "market"), req.PriceUSD); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "price updated"})
}

func (s *Server) handleChangeCollateralFactor(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		CollateralFactor float64 `json:"collateral_factor"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.engine.ChangeCollateralFactor(r.Context(), caller, chi.URLParam(r, "market"), req.CollateralFactor); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "collateral factor updated"})
}

func (s *Server) handleAddAdmin(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Admin string `json:"admin"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Admin == "" {
		writeError(w, http.StatusBadRequest, "admin is required")
		return
	}

	if err := s.engine.AddAdmin(r.Context(), caller, token.Address(req.Admin)); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "admin added"})
}

func (s *Server) handleLiquidity(w http.ResponseWriter, r *http.Request) {
	account := token.Address(chi.URLParam(r, "account"))

	liq, err := s.engine.AccountLiquidity(r.Context(), account)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, liq)
}

func (s *Server) handleHypotheticalLiquidity(w http.ResponseWriter, r *http.Request) {
	account := token.Address(chi.URLParam(r, "account"))
	name := r.URL.Query().Get("market")
	if name == "" {
		writeError(w, http.StatusBadRequest, "market query parameter is required")
		return
	}
	amount, err := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount query parameter")
		return
	}

	liq, err := s.engine.HypotheticalLiquidity(r.Context(), account, name, amount)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, liq)
}

func (s *Server) handleOperationHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "operation history is not available")
		return
	}

	filter := query.HistoryFilter{
		Market: r.URL.Query().Get("market"),
		Caller: r.URL.Query().Get("caller"),
	}
	if after := r.URL.Query().Get("after"); after != "" {
		seq, err := strconv.ParseInt(after, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after cursor")
			return
		}
		filter.AfterSequence = &seq
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	entries, err := s.history.OperationHistory(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"operations": entries})
}
