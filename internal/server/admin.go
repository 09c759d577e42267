package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"VaultCore/internal/audit"
	"VaultCore/internal/execution"
	"VaultCore/internal/fuse"
	"VaultCore/internal/market"
	"VaultCore/internal/observability"
	"VaultCore/internal/registry"
	"VaultCore/internal/risk"
	"VaultCore/internal/withdraw"
)

// AdminDeps holds everything the governance/query HTTP API touches.
type AdminDeps struct {
	Registry   *registry.FuseRegistry
	Balances   *registry.BalanceFuses
	Grants     *market.Grants
	Accounting *market.Accounting
	Limits     *risk.LimitManager
	Sequencer  *withdraw.Sequencer
	Executor   *execution.Executor
	AuditQuery *audit.Query
	Health     *observability.HealthChecker
	Metrics    *observability.Metrics

	// BalanceFuseLookup resolves an address to a bound balance fuse
	// implementation from the service's catalog. Governance references
	// fuses by address; the implementations are bound at startup.
	BalanceFuseLookup func(fuse.Address) (fuse.BalanceFuse, bool)
}

// AdminServer is the access-controlled governance surface: registry,
// substrate grants, limits, dependency edges, and the withdrawal plan, plus
// read access to accounting and the audit log. Authentication sits in front
// of this server (reverse proxy), not inside it.
type AdminServer struct {
	deps       AdminDeps
	httpServer *http.Server
	log        zerolog.Logger
}

func NewAdminServer(addr string, deps AdminDeps, log zerolog.Logger) *AdminServer {
	s := &AdminServer{deps: deps, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/fuses", s.handleListFuses)
	mux.HandleFunc("POST /v1/fuses", s.handleRegisterFuse)
	mux.HandleFunc("DELETE /v1/fuses/{fuse}", s.handleUnregisterFuse)

	mux.HandleFunc("GET /v1/markets/{id}/substrates", s.handleListSubstrates)
	mux.HandleFunc("PUT /v1/markets/{id}/substrates", s.handleGrantSubstrates)
	mux.HandleFunc("PUT /v1/markets/{id}/balance-fuse", s.handleSetBalanceFuse)
	mux.HandleFunc("DELETE /v1/markets/{id}/balance-fuse", s.handleRemoveBalanceFuse)
	mux.HandleFunc("GET /v1/markets/{id}/dependencies", s.handleGetDependencies)
	mux.HandleFunc("PUT /v1/markets/{id}/dependencies", s.handleSetDependencies)
	mux.HandleFunc("GET /v1/markets/{id}/balance", s.handleMarketBalance)

	mux.HandleFunc("GET /v1/total-assets", s.handleTotalAssets)

	mux.HandleFunc("GET /v1/limits/status", s.handleLimitsStatus)
	mux.HandleFunc("POST /v1/limits/activate", s.handleActivateLimits)
	mux.HandleFunc("POST /v1/limits/deactivate", s.handleDeactivateLimits)
	mux.HandleFunc("PUT /v1/limits", s.handleSetLimits)

	mux.HandleFunc("GET /v1/withdrawal-sequence", s.handleGetSequence)
	mux.HandleFunc("PUT /v1/withdrawal-sequence", s.handleConfigureSequence)

	mux.HandleFunc("POST /v1/execute", s.handleExecute)

	mux.HandleFunc("GET /v1/audit/records", s.handleAuditRecords)

	if deps.Health != nil {
		mux.HandleFunc("GET /healthz", deps.Health.LivenessHandler)
		mux.HandleFunc("GET /readyz", deps.Health.ReadinessHandler)
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the underlying mux, for serving through a custom listener
// and for tests.
func (s *AdminServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled (blocking).
func (s *AdminServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("admin server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.httpServer.Addr).Msg("admin server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ============================================================================
// Registry
// ============================================================================

func (s *AdminServer) handleListFuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"fuses": s.deps.Registry.List()})
}

func (s *AdminServer) handleRegisterFuse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fuse fuse.Address `json:"fuse"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.deps.Registry.Register(req.Fuse); err != nil {
		writeError(w, err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.FusesRegistered.Set(float64(s.deps.Registry.Len()))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"fuse": req.Fuse})
}

func (s *AdminServer) handleUnregisterFuse(w http.ResponseWriter, r *http.Request) {
	addr, err := fuse.AddressFromHex(r.PathValue("fuse"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.deps.Registry.Unregister(addr); err != nil {
		writeError(w, err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.FusesRegistered.Set(float64(s.deps.Registry.Len()))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"fuse": addr})
}

// ============================================================================
// Substrates & balance fuses
// ============================================================================

func (s *AdminServer) handleListSubstrates(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"market": id, "substrates": s.deps.Grants.List(id)})
}

func (s *AdminServer) handleGrantSubstrates(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	var req struct {
		Substrates []fuse.Substrate `json:"substrates"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.deps.Grants.Grant(id, req.Substrates)
	writeJSON(w, http.StatusOK, map[string]interface{}{"market": id, "substrates": req.Substrates})
}

func (s *AdminServer) handleSetBalanceFuse(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	var req struct {
		Fuse fuse.Address `json:"fuse"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	impl, found := s.deps.BalanceFuseLookup(req.Fuse)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("no balance fuse bound at %s", req.Fuse)})
		return
	}
	if err := s.deps.Balances.Set(id, impl); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"market": id, "fuse": req.Fuse})
}

func (s *AdminServer) handleRemoveBalanceFuse(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Balances.Remove(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"market": id})
}

// ============================================================================
// Accounting
// ============================================================================

func (s *AdminServer) handleGetDependencies(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"market":       id,
		"dependencies": s.deps.Accounting.GetDependencies(id),
	})
}

func (s *AdminServer) handleSetDependencies(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	var req struct {
		Dependencies []uint64 `json:"dependencies"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.deps.Accounting.SetDependencies(id, req.Dependencies)
	writeJSON(w, http.StatusOK, map[string]interface{}{"market": id, "dependencies": req.Dependencies})
}

func (s *AdminServer) handleMarketBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"market":  id,
		"balance": s.deps.Accounting.TotalAssetsInMarket(id).String(),
	})
}

func (s *AdminServer) handleTotalAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_assets": s.deps.Accounting.TotalAssets().String(),
	})
}

// ============================================================================
// Limits
// ============================================================================

func (s *AdminServer) handleLimitsStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"active": s.deps.Limits.IsActive()})
}

func (s *AdminServer) handleActivateLimits(w http.ResponseWriter, r *http.Request) {
	s.deps.Limits.Activate()
	writeJSON(w, http.StatusOK, map[string]interface{}{"active": true})
}

func (s *AdminServer) handleDeactivateLimits(w http.ResponseWriter, r *http.Request) {
	s.deps.Limits.Deactivate()
	writeJSON(w, http.StatusOK, map[string]interface{}{"active": false})
}

func (s *AdminServer) handleSetLimits(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limits []struct {
			Market uint64   `json:"market"`
			Limit  *big.Int `json:"limit"`
		} `json:"limits"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	entries := make([]risk.MarketLimit, 0, len(req.Limits))
	for _, l := range req.Limits {
		if l.Limit == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit is required"})
			return
		}
		entries = append(entries, risk.MarketLimit{MarketID: l.Market, Limit: l.Limit})
	}

	if err := s.deps.Limits.SetLimits(entries); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"limits": len(entries)})
}

// ============================================================================
// Withdrawal sequence
// ============================================================================

func (s *AdminServer) handleGetSequence(w http.ResponseWriter, r *http.Request) {
	seq := s.deps.Sequencer.Sequence()
	entries := make([]map[string]interface{}, 0, len(seq))
	for i, f := range seq {
		entries = append(entries, map[string]interface{}{
			"fuse":   f,
			"params": s.deps.Sequencer.Params(f, i),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sequence": entries})
}

func (s *AdminServer) handleConfigureSequence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Entries []struct {
			Fuse   fuse.Address     `json:"fuse"`
			Params []fuse.Substrate `json:"params"`
		} `json:"entries"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	entries := make([]withdraw.Entry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, withdraw.Entry{Fuse: e.Fuse, Params: e.Params})
	}

	if err := s.deps.Sequencer.Configure(entries); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": len(entries)})
}

// ============================================================================
// Execution
// ============================================================================

func (s *AdminServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actions []struct {
			Fuse   fuse.Address     `json:"fuse"`
			Verb   string           `json:"verb"`
			Params []fuse.Substrate `json:"params"`
		} `json:"actions"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	actions := make([]fuse.Action, 0, len(req.Actions))
	for _, a := range req.Actions {
		var verb fuse.Verb
		switch a.Verb {
		case "enter":
			verb = fuse.VerbEnter
		case "exit":
			verb = fuse.VerbExit
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown verb %q", a.Verb)})
			return
		}
		actions = append(actions, fuse.Action{Fuse: a.Fuse, Verb: verb, Params: a.Params})
	}

	if err := s.deps.Executor.Execute(r.Context(), actions); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"actions":      len(actions),
		"total_assets": s.deps.Accounting.TotalAssets().String(),
	})
}

// ============================================================================
// Audit log
// ============================================================================

func (s *AdminServer) handleAuditRecords(w http.ResponseWriter, r *http.Request) {
	if s.deps.AuditQuery == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "audit store not configured"})
		return
	}

	f := audit.Filter{RecordType: r.URL.Query().Get("type")}
	if v := r.URL.Query().Get("market"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid market"})
			return
		}
		f.MarketID = &id
	}
	if v := r.URL.Query().Get("after"); v != "" {
		seq, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid after"})
			return
		}
		f.AfterSeq = seq
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		f.Limit = n
	}

	records, err := s.deps.AuditQuery.ListRecords(r.Context(), f)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

// ============================================================================
// Helpers
// ============================================================================

func marketID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid market id"})
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("decode body: %v", err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps core typed errors onto HTTP statuses, preserving their
// decodable fields in the body.
func writeError(w http.ResponseWriter, err error) {
	var (
		alreadyRegistered *registry.ErrAlreadyRegistered
		notRegistered     *registry.ErrNotRegistered
		fuseExists        *registry.ErrBalanceFuseExists
		noBalanceFuse     *registry.ErrNoBalanceFuse
		notReady          *registry.ErrNotReadyToRemove
		invalidMarket     *risk.ErrInvalidMarketID
		limitTooHigh      *risk.ErrLimitTooHigh
		limitExceeded     *risk.ErrMarketLimitExceeded
		unsupported       *withdraw.ErrFuseUnsupported
		notBound          *execution.ErrFuseNotBound
		noHandler         *execution.ErrHandlerNotFound
	)

	status := http.StatusInternalServerError
	body := map[string]interface{}{"error": err.Error()}

	switch {
	case errors.Is(err, execution.ErrAlreadyExecuting):
		status = http.StatusConflict
	case errors.Is(err, execution.ErrNotExecuting):
		status = http.StatusConflict
	case errors.As(err, &alreadyRegistered):
		status = http.StatusConflict
		body["fuse"] = alreadyRegistered.Fuse
	case errors.As(err, &notRegistered):
		status = http.StatusNotFound
		body["fuse"] = notRegistered.Fuse
	case errors.As(err, &fuseExists):
		status = http.StatusConflict
		body["market"] = fuseExists.Market
		body["fuse"] = fuseExists.Fuse
	case errors.As(err, &noBalanceFuse):
		status = http.StatusNotFound
		body["market"] = noBalanceFuse.Market
	case errors.As(err, &notReady):
		status = http.StatusConflict
		body["market"] = notReady.Market
		body["residual"] = notReady.Residual.String()
		body["tolerance"] = notReady.Tolerance.String()
	case errors.As(err, &invalidMarket):
		status = http.StatusBadRequest
		body["market"] = invalidMarket.Market
	case errors.As(err, &limitTooHigh):
		status = http.StatusBadRequest
		body["market"] = limitTooHigh.Market
		body["limit"] = limitTooHigh.Limit.String()
	case errors.As(err, &limitExceeded):
		status = http.StatusUnprocessableEntity
		body["market"] = limitExceeded.Market
		body["balance"] = limitExceeded.Balance.String()
		body["allowed"] = limitExceeded.Allowed.String()
	case errors.As(err, &unsupported):
		status = http.StatusUnprocessableEntity
		body["fuse"] = unsupported.Fuse
	case errors.As(err, &notBound):
		status = http.StatusUnprocessableEntity
		body["fuse"] = notBound.Fuse
	case errors.As(err, &noHandler):
		status = http.StatusNotFound
		body["caller"] = noHandler.Caller
		body["signature"] = noHandler.Signature.Hex()
	}

	writeJSON(w, status, body)
}
