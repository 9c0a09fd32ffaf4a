package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	keeper "github.com/keeperd/keeper"
	"github.com/keeperd/keeper/errors"
	"github.com/keeperd/keeper/journal"
	"github.com/keeperd/keeper/x/cash"
	"github.com/keeperd/keeper/x/escrow"
	"github.com/keeperd/keeper/x/sigs"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the escrow ledger over an HTTP JSON API.
type Server struct {
	ledger  *escrow.Ledger
	bank    cash.CoinMover
	events  *journal.Recorder
	log     *slog.Logger
	metrics *metrics
	pingers []pinger
	mux     *http.ServeMux
}

func NewServer(ledger *escrow.Ledger, bank cash.CoinMover, events *journal.Recorder, log *slog.Logger, m *metrics, pingers ...pinger) *Server {
	s := &Server{
		ledger:  ledger,
		bank:    bank,
		events:  events,
		log:     log,
		metrics: m,
		pingers: pingers,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /v1/escrows", s.createEscrow)
	s.mux.HandleFunc("GET /v1/escrows", s.listEscrows)
	s.mux.HandleFunc("GET /v1/escrows/{id}", s.getEscrow)
	s.mux.HandleFunc("POST /v1/escrows/{id}/confirm", s.transition("confirm", s.ledger.ConfirmCompletion))
	s.mux.HandleFunc("POST /v1/escrows/{id}/refund", s.transition("refund", s.ledger.Refund))
	s.mux.HandleFunc("POST /v1/escrows/{id}/auto-refund", s.transition("auto_refund", s.ledger.AutoRefund))
	s.mux.HandleFunc("POST /v1/escrows/{id}/dispute", s.transition("dispute", s.ledger.RaiseDispute))
	s.mux.HandleFunc("POST /v1/escrows/{id}/resolve", s.resolveDispute)
	s.mux.HandleFunc("POST /v1/escrows/{id}/cancel", s.transition("cancel", s.ledger.Cancel))
	s.mux.HandleFunc("POST /v1/escrows/{id}/admin-release", s.transition("admin_release", s.ledger.AdminRelease))
	s.mux.HandleFunc("POST /v1/escrows/{id}/admin-refund", s.transition("admin_refund", s.ledger.AdminRefund))

	s.mux.HandleFunc("GET /v1/fees", s.feeState)
	s.mux.HandleFunc("PUT /v1/fees/percent", s.updateFeePercent)
	s.mux.HandleFunc("POST /v1/fees/withdraw", s.withdrawFees)
	s.mux.HandleFunc("POST /v1/admin", s.transferAdmin)

	s.mux.HandleFunc("GET /v1/events", s.listEvents)
	s.mux.HandleFunc("GET /healthz", s.healthz)
	s.mux.Handle("GET /metrics", s.metrics.handler())

	// The in-memory rail has no external source of funds, so expose a
	// faucet for development setups.
	if c, ok := s.bank.(*cash.Controller); ok {
		s.mux.HandleFunc("POST /v1/dev/mint", s.devMint(c))
	}
}

type createEscrowRequest struct {
	Buyer       keeper.Address `json:"buyer"`
	Seller      keeper.Address `json:"seller"`
	Amount      int64          `json:"amount"`
	TimeoutDays int            `json:"timeout_days"`
}

func (s *Server) createEscrow(w http.ResponseWriter, r *http.Request) {
	var req createEscrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, errors.Wrap(errors.ErrInput, "cannot decode request body"))
		return
	}
	id, err := s.ledger.Create(r.Context(), req.Buyer, req.Seller, req.Amount, req.TimeoutDays)
	s.metrics.observe("create", err)
	if err != nil {
		s.logErr(r, "create", err)
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		ID uint64 `json:"id"`
	}{ID: id})
}

// transition adapts the single-escrow ledger operations sharing the
// (ctx, id) signature into handlers.
func (s *Server) transition(op string, fn func(ctx context.Context, id uint64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeErr(w, err)
			return
		}
		err = fn(r.Context(), id)
		s.metrics.observe(op, err)
		if err != nil {
			s.logErr(r, op, err)
			writeErr(w, err)
			return
		}
		s.respondEscrow(w, r, id)
	}
}

func (s *Server) resolveDispute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req struct {
		ToSeller bool `json:"to_seller"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, errors.Wrap(errors.ErrInput, "cannot decode request body"))
		return
	}
	err = s.ledger.ResolveDispute(r.Context(), id, req.ToSeller)
	s.metrics.observe("resolve", err)
	if err != nil {
		s.logErr(r, "resolve", err)
		writeErr(w, err)
		return
	}
	s.syncFeeGauge()
	s.respondEscrow(w, r, id)
}

type escrowResponse struct {
	*escrow.Escrow
	TimedOut  bool `json:"timed_out"`
	CanCancel bool `json:"can_cancel"`
}

func (s *Server) getEscrow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.respondEscrow(w, r, id)
}

func (s *Server) respondEscrow(w http.ResponseWriter, r *http.Request, id uint64) {
	esc, err := s.ledger.GetEscrow(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	timedOut, err := s.ledger.IsTimedOut(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	canCancel, err := s.ledger.CanCancel(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, escrowResponse{
		Escrow:    esc,
		TimedOut:  timedOut,
		CanCancel: canCancel,
	})
}

func (s *Server) listEscrows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		out []*escrow.Escrow
		err error
	)
	switch {
	case q.Get("buyer") != "":
		var addr keeper.Address
		if addr, err = keeper.ParseAddress(q.Get("buyer")); err == nil {
			out = s.ledger.ByBuyer(addr)
		}
	case q.Get("seller") != "":
		var addr keeper.Address
		if addr, err = keeper.ParseAddress(q.Get("seller")); err == nil {
			out = s.ledger.BySeller(addr)
		}
	default:
		err = errors.Wrap(errors.ErrInput, "buyer or seller query parameter is required")
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	if out == nil {
		out = []*escrow.Escrow{}
	}
	writeJSON(w, http.StatusOK, struct {
		Escrows []*escrow.Escrow `json:"escrows"`
	}{Escrows: out})
}

func (s *Server) feeState(w http.ResponseWriter, r *http.Request) {
	admin, percent, collected := s.ledger.FeeState()
	writeJSON(w, http.StatusOK, struct {
		Admin     keeper.Address `json:"admin"`
		Percent   uint32         `json:"percent"`
		Collected int64          `json:"collected"`
		NextID    uint64         `json:"next_id"`
	}{Admin: admin, Percent: percent, Collected: collected, NextID: s.ledger.NextID()})
}

func (s *Server) updateFeePercent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Percent uint32 `json:"percent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, errors.Wrap(errors.ErrInput, "cannot decode request body"))
		return
	}
	err := s.ledger.UpdateFeePercent(r.Context(), req.Percent)
	s.metrics.observe("update_fee", err)
	if err != nil {
		s.logErr(r, "update_fee", err)
		writeErr(w, err)
		return
	}
	s.feeState(w, r)
}

func (s *Server) withdrawFees(w http.ResponseWriter, r *http.Request) {
	amount, err := s.ledger.WithdrawFees(r.Context())
	s.metrics.observe("withdraw_fees", err)
	if err != nil {
		s.logErr(r, "withdraw_fees", err)
		writeErr(w, err)
		return
	}
	s.syncFeeGauge()
	writeJSON(w, http.StatusOK, struct {
		Amount int64 `json:"amount"`
	}{Amount: amount})
}

func (s *Server) transferAdmin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Admin keeper.Address `json:"admin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, errors.Wrap(errors.ErrInput, "cannot decode request body"))
		return
	}
	err := s.ledger.TransferAdmin(r.Context(), req.Admin)
	s.metrics.observe("transfer_admin", err)
	if err != nil {
		s.logErr(r, "transfer_admin", err)
		writeErr(w, err)
		return
	}
	s.feeState(w, r)
}

type eventEnvelope struct {
	Kind  string       `json:"kind"`
	Event escrow.Event `json:"event"`
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	events := s.events.Events()
	out := make([]eventEnvelope, len(events))
	for i, ev := range events {
		out[i] = eventEnvelope{Kind: ev.Kind(), Event: ev}
	}
	writeJSON(w, http.StatusOK, struct {
		Events []eventEnvelope `json:"events"`
	}{Events: out})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	for _, p := range s.pingers {
		if err := p.Ping(r.Context()); err != nil {
			s.log.Warn("health check failed", "err", err)
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) devMint(bank *cash.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, _, _ := s.ledger.FeeState()
		if caller, ok := sigs.Caller(r.Context()); !ok || !caller.Equals(admin) {
			writeErr(w, errors.Wrap(errors.ErrUnauthorized, "only the admin may mint"))
			return
		}
		var req struct {
			Address keeper.Address `json:"address"`
			Amount  int64          `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, errors.Wrap(errors.ErrInput, "cannot decode request body"))
			return
		}
		if err := bank.IssueCoins(r.Context(), req.Address, req.Amount); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// syncFeeGauge mirrors the collected fee accumulator into the metrics
// registry.
func (s *Server) syncFeeGauge() {
	_, _, collected := s.ledger.FeeState()
	s.metrics.collectedFees.Set(float64(collected))
}

func (s *Server) logErr(r *http.Request, op string, err error) {
	s.log.Info("rejected operation",
		"op", op,
		"path", r.URL.Path,
		"code", errors.Code(err),
		"err", err)
}

func pathID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, errors.Wrap(errors.ErrInput, "malformed escrow id")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(err), struct {
		Error string `json:"error"`
		Code  uint32 `json:"code"`
	}{Error: err.Error(), Code: errors.Code(err)})
}

func httpStatus(err error) int {
	switch {
	case errors.ErrNotFound.Is(err):
		return http.StatusNotFound
	case errors.ErrUnauthorized.Is(err):
		return http.StatusForbidden
	case errors.ErrState.Is(err), errors.ErrNotExpired.Is(err), errors.ErrEmpty.Is(err):
		return http.StatusConflict
	case errors.ErrInput.Is(err), errors.ErrAmount.Is(err), errors.ErrParty.Is(err),
		errors.ErrDuration.Is(err), errors.ErrFee.Is(err):
		return http.StatusBadRequest
	case errors.ErrTransfer.Is(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
