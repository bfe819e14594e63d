package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ring-settler/config"
	"ring-settler/logger"
	"ring-settler/ring"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

// Settler settles one submitted ring atomically.
type Settler interface {
	SubmitRing(ctx context.Context, sub *ring.Submission) (*ring.SettlementResult, error)
}

// OrderRegistry is the externally mutable order bookkeeping surface.
type OrderRegistry interface {
	CancelOrder(orderHash common.Hash) error
}

type Server struct {
	settler Settler
	orders  OrderRegistry
	hub     *Hub
	srv     *http.Server
}

func NewServer(cfg config.ServerConfig, settler Settler, orders OrderRegistry) *Server {
	server := &Server{
		settler: settler,
		orders:  orders,
		hub:     NewHub(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/rings", server.submitRing).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/orders/cancel", server.cancelOrder).Methods(http.MethodPost)
	router.HandleFunc("/ws/events", server.hub.Handle)

	server.srv = &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	return server
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	logger.Info("API server listening on %s", s.srv.Addr)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		err := s.srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	eg.Go(func() error {
		<-ctx.Done()
		s.hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) submitRing(w http.ResponseWriter, r *http.Request) {
	var req RingSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err)
		return
	}

	sub, err := req.ToSubmission()
	if err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err)
		return
	}

	result, err := s.settler.SubmitRing(r.Context(), sub)
	if err != nil {
		code, status := classifyError(err)
		writeError(w, status, code, err)
		return
	}

	payload := settlementPayload(result)
	s.hub.Broadcast(payload)
	writeJSON(w, http.StatusOK, payload)
}

// cancelOrder requires the full signed order plus an owner signature over the
// cancellation digest, so only the order's owner can cancel it.
func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderCancellationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err)
		return
	}

	order, err := req.Order.ToOrder()
	if err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err)
		return
	}
	cancelSig, err := req.CancelSignature.toSignature()
	if err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err)
		return
	}

	hash, err := ring.VerifyCancellation(order, cancelSig)
	if err != nil {
		writeError(w, http.StatusForbidden, "InvalidSignature", err)
		return
	}

	if err := s.orders.CancelOrder(hash); err != nil {
		writeError(w, http.StatusInternalServerError, "Internal", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "cancelled",
		"orderHash": hash.Hex(),
	})
}

// classifyError maps engine failures to the settlement error taxonomy; the
// code names are stable API surface.
func classifyError(err error) (string, int) {
	switch {
	case errors.Is(err, ring.ErrMalformedRing):
		return "MalformedRing", http.StatusBadRequest
	case errors.Is(err, ring.ErrInvalidSignature):
		return "InvalidSignature", http.StatusBadRequest
	case errors.Is(err, ring.ErrOrderExpired):
		return "OrderExpired", http.StatusConflict
	case errors.Is(err, ring.ErrOrderCancelled):
		return "OrderCancelled", http.StatusConflict
	case errors.Is(err, ring.ErrOrderExhausted):
		return "OrderExhausted", http.StatusConflict
	case errors.Is(err, ring.ErrRateViolation):
		return "RateViolation", http.StatusBadRequest
	case errors.Is(err, ring.ErrZeroFill):
		return "ZeroFill", http.StatusConflict
	case errors.Is(err, ring.ErrInsufficientFee):
		return "InsufficientFee", http.StatusConflict
	case errors.Is(err, ring.ErrTransferFailed):
		return "TransferFailed", http.StatusConflict
	default:
		return "Internal", http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response: %s", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, map[string]string{
		"code":  code,
		"error": err.Error(),
	})
}
