package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/petalworks/blossom/internal/domain"
)

// handleBalance returns the current wallet snapshot.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance":        s.ledger.Balance(),
		"new_user":       s.ledger.IsNewUser(),
		"free_uses":      s.gate.FreeUsesRemaining(),
		"today_spending": s.ledger.TodaySpending(),
		"today_recharge": s.ledger.TodayRecharge(),
	})
}

// handleTransactions returns the retained log, most recent first.
// ?limit=N caps the page; limit 0 or absent returns everything retained.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	txs := s.ledger.Transactions(limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

type purchaseRequest struct {
	PurchaseID string `json:"purchase_id"`
	ProductID  string `json:"product_id"`
	Verified   bool   `json:"verified"`
}

// handlePurchase fulfills one verified store purchase. Redeliveries answer
// 200 like first deliveries; the client cannot tell and should not care.
func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PurchaseID == "" || req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "purchase_id and product_id are required")
		return
	}

	err := s.fulfiller.HandleEvent(r.Context(), domain.PurchaseEvent{
		PurchaseID: req.PurchaseID,
		ProductID:  req.ProductID,
		Verified:   req.Verified,
	})
	switch {
	case errors.Is(err, domain.ErrVerificationFailed):
		writeError(w, http.StatusBadRequest, "purchase is not verified")
		return
	case errors.Is(err, domain.ErrUnknownProduct):
		writeError(w, http.StatusBadRequest, "unknown product: "+req.ProductID)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"balance": s.ledger.Balance(),
	})
}
