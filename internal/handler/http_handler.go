package handler

import (
	"encoding/json"
	"net/http"

	"github.com/forwardsflow/be-cc-workflow/internal/engine"
	"github.com/forwardsflow/be-cc-workflow/internal/errors"
	"github.com/forwardsflow/be-cc-workflow/internal/logger"
	"github.com/forwardsflow/be-cc-workflow/internal/store"
)

// HTTPHandler exposes the workflow engine's boundary over HTTP. The actor id
// comes from the request payload / query string; authentication of that id is
// an external concern.
type HTTPHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(eng *engine.Engine, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		engine: eng,
		log:    log,
	}
}

// CreateCall handles capital call creation requests.
func (h *HTTPHandler) CreateCall(w http.ResponseWriter, r *http.Request) {
	var req engine.CreateCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	txn, err := h.engine.CreateCall(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, txn)
}

// GetCall handles transaction lookup requests.
func (h *HTTPHandler) GetCall(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Transaction ID is required", http.StatusBadRequest)
		return
	}

	txn, err := h.engine.GetTransaction(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, txn)
}

// ListCalls handles filtered transaction listings. Filters are mutually
// exclusive; status wins over bank over investor.
func (h *HTTPHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	var txns []*store.Transaction
	switch {
	case r.URL.Query().Get("status") != "":
		txns = h.engine.ListByStatus(r.Context(), store.Status(r.URL.Query().Get("status")))
	case r.URL.Query().Get("bank_id") != "":
		txns = h.engine.ListByBank(r.Context(), r.URL.Query().Get("bank_id"))
	case r.URL.Query().Get("investor_id") != "":
		txns = h.engine.ListByInvestor(r.Context(), r.URL.Query().Get("investor_id"))
	default:
		txns = h.engine.ListTransactions(r.Context())
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txns,
		"total":        len(txns),
	})
}

// PublishCall handles publish requests.
func (h *HTTPHandler) PublishCall(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      string `json:"id"`
		ActorID string `json:"actor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	txn, err := h.engine.PublishCall(r.Context(), req.ID, req.ActorID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, txn)
}

// RespondToCall handles investor responses.
func (h *HTTPHandler) RespondToCall(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID         string `json:"id"`
		InvestorID string `json:"investor_id"`
		engine.RespondRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	txn, err := h.engine.RespondToCall(r.Context(), req.ID, req.InvestorID, &req.RespondRequest)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, txn)
}

// AcceptResponse handles bank-side acceptance of an investor response.
func (h *HTTPHandler) AcceptResponse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      string `json:"id"`
		ActorID string `json:"actor_id"`
		engine.AcceptResponseRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	txn, err := h.engine.AcceptResponse(r.Context(), req.ID, req.ActorID, &req.AcceptResponseRequest)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, txn)
}

// SubmitSettlementDetails handles settlement instruction submissions.
func (h *HTTPHandler) SubmitSettlementDetails(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      string `json:"id"`
		ActorID string `json:"actor_id"`
		engine.SettlementDetailsRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	txn, err := h.engine.SubmitSettlementDetails(r.Context(), req.ID, req.ActorID, &req.SettlementDetailsRequest)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, txn)
}

// SubmitRepatriationAccount handles repatriation account submissions.
func (h *HTTPHandler) SubmitRepatriationAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      string `json:"id"`
		ActorID string `json:"actor_id"`
		engine.RepatriationAccountRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	txn, err := h.engine.SubmitRepatriationAccount(r.Context(), req.ID, req.ActorID, &req.RepatriationAccountRequest)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, txn)
}

// SubmitKYC handles KYC document submissions.
func (h *HTTPHandler) SubmitKYC(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      string `json:"id"`
		ActorID string `json:"actor_id"`
		engine.SubmitKYCRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	txn, err := h.engine.SubmitKYCDetails(r.Context(), req.ID, req.ActorID, &req.SubmitKYCRequest)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, txn)
}

// ApproveKYC handles compliance approval requests.
func (h *HTTPHandler) ApproveKYC(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      string `json:"id"`
		ActorID string `json:"actor_id"`
		engine.ApproveKYCRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	txn, err := h.engine.ApproveKYC(r.Context(), req.ID, req.ActorID, &req.ApproveKYCRequest)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, txn)
}

// ProcessSettlement handles settlement confirmations.
func (h *HTTPHandler) ProcessSettlement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      string `json:"id"`
		ActorID string `json:"actor_id"`
		engine.ProcessSettlementRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	txn, err := h.engine.ProcessSettlement(r.Context(), req.ID, req.ActorID, &req.ProcessSettlementRequest)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, txn)
}

// CancelCall handles bank-side withdrawal of a call.
func (h *HTTPHandler) CancelCall(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      string `json:"id"`
		ActorID string `json:"actor_id"`
		Reason  string `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	txn, err := h.engine.CancelCall(r.Context(), req.ID, req.ActorID, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, txn)
}

// GetProgress handles workflow progress lookups.
func (h *HTTPHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Transaction ID is required", http.StatusBadRequest)
		return
	}

	progress, err := h.engine.GetProgress(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, progress)
}

// ListNotifications handles notification queries for a recipient.
func (h *HTTPHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	recipientID := r.URL.Query().Get("recipient_id")
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications := h.engine.GetNotifications(r.Context(), role, recipientID, unreadOnly)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"notifications": notifications,
		"total":         len(notifications),
	})
}

// MarkNotificationRead flips a single notification's read flag.
func (h *HTTPHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.engine.MarkNotificationRead(r.Context(), req.ID); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// ListPortfolio handles portfolio entry queries.
func (h *HTTPHandler) ListPortfolio(w http.ResponseWriter, r *http.Request) {
	holderID := r.URL.Query().Get("holder_id")
	entries := h.engine.GetPortfolioEntries(r.Context(), holderID)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   len(entries),
	})
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn().Err(err).Msg("failed to encode response body")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errors.HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":  string(errors.CodeOf(err)),
		"error": err.Error(),
	})
}
