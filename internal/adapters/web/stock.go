package web

import (
	"context"
	"net/http"
	"strconv"

	"erp-ledger/internal/app"
	"erp-ledger/internal/core"

	"github.com/google/uuid"
)

type stockOp func(ctx context.Context, org uuid.UUID, actor string, req app.StockRequest) (*core.InventoryItem, error)

// stockHandler adapts one of the single-warehouse stock operations.
func (h *Handler) stockHandler(op stockOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req app.StockRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		item, err := op(r.Context(), orgFromContext(r.Context()), actorFromContext(r.Context()), req)
		h.respond(w, r, http.StatusOK, item, err)
	}
}

// receiveStock handles POST /api/stock/receive.
func (h *Handler) receiveStock(w http.ResponseWriter, r *http.Request) {
	h.stockHandler(h.svc.ReceiveStock)(w, r)
}

// reserveStock handles POST /api/stock/reserve.
func (h *Handler) reserveStock(w http.ResponseWriter, r *http.Request) {
	h.stockHandler(h.svc.ReserveStock)(w, r)
}

// releaseStock handles POST /api/stock/release.
func (h *Handler) releaseStock(w http.ResponseWriter, r *http.Request) {
	h.stockHandler(h.svc.ReleaseStock)(w, r)
}

// confirmOutgoing handles POST /api/stock/confirm-outgoing.
func (h *Handler) confirmOutgoing(w http.ResponseWriter, r *http.Request) {
	h.stockHandler(h.svc.ConfirmOutgoing)(w, r)
}

// transferStock handles POST /api/stock/transfer.
func (h *Handler) transferStock(w http.ResponseWriter, r *http.Request) {
	var req app.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.TransferStock(r.Context(), orgFromContext(r.Context()), actorFromContext(r.Context()), req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// stockLevels handles GET /api/stock.
func (h *Handler) stockLevels(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetStockLevels(r.Context(), orgFromContext(r.Context()))
	h.respond(w, r, http.StatusOK, res, err)
}

// stockMoves handles GET /api/stock/moves?product_id=.
func (h *Handler) stockMoves(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.Atoi(r.URL.Query().Get("product_id"))
	if err != nil {
		writeError(w, r, "product_id query parameter must be an integer", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	res, err := h.svc.ListStockMoves(r.Context(), orgFromContext(r.Context()), productID)
	h.respond(w, r, http.StatusOK, res, err)
}
