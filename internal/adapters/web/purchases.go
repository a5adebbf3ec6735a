package web

import (
	"net/http"

	"erp-ledger/internal/app"
	"erp-ledger/internal/core"
)

// ── Purchase orders ───────────────────────────────────────────────────────────

func (h *Handler) createPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePurchaseOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	po, err := h.svc.CreatePurchaseOrder(r.Context(), orgFromContext(r.Context()), req)
	h.respond(w, r, http.StatusCreated, po, err)
}

func (h *Handler) listPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListPurchaseOrders(r.Context(), orgFromContext(r.Context()), r.URL.Query().Get("status"))
	h.respond(w, r, http.StatusOK, res, err)
}

func (h *Handler) getPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	po, err := h.svc.GetPurchaseOrder(r.Context(), orgFromContext(r.Context()), id)
	h.respond(w, r, http.StatusOK, po, err)
}

func (h *Handler) addPurchaseOrderLines(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.LinesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	po, err := h.svc.AddPurchaseOrderLines(r.Context(), orgFromContext(r.Context()), id, req)
	h.respond(w, r, http.StatusOK, po, err)
}

func (h *Handler) replacePurchaseOrderLines(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.LinesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	po, err := h.svc.ReplacePurchaseOrderLines(r.Context(), orgFromContext(r.Context()), id, req)
	h.respond(w, r, http.StatusOK, po, err)
}

// transitionPurchaseOrder returns a handler that moves the order to next.
func (h *Handler) transitionPurchaseOrder(next core.PurchaseOrderStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		po, err := h.svc.TransitionPurchaseOrder(r.Context(), orgFromContext(r.Context()), id, next)
		h.respond(w, r, http.StatusOK, po, err)
	}
}

func (h *Handler) sendPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	h.transitionPurchaseOrder(core.POSent)(w, r)
}

func (h *Handler) partiallyReceivePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	h.transitionPurchaseOrder(core.POPartiallyReceived)(w, r)
}

func (h *Handler) receivePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	h.transitionPurchaseOrder(core.POReceived)(w, r)
}

func (h *Handler) cancelPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	h.transitionPurchaseOrder(core.POCancelled)(w, r)
}

// ── Supplier invoices ─────────────────────────────────────────────────────────

func (h *Handler) createSupplierInvoice(w http.ResponseWriter, r *http.Request) {
	var req app.CreateSupplierInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	si, err := h.svc.CreateSupplierInvoice(r.Context(), orgFromContext(r.Context()), req)
	h.respond(w, r, http.StatusCreated, si, err)
}

func (h *Handler) listSupplierInvoices(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListSupplierInvoices(r.Context(), orgFromContext(r.Context()), r.URL.Query().Get("status"))
	h.respond(w, r, http.StatusOK, res, err)
}

func (h *Handler) getSupplierInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	si, err := h.svc.GetSupplierInvoice(r.Context(), orgFromContext(r.Context()), id)
	h.respond(w, r, http.StatusOK, si, err)
}

func (h *Handler) addSupplierInvoiceLines(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.LinesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	si, err := h.svc.AddSupplierInvoiceLines(r.Context(), orgFromContext(r.Context()), id, req)
	h.respond(w, r, http.StatusOK, si, err)
}

func (h *Handler) replaceSupplierInvoiceLines(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.LinesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	si, err := h.svc.ReplaceSupplierInvoiceLines(r.Context(), orgFromContext(r.Context()), id, req)
	h.respond(w, r, http.StatusOK, si, err)
}

// postSupplierInvoice handles POST /api/supplier-invoices/{id}/post, which
// receives the invoiced goods into stock.
func (h *Handler) postSupplierInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	si, err := h.svc.PostSupplierInvoice(r.Context(), orgFromContext(r.Context()), id, actorFromContext(r.Context()))
	h.respond(w, r, http.StatusOK, si, err)
}

func (h *Handler) cancelSupplierInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	si, err := h.svc.CancelSupplierInvoice(r.Context(), orgFromContext(r.Context()), id)
	h.respond(w, r, http.StatusOK, si, err)
}

func (h *Handler) registerSupplierPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.RegisterSupplierPayment(r.Context(), orgFromContext(r.Context()), id, req)
	h.respond(w, r, http.StatusCreated, p, err)
}

func (h *Handler) updateSupplierPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.UpdateSupplierPayment(r.Context(), orgFromContext(r.Context()), id, req)
	h.respond(w, r, http.StatusOK, p, err)
}

func (h *Handler) deleteSupplierPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteSupplierPayment(r.Context(), orgFromContext(r.Context()), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
