package web

import (
	"net/http"

	"erp-ledger/internal/app"
)

// createInvoice handles POST /api/invoices.
func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req app.CreateInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.CreateInvoice(r.Context(), orgFromContext(r.Context()), req)
	h.respond(w, r, http.StatusCreated, inv, err)
}

// listInvoices handles GET /api/invoices?status=.
func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListInvoices(r.Context(), orgFromContext(r.Context()), r.URL.Query().Get("status"))
	h.respond(w, r, http.StatusOK, res, err)
}

// getInvoice handles GET /api/invoices/{id}.
func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.GetInvoice(r.Context(), orgFromContext(r.Context()), id)
	h.respond(w, r, http.StatusOK, inv, err)
}

// addInvoiceLines handles POST /api/invoices/{id}/lines.
func (h *Handler) addInvoiceLines(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.LinesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.AddInvoiceLines(r.Context(), orgFromContext(r.Context()), id, req)
	h.respond(w, r, http.StatusOK, inv, err)
}

// replaceInvoiceLines handles PUT /api/invoices/{id}/lines.
func (h *Handler) replaceInvoiceLines(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.LinesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.ReplaceInvoiceLines(r.Context(), orgFromContext(r.Context()), id, req)
	h.respond(w, r, http.StatusOK, inv, err)
}

// postInvoice handles POST /api/invoices/{id}/post. The body is optional.
func (h *Handler) postInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.PostInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.PostInvoice(r.Context(), orgFromContext(r.Context()), id, req)
	h.respond(w, r, http.StatusOK, inv, err)
}

// cancelInvoice handles POST /api/invoices/{id}/cancel.
func (h *Handler) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.CancelInvoice(r.Context(), orgFromContext(r.Context()), id)
	h.respond(w, r, http.StatusOK, inv, err)
}

// registerPayment handles POST /api/invoices/{id}/payments.
func (h *Handler) registerPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.RegisterPayment(r.Context(), orgFromContext(r.Context()), id, req)
	h.respond(w, r, http.StatusCreated, p, err)
}

// updatePayment handles PUT /api/payments/{id}.
func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.UpdatePayment(r.Context(), orgFromContext(r.Context()), id, req)
	h.respond(w, r, http.StatusOK, p, err)
}

// deletePayment handles DELETE /api/payments/{id}.
func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeletePayment(r.Context(), orgFromContext(r.Context()), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
