package web

import (
	"net/http"

	"erp-ledger/internal/app"
)

// ── Quotes ────────────────────────────────────────────────────────────────────

func (h *Handler) createQuote(w http.ResponseWriter, r *http.Request) {
	var req app.CreateQuoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	q, err := h.svc.CreateQuote(r.Context(), orgFromContext(r.Context()), req)
	h.respond(w, r, http.StatusCreated, q, err)
}

func (h *Handler) listQuotes(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListQuotes(r.Context(), orgFromContext(r.Context()), r.URL.Query().Get("status"))
	h.respond(w, r, http.StatusOK, res, err)
}

func (h *Handler) getQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q, err := h.svc.GetQuote(r.Context(), orgFromContext(r.Context()), id)
	h.respond(w, r, http.StatusOK, q, err)
}

func (h *Handler) addQuoteLines(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.LinesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	q, err := h.svc.AddQuoteLines(r.Context(), orgFromContext(r.Context()), id, req)
	h.respond(w, r, http.StatusOK, q, err)
}

func (h *Handler) replaceQuoteLines(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.LinesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	q, err := h.svc.ReplaceQuoteLines(r.Context(), orgFromContext(r.Context()), id, req)
	h.respond(w, r, http.StatusOK, q, err)
}

// transitionQuote handles POST /api/quotes/{id}/status with {"status": "..."}.
func (h *Handler) transitionQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.QuoteStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	q, err := h.svc.TransitionQuote(r.Context(), orgFromContext(r.Context()), id, req)
	h.respond(w, r, http.StatusOK, q, err)
}

// convertQuote handles POST /api/quotes/{id}/convert and returns the invoice.
func (h *Handler) convertQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.ConvertQuote(r.Context(), orgFromContext(r.Context()), id)
	h.respond(w, r, http.StatusOK, inv, err)
}

// ── Delivery notes ────────────────────────────────────────────────────────────

func (h *Handler) createDeliveryNote(w http.ResponseWriter, r *http.Request) {
	var req app.CreateDeliveryNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	dn, err := h.svc.CreateDeliveryNote(r.Context(), orgFromContext(r.Context()), req)
	h.respond(w, r, http.StatusCreated, dn, err)
}

func (h *Handler) listDeliveryNotes(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListDeliveryNotes(r.Context(), orgFromContext(r.Context()))
	h.respond(w, r, http.StatusOK, res, err)
}

func (h *Handler) getDeliveryNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	dn, err := h.svc.GetDeliveryNote(r.Context(), orgFromContext(r.Context()), id)
	h.respond(w, r, http.StatusOK, dn, err)
}

func (h *Handler) addDeliveryNoteLines(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.LinesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	dn, err := h.svc.AddDeliveryNoteLines(r.Context(), orgFromContext(r.Context()), id, req)
	h.respond(w, r, http.StatusOK, dn, err)
}

// confirmDeliveryNote handles POST /api/delivery-notes/{id}/confirm.
func (h *Handler) confirmDeliveryNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	dn, err := h.svc.ConfirmDeliveryNote(r.Context(), orgFromContext(r.Context()), id, actorFromContext(r.Context()))
	h.respond(w, r, http.StatusOK, dn, err)
}
