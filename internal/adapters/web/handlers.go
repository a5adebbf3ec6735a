package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"erp-ledger/internal/app"
	"erp-ledger/internal/notify"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
)

// Options configures the HTTP surface.
type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	// RateLimit caps requests per tenant. A zero Limit disables limiting.
	RateLimit limiter.Rate
	Logger    logrus.FieldLogger
}

// Handler holds the ApplicationService and the request-scoped dependencies of
// every route.
type Handler struct {
	svc       app.ApplicationService
	jwtSecret []byte
	log       logrus.FieldLogger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	h := &Handler{
		svc:       svc,
		jwtSecret: []byte(opts.JWTSecret),
		log:       log,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(opts.AllowedOrigins))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Get("/api/events/schema", h.eventSchema)

	// ── Tenant API (org and actor come from the bearer token) ─────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		if opts.RateLimit.Limit > 0 {
			r.Use(RateLimit(limiter.New(newLimiterStore(), opts.RateLimit), log))
		}
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Route("/api/stock", func(r chi.Router) {
			r.Get("/", h.stockLevels)
			r.Get("/moves", h.stockMoves)
			r.Post("/receive", h.receiveStock)
			r.Post("/reserve", h.reserveStock)
			r.Post("/release", h.releaseStock)
			r.Post("/confirm-outgoing", h.confirmOutgoing)
			r.Post("/transfer", h.transferStock)
		})

		r.Route("/api/invoices", func(r chi.Router) {
			r.Get("/", h.listInvoices)
			r.Post("/", h.createInvoice)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getInvoice)
				r.Post("/lines", h.addInvoiceLines)
				r.Put("/lines", h.replaceInvoiceLines)
				r.Post("/post", h.postInvoice)
				r.Post("/cancel", h.cancelInvoice)
				r.Post("/payments", h.registerPayment)
			})
		})
		r.Put("/api/payments/{id}", h.updatePayment)
		r.Delete("/api/payments/{id}", h.deletePayment)

		r.Route("/api/quotes", func(r chi.Router) {
			r.Get("/", h.listQuotes)
			r.Post("/", h.createQuote)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getQuote)
				r.Post("/lines", h.addQuoteLines)
				r.Put("/lines", h.replaceQuoteLines)
				r.Post("/status", h.transitionQuote)
				r.Post("/convert", h.convertQuote)
			})
		})

		r.Route("/api/delivery-notes", func(r chi.Router) {
			r.Get("/", h.listDeliveryNotes)
			r.Post("/", h.createDeliveryNote)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getDeliveryNote)
				r.Post("/lines", h.addDeliveryNoteLines)
				r.Post("/confirm", h.confirmDeliveryNote)
			})
		})

		r.Route("/api/purchase-orders", func(r chi.Router) {
			r.Get("/", h.listPurchaseOrders)
			r.Post("/", h.createPurchaseOrder)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getPurchaseOrder)
				r.Post("/lines", h.addPurchaseOrderLines)
				r.Put("/lines", h.replacePurchaseOrderLines)
				r.Post("/send", h.sendPurchaseOrder)
				r.Post("/partially-received", h.partiallyReceivePurchaseOrder)
				r.Post("/received", h.receivePurchaseOrder)
				r.Post("/cancel", h.cancelPurchaseOrder)
			})
		})

		r.Route("/api/supplier-invoices", func(r chi.Router) {
			r.Get("/", h.listSupplierInvoices)
			r.Post("/", h.createSupplierInvoice)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getSupplierInvoice)
				r.Post("/lines", h.addSupplierInvoiceLines)
				r.Put("/lines", h.replaceSupplierInvoiceLines)
				r.Post("/post", h.postSupplierInvoice)
				r.Post("/cancel", h.cancelSupplierInvoice)
				r.Post("/payments", h.registerSupplierPayment)
			})
		})
		r.Put("/api/supplier-payments/{id}", h.updateSupplierPayment)
		r.Delete("/api/supplier-payments/{id}", h.deleteSupplierPayment)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// eventSchema publishes the JSON Schema of every outbound event so webhook
// consumers can validate payloads.
func (h *Handler) eventSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, notify.EventSchemas())
}

// pathID extracts the positive integer {id} URL parameter. On failure it
// writes a 400 and returns false.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, "id must be a positive integer", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors. An empty
// body leaves v at its zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
