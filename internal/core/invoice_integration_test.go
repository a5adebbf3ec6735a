package core_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"erp-ledger/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func intPtr(i int) *int { return &i }

func decPtr(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

// hundredEuroInvoice is a draft for 10 widgets at catalog price with no tax, totalling 100.00.
func hundredEuroInvoice(t *testing.T, ctx context.Context, s *services) *core.Invoice {
	t.Helper()
	inv, err := s.invoices.CreateInvoice(ctx, core.CreateInvoiceInput{
		OrgID:      orgA,
		CustomerID: customerA,
		Lines: []core.LineInput{
			{ProductID: intPtr(widgetA), Qty: d("10"), TaxRate: decPtr("0")},
		},
	})
	require.NoError(t, err)
	require.True(t, inv.Total.Equal(d("100")), "fixture total: got %s", inv.Total)
	return inv
}

func postedInvoice(t *testing.T, ctx context.Context, s *services) *core.Invoice {
	t.Helper()
	inv := hundredEuroInvoice(t, ctx, s)
	posted, err := s.invoices.Post(ctx, orgA, inv.ID, "")
	require.NoError(t, err)
	return posted
}

func pay(amount string) core.PaymentInput {
	return core.PaymentInput{Amount: d(amount), Method: core.MethodTransfer}
}

func TestInvoice_CreateAppliesCatalogDefaults(t *testing.T) {
	s, ctx := setupServices(t)

	inv, err := s.invoices.CreateInvoice(ctx, core.CreateInvoiceInput{
		OrgID:      orgA,
		CustomerID: customerA,
		Lines: []core.LineInput{
			{ProductID: intPtr(widgetA), Qty: d("2")},
			{ProductID: intPtr(serviceA), Qty: d("1.5"), DiscountPct: d("10")},
			{Description: "Shipping", Qty: d("1"), UnitPrice: decPtr("5")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, core.StatusDraft, inv.Status)
	assert.Equal(t, core.PaymentUnpaid, inv.PaymentStatus)
	assert.Equal(t, "EUR", inv.Currency)
	assert.Empty(t, inv.DisplayNumber())
	require.Len(t, inv.Lines, 3)

	assert.Equal(t, "Widget", inv.Lines[0].Description)
	assert.True(t, inv.Lines[0].UnitPrice.Equal(d("10")))
	assert.True(t, inv.Lines[0].TaxRate.Equal(d("21")))
	assert.Equal(t, "hora", inv.Lines[1].UOM)
	assert.True(t, inv.Lines[1].LineBase.Equal(d("67.50")))
	assert.Equal(t, "unidad", inv.Lines[2].UOM)
	assert.True(t, inv.Lines[2].TaxRate.Equal(d("21")))

	// 20 + 5 at 21%, 67.50 at 10%.
	assert.True(t, inv.TotalsBase.Equal(d("92.50")), "base %s", inv.TotalsBase)
	assert.True(t, inv.TotalsTax.Equal(d("12.00")), "tax %s", inv.TotalsTax)
	assert.True(t, inv.Total.Equal(d("104.50")), "total %s", inv.Total)
	for i, l := range inv.Lines {
		assert.Equal(t, i+1, l.Position)
	}
}

func TestInvoice_CreateValidatesLinesAndTenant(t *testing.T) {
	s, ctx := setupServices(t)

	tests := []struct {
		name string
		in   core.CreateInvoiceInput
		want error
	}{
		{"negative qty", core.CreateInvoiceInput{OrgID: orgA, CustomerID: customerA,
			Lines: []core.LineInput{{ProductID: intPtr(widgetA), Qty: d("-1")}}}, core.ErrValidation},
		{"discount over 100", core.CreateInvoiceInput{OrgID: orgA, CustomerID: customerA,
			Lines: []core.LineInput{{ProductID: intPtr(widgetA), Qty: d("1"), DiscountPct: d("101")}}}, core.ErrValidation},
		{"free text without description", core.CreateInvoiceInput{OrgID: orgA, CustomerID: customerA,
			Lines: []core.LineInput{{Qty: d("1"), UnitPrice: decPtr("1")}}}, core.ErrValidation},
		{"unit price finer than cents", core.CreateInvoiceInput{OrgID: orgA, CustomerID: customerA,
			Lines: []core.LineInput{{ProductID: intPtr(widgetA), Qty: d("3"), UnitPrice: decPtr("10.555")}}}, core.ErrValidation},
		{"quantity finer than thousandths", core.CreateInvoiceInput{OrgID: orgA, CustomerID: customerA,
			Lines: []core.LineInput{{ProductID: intPtr(widgetA), Qty: d("1.0005")}}}, core.ErrValidation},
		{"discount finer than hundredths", core.CreateInvoiceInput{OrgID: orgA, CustomerID: customerA,
			Lines: []core.LineInput{{ProductID: intPtr(widgetA), Qty: d("1"), DiscountPct: d("2.505")}}}, core.ErrValidation},
		{"tax rate finer than hundredths", core.CreateInvoiceInput{OrgID: orgA, CustomerID: customerA,
			Lines: []core.LineInput{{ProductID: intPtr(widgetA), Qty: d("1"), TaxRate: decPtr("21.001")}}}, core.ErrValidation},
		{"bad currency", core.CreateInvoiceInput{OrgID: orgA, CustomerID: customerA, Currency: "EURO"}, core.ErrValidation},
		{"customer of another org", core.CreateInvoiceInput{OrgID: orgA, CustomerID: customerB}, core.ErrNotFound},
		{"product of another org", core.CreateInvoiceInput{OrgID: orgA, CustomerID: customerA,
			Lines: []core.LineInput{{ProductID: intPtr(widgetB), Qty: d("1")}}}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.invoices.CreateInvoice(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	list, err := s.invoices.ListInvoices(ctx, orgA, "")
	require.NoError(t, err)
	assert.Empty(t, list, "failed creates must not leave drafts behind")
}

func TestInvoice_StoredLinesReproduceStoredTotals(t *testing.T) {
	s, ctx := setupServices(t)

	inv, err := s.invoices.CreateInvoice(ctx, core.CreateInvoiceInput{
		OrgID:      orgA,
		CustomerID: customerA,
		Lines: []core.LineInput{
			{ProductID: intPtr(widgetA), Qty: d("3"), UnitPrice: decPtr("10.55")},
			{ProductID: intPtr(widgetA), Qty: d("0.125"), UnitPrice: decPtr("19.99"), DiscountPct: d("12.5")},
			{ProductID: intPtr(serviceA), Qty: d("1.5"), DiscountPct: d("10")},
			{Description: "Reduced", Qty: d("7"), UnitPrice: decPtr("3.33"), TaxRate: decPtr("4")},
		},
	})
	require.NoError(t, err)
	inv, err = s.invoices.Post(ctx, orgA, inv.ID, core.DefaultInvoiceSeries)
	require.NoError(t, err)

	stored, err := s.invoices.GetInvoice(ctx, orgA, inv.ID)
	require.NoError(t, err)

	buckets := map[string]decimal.Decimal{}
	priced := make([]core.PricedLine, 0, len(stored.Lines))
	for _, l := range stored.Lines {
		pl := core.PricedLine{Qty: l.Qty, UnitPrice: l.UnitPrice, DiscountPct: l.DiscountPct, TaxRate: l.TaxRate}
		assert.True(t, core.LineBase(pl).Equal(l.LineBase), "line %d: stored base %s, recomputed %s",
			l.Position, l.LineBase, core.LineBase(pl))
		key := l.TaxRate.StringFixed(2)
		buckets[key] = buckets[key].Add(l.LineBase)
		priced = append(priced, pl)
	}
	sum := decimal.Zero
	for _, b := range buckets {
		sum = sum.Add(b)
	}
	assert.True(t, sum.Equal(stored.TotalsBase), "lines sum to %s, totals_base %s", sum, stored.TotalsBase)

	again := core.ComputeTotals(priced)
	assert.True(t, again.Base.Equal(stored.TotalsBase))
	assert.True(t, again.Tax.Equal(stored.TotalsTax))
	assert.True(t, again.Total.Equal(stored.Total))
}

func TestInvoice_DraftLineEditing(t *testing.T) {
	s, ctx := setupServices(t)
	inv := hundredEuroInvoice(t, ctx, s)

	inv, err := s.invoices.AddLines(ctx, orgA, inv.ID, []core.LineInput{
		{Description: "Setup fee", Qty: d("1"), UnitPrice: decPtr("20"), TaxRate: decPtr("0")},
	})
	require.NoError(t, err)
	require.Len(t, inv.Lines, 2)
	assert.Equal(t, 2, inv.Lines[1].Position)
	assert.True(t, inv.Total.Equal(d("120")))

	inv, err = s.invoices.ReplaceLines(ctx, orgA, inv.ID, []core.LineInput{
		{ProductID: intPtr(widgetA), Qty: d("1")},
	})
	require.NoError(t, err)
	require.Len(t, inv.Lines, 1)
	assert.True(t, inv.Total.Equal(d("12.10")))

	// A failing replace leaves the old lines in place.
	_, err = s.invoices.ReplaceLines(ctx, orgA, inv.ID, []core.LineInput{
		{ProductID: intPtr(widgetA), Qty: d("-5")},
	})
	require.ErrorIs(t, err, core.ErrValidation)
	inv, err = s.invoices.GetInvoice(ctx, orgA, inv.ID)
	require.NoError(t, err)
	require.Len(t, inv.Lines, 1)
	assert.True(t, inv.Total.Equal(d("12.10")))

	inv, err = s.invoices.RecomputeTotals(ctx, orgA, inv.ID)
	require.NoError(t, err)
	assert.True(t, inv.Total.Equal(d("12.10")))
}

func TestInvoice_PostAssignsNumberAndFreezes(t *testing.T) {
	s, ctx := setupServices(t)
	inv := hundredEuroInvoice(t, ctx, s)

	posted, err := s.invoices.Post(ctx, orgA, inv.ID, "")
	require.NoError(t, err)
	assert.Equal(t, core.StatusPosted, posted.Status)
	assert.Equal(t, core.DefaultInvoiceSeries, posted.Series)
	require.NotNil(t, posted.Number)
	require.NotNil(t, posted.Year)
	assert.Equal(t, 1, *posted.Number)
	assert.Equal(t, time.Now().Year(), *posted.Year)
	assert.Equal(t, core.FormatNumber("A", *posted.Year, 1), posted.DisplayNumber())
	assert.NotNil(t, posted.PostedAt)
	assert.Equal(t, "pending", posted.VerifactuStatus)

	_, err = s.invoices.AddLines(ctx, orgA, inv.ID, []core.LineInput{{Description: "late", Qty: d("1")}})
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = s.invoices.ReplaceLines(ctx, orgA, inv.ID, nil)
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = s.invoices.RecomputeTotals(ctx, orgA, inv.ID)
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = s.invoices.Post(ctx, orgA, inv.ID, "")
	assert.ErrorIs(t, err, core.ErrValidation)

	again, err := s.invoices.GetInvoice(ctx, orgA, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, posted.DisplayNumber(), again.DisplayNumber())
	assert.True(t, again.Total.Equal(posted.Total))
	assert.Len(t, again.Lines, 1)
}

func TestInvoice_PostRejectsEmptyInvoice(t *testing.T) {
	s, ctx := setupServices(t)

	inv, err := s.invoices.CreateInvoice(ctx, core.CreateInvoiceInput{OrgID: orgA, CustomerID: customerA})
	require.NoError(t, err)
	_, err = s.invoices.Post(ctx, orgA, inv.ID, "")
	require.ErrorIs(t, err, core.ErrValidation)

	// The failed post must not consume a number.
	next := hundredEuroInvoice(t, ctx, s)
	posted, err := s.invoices.Post(ctx, orgA, next.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, *posted.Number)
}

func TestInvoice_ConcurrentPostsAreGapless(t *testing.T) {
	s, ctx := setupServices(t)

	const n = 8
	ids := make([]int, n)
	for i := range ids {
		ids[i] = hundredEuroInvoice(t, ctx, s).ID
	}

	var (
		mu      sync.Mutex
		numbers []int
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			inv, err := s.invoices.Post(gctx, orgA, id, "A")
			if err != nil {
				return err
			}
			mu.Lock()
			numbers = append(numbers, *inv.Number)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	sort.Ints(numbers)
	for i, num := range numbers {
		assert.Equal(t, i+1, num)
	}
}

func TestInvoice_SeriesAreIndependent(t *testing.T) {
	s, ctx := setupServices(t)

	a := hundredEuroInvoice(t, ctx, s)
	r := hundredEuroInvoice(t, ctx, s)
	postedA, err := s.invoices.Post(ctx, orgA, a.ID, "A")
	require.NoError(t, err)
	postedR, err := s.invoices.Post(ctx, orgA, r.ID, "R")
	require.NoError(t, err)
	assert.Equal(t, 1, *postedA.Number)
	assert.Equal(t, 1, *postedR.Number)
	assert.Equal(t, "R", postedR.Series)
}

func TestInvoice_PaymentLifecycle(t *testing.T) {
	s, ctx := setupServices(t)
	inv := postedInvoice(t, ctx, s)

	p1, err := s.invoices.RegisterPayment(ctx, orgA, inv.ID, pay("40"))
	require.NoError(t, err)
	assert.Equal(t, core.MethodTransfer, p1.Method)
	inv, err = s.invoices.GetInvoice(ctx, orgA, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentPartial, inv.PaymentStatus)
	assert.True(t, inv.AmountPaid.Equal(d("40")))

	_, err = s.invoices.RegisterPayment(ctx, orgA, inv.ID, pay("60"))
	require.NoError(t, err)
	inv, err = s.invoices.GetInvoice(ctx, orgA, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentPaid, inv.PaymentStatus)
	require.Len(t, inv.Payments, 2)

	select {
	case ev := <-s.notifier.events:
		assert.Equal(t, core.EventInvoicePaid, ev.Name)
		assert.Equal(t, orgA, ev.OrgID)
		payload, ok := ev.Payload.(core.InvoicePaidPayload)
		require.True(t, ok)
		assert.Equal(t, inv.ID, payload.InvoiceID)
		assert.Equal(t, inv.DisplayNumber(), payload.Number)
		assert.True(t, payload.AmountPaid.Equal(d("100")))
	default:
		t.Fatal("expected an invoice.paid event")
	}

	_, err = s.invoices.RegisterPayment(ctx, orgA, inv.ID, pay("0.01"))
	assert.ErrorIs(t, err, core.ErrOverpayment)

	// Lowering a payment drops the invoice back to partial.
	_, err = s.invoices.UpdatePayment(ctx, orgA, p1.ID, pay("30"))
	require.NoError(t, err)
	inv, err = s.invoices.GetInvoice(ctx, orgA, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentPartial, inv.PaymentStatus)

	// Raising it past the total is rejected.
	_, err = s.invoices.UpdatePayment(ctx, orgA, p1.ID, pay("41"))
	assert.ErrorIs(t, err, core.ErrOverpayment)

	// Settling again fires a second event.
	_, err = s.invoices.UpdatePayment(ctx, orgA, p1.ID, pay("40"))
	require.NoError(t, err)
	select {
	case ev := <-s.notifier.events:
		assert.Equal(t, core.EventInvoicePaid, ev.Name)
	default:
		t.Fatal("expected a second invoice.paid event")
	}

	require.NoError(t, s.invoices.DeletePayment(ctx, orgA, p1.ID))
	inv, err = s.invoices.GetInvoice(ctx, orgA, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentPartial, inv.PaymentStatus)
	assert.True(t, inv.AmountPaid.Equal(d("60")))

	assert.ErrorIs(t, s.invoices.DeletePayment(ctx, orgA, p1.ID), core.ErrNotFound)
}

func TestInvoice_PaymentWithinToleranceSettles(t *testing.T) {
	s, ctx := setupServices(t)
	inv := postedInvoice(t, ctx, s)

	_, err := s.invoices.RegisterPayment(ctx, orgA, inv.ID, pay("99.99"))
	require.NoError(t, err)
	inv, err = s.invoices.GetInvoice(ctx, orgA, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentPaid, inv.PaymentStatus)

	_, err = s.invoices.RegisterPayment(ctx, orgA, inv.ID, pay("0.03"))
	assert.ErrorIs(t, err, core.ErrOverpayment)

	// Closing the last cent is still allowed.
	_, err = s.invoices.RegisterPayment(ctx, orgA, inv.ID, pay("0.01"))
	require.NoError(t, err)

	// Fully covered invoices accept nothing more, even within tolerance.
	_, err = s.invoices.RegisterPayment(ctx, orgA, inv.ID, pay("0.01"))
	assert.ErrorIs(t, err, core.ErrOverpayment)
}

func TestInvoice_PaymentValidation(t *testing.T) {
	s, ctx := setupServices(t)

	draft := hundredEuroInvoice(t, ctx, s)
	_, err := s.invoices.RegisterPayment(ctx, orgA, draft.ID, pay("10"))
	assert.ErrorIs(t, err, core.ErrValidation, "drafts cannot take payments")

	posted := postedInvoice(t, ctx, s)
	_, err = s.invoices.RegisterPayment(ctx, orgA, posted.ID, pay("0"))
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = s.invoices.RegisterPayment(ctx, orgA, posted.ID, pay("10.005"))
	assert.ErrorIs(t, err, core.ErrValidation, "amounts are stored to the cent")
	_, err = s.invoices.RegisterPayment(ctx, orgA, posted.ID, core.PaymentInput{Amount: d("5"), Method: "cheque"})
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = s.invoices.RegisterPayment(ctx, orgB, posted.ID, pay("5"))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestInvoice_ConcurrentPaymentsNeverOverpay(t *testing.T) {
	s, ctx := setupServices(t)
	inv := postedInvoice(t, ctx, s)

	var g errgroup.Group
	for i := 0; i < 5; i++ {
		g.Go(func() error {
			_, _ = s.invoices.RegisterPayment(ctx, orgA, inv.ID, pay("30"))
			return nil
		})
	}
	require.NoError(t, g.Wait())

	inv, err := s.invoices.GetInvoice(ctx, orgA, inv.ID)
	require.NoError(t, err)
	assert.Len(t, inv.Payments, 3)
	assert.True(t, inv.AmountPaid.Equal(d("90")))
	assert.Equal(t, core.PaymentPartial, inv.PaymentStatus)
}

func TestInvoice_Cancel(t *testing.T) {
	s, ctx := setupServices(t)

	draft := hundredEuroInvoice(t, ctx, s)
	cancelled, err := s.invoices.Cancel(ctx, orgA, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, cancelled.Status)
	_, err = s.invoices.Cancel(ctx, orgA, draft.ID)
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = s.invoices.Post(ctx, orgA, draft.ID, "")
	assert.ErrorIs(t, err, core.ErrValidation)

	paid := postedInvoice(t, ctx, s)
	_, err = s.invoices.RegisterPayment(ctx, orgA, paid.ID, pay("10"))
	require.NoError(t, err)
	_, err = s.invoices.Cancel(ctx, orgA, paid.ID)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestInvoice_TenantIsolation(t *testing.T) {
	s, ctx := setupServices(t)
	inv := hundredEuroInvoice(t, ctx, s)

	_, err := s.invoices.GetInvoice(ctx, orgB, inv.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.invoices.Post(ctx, orgB, inv.ID, "")
	assert.ErrorIs(t, err, core.ErrNotFound)

	list, err := s.invoices.ListInvoices(ctx, orgB, "")
	require.NoError(t, err)
	assert.Empty(t, list)

	drafts, err := s.invoices.ListInvoices(ctx, orgA, string(core.StatusDraft))
	require.NoError(t, err)
	assert.Len(t, drafts, 1)
}
