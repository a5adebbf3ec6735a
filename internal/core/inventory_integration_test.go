package core_test

import (
	"context"
	"errors"
	"testing"

	"erp-ledger/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func stockReq(org uuid.UUID, product, warehouse int, qty string) core.StockRequest {
	return core.StockRequest{
		OrgID:       org,
		ProductID:   product,
		WarehouseID: warehouse,
		Qty:         d(qty),
		CreatedBy:   "test",
	}
}

func requireStock(t *testing.T, ctx context.Context, s *services, product, warehouse int, onHand, reserved string) {
	t.Helper()
	item, err := s.stock.GetItem(ctx, orgA, product, warehouse)
	require.NoError(t, err)
	assert.True(t, item.OnHand.Equal(d(onHand)), "on hand: want %s, got %s", onHand, item.OnHand)
	assert.True(t, item.Reserved.Equal(d(reserved)), "reserved: want %s, got %s", reserved, item.Reserved)
}

func TestStock_ReceiveCreatesItemAndMove(t *testing.T) {
	s, ctx := setupServices(t)

	req := stockReq(orgA, widgetA, mainWH, "10")
	req.Reason = core.ReasonPurchase
	req.RefType, req.RefID = "manual", "R-1"
	item, err := s.stock.Receive(ctx, req)
	require.NoError(t, err)
	assert.True(t, item.OnHand.Equal(d("10")))
	assert.True(t, item.Reserved.IsZero())

	moves, err := s.stock.ListMoves(ctx, orgA, widgetA)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.True(t, moves[0].Qty.Equal(d("10")))
	assert.Equal(t, core.ReasonPurchase, moves[0].Reason)
	assert.Equal(t, "unidad", moves[0].UOM)
	assert.Nil(t, moves[0].WarehouseFrom)
	require.NotNil(t, moves[0].WarehouseTo)
	assert.Equal(t, mainWH, *moves[0].WarehouseTo)
	assert.Equal(t, "R-1", moves[0].RefID)
}

func TestStock_ReceiveDefaultsToAdjustment(t *testing.T) {
	s, ctx := setupServices(t)

	_, err := s.stock.Receive(ctx, stockReq(orgA, widgetA, mainWH, "1"))
	require.NoError(t, err)
	moves, err := s.stock.ListMoves(ctx, orgA, widgetA)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, core.ReasonAdjustment, moves[0].Reason)
}

func TestStock_RejectsInvalidQuantities(t *testing.T) {
	s, ctx := setupServices(t)

	for _, qty := range []string{"0", "-1", "0.0005"} {
		_, err := s.stock.Receive(ctx, stockReq(orgA, widgetA, mainWH, qty))
		assert.ErrorIs(t, err, core.ErrValidation, "receive %s", qty)
		_, err = s.stock.Reserve(ctx, stockReq(orgA, widgetA, mainWH, qty))
		assert.ErrorIs(t, err, core.ErrValidation, "reserve %s", qty)
	}
}

func TestStock_ReserveReleaseConfirm(t *testing.T) {
	s, ctx := setupServices(t)

	_, err := s.stock.Receive(ctx, stockReq(orgA, widgetA, mainWH, "10"))
	require.NoError(t, err)

	_, err = s.stock.Reserve(ctx, stockReq(orgA, widgetA, mainWH, "4"))
	require.NoError(t, err)
	requireStock(t, ctx, s, widgetA, mainWH, "10", "4")

	// Only 6 remain available.
	_, err = s.stock.Reserve(ctx, stockReq(orgA, widgetA, mainWH, "7"))
	assert.ErrorIs(t, err, core.ErrInsufficientStock)
	requireStock(t, ctx, s, widgetA, mainWH, "10", "4")

	// Releasing more than is reserved clamps at zero.
	_, err = s.stock.ReleaseReservation(ctx, stockReq(orgA, widgetA, mainWH, "9"))
	require.NoError(t, err)
	requireStock(t, ctx, s, widgetA, mainWH, "10", "0")

	_, err = s.stock.Reserve(ctx, stockReq(orgA, widgetA, mainWH, "5"))
	require.NoError(t, err)

	// Confirming consumes the reservation first.
	item, err := s.stock.ConfirmOutgoing(ctx, stockReq(orgA, widgetA, mainWH, "3"))
	require.NoError(t, err)
	assert.True(t, item.OnHand.Equal(d("7")))
	assert.True(t, item.Reserved.Equal(d("2")))

	moves, err := s.stock.ListMoves(ctx, orgA, widgetA)
	require.NoError(t, err)
	require.Len(t, moves, 2, "reservations do not log moves")
	assert.True(t, moves[1].Qty.Equal(d("-3")))
	assert.Equal(t, core.ReasonSale, moves[1].Reason)
}

func TestStock_ConfirmOutgoingInsufficientLeavesNoTrace(t *testing.T) {
	s, ctx := setupServices(t)

	_, err := s.stock.Receive(ctx, stockReq(orgA, widgetA, mainWH, "2"))
	require.NoError(t, err)

	_, err = s.stock.ConfirmOutgoing(ctx, stockReq(orgA, widgetA, mainWH, "3"))
	require.ErrorIs(t, err, core.ErrInsufficientStock)

	requireStock(t, ctx, s, widgetA, mainWH, "2", "0")
	moves, err := s.stock.ListMoves(ctx, orgA, widgetA)
	require.NoError(t, err)
	assert.Len(t, moves, 1)
}

func TestStock_Transfer(t *testing.T) {
	s, ctx := setupServices(t)

	_, err := s.stock.Receive(ctx, stockReq(orgA, widgetA, mainWH, "10"))
	require.NoError(t, err)

	err = s.stock.Transfer(ctx, core.TransferRequest{
		OrgID: orgA, ProductID: widgetA, FromWarehouse: mainWH, ToWarehouse: secondWH,
		Qty: d("4"), RefType: "manual", RefID: "T-1", CreatedBy: "test",
	})
	require.NoError(t, err)
	requireStock(t, ctx, s, widgetA, mainWH, "6", "0")
	requireStock(t, ctx, s, widgetA, secondWH, "4", "0")

	moves, err := s.stock.ListMoves(ctx, orgA, widgetA)
	require.NoError(t, err)
	require.Len(t, moves, 3)
	for _, m := range moves[1:] {
		assert.Equal(t, core.ReasonTransfer, m.Reason)
	}
	net := decimal.Zero
	for _, m := range moves {
		net = net.Add(m.Qty)
	}
	assert.True(t, net.Equal(d("10")), "transfers conserve total stock")

	err = s.stock.Transfer(ctx, core.TransferRequest{
		OrgID: orgA, ProductID: widgetA, FromWarehouse: secondWH, ToWarehouse: mainWH, Qty: d("5"),
	})
	assert.ErrorIs(t, err, core.ErrInsufficientStock)
	requireStock(t, ctx, s, widgetA, secondWH, "4", "0")
	requireStock(t, ctx, s, widgetA, mainWH, "6", "0")
}

func TestStock_TransferToSameWarehouseRejected(t *testing.T) {
	s, ctx := setupServices(t)

	err := s.stock.Transfer(ctx, core.TransferRequest{
		OrgID: orgA, ProductID: widgetA, FromWarehouse: mainWH, ToWarehouse: mainWH, Qty: d("1"),
	})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestStock_OpposingTransfersDoNotDeadlock(t *testing.T) {
	s, ctx := setupServices(t)

	_, err := s.stock.Receive(ctx, stockReq(orgA, widgetA, mainWH, "100"))
	require.NoError(t, err)
	_, err = s.stock.Receive(ctx, stockReq(orgA, widgetA, secondWH, "100"))
	require.NoError(t, err)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 10; i++ {
		from, to := mainWH, secondWH
		if i%2 == 1 {
			from, to = to, from
		}
		g.Go(func() error {
			return s.stock.Transfer(gctx, core.TransferRequest{
				OrgID: orgA, ProductID: widgetA, FromWarehouse: from, ToWarehouse: to, Qty: d("1"),
			})
		})
	}
	require.NoError(t, g.Wait())
	requireStock(t, ctx, s, widgetA, mainWH, "100", "0")
	requireStock(t, ctx, s, widgetA, secondWH, "100", "0")
}

func TestStock_ConcurrentReservationsNeverOversell(t *testing.T) {
	s, ctx := setupServices(t)

	_, err := s.stock.Receive(ctx, stockReq(orgA, widgetA, mainWH, "5"))
	require.NoError(t, err)

	results := make(chan error, 10)
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := s.stock.Reserve(ctx, stockReq(orgA, widgetA, mainWH, "1"))
			results <- err
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(results)

	ok, short := 0, 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, core.ErrInsufficientStock):
			short++
		default:
			t.Errorf("unexpected reserve error: %v", err)
		}
	}
	assert.Equal(t, 5, ok)
	assert.Equal(t, 5, short)
	requireStock(t, ctx, s, widgetA, mainWH, "5", "5")
}

func TestStock_CrossTenantReferencesRejected(t *testing.T) {
	s, ctx := setupServices(t)

	// Org B's product in org A's warehouse, and org A's product in org B's warehouse.
	_, err := s.stock.Receive(ctx, stockReq(orgA, widgetB, mainWH, "1"))
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.stock.Receive(ctx, stockReq(orgA, widgetA, mainWHB, "1"))
	assert.ErrorIs(t, err, core.ErrNotFound)

	levels, err := s.stock.GetStockLevels(ctx, orgA)
	require.NoError(t, err)
	assert.Empty(t, levels)
}

func TestStock_GetStockLevels(t *testing.T) {
	s, ctx := setupServices(t)

	_, err := s.stock.Receive(ctx, stockReq(orgA, widgetA, mainWH, "8"))
	require.NoError(t, err)
	_, err = s.stock.Reserve(ctx, stockReq(orgA, widgetA, mainWH, "3"))
	require.NoError(t, err)

	levels, err := s.stock.GetStockLevels(ctx, orgA)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, "W-1", levels[0].SKU)
	assert.Equal(t, "MAIN", levels[0].WarehouseCode)
	assert.True(t, levels[0].Available.Equal(d("5")))

	levelsB, err := s.stock.GetStockLevels(ctx, orgB)
	require.NoError(t, err)
	assert.Empty(t, levelsB)
}
