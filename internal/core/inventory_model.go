package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoveReason classifies a stock movement.
type MoveReason string

const (
	ReasonPurchase   MoveReason = "purchase"
	ReasonSale       MoveReason = "sale"
	ReasonTransfer   MoveReason = "transfer"
	ReasonAdjustment MoveReason = "adjustment"
	ReasonReturn     MoveReason = "return"
)

func (r MoveReason) valid() bool {
	switch r {
	case ReasonPurchase, ReasonSale, ReasonTransfer, ReasonAdjustment, ReasonReturn:
		return true
	}
	return false
}

// Product is the catalog view the ledger reads when defaulting line fields.
type Product struct {
	ID        int             `json:"id"`
	OrgID     uuid.UUID       `json:"org_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UOM       string          `json:"uom"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	Price     decimal.Decimal `json:"price"`
	CostPrice decimal.Decimal `json:"cost_price"`
	IsService bool            `json:"is_service"`
}

// InventoryItem is the on-hand/reserved balance for one (org, product, warehouse).
type InventoryItem struct {
	ID          int             `json:"id"`
	OrgID       uuid.UUID       `json:"org_id"`
	ProductID   int             `json:"product_id"`
	WarehouseID int             `json:"warehouse_id"`
	OnHand      decimal.Decimal `json:"qty_on_hand"`
	Reserved    decimal.Decimal `json:"qty_reserved"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Available is on-hand stock not held by a reservation.
func (i InventoryItem) Available() decimal.Decimal {
	return i.OnHand.Sub(i.Reserved)
}

// StockMove is an immutable record of a physical quantity change.
type StockMove struct {
	ID            int64           `json:"id"`
	OrgID         uuid.UUID       `json:"org_id"`
	ProductID     int             `json:"product_id"`
	Qty           decimal.Decimal `json:"qty"`
	UOM           string          `json:"uom"`
	WarehouseFrom *int            `json:"warehouse_from,omitempty"`
	WarehouseTo   *int            `json:"warehouse_to,omitempty"`
	Reason        MoveReason      `json:"reason"`
	RefType       string          `json:"ref_type"`
	RefID         string          `json:"ref_id"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// StockLevel is a read view of an inventory item joined with product and warehouse.
type StockLevel struct {
	ProductID     int             `json:"product_id"`
	SKU           string          `json:"sku"`
	ProductName   string          `json:"product_name"`
	WarehouseID   int             `json:"warehouse_id"`
	WarehouseCode string          `json:"warehouse_code"`
	OnHand        decimal.Decimal `json:"qty_on_hand"`
	Reserved      decimal.Decimal `json:"qty_reserved"`
	Available     decimal.Decimal `json:"qty_available"`
	CostPrice     decimal.Decimal `json:"cost_price"`
}

// StockRequest identifies a single-warehouse stock operation.
// Qty is unsigned; direction comes from the operation.
type StockRequest struct {
	OrgID       uuid.UUID
	ProductID   int
	WarehouseID int
	Qty         decimal.Decimal
	Reason      MoveReason
	RefType     string
	RefID       string
	CreatedBy   string
}

// TransferRequest moves stock between two warehouses of the same organization.
type TransferRequest struct {
	OrgID         uuid.UUID
	ProductID     int
	FromWarehouse int
	ToWarehouse   int
	Qty           decimal.Decimal
	RefType       string
	RefID         string
	CreatedBy     string
}
