package notify

import (
	"reflect"
	"time"

	"erp-ledger/internal/core"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
)

type invoicePaidEnvelope struct {
	Event      string                  `json:"event" jsonschema:"enum=invoice.paid"`
	OrgID      uuid.UUID               `json:"org_id"`
	OccurredAt time.Time               `json:"occurred_at"`
	Payload    core.InvoicePaidPayload `json:"payload"`
}

// EventSchemas returns the JSON Schema of every event envelope, keyed by event name.
func EventSchemas() map[string]*jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Mapper:                    mapLedgerTypes,
	}
	return map[string]*jsonschema.Schema{
		core.EventInvoicePaid: reflector.Reflect(invoicePaidEnvelope{}),
	}
}

var (
	uuidType    = reflect.TypeOf(uuid.UUID{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// mapLedgerTypes renders ids and money the way encoding/json emits them.
func mapLedgerTypes(t reflect.Type) *jsonschema.Schema {
	switch t {
	case uuidType:
		return &jsonschema.Schema{Type: "string", Format: "uuid"}
	case decimalType:
		return &jsonschema.Schema{Type: "string", Pattern: `^-?[0-9]+(\.[0-9]+)?$`}
	}
	return nil
}
