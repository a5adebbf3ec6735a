package app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"erp-ledger/internal/core"

	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names so messages match what the client sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check validates req and returns an error wrapping core.ErrValidation.
func check(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid request: %w", core.ErrValidation)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%s: %w", strings.Join(msgs, "; "), core.ErrValidation)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required", "required_without":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "datetime":
		return field + " must be a date formatted YYYY-MM-DD"
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", field, fe.Param())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// parseDate parses a validated YYYY-MM-DD string; blank yields the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, core.ErrValidation)
	}
	return t, nil
}

// parseOptionalDate is parseDate for nullable columns.
func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func toLineInputs(reqs []LineRequest) []core.LineInput {
	out := make([]core.LineInput, len(reqs))
	for i, r := range reqs {
		out[i] = core.LineInput{
			ProductID:   r.ProductID,
			Description: strings.TrimSpace(r.Description),
			Qty:         r.Qty,
			UOM:         strings.TrimSpace(r.UOM),
			UnitPrice:   r.UnitPrice,
			DiscountPct: r.DiscountPct,
			TaxRate:     r.TaxRate,
		}
	}
	return out
}

func toPaymentInput(req PaymentRequest) (core.PaymentInput, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return core.PaymentInput{}, err
	}
	return core.PaymentInput{
		Amount: req.Amount,
		Date:   date,
		Method: core.PaymentMethod(req.Method),
		Notes:  req.Notes,
	}, nil
}
