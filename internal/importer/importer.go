// Package importer reads transactions exported by older clients. Field names
// and value encodings changed over time; Normalize accepts every variant and
// produces one canonical Row.
package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lana/internal/dates"
	"lana/internal/models"
)

// Row is a canonical imported transaction. Amount is in cents.
type Row struct {
	Type            models.TransactionType
	Amount          int64
	Category        string
	Description     string
	Date            dates.Date
	PaymentReceived bool
	Recurring       bool
}

// RowError reports a row that could not be imported.
type RowError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// Field name variants, canonical name first.
var (
	typeKeys        = []string{"type", "kind", "tipo"}
	amountKeys      = []string{"amount", "monto"}
	categoryKeys    = []string{"category", "categoria"}
	descriptionKeys = []string{"description", "desc", "note", "descripcion"}
	dateKeys        = []string{"date", "fecha", "createdAt", "created_at"}
	paymentKeys     = []string{"payment_received", "paymentReceived", "paid", "isPaid"}
	recurringKeys   = []string{"recurring", "isRecurring", "is_recurring"}
)

// Normalize converts one legacy row. loc resolves timestamps to calendar
// days.
func Normalize(raw map[string]any, loc *time.Location) (Row, error) {
	var r Row
	var errs []error

	switch v := strings.ToLower(stringField(raw, typeKeys)); v {
	case "income", "ingreso":
		r.Type = models.TransactionTypeIncome
	case "expense", "gasto":
		r.Type = models.TransactionTypeExpense
	case "":
		errs = append(errs, errors.New("type is required"))
	default:
		errs = append(errs, fmt.Errorf("unknown type %q", v))
	}

	if v, ok := lookup(raw, amountKeys); ok {
		cents, err := parseAmount(v)
		if err != nil {
			errs = append(errs, err)
		}
		r.Amount = cents
	} else {
		errs = append(errs, errors.New("amount is required"))
	}

	if s := stringField(raw, dateKeys); s != "" {
		d, err := dates.Parse(s, loc)
		if err != nil {
			errs = append(errs, err)
		}
		r.Date = d
	} else {
		errs = append(errs, errors.New("date is required"))
	}

	r.Category = strings.TrimSpace(stringField(raw, categoryKeys))
	r.Description = strings.TrimSpace(stringField(raw, descriptionKeys))

	var err error
	if r.PaymentReceived, err = boolField(raw, paymentKeys); err != nil {
		errs = append(errs, err)
	}
	if r.Recurring, err = boolField(raw, recurringKeys); err != nil {
		errs = append(errs, err)
	}
	if r.Type == models.TransactionTypeExpense {
		r.PaymentReceived = false
	}

	return r, errors.Join(errs...)
}

// NormalizeAll converts rows, returning the valid ones and one RowError per
// rejected row.
func NormalizeAll(raws []map[string]any, loc *time.Location) ([]Row, []RowError) {
	rows := make([]Row, 0, len(raws))
	var rejected []RowError
	for i, raw := range raws {
		r, err := Normalize(raw, loc)
		if err != nil {
			rejected = append(rejected, RowError{Index: i, Message: strings.ReplaceAll(err.Error(), "\n", "; ")})
			continue
		}
		rows = append(rows, r)
	}
	return rows, rejected
}

func lookup(raw map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func stringField(raw map[string]any, keys []string) string {
	v, ok := lookup(raw, keys)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}

func boolField(raw map[string]any, keys []string) (bool, error) {
	v, ok := lookup(raw, keys)
	if !ok {
		return false, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case float64:
		return b != 0, nil
	case json.Number:
		return b.String() != "0", nil
	case string:
		s := strings.TrimSpace(strings.ToLower(b))
		switch s {
		case "", "no":
			return false, nil
		case "si", "sí", "yes":
			return true, nil
		}
		parsed, err := strconv.ParseBool(s)
		if err != nil {
			return false, fmt.Errorf("invalid boolean %q", b)
		}
		return parsed, nil
	}
	return false, fmt.Errorf("invalid boolean %v", v)
}

// parseAmount reads a decimal amount of currency units, as a JSON number or
// a string like "$1,234.50", and returns positive cents.
func parseAmount(v any) (int64, error) {
	var d decimal.Decimal
	switch a := v.(type) {
	case float64:
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return 0, fmt.Errorf("invalid amount %v", a)
		}
		d = decimal.NewFromFloat(a)
	case json.Number:
		parsed, err := decimal.NewFromString(a.String())
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", a)
		}
		d = parsed
	case string:
		s := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(a))
		parsed, err := decimal.NewFromString(s)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", a)
		}
		d = parsed
	default:
		return 0, fmt.Errorf("invalid amount %v", v)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount must be greater than zero, got %s", d)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}
