// Package validate collects per-field request validation failures so a bad
// commit or purchase body reports every problem at once. The Errs slice
// serializes as the details of a BAD_REQUEST envelope.
package validate

import (
	"strconv"
	"strings"
)

type ErrField struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

type Errs []ErrField

func (e Errs) Error() string {
	parts := make([]string, len(e))
	for i, ef := range e {
		parts[i] = ef.Field + ": " + ef.Msg
	}
	return strings.Join(parts, "; ")
}

// Required rejects empty and whitespace-only strings.
func Required(field, value string) *ErrField {
	if strings.TrimSpace(value) == "" {
		return &ErrField{Field: field, Msg: "required"}
	}
	return nil
}

// MinInt rejects values below min; token amounts use min=1 so a zero-token
// commit fails validation before it reaches the ledger.
func MinInt(field string, v, min int64) *ErrField {
	if v < min {
		return &ErrField{Field: field, Msg: "must be >= " + strconv.FormatInt(min, 10)}
	}
	return nil
}
