package validation

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Generic codes shared by every resource. Domain packages define their own
// codes alongside these.
const (
	CodeRequired = "required"
	CodeInvalid  = "invalid"
	CodeTooShort = "too_short"
	CodeTooLong  = "too_long"
	CodeRange    = "out_of_range"
	CodeTaken    = "taken"
	CodeNotFound = "not_found"
)

// FieldError is one rejected attribute.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Errors accumulates every failed check for a record. A nil or empty Errors
// means the record is valid.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		if fe.Field == "" || fe.Field == "base" {
			parts = append(parts, fe.Message)
			continue
		}
		parts = append(parts, fe.Field+" "+fe.Message)
	}
	return strings.Join(parts, "; ")
}

func (e *Errors) Add(field, code, message string) {
	*e = append(*e, FieldError{Field: field, Code: code, Message: message})
}

// Merge appends other to e.
func (e *Errors) Merge(other Errors) {
	*e = append(*e, other...)
}

// Has reports whether any entry carries code.
func (e Errors) Has(code string) bool {
	for _, fe := range e {
		if fe.Code == code {
			return true
		}
	}
	return false
}

// On returns the entries for one field.
func (e Errors) On(field string) Errors {
	var out Errors
	for _, fe := range e {
		if fe.Field == field {
			out = append(out, fe)
		}
	}
	return out
}

// Codes lists every code in order, duplicates included.
func (e Errors) Codes() []string {
	codes := make([]string, len(e))
	for i, fe := range e {
		codes[i] = fe.Code
	}
	return codes
}

// Err returns nil when e is empty so callers can `return errs.Err()`.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// HTTPError renders errs as a 422 with body {"errors": [...]}.
func HTTPError(errs Errors) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]interface{}{"errors": errs})
}
