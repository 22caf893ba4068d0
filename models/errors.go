package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmdatafocus/stockcycle_backend/utils"
	"github.com/shopspring/decimal"
)

// ErrorKind is the user-facing category every engine error maps to.
type ErrorKind string

const (
	ErrorKindValidation   ErrorKind = "validation"
	ErrorKindPrecondition ErrorKind = "precondition"
	ErrorKindIntegrity    ErrorKind = "integrity"
	ErrorKindTransport    ErrorKind = "transport"
	ErrorKindParse        ErrorKind = "parse"
	ErrorKindInternal     ErrorKind = "internal"
)

// validation rules, reported on ValidationError.Rule
const (
	RuleRequired         = "required"
	RuleType             = "type"
	RuleNegative         = "negative"
	RuleGreaterThanZero  = "greater_than_zero"
	RuleExceedsMaximum   = "exceeds_maximum"
	RuleFinalNegative    = "final_negative"
	RuleExceedsAvailable = "exceeds_available"
	RuleDuplicate        = "duplicate"
	RuleInvalidMode      = "invalid_mode"
	RuleOutOfRange       = "out_of_range"
)

type kinded interface {
	Kind() ErrorKind
}

// KindOf returns the category of err, ErrorKindInternal for anything untyped.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, utils.ErrInventoryLocked) {
		return ErrorKindPrecondition
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return ErrorKindInternal
}

// ValidationError is a user-correctable problem with one named field.
type ValidationError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Kind() ErrorKind { return ErrorKindValidation }

// checkRange refuses values a decimal(20,2) column cannot hold.
func checkRange(field string, d decimal.Decimal) error {
	if !utils.InStorableRange(d) {
		return newValidationError(field, RuleOutOfRange, "%s is out of range", field)
	}
	return nil
}

func newValidationError(field, rule, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// SchemaError collects every violation found while validating an import; nothing is imported.
type SchemaError struct {
	Violations []*ValidationError `json:"violations"`
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Error())
	}
	return "invalid inventory file: " + strings.Join(parts, "; ")
}

func (e *SchemaError) Kind() ErrorKind { return ErrorKindValidation }

// NegativeValueError describes one negative field found in a payload.
type NegativeValueError struct {
	ProductCode   string          `json:"product_code"`
	Field         string          `json:"field"`
	OriginalValue decimal.Decimal `json:"original_value"`
	AbsoluteValue decimal.Decimal `json:"absolute_value"`
}

// NegativeValuesError blocks an export or import until a correction mode is chosen.
type NegativeValuesError struct {
	Values []NegativeValueError `json:"values"`
}

func (e *NegativeValuesError) Error() string {
	return fmt.Sprintf("%d negative value(s) must be corrected first", len(e.Values))
}

func (e *NegativeValuesError) Kind() ErrorKind { return ErrorKindValidation }

// PreconditionError aborts an operation cleanly with a guiding message.
type PreconditionError struct {
	Condition string `json:"condition"`
	Message   string `json:"message"`
}

func (e *PreconditionError) Error() string { return e.Message }

func (e *PreconditionError) Kind() ErrorKind { return ErrorKindPrecondition }

var (
	ErrNoActiveInventory = &PreconditionError{Condition: "no_active_inventory", Message: "there is no active inventory"}
	ErrNoProductSelected = &PreconditionError{Condition: "no_product_selected", Message: "select a product first"}
	ErrImportCancelled   = &PreconditionError{Condition: "import_not_confirmed", Message: "import was not confirmed"}
	ErrProductChanged    = &PreconditionError{Condition: "product_changed", Message: "product changed since the adjustment started; start it again"}
)

// IntegrityError reports an entity referenced by id that does not exist.
type IntegrityError struct {
	Entity string `json:"entity"`
	Id     int    `json:"id"`
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.Id)
}

func (e *IntegrityError) Kind() ErrorKind { return ErrorKindIntegrity }

// TransportError is the terminal failure of the export hand-off after all attempts.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("export hand-off failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Kind() ErrorKind { return ErrorKindTransport }

// ParseError means the import text is not JSON even after repair.
type ParseError struct {
	Stage string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed file (%s): %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Kind() ErrorKind { return ErrorKindParse }
