package repositories

import "fmt"

// StockErrorCode enumerates repository error causes for stock mutations.
type StockErrorCode string

const (
	// StockErrorUnknown represents an unspecified failure.
	StockErrorUnknown StockErrorCode = "stock_unknown"
	// StockErrorInsufficient indicates a decrement would drive stock below zero.
	StockErrorInsufficient StockErrorCode = "stock_insufficient"
	// StockErrorProductNotFound indicates the product document is missing or inactive.
	StockErrorProductNotFound StockErrorCode = "stock_product_not_found"
	// StockErrorVariantNotFound indicates the referenced variant is missing or inactive.
	StockErrorVariantNotFound StockErrorCode = "stock_variant_not_found"
)

// StockError wraps stock-specific failures with machine readable codes. The
// ProductID and VariantID name the offending line so callers can report which
// item is short.
type StockError struct {
	Op        string
	Code      StockErrorCode
	ProductID string
	VariantID string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *StockError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *StockError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewStockError constructs a typed stock error.
func NewStockError(code StockErrorCode, productID, variantID, message string) *StockError {
	if message == "" {
		message = string(code)
	}
	return &StockError{
		Code:      code,
		ProductID: productID,
		VariantID: variantID,
		Message:   message,
	}
}
