// Package domain holds the error taxonomy shared across services and handlers.
//
// Every failure surfaced through the API carries a stable code string so
// clients can branch on it without parsing messages.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Stable error codes returned in the API envelope.
const (
	CodePortfolioNotFound     = "PORTFOLIO_NOT_FOUND"
	CodeItemNotFound          = "ITEM_NOT_FOUND"
	CodeTransactionNotFound   = "TRANSACTION_NOT_FOUND"
	CodePortfolioItemNotFound = "PORTFOLIO_ITEM_NOT_FOUND"
	CodeValidation            = "VALIDATION_ERROR"
	CodeInsufficientQuantity  = "INSUFFICIENT_QUANTITY"
	CodeInternal              = "INTERNAL_ERROR"
)

// NotFoundError indicates an entity lookup failed. Never retried.
type NotFoundError struct {
	Code   string // One of the *_NOT_FOUND codes
	Entity string // "portfolio", "item", "transaction"
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// NewPortfolioNotFound reports a missing portfolio
func NewPortfolioNotFound(id int64) *NotFoundError {
	return &NotFoundError{Code: CodePortfolioNotFound, Entity: "portfolio", ID: id}
}

// NewItemNotFound reports a missing portfolio item
func NewItemNotFound(id int64) *NotFoundError {
	return &NotFoundError{Code: CodeItemNotFound, Entity: "item", ID: id}
}

// NewTransactionNotFound reports a missing transaction
func NewTransactionNotFound(id int64) *NotFoundError {
	return &NotFoundError{Code: CodeTransactionNotFound, Entity: "transaction", ID: id}
}

// ValidationError carries per-field messages for malformed input.
// Raised before any store access.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a single-field validation error
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Add records another field failure and returns the error for chaining
func (e *ValidationError) Add(field, msg string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
	return e
}

// HasErrors reports whether any field failed
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// InsufficientQuantityError indicates a sell larger than the held position.
// Detected by the position engine before any write, so a failed sell leaves
// zero store mutations behind.
type InsufficientQuantityError struct {
	Symbol    string
	Requested float64
	Held      float64
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("cannot sell %g %s: only %g held", e.Requested, e.Symbol, e.Held)
}

// ReferentialIntegrityError indicates a cross-entity reference that does not
// hold, e.g. a transaction naming an item that belongs to another portfolio.
type ReferentialIntegrityError struct {
	Code    string
	Message string
}

func (e *ReferentialIntegrityError) Error() string {
	return e.Message
}

// NewPortfolioItemMismatch reports an item referenced under the wrong portfolio
func NewPortfolioItemMismatch(itemID, portfolioID int64) *ReferentialIntegrityError {
	return &ReferentialIntegrityError{
		Code:    CodePortfolioItemNotFound,
		Message: fmt.Sprintf("item %d does not belong to portfolio %d", itemID, portfolioID),
	}
}

// CodeOf maps any error to its stable envelope code.
// Unrecognized errors map to INTERNAL_ERROR.
func CodeOf(err error) string {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return CodeValidation
	}
	var iq *InsufficientQuantityError
	if errors.As(err, &iq) {
		return CodeInsufficientQuantity
	}
	var ri *ReferentialIntegrityError
	if errors.As(err, &ri) {
		return ri.Code
	}
	return CodeInternal
}
