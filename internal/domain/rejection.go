package domain

import "fmt"

// RejectionCode identifies why the ledger declined an operation. Rejections
// are expected business outcomes, not faults: callers branch on them instead
// of unwrapping errors.
type RejectionCode string

const (
	RejectInsufficientFunds       RejectionCode = "insufficient_funds"
	RejectBelowMinimumTradeAmount RejectionCode = "below_minimum_trade_amount"
	RejectPositionNotFound        RejectionCode = "position_not_found"
	RejectInsufficientQuantity    RejectionCode = "insufficient_quantity"
	RejectDiversificationCap      RejectionCode = "diversification_cap_reached"
	RejectDailyLossLimit          RejectionCode = "daily_loss_limit_reached"
	RejectPositionSideMismatch    RejectionCode = "position_side_mismatch"
	RejectPersistenceFailure      RejectionCode = "persistence_failure"
)

// Rejection carries the code and a human-readable reason for a declined
// operation.
type Rejection struct {
	Code    RejectionCode `json:"code"`
	Message string        `json:"message"`
}

// NewRejection builds a rejection with a formatted message
func NewRejection(code RejectionCode, format string, args ...interface{}) *Rejection {
	return &Rejection{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (r *Rejection) String() string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}
