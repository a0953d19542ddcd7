package domain

import (
	"errors"
	"fmt"
)

var (
	ErrLifecycleViolation = errors.New("lifecycle violation")
	ErrBidRejected        = errors.New("bid rejected")
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrUndo               = errors.New("undo failed")
	ErrForbidden          = errors.New("forbidden")
	ErrClosed             = errors.New("auction controller closed")
)

// LifecycleError is an illegal state transition.
type LifecycleError struct {
	Action string
	From   Status
	Detail string
}

func (e *LifecycleError) Error() string {
	msg := fmt.Sprintf("lifecycle violation: cannot %s while %s", e.Action, e.From)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *LifecycleError) Is(target error) bool { return target == ErrLifecycleViolation }

// BidRejection is a refused bid with its disclosed reason.
type BidRejection struct {
	Reason   RejectReason
	TeamID   string
	Amount   int64
	Required int64
	MaxBid   int64
}

func (e *BidRejection) Error() string {
	switch e.Reason {
	case RejectIncorrectAmount:
		return fmt.Sprintf("bid rejected: %d is no longer the required increment (required %d)", e.Amount, e.Required)
	case RejectExceedsMaxBid:
		return fmt.Sprintf("bid rejected: %d exceeds max bid %d", e.Amount, e.MaxBid)
	case RejectAlreadyHighest:
		return "bid rejected: already highest bidder"
	}
	return "bid rejected: " + string(e.Reason)
}

func (e *BidRejection) Is(target error) bool { return target == ErrBidRejected }

// Code maps an error to the short code reported to clients.
func Code(err error) string {
	var rej *BidRejection
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rej):
		return string(rej.Reason)
	case errors.Is(err, ErrLifecycleViolation):
		return "lifecycle_violation"
	case errors.Is(err, ErrBidRejected):
		return "bid_rejected"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUndo):
		return "undo_failed"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrClosed):
		return "closed"
	}
	return "internal_error"
}
