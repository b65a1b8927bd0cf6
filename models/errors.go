package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures shown to the UI
type ErrorKind string

const (
	KindInsufficientFunds  ErrorKind = "InsufficientFunds"
	KindInsufficientShares ErrorKind = "InsufficientShares"
	KindNotMarketable      ErrorKind = "NotMarketable"
	KindFeedUnavailable    ErrorKind = "FeedUnavailable"
	KindInvalidIntent      ErrorKind = "InvalidIntent"
)

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNotMarketable      = errors.New("limit price does not cross the book")
	ErrFeedUnavailable    = errors.New("price feed unavailable")
	ErrInvalidIntent      = errors.New("invalid trade intent")
)

// InvalidIntentf returns an error wrapping ErrInvalidIntent with detail
func InvalidIntentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidIntent, fmt.Sprintf(format, args...))
}

// KindOf maps an error to its ErrorKind. Unknown errors map to the empty kind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrInsufficientShares):
		return KindInsufficientShares
	case errors.Is(err, ErrNotMarketable):
		return KindNotMarketable
	case errors.Is(err, ErrFeedUnavailable):
		return KindFeedUnavailable
	case errors.Is(err, ErrInvalidIntent):
		return KindInvalidIntent
	default:
		return ""
	}
}
