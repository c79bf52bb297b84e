package errors

import (
	"errors"
	"fmt"
	"time"
)

// PipelineError is a structured pipeline failure with a stable code and the
// partition key it refers to. All core failures are deterministic and local
// to one key; there is no partial-success mode inside a single build.
type PipelineError struct {
	Code    string
	Message string
	Symbol  string
	Date    time.Time
	Err     error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause, if any.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by code so errors.Is works across instances
// carrying different partition keys.
func (e *PipelineError) Is(target error) bool {
	var pe *PipelineError
	if errors.As(target, &pe) {
		return e.Code == pe.Code
	}
	return false
}

// Stable error codes for the derivation core.
const (
	CodeMissingSilverPartition = "MISSING_SILVER_PARTITION"
	CodeExpiryNotObserved      = "EXPIRY_NOT_OBSERVED"
	CodeCalendarExhausted      = "CALENDAR_EXHAUSTED"
	CodeFetchFailed            = "FETCH_FAILED"
	CodeParseFailed            = "PARSE_FAILED"
	CodeStorage                = "STORAGE_ERROR"
)

// Sentinels for errors.Is checks.
var (
	// ErrMissingSilverPartition: the base normalized extract is entirely
	// absent for a requested date. Distinct from "symbol absent that day",
	// which is an empty-but-successful result.
	ErrMissingSilverPartition = &PipelineError{Code: CodeMissingSilverPartition, Message: "silver base partition missing"}

	// ErrExpiryNotObserved: the requested expiry never appears in the
	// derived chain for the symbol.
	ErrExpiryNotObserved = &PipelineError{Code: CodeExpiryNotObserved, Message: "expiry not observed in chain"}

	// ErrCalendarExhausted: no trading day found inside the forward-scan
	// bound. Guards against unbounded scans over empty or corrupt history.
	ErrCalendarExhausted = &PipelineError{Code: CodeCalendarExhausted, Message: "no trading day within scan bound"}
)

// MissingSilverPartition builds the fatal error for a date whose base
// partition does not exist.
func MissingSilverPartition(table string, date time.Time) *PipelineError {
	return &PipelineError{
		Code:    CodeMissingSilverPartition,
		Message: fmt.Sprintf("silver partition %s missing for %s", table, date.Format("2006-01-02")),
		Date:    date,
	}
}

// ExpiryNotObserved builds the fatal error for an expiry outside the chain.
func ExpiryNotObserved(symbol string, expiry time.Time) *PipelineError {
	return &PipelineError{
		Code:    CodeExpiryNotObserved,
		Message: fmt.Sprintf("expiry %s not observed for %s", expiry.Format("2006-01-02"), symbol),
		Symbol:  symbol,
		Date:    expiry,
	}
}

// CalendarExhausted builds the fatal error for a forward scan that found no
// trading day within the bound.
func CalendarExhausted(after time.Time, boundDays int) *PipelineError {
	return &PipelineError{
		Code:    CodeCalendarExhausted,
		Message: fmt.Sprintf("no trading day within %d days after %s", boundDays, after.Format("2006-01-02")),
		Date:    after,
	}
}

// FetchFailed wraps a download failure with its source URL.
func FetchFailed(url string, err error) *PipelineError {
	return &PipelineError{
		Code:    CodeFetchFailed,
		Message: fmt.Sprintf("fetch %s failed", url),
		Err:     err,
	}
}

// ParseFailed wraps a normalization failure with the offending path.
func ParseFailed(path string, err error) *PipelineError {
	return &PipelineError{
		Code:    CodeParseFailed,
		Message: fmt.Sprintf("parse %s failed", path),
		Err:     err,
	}
}

// Storage wraps a partition read/write failure.
func Storage(op string, err error) *PipelineError {
	return &PipelineError{
		Code:    CodeStorage,
		Message: fmt.Sprintf("storage error during %s", op),
		Err:     err,
	}
}
