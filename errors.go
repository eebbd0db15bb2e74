package tagcache

import (
	"errors"
	"fmt"
)

var (
	// ErrNoHandlers is returned by NewComposite without handlers.
	ErrNoHandlers = errors.New("tagcache: composite needs at least one handler")
	// ErrBadStrategyIndex is returned when a SetStrategy picks a handler that does not exist.
	ErrBadStrategyIndex = errors.New("tagcache: set strategy returned an out of range index")
)

// DecodeError reports an entry that could not be decoded. The stored bytes
// have been discarded by the time the caller sees it.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PartialWriteError reports a mutation that touches both the value key and
// the tag ledger where at least one side failed. Either side may already have
// been applied.
type PartialWriteError struct {
	Op        string
	Key       string
	ValueErr  error
	LedgerErr error
}

func (e *PartialWriteError) Error() string {
	switch {
	case e.ValueErr != nil && e.LedgerErr != nil:
		return fmt.Sprintf("%s %q failed: value and ledger failed: value=%v; ledger=%v",
			e.Op, e.Key, e.ValueErr, e.LedgerErr)
	case e.ValueErr != nil:
		return fmt.Sprintf("%s %q: value write failed: %v", e.Op, e.Key, e.ValueErr)
	case e.LedgerErr != nil:
		return fmt.Sprintf("%s %q: ledger write failed: %v", e.Op, e.Key, e.LedgerErr)
	default:
		return fmt.Sprintf("%s %q: unknown error", e.Op, e.Key)
	}
}

func (e *PartialWriteError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.ValueErr != nil {
		errs = append(errs, e.ValueErr)
	}
	if e.LedgerErr != nil {
		errs = append(errs, e.LedgerErr)
	}
	return errs
}

// partial returns nil when both sides succeeded.
func partial(op, key string, valueErr, ledgerErr error) error {
	if valueErr == nil && ledgerErr == nil {
		return nil
	}
	return &PartialWriteError{Op: op, Key: key, ValueErr: valueErr, LedgerErr: ledgerErr}
}
