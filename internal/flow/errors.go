package flow

import (
	"errors"
	"fmt"
)

// Failure kinds. Every failed run wraps exactly one of these, except for
// unexpected transport or cancellation errors which carry no kind.
var (
	ErrDriverNotFound    = errors.New("browser executable not found")
	ErrElementNotFound   = errors.New("element not found")
	ErrNavigationTimeout = errors.New("navigation timeout")
	ErrAssertionFailed   = errors.New("assertion failed")
)

// Kind labels returned by KindOf.
const (
	KindDriverNotFound    = "driver_not_found"
	KindElementNotFound   = "element_not_found"
	KindNavigationTimeout = "navigation_timeout"
	KindAssertionFailed   = "assertion_failed"
	KindUnexpected        = "unexpected"
)

// StepError reports which step of the flow failed and why.
type StepError struct {
	Step     string
	Selector string
	Kind     error // one of the Err* sentinels, or nil
	Err      error
}

func (e *StepError) Error() string {
	var prefix string
	switch {
	case e.Kind != nil && e.Selector != "":
		prefix = fmt.Sprintf("%s: %v (%s)", e.Step, e.Kind, e.Selector)
	case e.Kind != nil:
		prefix = fmt.Sprintf("%s: %v", e.Step, e.Kind)
	case e.Selector != "":
		prefix = fmt.Sprintf("%s (%s)", e.Step, e.Selector)
	default:
		prefix = e.Step
	}
	if e.Err == nil || e.Err == e.Kind {
		return prefix
	}
	return prefix + ": " + e.Err.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *StepError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf maps an error to the short label stored in run history.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDriverNotFound):
		return KindDriverNotFound
	case errors.Is(err, ErrElementNotFound):
		return KindElementNotFound
	case errors.Is(err, ErrNavigationTimeout):
		return KindNavigationTimeout
	case errors.Is(err, ErrAssertionFailed):
		return KindAssertionFailed
	default:
		return KindUnexpected
	}
}
