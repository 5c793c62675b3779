package fnal

// Error kinds and the not-found wire-pattern classifier, matching the
// teacher's convention of sentinel-wrapped fmt.Errorf chains rather than a
// dedicated error-kind library (internal/nntp's ErrArticleNotFound /
// ErrArticleRemoved sentinels are reused via errors.Is in worker.go instead
// of reinvented).

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies an Error for the HTTP edge (spec.md §7).
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindUnavailable
	KindTransient
	KindConfigError
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	case KindTransient:
		return "transient"
	case KindConfigError:
		return "config_error"
	default:
		return "internal"
	}
}

// Error wraps an underlying error with a Kind so callers (and the HTTP edge
// they belong to) can branch on classification without string matching.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func notFoundErr(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func unavailableErr(format string, args ...any) *Error {
	return newError(KindUnavailable, format, args...)
}

func transientErr(err error) *Error {
	return &Error{Kind: KindTransient, Err: err}
}

func internalErr(format string, args ...any) *Error {
	return newError(KindInternal, format, args...)
}

// IsNotFound reports whether err (or anything it wraps) classifies as
// KindNotFound.
func IsNotFound(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == KindNotFound
	}
	return false
}

// notFoundPatterns are the wire-level signatures of "no such article" across
// NNTP servers that don't bother returning a clean 430/423.
var notFoundPatterns = []string{
	"430", "423",
	"no such article",
	"article not found",
}

// isNotFoundWire classifies an upstream error as "not found" vs transient,
// per spec.md §4.3 step 3.
func isNotFoundWire(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFoundSentinel) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range notFoundPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// ErrNotFoundSentinel lets wireclient implementations (including fakes in
// tests) signal "not found" without string-matching their own error text.
var ErrNotFoundSentinel = errors.New("fnal: article or group not found")
