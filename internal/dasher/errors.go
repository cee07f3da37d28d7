package dasher

import (
	"errors"
	"fmt"
)

// Code is the sum-type error classification from spec §9: "ok, eos,
// bad-param, url-error, not-supported, io-error, setup-failed".
type Code int

// Error codes.
const (
	CodeOK Code = iota
	CodeEOS
	CodeBadParam
	CodeURLError
	CodeNotSupported
	CodeIOError
	CodeSetupFailed
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeEOS:
		return "eos"
	case CodeBadParam:
		return "bad-param"
	case CodeURLError:
		return "url-error"
	case CodeNotSupported:
		return "not-supported"
	case CodeIOError:
		return "io-error"
	case CodeSetupFailed:
		return "setup-failed"
	default:
		return "unknown"
	}
}

// Error wraps a Code with a message and optional cause, satisfying the
// standard error interface so callers can use errors.Is/errors.As
// instead of string comparison.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target has the same Code, letting callers write
// errors.Is(err, dasher.ErrNotSupported) against a constructed Error.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

func newError(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Msg: msg, Err: cause}
}

// Sentinel errors callers branch on with errors.Is, matching the
// tiered error handling used throughout the engine's collaborators.
var (
	ErrNotSupported  = &Error{Code: CodeNotSupported, Msg: "stream not supported"}
	ErrNoPeriod      = &Error{Code: CodeBadParam, Msg: "no current period"}
	ErrURLError      = &Error{Code: CodeURLError, Msg: "state file error"}
	ErrSetupFailed   = &Error{Code: CodeSetupFailed, Msg: "destination setup failed"}
	ErrBadParam      = &Error{Code: CodeBadParam, Msg: "invalid parameter"}
	ErrEOS           = &Error{Code: CodeEOS, Msg: "end of stream"}
)

// WarningKind enumerates the non-fatal conditions spec §7 says to log
// and continue past, kept separate from the Error return so the engine
// never has to choose between surfacing a warning and making progress.
type WarningKind int

// Warning kinds.
const (
	WarnSegmentDurationDrift WarningKind = iota
	WarnSAPTypeMismatch
	WarnAlignmentExceeded
	WarnProfileDemoted
	WarnDestinationOpenFailed
	WarnInconsistentSAP
)

// Warning is a non-fatal condition reported on the engine's Warning
// channel (drained by the host loop and logged via slog, per
// SPEC_FULL.md §10.1).
type Warning struct {
	Kind           WarningKind
	RepresentationID string
	Message        string
}

func (w Warning) String() string {
	if w.RepresentationID != "" {
		return fmt.Sprintf("[%s] %s: %s", w.RepresentationID, warnKindString(w.Kind), w.Message)
	}
	return fmt.Sprintf("%s: %s", warnKindString(w.Kind), w.Message)
}

func warnKindString(k WarningKind) string {
	switch k {
	case WarnSegmentDurationDrift:
		return "segment-duration-drift"
	case WarnSAPTypeMismatch:
		return "sap-type-mismatch"
	case WarnAlignmentExceeded:
		return "alignment-exceeded"
	case WarnProfileDemoted:
		return "profile-demoted"
	case WarnDestinationOpenFailed:
		return "destination-open-failed"
	case WarnInconsistentSAP:
		return "inconsistent-sap"
	default:
		return "warning"
	}
}
