// Package errs classifies failures by how the caller must react: invariant
// breaches and configuration errors halt the run, signal rejections and
// data-quality issues are routine outcomes surfaced through logs only.
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindDataQuality Kind = iota + 1
	KindInvariant
	KindSignalRejection
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindDataQuality:
		return "data_quality"
	case KindInvariant:
		return "invariant_violation"
	case KindSignalRejection:
		return "signal_rejection"
	case KindConfiguration:
		return "configuration_error"
	default:
		return "unknown"
	}
}

// Error carries a kind plus a diagnostic message. The message should name
// the offending timestamp, bar, or asset where one exists.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.Msg }

func Invariant(format string, args ...any) error {
	return &Error{Kind: KindInvariant, Msg: fmt.Sprintf(format, args...)}
}

func SignalRejected(format string, args ...any) error {
	return &Error{Kind: KindSignalRejection, Msg: fmt.Sprintf(format, args...)}
}

func Config(format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Msg: fmt.Sprintf(format, args...)}
}

func DataQuality(format string, args ...any) error {
	return &Error{Kind: KindDataQuality, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the classification, or 0 for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsFatal reports whether the error must abort the run.
func IsFatal(err error) bool {
	k := KindOf(err)
	return k == KindInvariant || k == KindConfiguration
}

// IsRejection reports a routine no-trade outcome.
func IsRejection(err error) bool { return KindOf(err) == KindSignalRejection }
