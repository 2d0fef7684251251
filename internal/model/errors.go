package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the query pipeline.
type ErrorKind string

const (
	KindInvalidArgument          ErrorKind = "invalid_argument"
	KindUnknownCalendarReference ErrorKind = "unknown_calendar_reference"
	KindUnknownTimeZone          ErrorKind = "unknown_time_zone"
	KindSourceUnavailable        ErrorKind = "source_unavailable"
	KindRenderError              ErrorKind = "render_error"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidArgument          = &Error{Kind: KindInvalidArgument}
	ErrUnknownCalendarReference = &Error{Kind: KindUnknownCalendarReference}
	ErrUnknownTimeZone          = &Error{Kind: KindUnknownTimeZone}
	ErrSourceUnavailable        = &Error{Kind: KindSourceUnavailable}
	ErrRenderError              = &Error{Kind: KindRenderError}
)

// Error is the typed error returned by the core packages.
type Error struct {
	Kind ErrorKind

	// Field names the offending argument for invalid_argument and
	// unknown_time_zone errors.
	Field string

	Msg string
	Err error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so that errors.Is(err, ErrSourceUnavailable) works for
// any source failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Field == "" || t.Field == e.Field)
}

// InvalidArgument builds an invalid_argument error naming the field.
func InvalidArgument(field, format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// UnknownTimeZone builds an unknown_time_zone error for the given field.
func UnknownTimeZone(field, name string) error {
	return &Error{Kind: KindUnknownTimeZone, Field: field, Msg: fmt.Sprintf("unrecognized time zone %q", name)}
}

// UnknownCalendarReference builds the per-record calendar lookup error.
func UnknownCalendarReference(recordID, ref string) error {
	return &Error{
		Kind: KindUnknownCalendarReference,
		Msg:  fmt.Sprintf("record %q references unknown calendar %q", recordID, ref),
	}
}

// SourceUnavailable wraps a collaborator failure.
func SourceUnavailable(source string, err error) error {
	return &Error{Kind: KindSourceUnavailable, Msg: source, Err: err}
}

// RenderError wraps an encoding failure.
func RenderError(err error) error {
	return &Error{Kind: KindRenderError, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// FieldOf returns the offending field of a typed error, if any.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}
