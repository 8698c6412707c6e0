package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEncodeFailed  = errors.New("encode failed")
	ErrIO            = errors.New("i/o failure")
	ErrNotCommitted  = errors.New("not inside a committing unit of work")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes job context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the execution queue should schedule another
// attempt after err. Validation, configuration and dispatcher misuse are
// permanent; everything else is worth another try.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotCommitted):
		return false
	default:
		return true
	}
}

// ErrorKind names the marker carried by an error.
type ErrorKind string

const (
	KindEncodeFailed  ErrorKind = "encode_failed"
	KindIO            ErrorKind = "io_failure"
	KindNotCommitted  ErrorKind = "not_committed"
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindNotFound      ErrorKind = "not_found"
	KindTransient     ErrorKind = "transient"
	KindUnknown       ErrorKind = "unknown"
)

// ErrorDetails is the structured breakdown of an error used for log fields.
type ErrorDetails struct {
	Kind    ErrorKind
	Message string
	Code    string
	Hint    string
	Cause   error
}

// Details classifies err and extracts a human readable message and hint.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindUnknown}
	}
	details := ErrorDetails{
		Kind:    kindOf(err),
		Message: strings.TrimSpace(err.Error()),
		Cause:   errors.Unwrap(err),
	}
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) {
		details.Code = fmt.Sprintf("exit_%d", coded.ExitCode())
	}
	details.Hint = hintFor(details.Kind)
	return details
}

func kindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrEncodeFailed):
		return KindEncodeFailed
	case errors.Is(err, ErrIO):
		return KindIO
	case errors.Is(err, ErrNotCommitted):
		return KindNotCommitted
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}

func hintFor(kind ErrorKind) string {
	switch kind {
	case KindEncodeFailed:
		return "inspect ffmpeg stderr; the source may be corrupt or the disk full"
	case KindIO:
		return "check permissions and free space under the media root"
	case KindNotCommitted:
		return "dispatch jobs from inside dbx.WithTx"
	case KindValidation:
		return "fix the input and resubmit"
	case KindConfiguration:
		return "review the videoflix config file"
	case KindNotFound:
		return "verify the path exists"
	default:
		return "check logs for details"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
