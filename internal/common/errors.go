package common

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a failure for mapping onto an invocation status.
type Kind string

const (
	KindInvalidInput       Kind = "InvalidInput"
	KindUnsupportedType    Kind = "UnsupportedType"
	KindTooLarge           Kind = "TooLarge"
	KindDecodeFailure      Kind = "DecodeFailure"
	KindOCREngineFailure   Kind = "OCREngineFailure"
	KindPersistenceFailure Kind = "PersistenceFailure"
	KindUnhandled          Kind = "Unhandled"
)

// AppError represents application-specific errors
type AppError struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported file type")
	ErrTooLarge     = errors.New("payload too large")
	ErrDecode       = errors.New("decode failure")
	ErrOCREngine    = errors.New("ocr engine failure")
	ErrPersistence  = errors.New("persistence failure")
	ErrInternal     = errors.New("internal error")
)

var kindSentinels = map[Kind]error{
	KindInvalidInput:       ErrInvalidInput,
	KindUnsupportedType:    ErrUnsupported,
	KindTooLarge:           ErrTooLarge,
	KindDecodeFailure:      ErrDecode,
	KindOCREngineFailure:   ErrOCREngine,
	KindPersistenceFailure: ErrPersistence,
	KindUnhandled:          ErrInternal,
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Kind:    KindUnhandled,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewKindError builds an AppError of the given kind. When cause is nil the
// kind's sentinel is used so errors.Is works against the sentinels.
func NewKindError(kind Kind, message string, cause error) *AppError {
	if cause == nil {
		cause = kindSentinels[kind]
	}
	return &AppError{Kind: kind, Code: string(kind), Message: message, Cause: cause}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// KindOf returns the Kind of the first AppError in err's chain, falling back to
// the sentinel errors, then KindUnhandled.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) && ae.Kind != "" {
		return ae.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnhandled
}

// StatusCode maps an error onto the invocation status taxonomy.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindInvalidInput, KindUnsupportedType, KindDecodeFailure:
		return http.StatusBadRequest
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}
