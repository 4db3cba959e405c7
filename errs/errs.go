package errs

import (
	"errors"
	"fmt"
)

type Code int

const (
	Internal Code = iota
	InvalidArgument
	FailedPrecondition
	PermissionDenied
	NotFound
	Unauthenticated
)

// Error message constants shared by the storefront packages.
const (
	ErrMsgCartEmpty           = "Cart is empty"
	ErrMsgBelowMinimum        = "Order total is below the minimum purchase"
	ErrMsgActorRequired       = "User not authenticated"
	ErrMsgProductUnavailable  = "Product is not available"
	ErrMsgProductIDRequired   = "Product ID is required"
	ErrMsgInvalidStatus       = "Invalid order status"
	ErrMsgNotAdmin            = "Only administrators can change order status"
	ErrMsgOrderNotFound       = "Order not found"
	ErrMsgPersistence         = "Could not save the order, please try again"
	ErrMsgStorageUnavailable  = "Storage is unavailable, please try again"
	ErrMsgInvalidOrderID      = "Invalid order ID"
	ErrMsgInvalidQuantity     = "Quantity must be an integer"
	ErrMsgInvalidToken        = "Invalid token"
	ErrMsgMissingBearerToken  = "Authorization header required"
	ErrMsgCheckoutInProgress  = "A checkout with this key is still in progress"
)

func (c Code) String() string {
	switch c {
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case FailedPrecondition:
		return "FAILED_PRECONDITION"
	case PermissionDenied:
		return "PERMISSION_DENIED"
	case NotFound:
		return "NOT_FOUND"
	case Unauthenticated:
		return "UNAUTHENTICATED"
	default:
		return "INTERNAL"
	}
}

// Error is a user-facing failure. Message is safe to show; Err carries the cause
// for logs only.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewInvalidArgument(message string) *Error {
	return &Error{Code: InvalidArgument, Message: message}
}

func NewFailedPrecondition(message string) *Error {
	return &Error{Code: FailedPrecondition, Message: message}
}

func NewFailedPreconditionf(format string, args ...interface{}) *Error {
	return &Error{Code: FailedPrecondition, Message: fmt.Sprintf(format, args...)}
}

func NewPermissionDenied(message string) *Error {
	return &Error{Code: PermissionDenied, Message: message}
}

func NewNotFound(message string) *Error {
	return &Error{Code: NotFound, Message: message}
}

func NewUnauthenticated(message string) *Error {
	return &Error{Code: Unauthenticated, Message: message}
}

// Wrap marks err as an internal failure shown to users as message.
func Wrap(err error, message string) *Error {
	return &Error{Code: Internal, Message: message, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, Internal otherwise.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error"
}
