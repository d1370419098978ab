package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

type ErrorKind string

const (
	ErrorKindInvalidInput          ErrorKind = "TOPUP_INVALID_INPUT"
	ErrorKindUnauthorized          ErrorKind = "TOPUP_UNAUTHORIZED"
	ErrorKindNotFound              ErrorKind = "TOPUP_NOT_FOUND"
	ErrorKindUnknownOrder          ErrorKind = "TOPUP_UNKNOWN_ORDER"
	ErrorKindDuplicateReference    ErrorKind = "TOPUP_DUPLICATE_REFERENCE"
	ErrorKindInvalidTransition     ErrorKind = "TOPUP_INVALID_TRANSITION"
	ErrorKindUnrecognizedStatus    ErrorKind = "TOPUP_UNRECOGNIZED_STATUS"
	ErrorKindProviderRequestFailed ErrorKind = "TOPUP_PROVIDER_REQUEST_FAILED"
	ErrorKindProviderTimeout       ErrorKind = "TOPUP_PROVIDER_TIMEOUT"
	ErrorKindProvisioningPending   ErrorKind = "TOPUP_PROVISIONING_PENDING"
	ErrorKindInternal              ErrorKind = "TOPUP_INTERNAL_ERROR"
)

func (k ErrorKind) String() string {
	return string(k)
}

var (
	ErrInvalidInput          = errors.New("topup: invalid input")
	ErrUnauthorized          = errors.New("topup: unauthorized")
	ErrNotFound              = errors.New("topup: order not found")
	ErrUnknownOrder          = errors.New("topup: unknown order")
	ErrDuplicateReference    = errors.New("topup: duplicate reference")
	ErrInvalidTransition     = errors.New("topup: invalid transition")
	ErrUnrecognizedStatus    = errors.New("topup: unrecognized status")
	ErrProviderRequestFailed = errors.New("topup: provider request failed")
	ErrProviderTimeout       = errors.New("topup: provider timeout")
	ErrProvisioningPending   = errors.New("topup: provisioning pending")
	ErrInternal              = errors.New("topup: internal error")
)

// ErrOrderUnchanged is returned by an OrderMutator to signal that nothing
// should be committed. Stores translate it into a successful no-op.
var ErrOrderUnchanged = errors.New("topup: order unchanged")

type errorSpec struct {
	sentinel error
	category goerrors.Category
	code     int
}

var errorSpecs = map[ErrorKind]errorSpec{
	ErrorKindInvalidInput:          {ErrInvalidInput, goerrors.CategoryBadInput, http.StatusBadRequest},
	ErrorKindUnauthorized:          {ErrUnauthorized, goerrors.CategoryAuth, http.StatusForbidden},
	ErrorKindNotFound:              {ErrNotFound, goerrors.CategoryNotFound, http.StatusNotFound},
	ErrorKindUnknownOrder:          {ErrUnknownOrder, goerrors.CategoryNotFound, http.StatusNotFound},
	ErrorKindDuplicateReference:    {ErrDuplicateReference, goerrors.CategoryConflict, http.StatusConflict},
	ErrorKindInvalidTransition:     {ErrInvalidTransition, goerrors.CategoryConflict, http.StatusConflict},
	ErrorKindUnrecognizedStatus:    {ErrUnrecognizedStatus, goerrors.CategoryBadInput, http.StatusUnprocessableEntity},
	ErrorKindProviderRequestFailed: {ErrProviderRequestFailed, goerrors.CategoryExternal, http.StatusBadGateway},
	ErrorKindProviderTimeout:       {ErrProviderTimeout, goerrors.CategoryExternal, http.StatusGatewayTimeout},
	ErrorKindProvisioningPending:   {ErrProvisioningPending, goerrors.CategoryOperation, http.StatusAccepted},
	ErrorKindInternal:              {ErrInternal, goerrors.CategoryInternal, http.StatusInternalServerError},
}

// NewError builds the envelope for kind. The sentinel for the kind is kept as
// the source so errors.Is keeps working after goerrors.Wrap.
func NewError(kind ErrorKind, message string, metadata map[string]any) *goerrors.Error {
	spec, ok := errorSpecs[kind]
	if !ok {
		kind = ErrorKindInternal
		spec = errorSpecs[ErrorKindInternal]
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = spec.sentinel.Error()
	}
	err := goerrors.Wrap(spec.sentinel, spec.category, message).
		WithCode(spec.code).
		WithTextCode(kind.String())
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// KindOf resolves the kind carried by err. Context deadline errors resolve to
// ErrorKindProviderTimeout and anything unclassified to ErrorKindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		if _, ok := errorSpecs[ErrorKind(rich.TextCode)]; ok {
			return ErrorKind(rich.TextCode)
		}
	}
	for kind, spec := range errorSpecs {
		if errors.Is(err, spec.sentinel) {
			return kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindProviderTimeout
	}
	return ErrorKindInternal
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus returns the status code the error maps to at the HTTP edge.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Code > 0 {
		return rich.Code
	}
	return errorSpecs[KindOf(err)].code
}

func NewOrderNotFoundError(reference string) error {
	return NewError(ErrorKindNotFound, fmt.Sprintf("order %q not found", reference), map[string]any{
		"reference": reference,
	})
}

func NewDuplicateReferenceError(reference string) error {
	return NewError(ErrorKindDuplicateReference, fmt.Sprintf("order %q already exists", reference), map[string]any{
		"reference": reference,
	})
}

func NewInternalError(message string, source error) error {
	err := NewError(ErrorKindInternal, message, nil)
	if source != nil {
		err.WithMetadata(map[string]any{"cause": source.Error()})
	}
	return err
}

func newInvalidInputError(message string, field string) error {
	err := NewError(ErrorKindInvalidInput, message, nil)
	if field != "" {
		err.ValidationErrors = goerrors.ValidationErrors{{Field: field, Message: message}}
	}
	return err
}

func newUnauthorizedError(reference string) error {
	return NewError(ErrorKindUnauthorized, "payment notification signature rejected", map[string]any{
		"reference": reference,
	})
}

func newUnknownOrderError(reference string) error {
	return NewError(ErrorKindUnknownOrder, fmt.Sprintf("no order for reference %q", reference), map[string]any{
		"reference": reference,
	})
}

func newInvalidTransitionError(reference string, from OrderStatus, to OrderStatus) error {
	return NewError(
		ErrorKindInvalidTransition,
		fmt.Sprintf("order %q cannot move from %s to %s", reference, from, to),
		map[string]any{"reference": reference, "from": string(from), "to": string(to)},
	)
}

func newUnrecognizedStatusError(reported string) error {
	return NewError(
		ErrorKindUnrecognizedStatus,
		fmt.Sprintf("unrecognized payment status %q", reported),
		map[string]any{"reported_status": reported},
	)
}

func newProviderError(operation string, source error) error {
	kind := ErrorKindProviderRequestFailed
	if errors.Is(source, context.DeadlineExceeded) || IsKind(source, ErrorKindProviderTimeout) {
		kind = ErrorKindProviderTimeout
	}
	metadata := map[string]any{"operation": operation}
	if source != nil {
		metadata["cause"] = source.Error()
	}
	return NewError(kind, operation+" failed", metadata)
}

func newProvisioningPendingError(reference string) error {
	return NewError(ErrorKindProvisioningPending, fmt.Sprintf("provisioning of %q still pending", reference), map[string]any{
		"reference": reference,
	})
}
