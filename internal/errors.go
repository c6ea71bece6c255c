package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeRepository   ErrorType = "REPOSITORY_FAILURE"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeRateLimited  ErrorType = "RATE_LIMITED"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidStatus    ErrorCode = "INVALID_STATUS"
	ErrCodeInvalidReference ErrorCode = "INVALID_REFERENCE"

	ErrCodeUserNotFound         ErrorCode = "USER_NOT_FOUND"
	ErrCodeDuplicateIdentity    ErrorCode = "DUPLICATE_IDENTITY"
	ErrCodeDuplicateUsername    ErrorCode = "DUPLICATE_USERNAME"
	ErrCodeDuplicateEmail       ErrorCode = "DUPLICATE_EMAIL"
	ErrCodeRoleNotFound         ErrorCode = "ROLE_NOT_FOUND"
	ErrCodeDuplicateRole        ErrorCode = "DUPLICATE_ROLE"
	ErrCodePermissionNotFound   ErrorCode = "PERMISSION_NOT_FOUND"
	ErrCodeDuplicatePermission  ErrorCode = "DUPLICATE_PERMISSION"
	ErrCodeOrganizationNotFound ErrorCode = "ORGANIZATION_NOT_FOUND"
	ErrCodeDuplicateOrg         ErrorCode = "DUPLICATE_ORGANIZATION"
	ErrCodeTenantUnavailable    ErrorCode = "TENANT_UNAVAILABLE"
	ErrCodeTenantCapacity       ErrorCode = "TENANT_CAPACITY_REACHED"
	ErrCodeOrganizationCycle    ErrorCode = "ORGANIZATION_CYCLE"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeTooManyRequests    ErrorCode = "TOO_MANY_REQUESTS"

	ErrCodeRepositoryFailure ErrorCode = "REPOSITORY_FAILURE"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on Type and Code, so errors.Is works against the package
// sentinels even after WithCause/WithDetails produced a copy. Duplicate
// username and email both count as a duplicate identity.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || e.Type != t.Type {
		return false
	}
	if t.Code == ErrCodeDuplicateIdentity {
		switch e.Code {
		case ErrCodeDuplicateIdentity, ErrCodeDuplicateUsername, ErrCodeDuplicateEmail:
			return true
		}
	}
	return e.Code == t.Code
}

// WithCause returns a copy of e carrying cause. Sentinels are never mutated.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

// WithDetails returns a copy of e carrying details.
func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewRepositoryError reports an unavailable or failing storage layer. The
// original error is kept as Cause and is reachable through errors.Is/As.
func NewRepositoryError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeRepository,
		Code:       ErrCodeRepositoryFailure,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

func NewRateLimitError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeRateLimited,
		Code:       ErrCodeTooManyRequests,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       ErrCodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrUserNotFound       = NewNotFoundError("User not found", ErrCodeUserNotFound)
	ErrDuplicateIdentity  = NewConflictError("Username or email already exists", ErrCodeDuplicateIdentity)
	ErrDuplicateUsername  = NewConflictError("Username already exists", ErrCodeDuplicateUsername)
	ErrDuplicateEmail     = NewConflictError("Email already exists", ErrCodeDuplicateEmail)
	ErrRoleNotFound       = NewNotFoundError("Role not found", ErrCodeRoleNotFound)
	ErrDuplicateRole      = NewConflictError("Role name already exists", ErrCodeDuplicateRole)
	ErrPermissionNotFound = NewNotFoundError("Permission not found", ErrCodePermissionNotFound)
	ErrDuplicatePerm      = NewConflictError("Permission name already exists", ErrCodeDuplicatePermission)

	ErrOrganizationNotFound  = NewNotFoundError("Organization not found", ErrCodeOrganizationNotFound)
	ErrDuplicateOrganization = NewConflictError("Organization code already exists", ErrCodeDuplicateOrg)
	ErrTenantUnavailable     = NewValidationError("Organization does not accept new users", ErrCodeTenantUnavailable)
	ErrTenantCapacity        = NewConflictError("Organization user limit reached", ErrCodeTenantCapacity)
	ErrOrganizationCycle     = NewValidationError("Organization hierarchy cannot contain cycles", ErrCodeOrganizationCycle)

	ErrInvalidCredentials = NewUnauthorizedError("Invalid username or password", ErrCodeInvalidCredentials)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrForbidden          = NewForbiddenError("Forbidden: insufficient permissions", ErrCodeForbidden)
	ErrTooManyRequests    = NewRateLimitError("Too many requests, slow down")
)

// IsAppError unwraps err until it finds an *AppError.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Type == t
}

// AsRepositoryError passes AppErrors through untouched and wraps anything else
// as a repository failure.
func AsRepositoryError(message string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := IsAppError(err); ok {
		return err
	}
	return NewRepositoryError(message, err)
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
