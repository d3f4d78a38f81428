package services

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to API and assistant callers.
const (
	CodeDuplicateIdentity = "DUPLICATE_IDENTITY"
	CodeCourseNotFound    = "COURSE_NOT_FOUND"
	CodeNoStudyPlanFound  = "NO_STUDY_PLAN_FOUND"
	CodeSessionNotFound   = "SESSION_NOT_FOUND"
	CodeMaterialNotFound  = "MATERIAL_NOT_FOUND"
	CodeJobNotFound       = "JOB_NOT_FOUND"
	CodeUserNotFound      = "USER_NOT_FOUND"
	CodeMalformedInput    = "MALFORMED_INPUT"
	CodeConflict          = "CONFLICT"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeRateLimited       = "RATE_LIMITED"
	CodeInternal          = "INTERNAL_ERROR"
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct {
	Code    string
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct {
	Code    string
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

func errCourseNotFound() error {
	return &NotFoundError{Code: CodeCourseNotFound, Message: "Course not found"}
}

func errNoStudyPlan() error {
	return &NotFoundError{Code: CodeNoStudyPlanFound, Message: "No study plan found for this course"}
}

func errSessionNotFound() error {
	return &NotFoundError{Code: CodeSessionNotFound, Message: "Study session not found"}
}

func errMaterialNotFound() error {
	return &NotFoundError{Code: CodeMaterialNotFound, Message: "Material not found"}
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// ErrorCode returns the stable taxonomy code for err.
func ErrorCode(err error) string {
	var (
		validationErr   *ValidationError
		conflictErr     *ConflictError
		notFoundErr     *NotFoundError
		unauthorizedErr *UnauthorizedError
		forbiddenErr    *ForbiddenError
		rateLimitErr    *RateLimitError
	)
	switch {
	case errors.As(err, &validationErr):
		return CodeMalformedInput
	case errors.As(err, &conflictErr):
		if conflictErr.Code != "" {
			return conflictErr.Code
		}
		return CodeConflict
	case errors.As(err, &notFoundErr):
		if notFoundErr.Code != "" {
			return notFoundErr.Code
		}
		return "NOT_FOUND"
	case errors.As(err, &unauthorizedErr):
		return CodeUnauthorized
	case errors.As(err, &forbiddenErr):
		return CodeForbidden
	case errors.As(err, &rateLimitErr):
		return CodeRateLimited
	default:
		return CodeInternal
	}
}
