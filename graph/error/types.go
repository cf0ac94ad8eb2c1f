package grapherror

import (
	"context"
	"time"

	"github.com/teranos/discograph/errors"
)

// GraphError represents a network request failure with structured context
type GraphError struct {
	Err         error                  // Underlying error
	Category    Category               // Main category
	Subcategory string                 // Optional subcategory
	UserMessage string                 // User-friendly message for UI display
	Context     map[string]interface{} // Additional context for debugging
	Timestamp   time.Time              // When the error occurred
}

// Error implements the error interface
func (e *GraphError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.UserMessage
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *GraphError) Unwrap() error {
	return e.Err
}

// New creates a new GraphError with the specified category and messages
func New(category Category, err error, userMsg string) *GraphError {
	return &GraphError{
		Err:         err,
		Category:    category,
		UserMessage: userMsg,
		Context:     make(map[string]interface{}),
		Timestamp:   time.Now(),
	}
}

// Newf creates a new GraphError with a formatted error message
func Newf(category Category, userMsg, format string, args ...interface{}) *GraphError {
	return New(category, errors.Newf(format, args...), userMsg)
}

// WithSubcategory adds a subcategory to the error
func (e *GraphError) WithSubcategory(sub string) *GraphError {
	e.Subcategory = sub
	return e
}

// WithContext adds a context key-value pair for debugging
func (e *GraphError) WithContext(key string, value interface{}) *GraphError {
	e.Context[key] = value
	return e
}

// Classify wraps err from the builder or a store in a GraphError. An err that
// already is a GraphError is returned as is.
func Classify(err error) *GraphError {
	if err == nil {
		return nil
	}
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge
	}

	switch {
	case errors.Is(err, context.Canceled):
		return New(CategoryGraph, err, "").WithSubcategory(SubcategoryGraphCancelled)
	case errors.Is(err, context.DeadlineExceeded):
		return New(CategoryRepository, err, "").WithSubcategory(SubcategoryRepositoryTimeout)
	case errors.Is(err, errors.ErrInvalidRoleFilter):
		return New(CategoryRequest, err, "").WithSubcategory(SubcategoryRequestRole)
	case errors.IsInvalidRequestError(err):
		return New(CategoryRequest, err, "").WithSubcategory(SubcategoryRequestParameter)
	case errors.IsNotFoundError(err):
		return New(CategoryRepository, err, "").WithSubcategory(SubcategoryRepositoryNotFound)
	case errors.IsServiceUnavailableError(err):
		return New(CategoryRepository, err, "").WithSubcategory(SubcategoryRepositoryUnavailable)
	default:
		return New(CategoryGraph, err, "").WithSubcategory(SubcategoryGraphBuild)
	}
}
