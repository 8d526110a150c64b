package utils

import "fmt"

// DataFormatError reports absent or malformed required fields in an input
// payload. It is fatal for the invocation that received the payload.
type DataFormatError struct {
	Message string
}

// Error returns the error message string.
func (e *DataFormatError) Error() string {
	return e.Message
}

// NewDataFormatErrorf creates a DataFormatError with a formatted message.
func NewDataFormatErrorf(format string, args ...interface{}) error {
	return &DataFormatError{Message: fmt.Sprintf(format, args...)}
}

// InsufficientDataError reports a product whose clean history is too short to
// train on. Batch mode skips the product; single-report mode surfaces it.
type InsufficientDataError struct {
	ProductID int64
	Observed  int
	Required  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("product %d has %d active observations, need at least %d",
		e.ProductID, e.Observed, e.Required)
}

// NewInsufficientDataError creates an InsufficientDataError.
func NewInsufficientDataError(productID int64, observed, required int) error {
	return &InsufficientDataError{ProductID: productID, Observed: observed, Required: required}
}

// ModelTrainingError reports a fit that failed to converge or a series with
// no usable variance. Same skip/report policy as InsufficientDataError.
type ModelTrainingError struct {
	Strategy string
	Message  string
}

func (e *ModelTrainingError) Error() string {
	return fmt.Sprintf("%s training failed: %s", e.Strategy, e.Message)
}

// NewModelTrainingErrorf creates a ModelTrainingError with a formatted message.
func NewModelTrainingErrorf(strategy, format string, args ...interface{}) error {
	return &ModelTrainingError{Strategy: strategy, Message: fmt.Sprintf(format, args...)}
}

// IOBoundaryError reports a loader or transport failure. It never originates
// inside the pipeline core, only propagates through it.
type IOBoundaryError struct {
	Op  string
	Err error
}

func (e *IOBoundaryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOBoundaryError) Unwrap() error {
	return e.Err
}

// NewIOBoundaryError wraps an external I/O failure.
func NewIOBoundaryError(op string, err error) error {
	return &IOBoundaryError{Op: op, Err: err}
}
