package controller

import (
	"errors"
)

var (
	// ErrBusy is returned when a submission is already in flight.
	ErrBusy        = errors.New("a report is already being processed")
	ErrUnknownView = errors.New("unknown view")
)

const (
	msgMissingFields    = "Please fill out all fields and upload an image."
	msgInvalidKind      = "Please choose whether the item was lost or found."
	msgImageTooLarge    = "Image size cannot exceed 4MB."
	msgUnsupportedImage = "Please upload a PNG, JPEG or GIF image."

	msgExtractFailed = "Failed to analyze item features. The AI model may be temporarily unavailable."
	msgStoreFailed   = "Failed to save your report. Please try again."
	msgMatchFailed   = "Failed to find matches. The AI model may be temporarily unavailable."
)

// ValidationError is a local input problem. No model call was made.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

type Stage string

const (
	StageExtract Stage = "extract"
	StageStore   Stage = "store"
	StageMatch   Stage = "match"
)

// SubmissionError is a failure after validation. Error returns the message
// shown to the user; the cause is available through Unwrap.
type SubmissionError struct {
	Stage Stage
	Err   error
}

func (e *SubmissionError) Error() string {
	switch e.Stage {
	case StageExtract:
		return msgExtractFailed
	case StageStore:
		return msgStoreFailed
	case StageMatch:
		return msgMatchFailed
	}
	return "An unknown error occurred."
}

func (e *SubmissionError) Unwrap() error { return e.Err }
