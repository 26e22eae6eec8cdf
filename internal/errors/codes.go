// Package errors provides structured error handling for the coordination core.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Aggregate store errors
	CodeNotFound        Code = "NOT_FOUND"
	CodeVersionConflict Code = "VERSION_CONFLICT"
	CodeOrderExists     Code = "ORDER_ALREADY_EXISTS"

	// Command errors
	CodeCommandInvalid  Code = "COMMAND_INVALID"
	CodeCommandRejected Code = "COMMAND_REJECTED"
	CodeUndoUnavailable Code = "UNDO_UNAVAILABLE"
	CodeRedoUnavailable Code = "REDO_UNAVAILABLE"

	// Dispatch errors
	CodeHandlerFailed Code = "HANDLER_FAILED"

	// Storage errors
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)
