package snape2e

import "errors"

// Common errors used throughout the snape2e packages
var (
	// Scenario context errors

	// ErrDuplicateContext is returned when a context is created while another one is still live in the same slot.
	ErrDuplicateContext = errors.New("an execution context is already live")
	// ErrInitializationTimeout is returned when the context does not become ready in time.
	ErrInitializationTimeout = errors.New("execution context initialization timed out")
	// ErrNoContext indicates that there is no live context to operate on.
	ErrNoContext = errors.New("no live execution context")

	// Dataset errors

	// ErrDatasetNotLoaded indicates a reference was resolved before its phase was captured.
	ErrDatasetNotLoaded = errors.New("dataset not loaded")
	// ErrIndexOutOfBounds indicates a result set or row index beyond the captured data.
	ErrIndexOutOfBounds = errors.New("index out of bounds")
	// ErrInvalidSnapshot indicates a snapshot document that violates the result set shape.
	ErrInvalidSnapshot = errors.New("invalid dataset snapshot")

	// Lookup errors

	// ErrColumnNotFound indicates a missing column in a row object or spreadsheet header.
	ErrColumnNotFound = errors.New("column not found")
	// ErrRowNotFound indicates a missing spreadsheet row name.
	ErrRowNotFound = errors.New("row not found")
	// ErrNoColumnSelected indicates a cell lookup before a test case column was selected.
	ErrNoColumnSelected = errors.New("no spreadsheet column selected")
	// ErrDuplicateName indicates a row or column name that appears twice on its axis.
	ErrDuplicateName = errors.New("duplicate name in spreadsheet index")
	// ErrUnsupportedSpreadsheet indicates a spreadsheet file type that cannot be loaded.
	ErrUnsupportedSpreadsheet = errors.New("unsupported spreadsheet format")

	// Reference errors

	// ErrInvalidReference indicates a placeholder that does not follow the reference grammar.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrUnresolvedReference indicates an environment reference whose variable is not set.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// Verification errors

	// ErrVerificationMismatch indicates UI values that do not match the expected values.
	ErrVerificationMismatch = errors.New("verification mismatch")
	// ErrElementNotFound indicates that a selector matched no element.
	ErrElementNotFound = errors.New("element not found")

	// SQL collaborator errors

	// ErrStatementNotFound indicates a setup script without the requested labelled section.
	ErrStatementNotFound = errors.New("statement not found in setup script")
	// ErrUnsupportedDriver indicates a database driver name that is not registered.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	// ErrDatabaseNotConfigured indicates that the selected environment has no database entry.
	ErrDatabaseNotConfigured = errors.New("database is not configured for environment")
)
