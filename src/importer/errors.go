package importer

import "errors"

var (
	// ErrEmptyBatch means no file in the session produced a single valid
	// normalized row.
	ErrEmptyBatch = errors.New("no valid rows in batch")

	// ErrUnknownAssetClass means the caller named an asset class the schema
	// registry does not know.
	ErrUnknownAssetClass = errors.New("unknown asset class")

	// ErrInvalidAction means the actions map contained a value that is not
	// assignable to a conflict.
	ErrInvalidAction = errors.New("invalid resolution action")
)
