package scoring

import "errors"

var (
	// ErrInvalidInput covers unparseable payloads and fields that cannot be coerced.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedFormat is returned for uploads whose extension is not csv or json.
	ErrUnsupportedFormat = errors.New("unsupported file format, please upload CSV or JSON file")
	// ErrStorageFailure wraps failures of the record store.
	ErrStorageFailure = errors.New("storage failure")
)
