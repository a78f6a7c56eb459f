package policy

import "errors"

var (
	// ErrUnknownMode is returned for a resolution mode that is not inline,
	// directory or absolute.
	ErrUnknownMode = errors.New("unknown resolution mode")

	// ErrNoDirectory is returned when the directory mode is selected, by
	// default or by a site rule, without an output directory.
	ErrNoDirectory = errors.New("directory mode requires an output directory")

	// ErrInvalidDataURL is returned when a data: URL cannot be decoded.
	ErrInvalidDataURL = errors.New("invalid data URL")
)
