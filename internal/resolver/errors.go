package resolver

import "errors"

var (
	// ErrInvalidArgument is returned for missing or malformed arguments to
	// accessors and setters.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrLoad classifies discovery and parse failures during Load or ImportFile.
	// The underlying *catalog.DiscoveryError or *format.ParseError is wrapped
	// alongside it.
	ErrLoad = errors.New("load configuration")
)
