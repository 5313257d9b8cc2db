package batch

import "errors"

// ErrMalformedEncoding marks an archive entry name that could not be decoded
// cleanly. It is not fatal: a best-effort name is used instead.
var ErrMalformedEncoding = errors.New("malformed entry name encoding")
