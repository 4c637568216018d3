package document

import "errors"

// ErrInvalidInput reports malformed caller input: empty file sets,
// unsupported parameters, bad session ids, invalid k.
var ErrInvalidInput = errors.New("invalid input")
