package ledger

import "errors"

// ErrAlreadyExists is returned when a create targets a record ID that is
// already anchored. Record IDs are never reused for the ledger's lifetime.
var ErrAlreadyExists = errors.New("record already exists on ledger")

// ErrNotFound is returned when a transition or lookup targets an unknown
// record ID.
var ErrNotFound = errors.New("record not found on ledger")

// ErrInvalidArgument is returned for malformed input, including review
// decisions outside the allowed status set. A failed integrity check is
// not an error; it is reported via IntegrityResult.Verified.
var ErrInvalidArgument = errors.New("invalid argument")
