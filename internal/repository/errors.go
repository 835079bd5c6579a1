package repository

import "errors"

// ErrConflict is returned when a conditional write lost a race: the row
// exists but no longer matches the state the caller read.
var ErrConflict = errors.New("concurrent modification")
