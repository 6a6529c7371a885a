package embeddb

import "errors"

// ErrKeyOrder is returned by Put/PutVar when key is strictly less than the
// most recently inserted key.
var ErrKeyOrder = errors.New("embeddb: key is out of order")

// ErrNotFound is returned by Get/GetVar when no record matches the key.
var ErrNotFound = errors.New("embeddb: key not found")

// ErrVarDataDisabled is returned by PutVar/GetVar when the store was opened
// without UseVarData.
var ErrVarDataDisabled = errors.New("embeddb: variable-data support is not enabled")
