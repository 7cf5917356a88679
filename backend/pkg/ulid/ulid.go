package ulid

import (
	crand "crypto/rand"

	"github.com/oklog/ulid"
)

// `I` is an `oklog/ulid.ULID`.
type I = ulid.ULID

// `Nil` is the all-zero null value.
var Nil I

// funcs
var Parse = ulid.Parse

func New() (I, error) {
	return ulid.New(ulid.Now(), crand.Reader)
}
