package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New returns a ULID string. OTP records carry one so logs and rollbacks can tell
// two records for the same email apart without exposing the code.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
