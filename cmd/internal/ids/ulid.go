// Package ids generates the ULID identifiers used for studios and setup sessions.
package ids

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrInvalid is returned by Parse for anything that is not a canonical ULID.
var ErrInvalid = errors.New("ids: invalid ulid")

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewULID returns a 26-char ULID stamped with now (current UTC time when zero).
// IDs minted in the same millisecond are strictly increasing.
func NewULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	entropyMu.Lock()
	defer entropyMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Parse validates s and returns it in canonical upper case.
func Parse(s string) (string, error) {
	id, err := ulid.ParseStrict(strings.ToUpper(strings.TrimSpace(s)))
	if err != nil {
		return "", ErrInvalid
	}
	return id.String(), nil
}

// Time returns the timestamp embedded in a valid ULID.
func Time(s string) (time.Time, error) {
	id, err := ulid.ParseStrict(strings.ToUpper(strings.TrimSpace(s)))
	if err != nil {
		return time.Time{}, ErrInvalid
	}
	return ulid.Time(id.Time()).UTC(), nil
}
