// Package ids provides the opaque 128-bit identifiers and UTC clock used
// throughout the runtime. Every identifier in the data model — Intent,
// ActionPlan, ActionStep, Saga, ActorId — is backed by the same underlying
// representation so components never need to parse or compare across
// identifier kinds.
package ids

import (
	"time"

	"github.com/google/uuid"
)

// ID is an opaque 128-bit identifier. The zero value is not a valid ID;
// use New to mint one.
type ID struct {
	v uuid.UUID
}

// New mints a fresh, process-wide-unique ID.
func New() ID {
	return ID{v: uuid.New()}
}

// Nil is the zero ID, used as a sentinel for "unset".
var Nil = ID{}

// IsNil reports whether id is the unset sentinel.
func (id ID) IsNil() bool {
	return id.v == uuid.Nil
}

// String renders the canonical hyphenated form.
func (id ID) String() string {
	return id.v.String()
}

// Equal reports whether two IDs refer to the same value.
func (id ID) Equal(other ID) bool {
	return id.v == other.v
}

// MarshalText implements encoding.TextMarshaler so IDs serialize as plain
// strings in JSON wire formats.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	v, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	id.v = v
	return nil
}

// ParseID parses the canonical string form of an ID.
func ParseID(s string) (ID, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return ID{}, err
	}
	return ID{v: v}, nil
}

// Clock abstracts wall-clock access so components (retry backoff, heartbeat
// deadlines, scheduler due-checks) can be driven deterministically in tests.
// All times are UTC with nanosecond resolution
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

var _ Clock = SystemClock{}
