// Package idwrap wraps ULIDs used as run and execution identifiers.
package idwrap

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type IDWrap struct {
	ulid ulid.ULID
}

var (
	monotonicMu      sync.Mutex
	monotonicEntropy = ulid.Monotonic(rand.Reader, 0)
)

func NewNow() IDWrap {
	return IDWrap{ulid: ulid.Make()}
}

// NewMonotonic returns ids that sort in creation order even within the same
// millisecond. Loop iterations rely on this for stable execution ordering.
func NewMonotonic() IDWrap {
	monotonicMu.Lock()
	defer monotonicMu.Unlock()
	return IDWrap{ulid: ulid.MustNew(ulid.Timestamp(time.Now()), monotonicEntropy)}
}

func NewText(s string) (IDWrap, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return IDWrap{}, err
	}
	return IDWrap{ulid: id}, nil
}

func (u IDWrap) String() string {
	return u.ulid.String()
}

func (u IDWrap) IsZero() bool {
	return u.ulid.Compare(ulid.ULID{}) == 0
}

func (u IDWrap) Compare(id IDWrap) int {
	return u.ulid.Compare(id.ulid)
}

func (u IDWrap) Time() time.Time {
	return time.UnixMilli(int64(u.ulid.Time()))
}

func (u IDWrap) MarshalText() ([]byte, error) {
	return u.ulid.MarshalText()
}

func (u *IDWrap) UnmarshalText(data []byte) error {
	return u.ulid.UnmarshalText(data)
}
