// Package traceid generates root request IDs and derives hierarchical child IDs.
//
// A request ID is a root ID followed by zero or more ":<index>" segments, one per
// nesting level, where index is the 1-based position of the call within its parent.
package traceid

import (
	"crypto/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/SuperID/nanoservices/pkg/svcerr"
)

// Length bounds for root IDs.
const (
	MinLength     = 16
	MaxLength     = 48
	DefaultLength = 24
)

// Separator joins a parent ID and a child index.
const Separator = ":"

// Crockford base32, the same alphabet ulid encodes with.
const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Length of the timestamp prefix of an encoded ulid.
const timeChars = 10

var entropy = ulid.DefaultEntropy()

// NewRootID returns a fresh root ID of exactly maxLength characters. The leading
// characters are a ulid (millisecond timestamp plus monotonic entropy), padded with
// random characters when maxLength exceeds a ulid.
func NewRootID(minLength, maxLength int) (string, error) {
	if minLength < MinLength || maxLength > MaxLength || minLength > maxLength {
		return "", svcerr.InvalidLength(minLength, maxLength, MinLength, MaxLength)
	}
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
	if maxLength < len(id) {
		// Keep the timestamp and the low-order entropy, which is what the monotonic
		// source increments for IDs minted within the same millisecond.
		return id[:timeChars] + id[len(id)-(maxLength-timeChars):], nil
	}
	return id + randomString(maxLength-len(id)), nil
}

// New returns a root ID of exactly size characters.
func New(size int) (string, error) {
	return NewRootID(size, size)
}

// DeriveChildID returns parentID + ":" + index.
func DeriveChildID(parentID string, index int) string {
	return parentID + Separator + strconv.Itoa(index)
}

// ParentID strips the last ":<index>" segment. ok is false for root IDs.
func ParentID(id string) (parent string, ok bool) {
	i := strings.LastIndex(id, Separator)
	if i == -1 {
		return "", false
	}
	return id[:i], true
}

// Root returns the root segment of id.
func Root(id string) string {
	if i := strings.Index(id, Separator); i != -1 {
		return id[:i]
	}
	return id
}

// Depth returns the nesting level of id; a root ID has depth 0.
func Depth(id string) int {
	return strings.Count(id, Separator)
}

// IsDescendant reports whether id is ancestor itself or nested anywhere below it.
func IsDescendant(id, ancestor string) bool {
	if id == ancestor {
		return true
	}
	return strings.HasPrefix(id, ancestor+Separator)
}

// Compare orders IDs segment by segment. The root segment compares as a string,
// index segments compare numerically so "R:9" sorts before "R:10". A parent sorts
// before its children.
func Compare(a, b string) int {
	as := strings.Split(a, Separator)
	bs := strings.Split(b, Separator)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(i, as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

func compareSegment(pos int, a, b string) int {
	if pos > 0 {
		an, aerr := strconv.Atoi(a)
		bn, berr := strconv.Atoi(b)
		if aerr == nil && berr == nil {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(a, b)
}

// Sort sorts ids in place using Compare.
func Sort(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool { return Compare(ids[i], ids[j]) < 0 })
}

func randomString(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms; fall back to the clock.
		ns := time.Now().UnixNano()
		for i := range buf {
			buf[i] = byte(ns >> (uint(i) % 8 * 8))
		}
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf)
}
