// Package id generates the server's identifiers.
//
// Trace and span ids are prefixed ULIDs (trc_*, spn_*) so they sort by
// creation time and read clearly in logs. Snapshot ids are UUIDv4, the
// format Sidebery exports already carry; uploads that bring their own id
// keep it.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// SnapshotID identifies a stored snapshot
type SnapshotID string

// TraceID identifies a request trace
type TraceID string

// SpanID identifies one span within a trace
type SpanID string

func (s SnapshotID) String() string { return string(s) }
func (t TraceID) String() string    { return string(t) }
func (s SpanID) String() string     { return string(s) }

const (
	TracePrefix = "trc"
	SpanPrefix  = "spn"
)

// Generator produces monotonic ULIDs. It is safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewGenerator creates a generator over crypto/rand
func NewGenerator() *Generator {
	return NewGeneratorWith(ulid.Monotonic(rand.Reader, 0), time.Now)
}

// NewGeneratorWith creates a generator with fixed entropy and clock, for
// reproducible ids in tests
func NewGeneratorWith(entropy io.Reader, now func() time.Time) *Generator {
	return &Generator{entropy: entropy, now: now}
}

// Next returns a new ULID
func (g *Generator) Next() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// Prefixed returns prefix_<ulid>
func (g *Generator) Prefixed(prefix string) string {
	return prefix + "_" + g.Next().String()
}

var shared = sync.OnceValue(NewGenerator)

// NewSnapshotID generates a random snapshot id
func NewSnapshotID() SnapshotID {
	return SnapshotID(uuid.NewString())
}

// NewTraceID generates a trace id
func NewTraceID() TraceID {
	return TraceID(shared().Prefixed(TracePrefix))
}

// NewSpanID generates a span id
func NewSpanID() SpanID {
	return SpanID(shared().Prefixed(SpanPrefix))
}

// IsValid reports whether s is a bare ULID
func IsValid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// Split separates a prefixed id into its prefix and ULID
func Split(s string) (string, ulid.ULID, error) {
	prefix, rest, ok := strings.Cut(s, "_")
	if !ok || prefix == "" {
		return "", ulid.ULID{}, fmt.Errorf("id %q has no prefix", s)
	}
	u, err := ulid.ParseStrict(rest)
	if err != nil {
		return "", ulid.ULID{}, fmt.Errorf("id %q: %w", s, err)
	}
	return prefix, u, nil
}

// Time returns the creation time encoded in a prefixed id
func Time(s string) (time.Time, error) {
	_, u, err := Split(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
