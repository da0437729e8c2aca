// Package id issues ULIDs for trades and backtest runs.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var defaultGen *Generator

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	defaultGen = NewGenerator(seed)
}

// New returns a ULID stamped with the current time.
func New() string {
	return defaultGen.At(time.Now())
}

// Generator produces monotonic ULIDs from a seeded entropy source, so a
// fixed seed and fixed timestamps always give the same IDs.
type Generator struct {
	mu   sync.Mutex
	mono io.Reader
}

func NewGenerator(seed int64) *Generator {
	return &Generator{mono: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)}
}

// At returns a ULID stamped with t.
func (g *Generator) At(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t.UTC()), g.mono)
	if err != nil {
		// only on entropy exhaustion within one millisecond
		panic(err)
	}
	return id.String()
}
