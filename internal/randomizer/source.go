package randomizer

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

const (
	lcgMultiplier = 6364136223846793005
	lcgIncrement  = 1442695040888963407
)

// Source is a 64-bit linear congruential generator. The same seed always yields
// the same stream, on every platform and Go release, which math/rand does not promise.
type Source struct {
	state uint64
}

func NewSource(seed int64) *Source {
	return &Source{state: uint64(seed)}
}

// Uint32 advances the generator and returns the high 32 bits of the new state.
func (s *Source) Uint32() uint32 {
	s.state = s.state*lcgMultiplier + lcgIncrement
	return uint32(s.state >> 32)
}

// Intn returns a value in [0, n). n must be positive.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		panic("randomizer: Intn called with non-positive n")
	}
	return int((uint64(s.Uint32()) * uint64(n)) >> 32)
}

// Shuffle is a Fisher-Yates pass from the last index down.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := s.Intn(i + 1)
		swap(i, j)
	}
}

// NewSeed draws a 32-bit seed from the operating system's secure source.
func NewSeed() (int64, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("failed to read random seed: %w", err)
	}
	return int64(binary.BigEndian.Uint32(buf[:])), nil
}
