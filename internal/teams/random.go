/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package teams

import (
	crand "crypto/rand"
	"math/big"
	"math/rand"
	"sync"
	"time"
)

// RandomSource supplies uniform integers in [0, n). *rand.Rand satisfies it.
type RandomSource interface {
	Intn(n int) int
}

type cryptoSource struct{}

// NewCryptoSource returns a source backed by crypto/rand.
func NewCryptoSource() RandomSource {
	return cryptoSource{}
}

func (cryptoSource) Intn(n int) int {
	v, err := crand.Int(crand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// fallback to math/rand if crypto fails
		return rand.New(rand.NewSource(time.Now().UnixNano())).Intn(n) // #nosec G404
	}
	return int(v.Int64())
}

type seededSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSeededSource returns a reproducible source: the same seed always yields
// the same sequence, and therefore the same draws.
func NewSeededSource(seed int64) RandomSource {
	return &seededSource{
		rnd: rand.New(rand.NewSource(seed)), // #nosec G404
	}
}

func (s *seededSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}
