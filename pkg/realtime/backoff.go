package realtime

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"time"
)

// Backoff computes reconnect delays: exponential growth capped at Max, with
// ±25% jitter so a fleet of dashboards does not reconnect in lockstep.
type Backoff struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff matches the reconnect policy shipped in the default config.
var DefaultBackoff = Backoff{
	Base:       500 * time.Millisecond,
	Max:        30 * time.Second,
	Multiplier: 2.0,
}

// Delay returns the jittered delay for the given attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = DefaultBackoff.Base
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = DefaultBackoff.Multiplier
	}
	max := b.Max
	if max <= 0 {
		max = DefaultBackoff.Max
	}

	d := float64(base)
	for i := 0; i < attempt; i++ {
		d *= mult
		if d >= float64(max) {
			d = float64(max)
			break
		}
	}
	jitter := 0.75 + cryptoRandFloat64()*0.5
	delay := time.Duration(d * jitter)
	if delay > max {
		delay = max
	}
	return delay
}

func cryptoRandFloat64() float64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		return 0.5
	}
	n := binary.BigEndian.Uint64(buf[:]) >> 11 // 53 bits
	return float64(n) / float64(uint64(1)<<53)
}
