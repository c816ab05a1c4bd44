package simstack

import "math/rand"

// Config controls the realism of the simulated stack
type Config struct {
	// Timing (in milliseconds)
	InitDelay       int // stack init completion delay. Default: 50ms
	ConnectDelay    int // connection establishment delay. Default: 30ms
	PairingDelay    int // delay before each pairing event. Default: 20ms
	DisconnectDelay int // delay before a disconnect is reported. Default: 10ms

	// Failure injection
	FailInit           bool    // deliver an error from init
	PairingFailureRate float64 // fraction of pairings that fail. Default: 0

	// Deterministic mode for reproducible scenarios
	Deterministic bool
	Seed          int64

	// EventLog enables the append-only JSONL lifecycle log
	EventLog bool
}

// DefaultConfig returns realistic simulation timing
func DefaultConfig() *Config {
	return &Config{
		InitDelay:       50,
		ConnectDelay:    30,
		PairingDelay:    20,
		DisconnectDelay: 10,
	}
}

// PerfectConfig returns zero-delay, zero-failure settings for tests. All
// events are posted directly onto the queue, so a single DispatchPending
// drains a whole exchange.
func PerfectConfig() *Config {
	return &Config{Deterministic: true}
}

func (c *Config) newRand() *rand.Rand {
	if c.Deterministic {
		return rand.New(rand.NewSource(c.Seed))
	}
	return rand.New(rand.NewSource(rand.Int63()))
}
