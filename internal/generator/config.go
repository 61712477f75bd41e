package generator

import "time"

// Encoding selects how boolean flags are written, matching one of the two
// upstream API generations.
type Encoding string

const (
	EncodingV1    Encoding = "v1"    // "True" / "False" strings
	EncodingV2    Encoding = "v2"    // native booleans
	EncodingMixed Encoding = "mixed" // chosen per client
)

// Config drives the synthetic client detail generator. Chance fields are
// probabilities in [0, 1]. SharedCardChance reuses a card already issued to
// another client; MalformedChance drops billing details from a record. A zero
// Now anchors timestamps at the current time.
type Config struct {
	NumClients               int
	MaxCardsPerClient        int
	MultiEntityChance        float64
	SharedCardChance         float64
	MalformedChance          float64
	ConflictingDefaultChance float64
	Encoding                 Encoding
	Entities                 []string
	Seed                     int64
	Now                      time.Time
}

// DefaultConfig returns settings that exercise every grouping edge case.
func DefaultConfig() Config {
	return Config{
		NumClients:               50,
		MaxCardsPerClient:        4,
		MultiEntityChance:        0.6,
		SharedCardChance:         0.1,
		MalformedChance:          0.03,
		ConflictingDefaultChance: 0.05,
		Encoding:                 EncodingMixed,
		Entities:                 []string{"wc", "cg", "vbc"},
		Seed:                     42,
	}
}
