// Package randutil mints throwaway identities for scenarios that write to the
// shared application. Values are pseudo-random and only probabilistically
// unique.
package randutil

import (
	"fmt"
	"math/rand/v2"
)

const (
	// Min is the smallest value Number returns.
	Min = 100000
	// Max is the exclusive upper bound of Number.
	Max = 999999
)

// Number returns a pseudo-random integer in [Min, Max).
func Number() int {
	return Min + rand.IntN(Max-Min)
}

// Email returns a fresh address for registration scenarios.
func Email() string {
	return fmt.Sprintf("email%d@abv.bg", Number())
}

// Password returns a fresh password for registration scenarios.
func Password() string {
	return fmt.Sprintf("RandomPa$$%d", Number())
}

// BookTitle returns a fresh book title.
func BookTitle() string {
	return fmt.Sprintf("Test Book%d", Number())
}
