// Package caseref generates human-facing tracking labels for requests.
//
// Labels are random and never checked against existing records, so two
// requests may share one. They are display values and must not be used as keys.
package caseref

import (
	"fmt"
	"math/rand"
	"time"
)

// FOIPrefix is the literal prefix of FOI case references.
const FOIPrefix = "FOI"

// Generator builds case references from a random source and a clock.
type Generator struct {
	intN func(n int) int
	now  func() time.Time
}

// NewGenerator returns a Generator backed by math/rand and time.Now.
func NewGenerator() *Generator {
	return &Generator{intN: rand.Intn, now: time.Now}
}

// NewGeneratorWith returns a Generator using the given sources. Nil arguments fall back to the defaults.
func NewGeneratorWith(intN func(n int) int, now func() time.Time) *Generator {
	g := NewGenerator()
	if intN != nil {
		g.intN = intN
	}
	if now != nil {
		g.now = now
	}
	return g
}

// FOI returns "FOI-NNNN" with NNNN in [1000, 9999].
func (g *Generator) FOI() string {
	return fmt.Sprintf("%s-%d", FOIPrefix, 1000+g.intN(9000))
}

// Audit returns the last two digits of the current year followed by a number in [100, 999].
func (g *Generator) Audit() string {
	return fmt.Sprintf("%02d%d", g.now().UTC().Year()%100, 100+g.intN(900))
}
