package postgres

import (
	"github.com/oklog/ulid/v2"
)

// ULIDGenerator mints record identifiers. ULIDs sort by creation time,
// which keeps the income log browsable by id alone.
type ULIDGenerator struct{}

// NewULIDGenerator creates a new ULIDGenerator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{}
}

// Generate returns a fresh ULID string.
func (g *ULIDGenerator) Generate() string {
	return ulid.Make().String()
}
