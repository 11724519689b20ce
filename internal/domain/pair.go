// Package domain defines core data structures shared by the ledger and its glue.
package domain

import (
	"fmt"
	"strings"
)

// Pair exchange ticker pair used to price the native unit.
type Pair struct {
	// From native currency symbol.
	From string
	// To stable currency symbol.
	To string
}

// ParsePair parses BASE_QUOTE notation, e.g. ETH_USDT.
func ParsePair(s string) (Pair, error) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(s)), "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("invalid pair %q, expected BASE_QUOTE", s)
	}

	return Pair{From: parts[0], To: parts[1]}, nil
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the concatenated symbol representation.
func (p Pair) Symbol() string {
	return p.From + p.To
}
