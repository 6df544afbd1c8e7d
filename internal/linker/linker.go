// Package linker pairs extracted entities with nearby structured
// identifiers. Enforcement orders carry no markup tying a name to its tax or
// registration number; textual proximity is the only available signal, so
// every pairing is a heuristic and the distance is exposed for consumers
// that want a stricter cutoff.
package linker

import (
	"strings"

	"github.com/regwatch/regcrawl/internal/domain"
)

// DefaultMaxDistance is the cutoff, in character positions, beyond which an
// identifier is considered unrelated to an entity. It bounds false positives
// from identifiers appearing elsewhere in a long document.
const DefaultMaxDistance = 2000

// addressPrefixLength is how much of an address must appear verbatim in an
// entity's context window for the context channel of address matching.
const addressPrefixLength = 50

// Linker computes nearest-identifier-per-entity pairings under a distance
// cutoff.
type Linker struct {
	maxDistance float64
}

// New creates a linker. A non-positive maxDistance selects the default.
func New(maxDistance float64) *Linker {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	return &Linker{maxDistance: maxDistance}
}

// Link pairs each entity with its nearest identifier of every kind present
// in identifiers. Distances are measured between span midpoints; a pair is
// produced only when the distance is strictly below the cutoff. Kinds are
// independent: an entity may be paired with at most one identifier of each
// kind, and one identifier may serve several entities. Ties on distance go
// to the identifier that appears first in document order, which is the
// order the extractor emits.
func (l *Linker) Link(
	entities []domain.Entity,
	identifiers map[domain.IdentifierKind][]domain.IdentifierMatch,
) []domain.EntityIdentifierPair {
	var pairs []domain.EntityIdentifierPair

	for _, entity := range entities {
		center := entity.Span.Center()

		for _, candidates := range identifiers {
			best := -1
			bestDistance := l.maxDistance

			for i, candidate := range candidates {
				distance := abs(center - candidate.Span.Center())
				if distance < bestDistance {
					best = i
					bestDistance = distance
				}
			}

			if best >= 0 {
				pairs = append(pairs, domain.EntityIdentifierPair{
					Entity:     entity,
					Identifier: candidates[best],
					Distance:   bestDistance,
				})
			}
		}
	}

	return pairs
}

// MatchAddress associates an address with an entity through the crude
// non-distance channel: either a whitespace-delimited token of the entity's
// name occurs inside the address (case-insensitive), or the address's
// leading characters appear verbatim in the entity's context window. The
// first qualifying address in document order wins.
func MatchAddress(entity domain.Entity, addresses []string, context string) (string, bool) {
	tokens := strings.Fields(strings.ToLower(entity.Text))

	for _, address := range addresses {
		lowerAddress := strings.ToLower(address)
		for _, token := range tokens {
			if strings.Contains(lowerAddress, token) {
				return address, true
			}
		}

		prefix := address
		if len(prefix) > addressPrefixLength {
			prefix = prefix[:addressPrefixLength]
		}
		if strings.Contains(context, prefix) {
			return address, true
		}
	}

	return "", false
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
