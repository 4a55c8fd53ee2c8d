// Package bloom implements the Bloom Pre-Filter: a pure, false-negative-free
// screen over a block's logs-bloom that decides whether a block might
// contain a log matching a configured filter, without fetching the block's
// logs.
package bloom

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TopicConstraint is the set of allowed hashes for one topic slot. A nil
// TopicConstraint matches any value in that slot.
type TopicConstraint []common.Hash

// Filter is one address + topic-pattern matching rule.
type Filter struct {
	Address common.Address
	Topics  [4]TopicConstraint
}

// MightMatch reports whether logsBloom could contain a log matching any of
// the given filters. It never returns false for a block that actually
// contains a match (no false negatives); it may return true for a block
// that does not (false positives are allowed, since the bloom filter is
// probabilistic).
func MightMatch(logsBloom types.Bloom, filters []Filter) bool {
	for _, f := range filters {
		if filterMightMatch(logsBloom, f) {
			return true
		}
	}
	return false
}

func filterMightMatch(logsBloom types.Bloom, f Filter) bool {
	if !types.BloomLookup(logsBloom, f.Address) {
		return false
	}

	for _, constraint := range f.Topics {
		if len(constraint) == 0 {
			continue
		}
		if !topicConstraintMightMatch(logsBloom, constraint) {
			return false
		}
	}

	return true
}

func topicConstraintMightMatch(logsBloom types.Bloom, constraint TopicConstraint) bool {
	for _, topic := range constraint {
		if types.BloomLookup(logsBloom, topic) {
			return true
		}
	}
	return false
}
