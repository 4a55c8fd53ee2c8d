// Package logfilter implements the Log Filter: a pure function that
// selects, from a list of raw logs, those matching a set of address/topic
// filter specs, preserving input order.
package logfilter

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/ChainIndexor/pkg/chain"
)

// TopicConstraint is the set of allowed hashes for one topic slot. A nil
// TopicConstraint matches any value in that slot.
type TopicConstraint []common.Hash

// Filter is one address + topic-pattern matching rule.
type Filter struct {
	Address common.Address
	Topics  [4]TopicConstraint
}

// Match returns the logs matching any of the given filters, preserving
// the order of logs. A log matches a filter iff its address equals the
// filter's address and, for each topic position, either the filter's
// constraint for that position is empty (matches any) or the log's topic
// at that position is present in the constraint's allowed set.
func Match(logs []chain.Log, filters []Filter) []chain.Log {
	matched := make([]chain.Log, 0, len(logs))
	for _, log := range logs {
		if logMatchesAny(log, filters) {
			matched = append(matched, log)
		}
	}
	return matched
}

func logMatchesAny(log chain.Log, filters []Filter) bool {
	for _, f := range filters {
		if logMatches(log, f) {
			return true
		}
	}
	return false
}

func logMatches(log chain.Log, f Filter) bool {
	if log.Address != f.Address {
		return false
	}

	topics := log.Topics()
	for i, constraint := range f.Topics {
		if len(constraint) == 0 {
			continue
		}
		if topics[i] == nil {
			return false
		}
		if !topicInConstraint(*topics[i], constraint) {
			return false
		}
	}

	return true
}

func topicInConstraint(topic common.Hash, constraint TopicConstraint) bool {
	for _, allowed := range constraint {
		if allowed == topic {
			return true
		}
	}
	return false
}
