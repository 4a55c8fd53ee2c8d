package realtime

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/ChainIndexor/pkg/bloom"
	"github.com/goran-ethernal/ChainIndexor/pkg/config"
	"github.com/goran-ethernal/ChainIndexor/pkg/eventstore"
	"github.com/goran-ethernal/ChainIndexor/pkg/logfilter"
)

// resolvedFilter is one log filter rule with its address and topic hashes
// parsed, ready to drive both the Bloom Pre-Filter and the Log Filter.
type resolvedFilter struct {
	Key      string
	Address  common.Address
	Topics   [4][]common.Hash
	EndBlock *uint64
}

func resolveFilters(cfgs []config.LogFilterConfig) ([]resolvedFilter, error) {
	out := make([]resolvedFilter, len(cfgs))
	for i, cfg := range cfgs {
		if !common.IsHexAddress(cfg.Filter.Address) {
			return nil, fmt.Errorf("logFilters[%s]: invalid address %q", cfg.Key, cfg.Filter.Address)
		}

		resolved := resolvedFilter{
			Key:      cfg.Key,
			Address:  common.HexToAddress(cfg.Filter.Address),
			EndBlock: cfg.Filter.EndBlock,
		}

		for slot, values := range cfg.Filter.Topics {
			if slot > 3 {
				return nil, fmt.Errorf("logFilters[%s]: at most 4 topic slots are supported", cfg.Key)
			}
			hashes := make([]common.Hash, len(values))
			for j, v := range values {
				hashes[j] = common.HexToHash(v)
			}
			resolved.Topics[slot] = hashes
		}

		out[i] = resolved
	}
	return out, nil
}

func (f resolvedFilter) bloomFilter() bloom.Filter {
	var topics [4]bloom.TopicConstraint
	for i, t := range f.Topics {
		topics[i] = bloom.TopicConstraint(t)
	}
	return bloom.Filter{Address: f.Address, Topics: topics}
}

func (f resolvedFilter) logFilter() logfilter.Filter {
	var topics [4]logfilter.TopicConstraint
	for i, t := range f.Topics {
		topics[i] = logfilter.TopicConstraint(t)
	}
	return logfilter.Filter{Address: f.Address, Topics: topics}
}

func (f resolvedFilter) cachedRangeKey() eventstore.CachedRangeFilterKey {
	return eventstore.CachedRangeFilterKey{LogFilterKey: f.Key, ContractAddress: f.Address}
}

func bloomFilters(filters []resolvedFilter) []bloom.Filter {
	out := make([]bloom.Filter, len(filters))
	for i, f := range filters {
		out[i] = f.bloomFilter()
	}
	return out
}

func logFilters(filters []resolvedFilter) []logfilter.Filter {
	out := make([]logfilter.Filter, len(filters))
	for i, f := range filters {
		out[i] = f.logFilter()
	}
	return out
}

func cachedRangeKeys(filters []resolvedFilter) []eventstore.CachedRangeFilterKey {
	out := make([]eventstore.CachedRangeFilterKey, len(filters))
	for i, f := range filters {
		out[i] = f.cachedRangeKey()
	}
	return out
}
