package logfilter_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/ChainIndexor/pkg/chain"
	"github.com/goran-ethernal/ChainIndexor/pkg/logfilter"
	"github.com/stretchr/testify/require"
)

func hashPtr(h common.Hash) *common.Hash { return &h }

func TestMatch_AddressAndTopic(t *testing.T) {
	addr := common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	other := common.HexToAddress("0x1111111111111111111111111111111111111111")
	transferTopic := common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3e")
	approveTopic := common.HexToHash("0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925")

	logs := []chain.Log{
		{LogID: "1", Address: addr, Topic0: hashPtr(transferTopic)},
		{LogID: "2", Address: addr, Topic0: hashPtr(approveTopic)},
		{LogID: "3", Address: other, Topic0: hashPtr(transferTopic)},
	}

	filters := []logfilter.Filter{
		{Address: addr, Topics: [4]logfilter.TopicConstraint{{transferTopic}}},
	}

	matched := logfilter.Match(logs, filters)
	require.Len(t, matched, 1)
	require.Equal(t, "1", matched[0].LogID)
}

func TestMatch_EmptyTopicConstraintMatchesAny(t *testing.T) {
	addr := common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	topicA := common.HexToHash("0xaaaa000000000000000000000000000000000000000000000000000000000a")
	topicB := common.HexToHash("0xbbbb000000000000000000000000000000000000000000000000000000000b")

	logs := []chain.Log{
		{LogID: "1", Address: addr, Topic0: hashPtr(topicA)},
		{LogID: "2", Address: addr, Topic0: hashPtr(topicB)},
	}

	filters := []logfilter.Filter{{Address: addr}}

	matched := logfilter.Match(logs, filters)
	require.Len(t, matched, 2)
}

func TestMatch_NilTopicOnLogFailsNonEmptyConstraint(t *testing.T) {
	addr := common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	topicA := common.HexToHash("0xaaaa000000000000000000000000000000000000000000000000000000000a")

	logs := []chain.Log{
		{LogID: "1", Address: addr, Topic0: nil},
	}

	filters := []logfilter.Filter{
		{Address: addr, Topics: [4]logfilter.TopicConstraint{{topicA}}},
	}

	require.Empty(t, logfilter.Match(logs, filters))
}

func TestMatch_PreservesInputOrder(t *testing.T) {
	addr := common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	logs := []chain.Log{
		{LogID: "3", Address: addr, LogIndex: 3},
		{LogID: "1", Address: addr, LogIndex: 1},
		{LogID: "2", Address: addr, LogIndex: 2},
	}

	filters := []logfilter.Filter{{Address: addr}}

	matched := logfilter.Match(logs, filters)
	require.Equal(t, []string{"3", "1", "2"}, []string{matched[0].LogID, matched[1].LogID, matched[2].LogID})
}

func TestMatch_NoFiltersMatchesNothing(t *testing.T) {
	addr := common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	logs := []chain.Log{{LogID: "1", Address: addr}}

	require.Empty(t, logfilter.Match(logs, nil))
}
