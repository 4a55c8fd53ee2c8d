package bloom_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goran-ethernal/ChainIndexor/pkg/bloom"
	"github.com/stretchr/testify/require"
)

// setBloomBit sets the three bits go-ethereum's bloom filter would set for
// the given item, mirroring types.BloomLookup's hashing scheme so tests can
// build a bloom without round-tripping through a real block.
func setBloomBit(b *types.Bloom, data []byte) {
	hash := crypto.Keccak256(data)
	for i := 0; i < 6; i += 2 {
		bit := (uint(hash[i+1]) + (uint(hash[i]) << 8)) & 2047
		byteIdx := len(b) - 1 - int(bit/8)
		b[byteIdx] |= byte(1 << (bit % 8))
	}
}

func buildBloom(addr common.Address, topics ...common.Hash) types.Bloom {
	var b types.Bloom
	setBloomBit(&b, addr.Bytes())
	for _, topic := range topics {
		setBloomBit(&b, topic.Bytes())
	}
	return b
}

func TestMightMatch_AddressOnly(t *testing.T) {
	addr := common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	other := common.HexToAddress("0x1111111111111111111111111111111111111111")

	logsBloom := buildBloom(addr)

	require.True(t, bloom.MightMatch(logsBloom, []bloom.Filter{{Address: addr}}))
	require.False(t, bloom.MightMatch(logsBloom, []bloom.Filter{{Address: other}}))
}

func TestMightMatch_AddressAndTopic(t *testing.T) {
	addr := common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	topic := common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3e")
	otherTopic := common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111"[:66])

	logsBloom := buildBloom(addr, topic)

	match := []bloom.Filter{
		{Address: addr, Topics: [4]bloom.TopicConstraint{{topic}}},
	}
	require.True(t, bloom.MightMatch(logsBloom, match))

	miss := []bloom.Filter{
		{Address: addr, Topics: [4]bloom.TopicConstraint{{otherTopic}}},
	}
	require.False(t, bloom.MightMatch(logsBloom, miss))
}

func TestMightMatch_AnyOfMultipleFiltersPasses(t *testing.T) {
	addr := common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	unrelated := common.HexToAddress("0x2222222222222222222222222222222222222222")
	logsBloom := buildBloom(addr)

	filters := []bloom.Filter{
		{Address: unrelated},
		{Address: addr},
	}
	require.True(t, bloom.MightMatch(logsBloom, filters))
}

func TestMightMatch_TopicConstraintAcceptsAnyAllowedValue(t *testing.T) {
	addr := common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	allowed := common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3e")
	notPresent := common.HexToHash("0x3333333333333333333333333333333333333333333333333333333333333333"[:66])

	logsBloom := buildBloom(addr, allowed)

	filters := []bloom.Filter{
		{Address: addr, Topics: [4]bloom.TopicConstraint{{notPresent, allowed}}},
	}
	require.True(t, bloom.MightMatch(logsBloom, filters))
}

func TestMightMatch_EmptyTopicSlotMatchesAny(t *testing.T) {
	addr := common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	logsBloom := buildBloom(addr)

	filters := []bloom.Filter{{Address: addr}}
	require.True(t, bloom.MightMatch(logsBloom, filters))
}

func TestMightMatch_NoFilters(t *testing.T) {
	require.False(t, bloom.MightMatch(types.Bloom{}, nil))
}
