package db

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/russross/meddler"
)

func init() {
	// Register custom meddler converter for types.Bloom
	meddler.Register("bloom", BloomMeddler{})
}

// BloomMeddler handles conversion between types.Bloom and the database's
// hex string representation.
type BloomMeddler struct{}

func (b BloomMeddler) PreRead(fieldAddr interface{}) (scanTarget interface{}, err error) {
	return new(string), nil
}

func (b BloomMeddler) PostRead(fieldAddr, scanTarget interface{}) error {
	s, ok := scanTarget.(*string)
	if !ok {
		return fmt.Errorf("expected *string, got %T", scanTarget)
	}

	ptr, ok := fieldAddr.(*types.Bloom)
	if !ok {
		return fmt.Errorf("expected *types.Bloom, got %T", fieldAddr)
	}
	decoded, err := hex.DecodeString(strings.TrimPrefix(*s, "0x"))
	if err != nil {
		return fmt.Errorf("invalid logsBloom hex: %w", err)
	}
	*ptr = types.BytesToBloom(decoded)
	return nil
}

func (b BloomMeddler) PreWrite(field interface{}) (saveValue interface{}, err error) {
	bloom, ok := field.(types.Bloom)
	if !ok {
		return "", fmt.Errorf("expected types.Bloom, got %T", field)
	}
	return "0x" + hex.EncodeToString(bloom.Bytes()), nil
}
