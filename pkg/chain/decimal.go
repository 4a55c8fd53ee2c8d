package chain

import (
	"database/sql/driver"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Decimal wraps a uint256.Int so values that may exceed 2^63-1 (gas limits,
// wei amounts, total difficulty, fee caps) round-trip losslessly as decimal
// TEXT in the Event Store, instead of being truncated to int64.
type Decimal struct {
	val uint256.Int
}

// NewDecimal wraps a uint256.Int value.
func NewDecimal(v *uint256.Int) Decimal {
	if v == nil {
		return Decimal{}
	}
	return Decimal{val: *v}
}

// DecimalFromBig converts a big.Int, clamping to zero if nil or negative.
func DecimalFromBig(b *big.Int) Decimal {
	if b == nil || b.Sign() < 0 {
		return Decimal{}
	}
	v, _ := uint256.FromBig(b)
	return Decimal{val: *v}
}

// DecimalFromUint64 wraps a uint64 value.
func DecimalFromUint64(v uint64) Decimal {
	return Decimal{val: *uint256.NewInt(v)}
}

// Uint256 returns the underlying uint256.Int.
func (d Decimal) Uint256() *uint256.Int {
	v := d.val
	return &v
}

// Big returns the value as a *big.Int.
func (d Decimal) Big() *big.Int {
	return d.val.ToBig()
}

// String renders the value as decimal text.
func (d Decimal) String() string {
	return d.val.Dec()
}

// MarshalText implements encoding.TextMarshaler.
func (d Decimal) MarshalText() ([]byte, error) {
	return []byte(d.val.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decimal) UnmarshalText(text []byte) error {
	v, err := uint256.FromDecimal(string(text))
	if err != nil {
		return fmt.Errorf("invalid decimal value %q: %w", text, err)
	}
	d.val = *v
	return nil
}

// Value implements database/sql/driver.Valuer, storing the value as decimal
// TEXT.
func (d Decimal) Value() (driver.Value, error) {
	return d.val.Dec(), nil
}

// Scan implements database/sql.Scanner.
func (d *Decimal) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		d.val = uint256.Int{}
		return nil
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		return d.UnmarshalText(v)
	case int64:
		d.val = *uint256.NewInt(uint64(v))
		return nil
	default:
		return fmt.Errorf("unsupported Scan source type %T for Decimal", src)
	}
}
