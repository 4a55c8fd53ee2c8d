package db

import (
	"database/sql"
	"fmt"

	"github.com/goran-ethernal/ChainIndexor/pkg/chain"
	"github.com/russross/meddler"
)

func init() {
	// Register custom meddler converter for chain.Decimal, so large
	// integers (gas, value, fee fields) round-trip as decimal TEXT instead
	// of being truncated to int64.
	meddler.Register("decimal", DecimalMeddler{})
}

// DecimalMeddler handles conversion between chain.Decimal and the
// database's decimal TEXT representation.
type DecimalMeddler struct{}

func (d DecimalMeddler) PreRead(fieldAddr interface{}) (scanTarget interface{}, err error) {
	return new(sql.NullString), nil
}

func (d DecimalMeddler) PostRead(fieldAddr, scanTarget interface{}) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	if ptr, ok := fieldAddr.(**chain.Decimal); ok {
		if !ns.Valid {
			*ptr = nil
			return nil
		}
		var dec chain.Decimal
		if err := dec.UnmarshalText([]byte(ns.String)); err != nil {
			return err
		}
		*ptr = &dec
		return nil
	}

	if ptr, ok := fieldAddr.(*chain.Decimal); ok {
		if !ns.Valid {
			*ptr = chain.Decimal{}
			return nil
		}
		return ptr.UnmarshalText([]byte(ns.String))
	}

	return fmt.Errorf("expected *chain.Decimal or **chain.Decimal, got %T", fieldAddr)
}

func (d DecimalMeddler) PreWrite(field interface{}) (saveValue interface{}, err error) {
	if ptr, ok := field.(*chain.Decimal); ok {
		if ptr == nil {
			return nil, nil
		}
		return ptr.String(), nil
	}

	if dec, ok := field.(chain.Decimal); ok {
		return dec.String(), nil
	}

	return nil, fmt.Errorf("expected chain.Decimal or *chain.Decimal, got %T", field)
}
