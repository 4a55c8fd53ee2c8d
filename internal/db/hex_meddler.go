package db

import (
	"database/sql"
	"fmt"
)

// hexMeddler is a meddler.Meddler for any fixed-size go-ethereum value type
// (common.Address, common.Hash, ...) that round-trips through a hex string
// column. Both the address and hash columns in this schema use the same
// nullable-string-to-fixed-type shape, so AddressMeddler and HashMeddler
// share this implementation instead of each hand-rolling it.
type hexMeddler[T any] struct {
	decode func(string) T
	encode func(T) string
}

func (h hexMeddler[T]) PreRead(fieldAddr interface{}) (scanTarget interface{}, err error) {
	return new(sql.NullString), nil
}

func (h hexMeddler[T]) PostRead(fieldAddr, scanTarget interface{}) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	if ptr, ok := fieldAddr.(**T); ok {
		if !ns.Valid {
			*ptr = nil
			return nil
		}
		v := h.decode(ns.String)
		*ptr = &v
		return nil
	}

	if ptr, ok := fieldAddr.(*T); ok {
		if !ns.Valid {
			*ptr = *new(T)
			return nil
		}
		*ptr = h.decode(ns.String)
		return nil
	}

	return fmt.Errorf("expected *%T or **%T, got %T", *new(T), *new(T), fieldAddr)
}

func (h hexMeddler[T]) PreWrite(field interface{}) (saveValue interface{}, err error) {
	if ptr, ok := field.(*T); ok {
		if ptr == nil {
			return nil, nil
		}
		return h.encode(*ptr), nil
	}

	if v, ok := field.(T); ok {
		return h.encode(v), nil
	}

	return nil, fmt.Errorf("expected %T or *%T, got %T", *new(T), *new(T), field)
}
