// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between cents and shilling representations.
package core

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in cents. Amounts in the ledger are never negative.
type Money struct {
	Cents int64
}

var maxShillings = decimal.New((1<<63-1)/100, 0)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// Commas are treated as thousands separators, as in "Ksh 1,234.56".
// The third decimal place is rounded half-up. Signed, zero or malformed
// values return ErrInvalidAmount.
//
// Examples:
//
//	ParseDecimalToCents("1,234.56") -> 123456, nil
//	ParseDecimalToCents("500")      -> 50000, nil
//	ParseDecimalToCents("12.345")   -> 1235, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return 0, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.GreaterThan(maxShillings) {
		return 0, ErrInvalidAmount
	}
	cents := d.Round(2).Shift(2).IntPart()
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseMoney is ParseDecimalToCents wrapped in a Money.
func ParseMoney(s string) (Money, error) {
	cents, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: cents}, nil
}

// Shillings returns the amount as an exact decimal.
func (m Money) Shillings() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// String renders the amount with two decimals, e.g. "1234.50".
func (m Money) String() string {
	return m.Shillings().StringFixed(2)
}

// FormatKES renders whole shillings with thousands separators ("KES 1,235").
func FormatKES(m Money) string {
	rounded := m.Shillings().Round(0).IntPart()
	neg := rounded < 0
	if neg {
		rounded = -rounded
	}
	digits := strconv.FormatInt(rounded, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "KES -" + b.String()
	}
	return "KES " + b.String()
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || string(data) == "null" {
		m.Cents = 0
		return nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(string(data), ",", ""))
	if err != nil {
		return ErrInvalidAmount
	}
	if d.IsNegative() || d.GreaterThan(maxShillings) {
		return ErrInvalidAmount
	}
	m.Cents = d.Round(2).Shift(2).IntPart()
	return nil
}
