package utils

import (
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var errInvalidNumber = errors.New("invalid value")

// MoneyPlaces is the precision every stored quantity and amount is rounded to.
const MoneyPlaces = 2

// Bounds of the decimal(20,2) columns. MaxFractionDigits only limits how much precision
// is accepted before rounding.
const (
	MaxIntegerDigits  = 18
	MaxFractionDigits = 30
)

// InStorableRange reports whether d fits a decimal(20,2) column. It only looks at the
// exponent and the coefficient length, so it stays cheap for inputs like 1e200000000.
func InStorableRange(d decimal.Decimal) bool {
	exp := int(d.Exponent())
	if exp < -MaxFractionDigits {
		return false
	}
	return d.NumDigits()+exp <= MaxIntegerDigits
}

// RoundMoney rounds half away from zero to two places.
// Values outside InStorableRange come back unrounded; callers reject them.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	if !InStorableRange(d) {
		return d
	}
	return d.Round(MoneyPlaces)
}

// RoundFloat2 rounds a float64 to two places, going through decimal so 1.005 becomes 1.01.
func RoundFloat2(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	out, _ := decimal.NewFromFloat(f).Round(MoneyPlaces).Float64()
	return out
}

// NormalizeQuantity coerces any raw stored or user-entered value into a rounded decimal.
// Missing and non-numeric input becomes zero; it never fails.
func NormalizeQuantity(raw any) decimal.Decimal {
	d, ok := toDecimal(raw)
	if !ok {
		return decimal.Zero
	}
	return RoundMoney(d)
}

// NormalizeNullableQuantity keeps nil as null; only final_products may be null.
func NormalizeNullableQuantity(raw any) decimal.NullDecimal {
	switch v := raw.(type) {
	case nil:
		return decimal.NullDecimal{}
	case decimal.NullDecimal:
		if !v.Valid {
			return v
		}
		return decimal.NewNullDecimal(RoundMoney(v.Decimal))
	case *decimal.Decimal:
		if v == nil {
			return decimal.NullDecimal{}
		}
	}
	return decimal.NewNullDecimal(NormalizeQuantity(raw))
}

func toDecimal(raw any) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, true
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, false
		}
		return *v, true
	case decimal.NullDecimal:
		return v.Decimal, v.Valid
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int8:
		return decimal.NewFromInt(int64(v)), true
	case int16:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt32(v), true
	case int64:
		return decimal.NewFromInt(v), true
	case uint:
		return fromUint64(uint64(v)), true
	case uint8:
		return fromUint64(uint64(v)), true
	case uint16:
		return fromUint64(uint64(v)), true
	case uint32:
		return fromUint64(uint64(v)), true
	case uint64:
		return fromUint64(v), true
	case float32:
		return fromFloat(float64(v))
	case float64:
		return fromFloat(v)
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case string:
		d, err := ParseFormattedDecimal(v)
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// ParseFormattedDecimal accepts user-formatted numbers like "1,234.50", " -20 " or "$ 12".
// Keep digits, '.', and a leading '-' only.
func ParseFormattedDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}
	var b strings.Builder
	b.Grow(len(s) + 1)
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" {
		return decimal.Zero, errInvalidNumber
	}
	if neg {
		clean = "-" + clean
	}
	return decimal.NewFromString(clean)
}
