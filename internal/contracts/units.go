package contracts

import (
	"fmt"
	"math/big"
	"strings"
)

// TokenDecimals is the fixed decimal scaling of the MST token.
const TokenDecimals = 18

// TokenSymbol is the display symbol of the test token.
const TokenSymbol = "MST"

func decimalsFactor() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)
}

// ParseUnits parses a decimal token amount string to its smallest-unit
// integer representation. All validation and comparison happens on the
// integer form; floating arithmetic is never used for amounts.
func ParseUnits(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	parts := strings.Split(amount, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}

	// The sign check must look at the text: "-0.5" parses to a zero whole
	// part, which Sign() reports as non-negative.
	if strings.HasPrefix(parts[0], "-") {
		return nil, fmt.Errorf("negative amount: %s", amount)
	}
	whole, ok := new(big.Int).SetString(parts[0], 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}

	result := new(big.Int).Mul(whole, decimalsFactor())

	if len(parts) == 2 {
		fracStr := parts[1]
		if fracStr == "" || strings.ContainsAny(fracStr, "+-") {
			return nil, fmt.Errorf("invalid decimal: %s", amount)
		}
		// Pad or truncate to 18 decimals
		for len(fracStr) < TokenDecimals {
			fracStr += "0"
		}
		if len(fracStr) > TokenDecimals {
			fracStr = fracStr[:TokenDecimals]
		}
		frac, ok := new(big.Int).SetString(fracStr, 10)
		if !ok {
			return nil, fmt.Errorf("invalid decimal: %s", amount)
		}
		result.Add(result, frac)
	}

	return result, nil
}

// FormatUnits formats a smallest-unit integer amount as a decimal string.
// Unknown (nil) amounts format as "0"; this is a display placeholder only,
// callers deciding whether an action is allowed must check for nil themselves.
func FormatUnits(amount *big.Int) string {
	if amount == nil {
		return "0"
	}

	factor := decimalsFactor()
	whole := new(big.Int).Div(amount, factor)
	frac := new(big.Int).Mod(amount, factor)

	if frac.Sign() == 0 {
		return whole.String()
	}

	fracStr := frac.String()
	for len(fracStr) < TokenDecimals {
		fracStr = "0" + fracStr
	}
	// Trim trailing zeros
	for len(fracStr) > 0 && fracStr[len(fracStr)-1] == '0' {
		fracStr = fracStr[:len(fracStr)-1]
	}

	if len(fracStr) == 0 {
		return whole.String()
	}
	return whole.String() + "." + fracStr
}

// FormatUnitsFixed formats with exactly the given number of fraction digits,
// matching the dashboard's fixed-width displays.
func FormatUnitsFixed(amount *big.Int, places int) string {
	if amount == nil {
		amount = big.NewInt(0)
	}

	factor := decimalsFactor()
	whole := new(big.Int).Div(amount, factor)
	frac := new(big.Int).Mod(amount, factor)

	if places <= 0 {
		return whole.String()
	}

	fracStr := frac.String()
	for len(fracStr) < TokenDecimals {
		fracStr = "0" + fracStr
	}
	if len(fracStr) > places {
		fracStr = fracStr[:places]
	}
	return whole.String() + "." + fracStr
}
