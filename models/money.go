package models

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is the single settlement currency of the paper account
const Currency = money.USD

// FormatMoney renders an amount in the settlement currency, e.g. "$1,234.50".
// Amounts are rounded half away from zero to the currency's minor unit.
func FormatMoney(amount decimal.Decimal) string {
	cur := money.New(0, Currency).Currency()
	minor := amount.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return money.New(minor.IntPart(), Currency).Display()
}
