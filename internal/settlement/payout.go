package settlement

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Payout calcula o retorno total (stake + lucro) de uma aposta vencedora em odds americanas:
//
//	odds > 0: amount + amount*odds/100
//	odds < 0: amount + amount*100/|odds|
//
// Odds 0 não existe no formato americano; devolve só o stake. Resultado em centavos.
func Payout(amount decimal.Decimal, odds int) decimal.Decimal {
	var profit decimal.Decimal
	switch {
	case odds > 0:
		profit = amount.Mul(decimal.NewFromInt(int64(odds))).Div(hundred)
	case odds < 0:
		profit = amount.Mul(hundred).Div(decimal.NewFromInt(int64(-odds)))
	default:
		profit = decimal.Zero
	}
	return amount.Add(profit).Round(2)
}
