// README: Common money value object used across modules.
package types

type Money struct {
	Amount   int64
	Currency string
}

// Cents wraps an integer cent amount in the default currency.
func Cents(amount int64) Money {
	return Money{Amount: amount, Currency: "USD"}
}
