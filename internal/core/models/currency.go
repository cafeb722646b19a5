package models

const (
	CurrencyLYD = "LYD"
	CurrencyUSD = "USD"
)

type Currency struct {
	Code          string `json:"code" db:"code"`                       // ISO 4217
	Name          string `json:"name" db:"name"`                       // Full currency name
	MinorUnitName string `json:"minor_unit_name" db:"minor_unit_name"` // "dirham", "cent"
	MinorUnits    int64  `json:"minor_units" db:"minor_units"`         // Decimal places of the minor unit
}

func IsSupportedCurrency(code string) bool {
	return code == CurrencyLYD || code == CurrencyUSD
}
