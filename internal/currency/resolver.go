package currency

import "strings"

// Currency is the resolved code/symbol pair for a session locale.
type Currency struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
}

var byLocale = map[string]Currency{
	"pl-pl": {Code: "PLN", Symbol: "zł"},
	"en-gb": {Code: "GBP", Symbol: "£"},
	"en-us": {Code: "USD", Symbol: "$"},
	"de-de": {Code: "EUR", Symbol: "€"},
	"cs-cz": {Code: "CZK", Symbol: "Kč"},
	"uk-ua": {Code: "UAH", Symbol: "₴"},
}

var byLanguage = map[string]Currency{
	"pl": {Code: "PLN", Symbol: "zł"},
	"en": {Code: "GBP", Symbol: "£"},
	"de": {Code: "EUR", Symbol: "€"},
	"cs": {Code: "CZK", Symbol: "Kč"},
	"uk": {Code: "UAH", Symbol: "₴"},
}

var defaultCurrency = Currency{Code: "PLN", Symbol: "zł"}

// Resolve maps a session locale such as "pl-PL" or "en" to its currency.
// Unknown locales fall back to the store default.
func Resolve(locale string) Currency {
	normalized := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(locale, "_", "-")))
	if c, ok := byLocale[normalized]; ok {
		return c
	}
	lang, _, _ := strings.Cut(normalized, "-")
	if c, ok := byLanguage[lang]; ok {
		return c
	}
	return defaultCurrency
}
