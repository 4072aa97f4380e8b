// Package biz provides business logic for the version comparison service.
package biz

import (
	"github.com/shopspring/decimal"
)

// modelRates maps a model identifier to its cost per 1000 tokens in USD.
// Rates are blended prompt/completion approximations, good enough for
// budgeting and rate limiting; exact billing belongs to the provider invoice.
var modelRates = map[string]decimal.Decimal{
	"gpt-4o-mini":   decimal.RequireFromString("0.000150"),
	"gpt-4o":        decimal.RequireFromString("0.002500"),
	"gpt-4-turbo":   decimal.RequireFromString("0.010000"),
	"gpt-3.5-turbo": decimal.RequireFromString("0.000500"),
}

var thousand = decimal.NewFromInt(1000)

// cheapestRate returns the lowest known per-1000-token rate.
func cheapestRate() decimal.Decimal {
	var cheapest decimal.Decimal
	first := true
	for _, rate := range modelRates {
		if first || rate.LessThan(cheapest) {
			cheapest = rate
			first = false
		}
	}
	return cheapest
}

// EstimateCost returns the estimated USD cost of tokenCount tokens on the
// given model. Unknown models fall back to the cheapest known tier. Pure
// function: callable both before and after an operation.
func EstimateCost(model string, tokenCount int) decimal.Decimal {
	rate, ok := modelRates[model]
	if !ok {
		rate = cheapestRate()
	}
	return rate.Mul(decimal.NewFromInt(int64(tokenCount))).Div(thousand)
}

// KnownModels lists the models with configured rates.
func KnownModels() []string {
	names := make([]string, 0, len(modelRates))
	for name := range modelRates {
		names = append(names, name)
	}
	return names
}
