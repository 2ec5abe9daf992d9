// Package models holds the fixed catalogue of chat models the client accepts and their prices.
package models

import (
	"fmt"
	"slices"
)

const Default = "gpt-4o-mini"

// Rate is a price in US dollars per one million tokens.
type Rate struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

var supported = []string{"gpt-4o-mini", "gpt-4o", "gpt-4-turbo", "gpt-3.5-turbo"}

var pricing = map[string]Rate{
	"gpt-4o-mini":   {Input: 0.150, Output: 0.6},
	"gpt-4o":        {Input: 5, Output: 15},
	"gpt-4-turbo":   {Input: 10, Output: 30},
	"gpt-3.5-turbo": {Input: 0.5, Output: 1.5},
}

// Supported returns the accepted model identifiers in catalogue order.
func Supported() []string {
	return slices.Clone(supported)
}

func IsSupported(model string) bool {
	return slices.Contains(supported, model)
}

// RateFor returns the per-million-token rate for model.
func RateFor(model string) (Rate, bool) {
	rate, ok := pricing[model]
	return rate, ok
}

// UnsupportedError reports a model missing from the pricing table.
type UnsupportedError struct {
	Model string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("model %s not supported", e.Model)
}

// Price computes the dollar cost of one request.
func Price(model string, inputTokens, outputTokens int) (float64, error) {
	rate, ok := pricing[model]
	if !ok {
		return 0, &UnsupportedError{Model: model}
	}

	inputPrice := float64(inputTokens) * (rate.Input / 1e6)
	outputPrice := float64(outputTokens) * (rate.Output / 1e6)

	return inputPrice + outputPrice, nil
}
