package assist

// Pricing holds the fixed per-million-token rates used to compute request
// cost from reported usage.
type Pricing struct {
	// InputPerMillionUSD is the rate applied to prompt tokens.
	InputPerMillionUSD float64

	// OutputPerMillionUSD is the rate applied to completion tokens.
	OutputPerMillionUSD float64
}

// Cost computes the USD cost of one request from its token counts.
func (p Pricing) Cost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/1e6*p.InputPerMillionUSD +
		float64(completionTokens)/1e6*p.OutputPerMillionUSD
}
