package quotes

import (
	"fmt"
	"time"
)

// Build assembles a Chain from provider names in fallback order.
//
// "synthetic" is rejected unless allowSynthetic is set: fabricated prices
// must be an explicit development choice, never a silent production
// fallback.
func Build(providers []string, alphaVantageKey string, cacheTTL time.Duration, allowSynthetic bool) (*Chain, error) {
	if len(providers) == 0 {
		providers = []string{"yahoo"}
	}

	var sources []Source
	for _, name := range providers {
		switch name {
		case "yahoo":
			sources = append(sources, NewYahoo(cacheTTL))
		case "alphavantage":
			if alphaVantageKey == "" {
				return nil, fmt.Errorf("quotes: alphavantage requires an api key")
			}
			sources = append(sources, NewAlphaVantage(alphaVantageKey, cacheTTL))
		case "synthetic":
			if !allowSynthetic {
				return nil, fmt.Errorf("quotes: synthetic provider is development-only; set allow_synthetic to use it")
			}
			sources = append(sources, NewSynthetic())
		default:
			return nil, fmt.Errorf("quotes: unknown provider %q", name)
		}
	}
	return NewChain(sources...), nil
}
