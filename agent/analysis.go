package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rustyeddy/tradecoach/market"
)

// Analysis is the combined result of the planner and critic passes over a
// free-form trade idea.
type Analysis struct {
	Symbol   string `json:"symbol,omitempty"`
	Action   string `json:"action"`
	Decision string `json:"decision"`
	Plan     string `json:"plan"`
	Critique string `json:"critique"`
}

// analysisSymbols are the tickers the idea text is scanned for. Crypto
// symbols map to their quote-provider form.
var analysisSymbols = []struct {
	token  string
	symbol string
}{
	{"BTC", "BTC-USD"},
	{"ETH", "ETH-USD"},
	{"AAPL", "AAPL"},
	{"TSLA", "TSLA"},
	{"NVDA", "NVDA"},
	{"GOOGL", "GOOGL"},
	{"MSFT", "MSFT"},
	{"AMZN", "AMZN"},
	{"META", "META"},
}

// DetectSymbol scans a free-form trade idea for a known ticker.
func DetectSymbol(idea string) string {
	upper := strings.ToUpper(idea)
	for _, s := range analysisSymbols {
		if strings.Contains(upper, s.token) {
			return s.symbol
		}
	}
	return ""
}

// detectAction reads the intended side out of the idea text.
func detectAction(idea string) string {
	lower := strings.ToLower(idea)
	switch {
	case strings.Contains(lower, "buy"):
		return "buy"
	case strings.Contains(lower, "sell"):
		return "sell"
	default:
		return "hold"
	}
}

// Analyze runs the two-step workflow over a trade idea: a planner pass over
// the idea and market context, then a critic pass over the plan. snap is nil
// when no symbol was detected or no market data was reachable.
func (s *Service) Analyze(ctx context.Context, idea string, snap *market.Snapshot) (Analysis, error) {
	action := detectAction(idea)

	var b strings.Builder
	fmt.Fprintf(&b, "User's trade idea: %s\n\n", idea)
	if snap != nil {
		fmt.Fprintf(&b, "Current market data for %s:\n", snap.Symbol)
		fmt.Fprintf(&b, "- Price: %.2f\n- RSI(14): %.1f\n- EMA20: %.2f\n- EMA50: %.2f\n\n",
			snap.Close, snap.RSI, snap.EMA20, snap.EMA50)
	}
	b.WriteString("Analyze this trade idea considering:\n" +
		"1. Current market conditions\n2. Technical indicators\n" +
		"3. Risk/reward ratio\n4. Entry and exit points")

	plan, err := s.reasoner.Generate(ctx, []Message{{Role: "user", Content: b.String()}})
	if err != nil {
		return Analysis{}, err
	}

	symbol := "UNKNOWN"
	if snap != nil {
		symbol = snap.Symbol
	}
	criticPrompt := fmt.Sprintf(
		"Evaluate a %s trade for %s. Student's reasoning: %s\n\nPlanner analysis:\n%s\n\n"+
			"Give a decision (BUY/SELL/HOLD/WAIT), the key reasoning, and the main risk.",
		action, symbol, idea, plan,
	)
	critique, err := s.reasoner.Generate(ctx, []Message{{Role: "user", Content: criticPrompt}})
	if err != nil {
		return Analysis{}, err
	}

	a := Analysis{
		Action:   action,
		Decision: extractDecision(critique),
		Plan:     plan,
		Critique: critique,
	}
	if snap != nil {
		a.Symbol = snap.Symbol
	}
	return a, nil
}

// extractDecision pulls the critic's verdict out of its free-form text.
// A negated BUY ("do not buy") does not count as BUY.
func extractDecision(critique string) string {
	upper := strings.ToUpper(critique)
	switch {
	case strings.Contains(upper, "BUY") && !strings.Contains(upper, "DON'T") && !strings.Contains(upper, "NOT"):
		return "BUY"
	case strings.Contains(upper, "SELL"):
		return "SELL"
	case strings.Contains(upper, "WAIT"):
		return "WAIT"
	default:
		return "HOLD"
	}
}
