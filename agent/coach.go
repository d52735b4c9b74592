package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rustyeddy/tradecoach/market"
)

// Service exposes the three coaching roles over one Reasoner.
type Service struct {
	reasoner Reasoner
}

func NewService(r Reasoner) *Service {
	return &Service{reasoner: r}
}

// Coach answers an educational question, shaped to the user's level and
// focus area.
func (s *Service) Coach(ctx context.Context, query, userLevel, focusArea string) (string, error) {
	if userLevel == "" {
		userLevel = "beginner"
	}
	if focusArea == "" {
		focusArea = "general"
	}
	prompt := fmt.Sprintf(
		"A %s-level student asks about %s:\n%s\n\nAnswer with a short, practical micro-lesson.",
		userLevel, focusArea, query,
	)
	return s.reasoner.Generate(ctx, []Message{{Role: "user", Content: prompt}})
}

// Critique evaluates a proposed trade against the current indicator
// snapshot.
func (s *Service) Critique(ctx context.Context, symbol, action, reason string, snap market.Snapshot) (string, error) {
	prompt := fmt.Sprintf(
		"Evaluate a proposed %s of %s. Student's reasoning: %s\n\n"+
			"Current market snapshot:\n- Close: %.2f\n- RSI(14): %.1f\n- EMA20: %.2f\n- EMA50: %.2f\n\n"+
			"Give a decision (BUY/SELL/HOLD/WAIT), the key reasoning, and the main risk.",
		action, symbol, reason, snap.Close, snap.RSI, snap.EMA20, snap.EMA50,
	)
	return s.reasoner.Generate(ctx, []Message{{Role: "user", Content: prompt}})
}

// Plan produces a learning curriculum for a stated goal.
func (s *Service) Plan(ctx context.Context, goal, riskLevel string, symbols []string) (string, error) {
	if riskLevel == "" {
		riskLevel = "medium"
	}
	prompt := fmt.Sprintf(
		"Build a step-by-step paper-trading curriculum.\nGoal: %s\nRisk tolerance: %s\nWatchlist: %s",
		goal, riskLevel, strings.Join(symbols, ", "),
	)
	return s.reasoner.Generate(ctx, []Message{{Role: "user", Content: prompt}})
}
