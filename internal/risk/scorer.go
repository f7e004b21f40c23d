package risk

import (
	"context"
	"fmt"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"
)

// ScorerConfig tunes the safety heuristic. It is a filter, not a safety proof.
type ScorerConfig struct {
	MinLiquiditySol float64
	MinScore        int // points out of domain.MaxSafetyScore required to pass
}

// BlacklistChecker is the part of the ledger the scorer reads.
type BlacklistChecker interface {
	IsBlacklisted(ctx context.Context, assetID string) (bool, error)
}

// OpenPositionFinder is the part of the ledger the scorer reads.
type OpenPositionFinder interface {
	FindOpenByAsset(ctx context.Context, assetID string) (*domain.Position, error)
}

// Scorer evaluates launch candidates.
type Scorer struct {
	config    ScorerConfig
	blacklist BlacklistChecker
	positions OpenPositionFinder
	logger    ports.Logger
}

// NewScorer creates a risk scorer.
func NewScorer(config ScorerConfig, blacklist BlacklistChecker, positions OpenPositionFinder, logger ports.Logger) (*Scorer, error) {
	if blacklist == nil || positions == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Scorer")
	}
	if config.MinScore <= 0 {
		config.MinScore = 2
	}
	return &Scorer{config: config, blacklist: blacklist, positions: positions, logger: logger}, nil
}

// Evaluate scores a candidate. Hard failures return immediately; otherwise four
// signals are scored and liquidity must pass regardless of the total.
func (s *Scorer) Evaluate(ctx context.Context, c *domain.Candidate) *domain.Evaluation {
	const op = "Scorer.Evaluate"

	blacklisted, err := s.blacklist.IsBlacklisted(ctx, c.AssetID)
	if err != nil {
		s.logger.Error(ctx, err, op+": blacklist lookup failed", map[string]interface{}{"asset": c.AssetID})
		return fail(domain.CodeLookupFailed, fmt.Sprintf("blacklist lookup failed: %v", err))
	}
	if blacklisted {
		return fail(domain.CodeBlacklisted, "token is blacklisted")
	}

	pos, err := s.positions.FindOpenByAsset(ctx, c.AssetID)
	if err != nil {
		s.logger.Error(ctx, err, op+": position lookup failed", map[string]interface{}{"asset": c.AssetID})
		return fail(domain.CodeLookupFailed, fmt.Sprintf("position lookup failed: %v", err))
	}
	if pos != nil {
		return fail(domain.CodeOpenPosition, "already holding an open position")
	}

	if c.IsHoneypot != nil && *c.IsHoneypot {
		return fail(domain.CodeHoneypot, "honeypot detected")
	}

	liquidityOK := c.LiquiditySol >= s.config.MinLiquiditySol
	checks := []domain.Check{
		{Name: "liquidity", Passed: liquidityOK, Detail: fmt.Sprintf("%.2f SOL (min %.2f)", c.LiquiditySol, s.config.MinLiquiditySol)},
		{Name: "honeypot", Passed: c.IsHoneypot != nil && !*c.IsHoneypot},
		{Name: "mint_authority_disabled", Passed: c.MintDisabled},
		{Name: "freeze_authority_disabled", Passed: c.FreezeDisabled},
	}
	if c.IsHoneypot == nil {
		checks[1].Detail = "unknown"
	}

	score := 0
	for _, ch := range checks {
		if ch.Passed {
			score++
		}
	}

	eval := &domain.Evaluation{Score: score, Checks: checks}
	switch {
	case !liquidityOK:
		eval.Code = domain.CodeLiquidity
		eval.Reason = fmt.Sprintf("insufficient liquidity (%.2f SOL)", c.LiquiditySol)
	case score < s.config.MinScore:
		eval.Code = domain.CodeLowScore
		eval.Reason = fmt.Sprintf("low safety score (%d/%d)", score, domain.MaxSafetyScore)
	default:
		eval.Pass = true
		eval.Code = domain.CodePassed
	}

	s.logger.Debug(ctx, op+": candidate scored", map[string]interface{}{
		"asset": c.AssetID,
		"score": score,
		"pass":  eval.Pass,
		"code":  eval.Code,
	})
	return eval
}

func fail(code domain.EvaluationCode, reason string) *domain.Evaluation {
	return &domain.Evaluation{Pass: false, Code: code, Reason: reason, Checks: []domain.Check{}}
}
