package aggregate

import (
	"log/slog"
)

// ConsensusConfig controls consensus selection.
type ConsensusConfig struct {
	// VariantThreshold flags responses whose similarity to the consensus
	// falls below this value (0.0-1.0). Default: 0.7. Deliberately looser
	// than the dedupe threshold: dedupe clusters everything above a tight
	// band, consensus flags a wider divergence band.
	VariantThreshold float64 `json:"variant_threshold" yaml:"variant_threshold"`
}

// DefaultConsensusConfig returns the default variant threshold.
func DefaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{VariantThreshold: 0.7}
}

// BuildConsensus selects the most central response of a set: the one with
// the highest average pairwise similarity to all others. Agreement is that
// average. Variants are the platforms whose similarity to the consensus is
// below the variant threshold.
//
// An empty set returns ErrNoResponses. A single response is its own
// consensus with agreement 1 and no variants.
func BuildConsensus(responses []Response) (*ConsensusResult, error) {
	return BuildConsensusWithConfig(responses, DefaultConsensusConfig())
}

// BuildConsensusWithConfig is BuildConsensus with a custom config.
func BuildConsensusWithConfig(responses []Response, cfg ConsensusConfig) (*ConsensusResult, error) {
	switch len(responses) {
	case 0:
		return nil, ErrNoResponses
	case 1:
		return &ConsensusResult{
			Consensus: responses[0],
			Agreement: 1.0,
		}, nil
	}

	if cfg.VariantThreshold <= 0 || cfg.VariantThreshold > 1 {
		cfg.VariantThreshold = DefaultConsensusConfig().VariantThreshold
	}

	matrix := pairwiseSimilarities(responses)

	// Highest mean similarity to the others wins; ties keep the earlier
	// response so the result is deterministic in input order.
	best := 0
	bestAvg := -1.0
	for i := range responses {
		var sum float64
		for j := range responses {
			if i == j {
				continue
			}
			sum += matrix[i][j]
		}
		avg := sum / float64(len(responses)-1)
		if avg > bestAvg {
			best = i
			bestAvg = avg
		}
	}

	result := &ConsensusResult{
		Consensus: responses[best],
		Agreement: bestAvg,
	}
	for i := range responses {
		if i == best {
			continue
		}
		if matrix[best][i] < cfg.VariantThreshold {
			result.Variants = append(result.Variants, responses[i].Platform)
		}
	}

	slog.Debug("consensus built",
		"responses", len(responses),
		"consensus_platform", result.Consensus.Platform,
		"agreement", bestAvg,
		"variants", len(result.Variants),
	)

	return result, nil
}
