package aggregate

import (
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Config bundles the tunables for one aggregation pipeline.
type Config struct {
	// Dedupe controls near-duplicate clustering.
	Dedupe DedupeConfig `json:"dedupe" yaml:"dedupe"`

	// Consensus controls variant flagging.
	Consensus ConsensusConfig `json:"consensus" yaml:"consensus"`

	// Weights weight the scoring heuristics.
	Weights ScoreWeights `json:"weights" yaml:"weights"`

	// LengthTarget is the expected answer length band.
	LengthTarget LengthTarget `json:"length_target" yaml:"length_target"`

	// InsightThreshold is the similarity below which a sentence counts as
	// unique to its platform. Default: 0.35
	InsightThreshold float64 `json:"insight_threshold" yaml:"insight_threshold"`

	// MaxThemes caps the theme list. Default: 10
	MaxThemes int `json:"max_themes" yaml:"max_themes"`

	// MaxInsights caps unique sentences per platform. Default: 3
	MaxInsights int `json:"max_insights" yaml:"max_insights"`

	// MaxKeyPoints caps summary key points. Default: 5
	MaxKeyPoints int `json:"max_key_points" yaml:"max_key_points"`
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Dedupe:           DefaultDedupeConfig(),
		Consensus:        DefaultConsensusConfig(),
		Weights:          DefaultScoreWeights(),
		LengthTarget:     TargetMedium,
		InsightThreshold: 0.35,
		MaxThemes:        10,
		MaxInsights:      3,
		MaxKeyPoints:     5,
	}
}

// Aggregator orchestrates the full pipeline: dedupe, score, themes,
// insights, comparison matrix, quality metrics, and the consensus summary.
type Aggregator struct {
	config Config
}

// NewAggregator creates an aggregator, filling zero config fields with
// defaults.
func NewAggregator(cfg Config) *Aggregator {
	def := DefaultConfig()
	if cfg.Dedupe.Threshold <= 0 || cfg.Dedupe.Threshold > 1 {
		cfg.Dedupe = def.Dedupe
	}
	if cfg.Consensus.VariantThreshold <= 0 || cfg.Consensus.VariantThreshold > 1 {
		cfg.Consensus = def.Consensus
	}
	if cfg.Weights == (ScoreWeights{}) {
		cfg.Weights = def.Weights
	}
	if !cfg.LengthTarget.IsValid() {
		cfg.LengthTarget = def.LengthTarget
	}
	if cfg.InsightThreshold <= 0 || cfg.InsightThreshold > 1 {
		cfg.InsightThreshold = def.InsightThreshold
	}
	if cfg.MaxThemes <= 0 {
		cfg.MaxThemes = def.MaxThemes
	}
	if cfg.MaxInsights <= 0 {
		cfg.MaxInsights = def.MaxInsights
	}
	if cfg.MaxKeyPoints <= 0 {
		cfg.MaxKeyPoints = def.MaxKeyPoints
	}
	return &Aggregator{config: cfg}
}

// Aggregate runs the pipeline over one query's responses. It never fails:
// empty input produces a well-formed result with empty collections, and a
// single response is its own consensus.
func (a *Aggregator) Aggregate(responses []Response) *AggregateResult {
	start := time.Now()

	result := &AggregateResult{Unique: []Response{}}
	if len(responses) == 0 {
		return result
	}

	deduped := NewDeduper(a.config.Dedupe).Dedupe(responses)
	result.Unique = deduped.Unique
	result.Groups = deduped.Groups
	result.DuplicateCount = deduped.DuplicateCount

	result.Scored = NewScorer(a.config.Weights, a.config.LengthTarget).Score(deduped.Unique)
	result.Themes = a.extractThemes(deduped.Unique)
	result.Insights = a.extractInsights(deduped.Unique)
	result.Matrix = buildMatrix(result.Scored)
	result.Metrics = buildMetrics(result.Scored)
	result.Summary = a.buildSummary(deduped.Unique, result.Themes)

	slog.Info("aggregation completed",
		"inputs", len(responses),
		"unique", len(result.Unique),
		"duplicates", result.DuplicateCount,
		"themes", len(result.Themes),
		"agreement", result.Summary.Agreement,
		"duration", time.Since(start),
	)

	return result
}

// Aggregate runs the pipeline with the default configuration.
func Aggregate(responses []Response) *AggregateResult {
	return NewAggregator(DefaultConfig()).Aggregate(responses)
}

// extractThemes finds significant terms shared by at least two responses.
// Frequency counts total occurrences; coverage is the fraction of
// responses containing the term.
func (a *Aggregator) extractThemes(responses []Response) []Theme {
	if len(responses) < 2 {
		return nil
	}

	frequency := make(map[string]int)
	coverage := make(map[string]int)
	for _, resp := range responses {
		seen := make(map[string]struct{})
		for _, tok := range significantTokens(resp.Text) {
			frequency[tok]++
			seen[tok] = struct{}{}
		}
		for tok := range seen {
			coverage[tok]++
		}
	}

	var themes []Theme
	for term, docs := range coverage {
		if docs < 2 {
			continue
		}
		themes = append(themes, Theme{
			Term:      term,
			Frequency: frequency[term],
			Coverage:  float64(docs) / float64(len(responses)),
		})
	}

	sort.Slice(themes, func(i, j int) bool {
		if themes[i].Frequency != themes[j].Frequency {
			return themes[i].Frequency > themes[j].Frequency
		}
		if themes[i].Coverage != themes[j].Coverage {
			return themes[i].Coverage > themes[j].Coverage
		}
		return themes[i].Term < themes[j].Term
	})

	if len(themes) > a.config.MaxThemes {
		themes = themes[:a.config.MaxThemes]
	}
	return themes
}

// extractInsights collects, per platform, sentences whose similarity to
// every other platform's text stays below the insight threshold.
func (a *Aggregator) extractInsights(responses []Response) []Insight {
	if len(responses) < 2 {
		return nil
	}

	var insights []Insight
	for i, resp := range responses {
		var unique []string
		for _, sentence := range splitSentences(resp.Text) {
			if wordCount(sentence) < 3 || !hasLetter(sentence) {
				continue
			}
			divergent := true
			for j, other := range responses {
				if i == j {
					continue
				}
				if Similarity(sentence, other.Text) >= a.config.InsightThreshold {
					divergent = false
					break
				}
			}
			if divergent {
				unique = append(unique, sentence)
				if len(unique) >= a.config.MaxInsights {
					break
				}
			}
		}
		if len(unique) > 0 {
			insights = append(insights, Insight{
				Platform:  resp.Platform,
				Sentences: unique,
			})
		}
	}
	return insights
}

// buildMatrix assembles the per-platform comparison table in rank order.
func buildMatrix(scored []ScoredResponse) []MatrixRow {
	rows := make([]MatrixRow, len(scored))
	for i, sc := range scored {
		rows[i] = MatrixRow{
			Platform:   sc.Platform,
			Score:      sc.Total,
			Rank:       sc.Rank,
			Words:      wordCount(sc.Text),
			CodeBlocks: len(fencedBlocks(ExtractCodeBlocks(sc.Text))),
		}
	}
	return rows
}

// buildMetrics summarizes the score distribution. Variance is the
// population variance over the unique set.
func buildMetrics(scored []ScoredResponse) QualityMetrics {
	metrics := QualityMetrics{}
	if len(scored) == 0 {
		return metrics
	}

	var sum float64
	for _, sc := range scored {
		metrics.PlatformScores = append(metrics.PlatformScores, PlatformScore{
			Platform: sc.Platform,
			Score:    sc.Total,
		})
		sum += sc.Total
	}
	metrics.Mean = sum / float64(len(scored))

	var sq float64
	for _, sc := range scored {
		d := sc.Total - metrics.Mean
		sq += d * d
	}
	metrics.Variance = sq / float64(len(scored))
	metrics.Best = scored[0].Platform

	return metrics
}

// buildSummary condenses the unique set around its consensus response.
func (a *Aggregator) buildSummary(unique []Response, themes []Theme) Summary {
	consensus, err := BuildConsensusWithConfig(unique, a.config.Consensus)
	if err != nil {
		return Summary{}
	}

	return Summary{
		Consensus: consensus.Consensus.Text,
		Agreement: consensus.Agreement,
		KeyPoints: keyPoints(consensus.Consensus.Text, themes, a.config.MaxKeyPoints),
		CodeBlocks: fencedBlocks(ExtractCodeBlocks(consensus.Consensus.Text)),
	}
}

// keyPoints picks leading consensus sentences that touch a top theme;
// without themes it falls back to the leading sentences.
func keyPoints(text string, themes []Theme, limit int) []string {
	sentences := splitSentences(text)
	var points []string

	if len(themes) == 0 {
		for _, sentence := range sentences {
			if wordCount(sentence) < 3 {
				continue
			}
			points = append(points, sentence)
			if len(points) >= limit {
				break
			}
		}
		return points
	}

	for _, sentence := range sentences {
		lower := strings.ToLower(sentence)
		for _, theme := range themes {
			if strings.Contains(lower, theme.Term) {
				points = append(points, sentence)
				break
			}
		}
		if len(points) >= limit {
			break
		}
	}
	return points
}
