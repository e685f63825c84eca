package aggregate

import (
	"sort"
	"strings"
)

// LengthTarget names the expected answer length band.
type LengthTarget string

const (
	// TargetShort expects 0-200 words.
	TargetShort LengthTarget = "short"
	// TargetMedium expects 200-800 words.
	TargetMedium LengthTarget = "medium"
	// TargetLong expects 800+ words.
	TargetLong LengthTarget = "long"
)

// IsValid returns true if this is a known length target.
func (t LengthTarget) IsValid() bool {
	switch t {
	case TargetShort, TargetMedium, TargetLong:
		return true
	default:
		return false
	}
}

// String returns the target as a string.
func (t LengthTarget) String() string {
	return string(t)
}

// ScoreWeights weights the four sub-scores in the total. The weights need
// not sum to 1; normalizing them is the caller's responsibility.
type ScoreWeights struct {
	Length       float64 `json:"length" yaml:"length"`
	CodeQuality  float64 `json:"code_quality" yaml:"code_quality"`
	Clarity      float64 `json:"clarity" yaml:"clarity"`
	Completeness float64 `json:"completeness" yaml:"completeness"`
}

// DefaultScoreWeights returns the default weighting.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Length:       0.2,
		CodeQuality:  0.3,
		Clarity:      0.25,
		Completeness: 0.25,
	}
}

// Scorer computes heuristic quality scores and ranks.
type Scorer struct {
	weights ScoreWeights
	target  LengthTarget
}

// NewScorer creates a scorer with the given weights and length target.
func NewScorer(weights ScoreWeights, target LengthTarget) *Scorer {
	if !target.IsValid() {
		target = TargetMedium
	}
	return &Scorer{weights: weights, target: target}
}

// Score computes sub-scores and a weighted total for each response, then
// assigns ranks 1..N by a stable descending sort on the total: ties keep
// input order. A response's total depends only on its own text, so totals
// are order-independent; only ranks shift with input order.
func (s *Scorer) Score(responses []Response) []ScoredResponse {
	scored := make([]ScoredResponse, len(responses))
	for i, resp := range responses {
		sc := ScoredResponse{
			Response:     resp,
			Length:       lengthScore(wordCount(resp.Text), s.target),
			CodeQuality:  codeQualityScore(fencedBlocks(ExtractCodeBlocks(resp.Text))),
			Clarity:      clarityScore(resp.Text),
			Completeness: completenessScore(resp.Text),
		}
		sc.Total = s.weights.Length*sc.Length +
			s.weights.CodeQuality*sc.CodeQuality +
			s.weights.Clarity*sc.Clarity +
			s.weights.Completeness*sc.Completeness
		scored[i] = sc
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Total > scored[j].Total
	})
	for i := range scored {
		scored[i].Rank = i + 1
	}

	return scored
}

// Score ranks responses with the default weights and a medium length
// target.
func Score(responses []Response) []ScoredResponse {
	return NewScorer(DefaultScoreWeights(), TargetMedium).Score(responses)
}

// lengthRange holds the word-count band and its optimal midpoint for a
// length target.
type lengthRange struct {
	min, max int // max < 0 means unbounded
	optimal  int
}

func rangeFor(target LengthTarget) lengthRange {
	switch target {
	case TargetShort:
		return lengthRange{min: 0, max: 200, optimal: 100}
	case TargetLong:
		return lengthRange{min: 800, max: -1, optimal: 1200}
	default:
		return lengthRange{min: 200, max: 800, optimal: 500}
	}
}

// lengthScore scores a word count against the target band: inside the band
// the score decays linearly with distance from the optimal midpoint,
// outside it is a flat neutral 0.5.
func lengthScore(words int, target LengthTarget) float64 {
	r := rangeFor(target)
	if words < r.min || (r.max >= 0 && words > r.max) {
		return 0.5
	}
	dist := float64(words - r.optimal)
	if dist < 0 {
		dist = -dist
	}
	score := 1 - dist/float64(r.optimal)
	if score < 0 {
		return 0
	}
	return score
}

// commentMarkers are the prefixes recognized as code comments.
var commentMarkers = []string{"//", "#", "/*", "--", "<!--"}

// codeQualityScore averages partial credit over fenced blocks: an explicit
// language tag, a 3-100 line body, comment markers, and ≥2-space
// indentation each earn a quarter. No fenced code is neutral 0.5.
func codeQualityScore(blocks []CodeBlock) float64 {
	if len(blocks) == 0 {
		return 0.5
	}

	var total float64
	for _, block := range blocks {
		var score float64
		if block.Language != "" {
			score += 0.25
		}
		lines := strings.Split(block.Code, "\n")
		if len(lines) >= 3 && len(lines) <= 100 {
			score += 0.25
		}
		if blockHasComment(lines) {
			score += 0.25
		}
		if blockHasIndentation(lines) {
			score += 0.25
		}
		total += score
	}
	return total / float64(len(blocks))
}

func blockHasComment(lines []string) bool {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, marker := range commentMarkers {
			if strings.HasPrefix(trimmed, marker) {
				return true
			}
		}
	}
	return false
}

func blockHasIndentation(lines []string) bool {
	for _, line := range lines {
		if strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t") {
			return true
		}
	}
	return false
}

// clarityScore starts neutral and rewards structure: markdown headings,
// list markup, and a 10-25 word mean sentence length.
func clarityScore(text string) float64 {
	score := 0.5
	if hasHeading(text) {
		score += 0.15
	}
	if hasListMarkup(text) {
		score += 0.15
	}
	if mean := meanSentenceLength(text); mean >= 10 && mean <= 25 {
		score += 0.2
	}
	return clampScore(score)
}

func hasHeading(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			return true
		}
	}
	return false
}

func hasListMarkup(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			return true
		}
		if len(trimmed) > 2 && trimmed[0] >= '0' && trimmed[0] <= '9' &&
			(trimmed[1] == '.' || trimmed[1] == ')') {
			return true
		}
	}
	return false
}

var (
	exampleMarkers = []string{"for example", "for instance", "e.g.", "example:", "such as"}
	causalMarkers  = []string{"because", "therefore", "thus", "since", "as a result", "consequently"}
)

// completenessScore starts neutral and rewards a substantial opening and
// closing paragraph (>50 chars each), example markers, and causal
// connectives.
func completenessScore(text string) float64 {
	score := 0.5
	paragraphs := splitParagraphs(text)
	if len(paragraphs) > 0 && len(paragraphs[0]) > 50 {
		score += 0.15
	}
	if len(paragraphs) > 0 && len(paragraphs[len(paragraphs)-1]) > 50 {
		score += 0.15
	}
	if containsAnyFold(text, exampleMarkers) {
		score += 0.1
	}
	if containsAnyFold(text, causalMarkers) {
		score += 0.1
	}
	return clampScore(score)
}

func clampScore(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < 0 {
		return 0
	}
	return s
}
