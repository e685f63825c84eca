// Package aggregate turns independent AI platform responses to the same
// prompt into a single deduplicated, ranked result. The pipeline is pure
// computation: normalize raw payloads, cluster near-duplicates by TF-IDF
// cosine similarity, pick a consensus response, score and rank the unique
// set, then assemble themes, per-platform insights, and quality metrics.
package aggregate

import (
	"errors"
)

// Platform identifies the source of a response.
// The set is closed: adding a platform means adding a constant here and an
// extraction case in Normalize, which the exhaustive switch makes a
// compile-visible change.
type Platform string

const (
	// PlatformChatGPT is an OpenAI chat completions payload.
	PlatformChatGPT Platform = "chatgpt"
	// PlatformClaude is an Anthropic messages payload.
	PlatformClaude Platform = "claude"
	// PlatformGemini is a Google generative language payload.
	PlatformGemini Platform = "gemini"
	// PlatformPerplexity is a Perplexity chat payload.
	PlatformPerplexity Platform = "perplexity"
	// PlatformGeneric is the fallback for unrecognized producers.
	PlatformGeneric Platform = "generic"
)

// String returns the platform identifier as a string.
func (p Platform) String() string {
	return string(p)
}

// IsValid returns true if this is a known platform.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformChatGPT, PlatformClaude, PlatformGemini, PlatformPerplexity, PlatformGeneric:
		return true
	default:
		return false
	}
}

// AllPlatforms returns every known platform, generic last.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformChatGPT, PlatformClaude, PlatformGemini, PlatformPerplexity, PlatformGeneric,
	}
}

// Response is the canonical, platform-agnostic record derived from a raw
// per-platform payload. It exists only within one aggregation call unless
// explicitly persisted through the store.
type Response struct {
	// Platform is the source platform.
	Platform Platform `json:"platform" yaml:"platform"`

	// Model is the model identifier reported by the platform, if any.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// Text is the extracted response text.
	Text string `json:"text" yaml:"text"`

	// TokensIn is the reported input token count (never negative).
	TokensIn int `json:"tokens_in" yaml:"tokens_in"`

	// TokensOut is the reported output token count (never negative).
	TokensOut int `json:"tokens_out" yaml:"tokens_out"`

	// Metadata carries extra platform-specific fields worth keeping.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Raw is the opaque original payload, kept for auditing.
	Raw any `json:"-" yaml:"-"`
}

// CodeBlockKind distinguishes fenced from inline code.
type CodeBlockKind string

const (
	// KindFenced is a triple-backtick block, optionally language-tagged.
	KindFenced CodeBlockKind = "fenced"
	// KindInline is a single-backtick span.
	KindInline CodeBlockKind = "inline"
)

// CodeBlock is a code region extracted from response text.
type CodeBlock struct {
	// Kind is fenced or inline.
	Kind CodeBlockKind `json:"kind" yaml:"kind"`

	// Language is the fence language tag, empty when absent.
	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	// Code is the content without fence markers.
	Code string `json:"code" yaml:"code"`

	// Start is the byte offset of the opening marker in the source text.
	Start int `json:"start" yaml:"start"`

	// End is the byte offset just past the closing marker.
	End int `json:"end" yaml:"end"`
}

// DuplicateGroup is a cluster of near-duplicate responses. Indices refer to
// the input slice passed to Dedupe.
type DuplicateGroup struct {
	// Representative is the input index of the longest member text.
	Representative int `json:"representative" yaml:"representative"`

	// Members are the input indices of everything in the cluster, in input
	// order. The first member is the greedy anchor kept in the unique set.
	Members []int `json:"members" yaml:"members"`
}

// ConsensusResult identifies the most central response in a set.
type ConsensusResult struct {
	// Consensus is the response with the highest average similarity to the
	// rest of the set.
	Consensus Response `json:"consensus" yaml:"consensus"`

	// Agreement is the average similarity of the consensus to all other
	// responses, in [0,1]. A single-response set has agreement 1.
	Agreement float64 `json:"agreement" yaml:"agreement"`

	// Variants lists platforms whose similarity to the consensus fell below
	// the variant threshold.
	Variants []Platform `json:"variants,omitempty" yaml:"variants,omitempty"`
}

// ScoredResponse pairs a response with its heuristic quality scores.
type ScoredResponse struct {
	Response `yaml:",inline"`

	// Length scores word count against the target length range.
	Length float64 `json:"length_score" yaml:"length_score"`

	// CodeQuality scores the fenced code blocks, 0.5 when there are none.
	CodeQuality float64 `json:"code_quality_score" yaml:"code_quality_score"`

	// Clarity scores structure: headings, lists, sentence length.
	Clarity float64 `json:"clarity_score" yaml:"clarity_score"`

	// Completeness scores opening/closing substance and explanatory markers.
	Completeness float64 `json:"completeness_score" yaml:"completeness_score"`

	// Total is the weighted sum of the sub-scores.
	Total float64 `json:"total_score" yaml:"total_score"`

	// Rank is the 1-based position after a stable descending sort by Total;
	// ties keep input order.
	Rank int `json:"rank" yaml:"rank"`
}

// Theme is a significant term shared across responses.
type Theme struct {
	// Term is the normalized token.
	Term string `json:"term" yaml:"term"`

	// Frequency is the total number of occurrences across responses.
	Frequency int `json:"frequency" yaml:"frequency"`

	// Coverage is the fraction of responses containing the term.
	Coverage float64 `json:"coverage" yaml:"coverage"`
}

// Insight holds sentences one platform contributed that no other platform
// came close to saying.
type Insight struct {
	// Platform is the contributing platform.
	Platform Platform `json:"platform" yaml:"platform"`

	// Sentences are the platform-unique sentences, in text order.
	Sentences []string `json:"sentences" yaml:"sentences"`
}

// MatrixRow is one platform's line in the comparison matrix.
type MatrixRow struct {
	// Platform is the platform being compared.
	Platform Platform `json:"platform" yaml:"platform"`

	// Score is the weighted total score.
	Score float64 `json:"score" yaml:"score"`

	// Rank is the response's rank among the unique set.
	Rank int `json:"rank" yaml:"rank"`

	// Words is the response word count.
	Words int `json:"words" yaml:"words"`

	// CodeBlocks is the number of fenced code blocks.
	CodeBlocks int `json:"code_blocks" yaml:"code_blocks"`
}

// PlatformScore pairs a platform with its total score.
type PlatformScore struct {
	Platform Platform `json:"platform" yaml:"platform"`
	Score    float64  `json:"score" yaml:"score"`
}

// QualityMetrics summarizes score distribution across platforms.
type QualityMetrics struct {
	// PlatformScores holds each platform's total score, best first.
	PlatformScores []PlatformScore `json:"platform_scores,omitempty" yaml:"platform_scores,omitempty"`

	// Mean is the average total score across the unique set.
	Mean float64 `json:"mean" yaml:"mean"`

	// Variance is the population variance of the total scores.
	Variance float64 `json:"variance" yaml:"variance"`

	// Best is the platform with the highest total score.
	Best Platform `json:"best,omitempty" yaml:"best,omitempty"`
}

// Summary condenses the aggregation into a consensus view.
type Summary struct {
	// Consensus is the text of the most central response.
	Consensus string `json:"consensus" yaml:"consensus"`

	// Agreement is the consensus agreement fraction in [0,1].
	Agreement float64 `json:"agreement" yaml:"agreement"`

	// KeyPoints are leading consensus sentences that touch a top theme.
	KeyPoints []string `json:"key_points,omitempty" yaml:"key_points,omitempty"`

	// CodeBlocks are the fenced blocks cited from the consensus response.
	CodeBlocks []CodeBlock `json:"code_blocks,omitempty" yaml:"code_blocks,omitempty"`
}

// AggregateResult is the assembled output of one aggregation call.
type AggregateResult struct {
	// Unique are the deduplicated responses, in first-seen order.
	Unique []Response `json:"unique" yaml:"unique"`

	// Groups are the duplicate clusters of size two or more.
	Groups []DuplicateGroup `json:"groups,omitempty" yaml:"groups,omitempty"`

	// DuplicateCount is how many inputs were folded into existing clusters.
	DuplicateCount int `json:"duplicate_count" yaml:"duplicate_count"`

	// Scored are the unique responses with scores and ranks.
	Scored []ScoredResponse `json:"scored,omitempty" yaml:"scored,omitempty"`

	// Themes are shared significant terms, most frequent first.
	Themes []Theme `json:"themes,omitempty" yaml:"themes,omitempty"`

	// Insights are per-platform unique sentences.
	Insights []Insight `json:"insights,omitempty" yaml:"insights,omitempty"`

	// Matrix is the per-platform comparison table, input order.
	Matrix []MatrixRow `json:"matrix,omitempty" yaml:"matrix,omitempty"`

	// Metrics summarizes score quality across platforms.
	Metrics QualityMetrics `json:"metrics" yaml:"metrics"`

	// Summary is the consensus view of the set.
	Summary Summary `json:"summary" yaml:"summary"`
}

// ErrNoResponses is returned by BuildConsensus for an empty input set;
// there is no sane default consensus.
var ErrNoResponses = errors.New("no responses to build consensus from")
