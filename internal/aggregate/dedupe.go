package aggregate

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Dicklesworthstone/quorum/internal/util"
)

// DedupeConfig controls near-duplicate clustering.
type DedupeConfig struct {
	// Threshold is the minimum similarity for a response to join an
	// existing cluster (0.0-1.0). Default: 0.85
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// DefaultDedupeConfig returns the default near-duplicate threshold.
func DefaultDedupeConfig() DedupeConfig {
	return DedupeConfig{Threshold: 0.85}
}

// DedupeResult is the output of deduplication. Group indices refer to the
// input slice passed to Dedupe.
type DedupeResult struct {
	// Unique are the cluster anchors in first-seen order.
	Unique []Response `json:"unique" yaml:"unique"`

	// Groups are the clusters that absorbed at least one duplicate.
	Groups []DuplicateGroup `json:"groups,omitempty" yaml:"groups,omitempty"`

	// DuplicateCount is inputs minus uniques.
	DuplicateCount int `json:"duplicate_count" yaml:"duplicate_count"`
}

// Deduper clusters near-duplicate responses.
type Deduper struct {
	config DedupeConfig
}

// NewDeduper creates a deduper with the given config.
func NewDeduper(cfg DedupeConfig) *Deduper {
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = DefaultDedupeConfig().Threshold
	}
	return &Deduper{config: cfg}
}

// Dedupe greedily clusters responses in input order: each response is
// compared against every already-accepted unique anchor and attached to
// the first one whose similarity meets the threshold, otherwise promoted
// to a new anchor. O(n²) comparisons, acceptable because n is the number
// of platforms answering one query.
//
// Known bias, kept deliberately: the unique set holds the first-seen
// response of each cluster, not necessarily the highest-quality one. The
// group's Representative separately points at the longest member text.
func (d *Deduper) Dedupe(responses []Response) *DedupeResult {
	start := time.Now()

	if len(responses) == 0 {
		return &DedupeResult{Unique: []Response{}}
	}

	// clusters[i] holds input indices; clusters[i][0] is the anchor.
	var clusters [][]int

	for i, resp := range responses {
		attached := false
		for c := range clusters {
			anchor := responses[clusters[c][0]]
			if Similarity(resp.Text, anchor.Text) >= d.config.Threshold {
				clusters[c] = append(clusters[c], i)
				attached = true
				break
			}
		}
		if !attached {
			clusters = append(clusters, []int{i})
		}
	}

	result := &DedupeResult{Unique: make([]Response, 0, len(clusters))}
	for _, members := range clusters {
		result.Unique = append(result.Unique, responses[members[0]])
		if len(members) < 2 {
			continue
		}
		result.Groups = append(result.Groups, DuplicateGroup{
			Representative: longestMember(responses, members),
			Members:        members,
		})
	}
	result.DuplicateCount = len(responses) - len(result.Unique)

	slog.Info("dedupe completed",
		"inputs", len(responses),
		"unique", len(result.Unique),
		"duplicates", result.DuplicateCount,
		"threshold", d.config.Threshold,
		"duration", time.Since(start),
	)

	return result
}

// longestMember returns the member index with the longest text.
func longestMember(responses []Response, members []int) int {
	best := members[0]
	for _, idx := range members[1:] {
		if len(responses[idx].Text) > len(responses[best].Text) {
			best = idx
		}
	}
	return best
}

// Dedupe clusters responses with the default configuration.
func Dedupe(responses []Response) *DedupeResult {
	return NewDeduper(DefaultDedupeConfig()).Dedupe(responses)
}

// ExplainGroup renders a human-readable account of one duplicate group:
// each member's platform, similarity to the representative, and a compact
// character diff against the representative text.
func ExplainGroup(responses []Response, group DuplicateGroup) string {
	if group.Representative < 0 || group.Representative >= len(responses) {
		return ""
	}
	rep := responses[group.Representative]
	dmp := diffmatchpatch.New()

	var b strings.Builder
	fmt.Fprintf(&b, "Duplicate group (%d members), representative: %s\n",
		len(group.Members), rep.Platform)
	fmt.Fprintf(&b, "  %s\n", util.Truncate(rep.Text, 100))

	for _, idx := range group.Members {
		if idx == group.Representative || idx < 0 || idx >= len(responses) {
			continue
		}
		member := responses[idx]
		sim := Similarity(rep.Text, member.Text)
		fmt.Fprintf(&b, "- %s (similarity %.2f)\n", member.Platform, sim)

		diffs := dmp.DiffMain(rep.Text, member.Text, false)
		diffs = dmp.DiffCleanupSemantic(diffs)
		for _, diff := range diffs {
			switch diff.Type {
			case diffmatchpatch.DiffInsert:
				fmt.Fprintf(&b, "    + %s\n", util.Truncate(diff.Text, 80))
			case diffmatchpatch.DiffDelete:
				fmt.Fprintf(&b, "    - %s\n", util.Truncate(diff.Text, 80))
			}
		}
	}

	return b.String()
}

// Render produces a human-readable summary of deduplication results.
func (r *DedupeResult) Render() string {
	if r == nil {
		return "No deduplication results"
	}

	var b strings.Builder
	b.WriteString("Deduplication Results:\n")
	fmt.Fprintf(&b, "Unique Responses:  %d\n", len(r.Unique))
	fmt.Fprintf(&b, "Duplicates Found:  %d\n", r.DuplicateCount)
	fmt.Fprintf(&b, "Duplicate Groups:  %d\n", len(r.Groups))

	for i, g := range r.Groups {
		fmt.Fprintf(&b, "\n%d. group of %d, representative index %d\n",
			i+1, len(g.Members), g.Representative)
	}

	return b.String()
}
