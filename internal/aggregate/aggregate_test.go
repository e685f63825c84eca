package aggregate

import (
	"testing"
)

func TestAggregate_EmptyInput(t *testing.T) {
	t.Parallel()

	result := Aggregate(nil)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if len(result.Unique) != 0 {
		t.Errorf("unique = %d, want 0", len(result.Unique))
	}
	if len(result.Groups) != 0 || result.DuplicateCount != 0 {
		t.Errorf("groups = %d, duplicates = %d, want 0/0", len(result.Groups), result.DuplicateCount)
	}
	if len(result.Scored) != 0 || len(result.Themes) != 0 {
		t.Error("expected empty scored and themes")
	}
}

func TestAggregate_SingleResponse(t *testing.T) {
	t.Parallel()

	result := Aggregate([]Response{
		{Platform: PlatformClaude, Text: "The single answer stands alone."},
	})

	if len(result.Unique) != 1 {
		t.Fatalf("unique = %d, want 1", len(result.Unique))
	}
	if result.Summary.Agreement != 1.0 {
		t.Errorf("agreement = %f, want 1.0", result.Summary.Agreement)
	}
	if result.Summary.Consensus != "The single answer stands alone." {
		t.Errorf("consensus = %q", result.Summary.Consensus)
	}
	if len(result.Themes) != 0 {
		t.Errorf("themes = %d, want none for a single response", len(result.Themes))
	}
	if len(result.Insights) != 0 {
		t.Errorf("insights = %d, want none for a single response", len(result.Insights))
	}
}

func TestAggregate_FullPipeline(t *testing.T) {
	t.Parallel()

	responses := []Response{
		{
			Platform: PlatformChatGPT,
			Text:     "Use a mutex to guard the shared counter because concurrent writes race.",
		},
		{
			Platform: PlatformClaude,
			Text:     "Use a mutex to guard the shared counter because concurrent writes race.",
		},
		{
			Platform: PlatformGemini,
			Text:     "Channels can serialize access to the shared counter. Atomic operations avoid locks for simple counters.",
		},
	}

	result := Aggregate(responses)

	if len(result.Unique) != 2 {
		t.Fatalf("unique = %d, want 2 after merging the identical pair", len(result.Unique))
	}
	if result.DuplicateCount != 1 {
		t.Errorf("duplicates = %d, want 1", result.DuplicateCount)
	}
	if len(result.Groups) != 1 || len(result.Groups[0].Members) != 2 {
		t.Errorf("groups = %+v, want one group of two", result.Groups)
	}

	if len(result.Scored) != 2 {
		t.Fatalf("scored = %d, want 2", len(result.Scored))
	}
	for i, sc := range result.Scored {
		if sc.Rank != i+1 {
			t.Errorf("scored[%d].Rank = %d, want %d", i, sc.Rank, i+1)
		}
	}

	if len(result.Matrix) != len(result.Scored) {
		t.Errorf("matrix rows = %d, want %d", len(result.Matrix), len(result.Scored))
	}
	for i, row := range result.Matrix {
		if row.Platform != result.Scored[i].Platform {
			t.Errorf("matrix[%d] platform = %s, scored has %s", i, row.Platform, result.Scored[i].Platform)
		}
		if row.Words <= 0 {
			t.Errorf("matrix[%d] words = %d, want positive", i, row.Words)
		}
	}

	if result.Metrics.Best != result.Scored[0].Platform {
		t.Errorf("best = %s, want top-ranked %s", result.Metrics.Best, result.Scored[0].Platform)
	}
	if result.Metrics.Mean <= 0 || result.Metrics.Mean > 1 {
		t.Errorf("mean = %f, out of range", result.Metrics.Mean)
	}
	if result.Metrics.Variance < 0 {
		t.Errorf("variance = %f, want non-negative", result.Metrics.Variance)
	}

	if result.Summary.Consensus == "" {
		t.Error("summary consensus is empty")
	}
	if result.Summary.Agreement <= 0 || result.Summary.Agreement > 1 {
		t.Errorf("agreement = %f, out of range", result.Summary.Agreement)
	}
}

func TestAggregator_ExtractThemes(t *testing.T) {
	t.Parallel()

	a := NewAggregator(DefaultConfig())
	responses := []Response{
		{Platform: "a", Text: "Caching improves latency. Caching also reduces load."},
		{Platform: "b", Text: "A caching layer cuts latency for repeated reads."},
		{Platform: "c", Text: "Sharding distributes writes across nodes."},
	}

	themes := a.extractThemes(responses)
	if len(themes) == 0 {
		t.Fatal("expected at least one theme")
	}

	byTerm := make(map[string]Theme, len(themes))
	for _, theme := range themes {
		byTerm[theme.Term] = theme
	}
	caching, ok := byTerm["caching"]
	if !ok {
		t.Fatalf("missing caching theme, got %+v", themes)
	}
	if caching.Frequency != 3 {
		t.Errorf("caching frequency = %d, want 3", caching.Frequency)
	}
	if caching.Coverage < 0.66 || caching.Coverage > 0.67 {
		t.Errorf("caching coverage = %f, want 2/3", caching.Coverage)
	}
	if _, ok := byTerm["sharding"]; ok {
		t.Error("single-response term sharding should not be a theme")
	}

	// Ordered by frequency descending.
	for i := 1; i < len(themes); i++ {
		if themes[i].Frequency > themes[i-1].Frequency {
			t.Errorf("themes out of order at %d", i)
		}
	}
}

func TestAggregator_ExtractThemes_CapRespected(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxThemes = 1
	a := NewAggregator(cfg)

	themes := a.extractThemes([]Response{
		{Platform: "a", Text: "alpha beta gamma delta"},
		{Platform: "b", Text: "alpha beta gamma delta"},
	})
	if len(themes) != 1 {
		t.Errorf("themes = %d, want capped at 1", len(themes))
	}
}

func TestAggregator_ExtractInsights(t *testing.T) {
	t.Parallel()

	a := NewAggregator(DefaultConfig())
	responses := []Response{
		{
			Platform: PlatformChatGPT,
			Text: "Use prepared statements for database queries. " +
				"Rotating croissant dough requires chilled butter laminated between folds.",
		},
		{
			Platform: PlatformClaude,
			Text:     "Use prepared statements for database queries.",
		},
	}

	insights := a.extractInsights(responses)

	var chatgpt *Insight
	for i := range insights {
		if insights[i].Platform == PlatformChatGPT {
			chatgpt = &insights[i]
		}
	}
	if chatgpt == nil {
		t.Fatalf("no insight for chatgpt: %+v", insights)
	}
	found := false
	for _, s := range chatgpt.Sentences {
		if len(s) > 0 && s[0] == 'R' {
			found = true
		}
	}
	if !found {
		t.Errorf("divergent croissant sentence not surfaced: %+v", chatgpt.Sentences)
	}
	// The shared sentence must not appear as an insight for either side.
	for _, insight := range insights {
		for _, s := range insight.Sentences {
			if s == "Use prepared statements for database queries." {
				t.Errorf("shared sentence reported as unique for %s", insight.Platform)
			}
		}
	}
}

func TestNewAggregator_FillsDefaults(t *testing.T) {
	t.Parallel()

	a := NewAggregator(Config{})
	def := DefaultConfig()

	if a.config.Dedupe.Threshold != def.Dedupe.Threshold {
		t.Errorf("dedupe threshold = %f, want default", a.config.Dedupe.Threshold)
	}
	if a.config.Consensus.VariantThreshold != def.Consensus.VariantThreshold {
		t.Errorf("variant threshold = %f, want default", a.config.Consensus.VariantThreshold)
	}
	if a.config.LengthTarget != TargetMedium {
		t.Errorf("length target = %s, want medium", a.config.LengthTarget)
	}
	if a.config.MaxThemes != def.MaxThemes || a.config.MaxKeyPoints != def.MaxKeyPoints {
		t.Error("caps not defaulted")
	}
}

func TestKeyPoints(t *testing.T) {
	t.Parallel()

	text := "Caching cuts latency for hot reads. Unrelated filler sentence here. Eviction policy matters for caching correctness."
	themes := []Theme{{Term: "caching", Frequency: 3, Coverage: 1}}

	points := keyPoints(text, themes, 5)
	if len(points) != 2 {
		t.Fatalf("points = %d, want the 2 theme-bearing sentences: %v", len(points), points)
	}

	// Without themes the leading sentences are used, up to the limit.
	fallback := keyPoints(text, nil, 2)
	if len(fallback) != 2 {
		t.Errorf("fallback points = %d, want 2", len(fallback))
	}
}
