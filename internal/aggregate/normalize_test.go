package aggregate

import (
	"strings"
	"testing"
)

func TestNormalize_ChatGPT(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"model": "gpt-4o",
		"choices": []any{
			map[string]any{
				"message": map[string]any{"role": "assistant", "content": "The answer is 4."},
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     float64(12),
			"completion_tokens": float64(7),
		},
	}

	resp := Normalize(payload, PlatformChatGPT)
	if resp.Platform != PlatformChatGPT {
		t.Errorf("platform = %s", resp.Platform)
	}
	if resp.Text != "The answer is 4." {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.Model != "gpt-4o" {
		t.Errorf("model = %q", resp.Model)
	}
	if resp.TokensIn != 12 || resp.TokensOut != 7 {
		t.Errorf("tokens = %d/%d, want 12/7", resp.TokensIn, resp.TokensOut)
	}
}

func TestNormalize_Claude(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"model": "claude-sonnet",
		"content": []any{
			map[string]any{"type": "text", "text": "First part."},
			map[string]any{"type": "text", "text": "Second part."},
		},
		"usage": map[string]any{
			"input_tokens":  float64(20),
			"output_tokens": float64(9),
		},
	}

	resp := Normalize(payload, PlatformClaude)
	if resp.Text != "First part.\nSecond part." {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.TokensIn != 20 || resp.TokensOut != 9 {
		t.Errorf("tokens = %d/%d", resp.TokensIn, resp.TokensOut)
	}
}

func TestNormalize_Gemini(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"modelVersion": "gemini-pro",
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{map[string]any{"text": "Gemini says hello."}},
				},
			},
		},
		"usageMetadata": map[string]any{
			"promptTokenCount":     float64(5),
			"candidatesTokenCount": float64(4),
		},
	}

	resp := Normalize(payload, PlatformGemini)
	if resp.Text != "Gemini says hello." {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.Model != "gemini-pro" {
		t.Errorf("model = %q", resp.Model)
	}
	if resp.TokensIn != 5 || resp.TokensOut != 4 {
		t.Errorf("tokens = %d/%d", resp.TokensIn, resp.TokensOut)
	}
}

func TestNormalize_PerplexityAnswerShape(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"answer":    "Perplexity answer text.",
		"citations": []any{"https://example.com"},
	}

	resp := Normalize(payload, PlatformPerplexity)
	if resp.Text != "Perplexity answer text." {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.Metadata["citations"] == nil {
		t.Error("citations not kept as metadata")
	}
}

func TestNormalize_GenericFieldLookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{"text field", map[string]any{"text": "found it"}, "found it"},
		{"content field", map[string]any{"content": "content here"}, "content here"},
		{"message field", map[string]any{"message": "a message"}, "a message"},
		{
			"nested content",
			map[string]any{"data": map[string]any{"message": "deep message"}},
			"deep message",
		},
		{"plain string payload", "just a string", "just a string"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := Normalize(tt.payload, PlatformGeneric)
			if resp.Text != tt.want {
				t.Errorf("text = %q, want %q", resp.Text, tt.want)
			}
		})
	}
}

func TestNormalize_GenericSerializesUnknownShape(t *testing.T) {
	t.Parallel()

	payload := map[string]any{"weird": []any{float64(1), float64(2)}}
	resp := Normalize(payload, PlatformGeneric)

	if !strings.Contains(resp.Text, "weird") {
		t.Errorf("expected serialized payload, got %q", resp.Text)
	}
}

func TestNormalize_UnknownPlatformNeverFails(t *testing.T) {
	t.Parallel()

	resp := Normalize(map[string]any{"text": "mystery output"}, Platform("mystery"))
	if resp.Text != "mystery output" {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.Platform != Platform("mystery") {
		t.Errorf("platform = %s, want mystery preserved", resp.Platform)
	}
}

func TestNormalize_NegativeTokensClamped(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": "x"}},
		},
		"usage": map[string]any{
			"prompt_tokens":     float64(-5),
			"completion_tokens": float64(-1),
		},
	}
	resp := Normalize(payload, PlatformChatGPT)
	if resp.TokensIn != 0 || resp.TokensOut != 0 {
		t.Errorf("tokens = %d/%d, want 0/0", resp.TokensIn, resp.TokensOut)
	}
}

func TestNormalize_KeepsRawPayload(t *testing.T) {
	t.Parallel()

	payload := map[string]any{"text": "keep me"}
	resp := Normalize(payload, PlatformGeneric)
	if resp.Raw == nil {
		t.Error("raw payload not retained")
	}
}

func TestNormalize_NilPayload(t *testing.T) {
	t.Parallel()

	resp := Normalize(nil, PlatformGeneric)
	if resp.Text != "" {
		t.Errorf("text = %q, want empty", resp.Text)
	}
	if resp.Platform != PlatformGeneric {
		t.Errorf("platform = %s", resp.Platform)
	}
}
