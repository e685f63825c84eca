package aggregate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Normalize converts an arbitrary per-platform payload into a canonical
// Response. Each known platform has a dedicated pure extractor; anything
// else goes through the generic extractor, which looks for common text
// fields and, failing that, serializes the whole payload. Normalize never
// fails on an unrecognized shape and has no side effects beyond a debug
// log. Token counts default to 0 and are clamped non-negative.
func Normalize(raw any, platform Platform) Response {
	var resp Response
	switch platform {
	case PlatformChatGPT:
		resp = normalizeChatGPT(raw)
	case PlatformClaude:
		resp = normalizeClaude(raw)
	case PlatformGemini:
		resp = normalizeGemini(raw)
	case PlatformPerplexity:
		resp = normalizePerplexity(raw)
	case PlatformGeneric:
		resp = normalizeGeneric(raw)
	default:
		// Unknown platform ids degrade to the generic extractor rather
		// than failing; the record keeps the id it arrived with.
		resp = normalizeGeneric(raw)
		resp.Platform = platform
		slog.Debug("normalizing unknown platform via generic extractor", "platform", platform)
	}

	if resp.Platform == "" {
		resp.Platform = platform
	}
	if resp.TokensIn < 0 {
		resp.TokensIn = 0
	}
	if resp.TokensOut < 0 {
		resp.TokensOut = 0
	}
	resp.Raw = raw
	return resp
}

// normalizeChatGPT reads an OpenAI chat completions payload:
// choices[0].message.content, model, usage.{prompt,completion}_tokens.
func normalizeChatGPT(raw any) Response {
	m := asMap(raw)
	resp := Response{Platform: PlatformChatGPT, Model: stringField(m, "model")}

	if choices, ok := m["choices"].([]any); ok && len(choices) > 0 {
		choice := asMap(choices[0])
		msg := asMap(choice["message"])
		resp.Text = stringField(msg, "content")
		if resp.Text == "" {
			resp.Text = stringField(choice, "text")
		}
	}
	if usage := asMap(m["usage"]); usage != nil {
		resp.TokensIn = intField(usage, "prompt_tokens")
		resp.TokensOut = intField(usage, "completion_tokens")
	}
	if resp.Text == "" {
		resp.Text = genericText(raw)
	}
	return resp
}

// normalizeClaude reads an Anthropic messages payload: content is a list
// of typed blocks whose text parts are concatenated.
func normalizeClaude(raw any) Response {
	m := asMap(raw)
	resp := Response{Platform: PlatformClaude, Model: stringField(m, "model")}

	if blocks, ok := m["content"].([]any); ok {
		var parts []string
		for _, b := range blocks {
			block := asMap(b)
			if stringField(block, "type") == "text" || block["type"] == nil {
				if t := stringField(block, "text"); t != "" {
					parts = append(parts, t)
				}
			}
		}
		resp.Text = strings.Join(parts, "\n")
	} else {
		resp.Text = stringField(m, "content")
	}
	if usage := asMap(m["usage"]); usage != nil {
		resp.TokensIn = intField(usage, "input_tokens")
		resp.TokensOut = intField(usage, "output_tokens")
	}
	if resp.Text == "" {
		resp.Text = genericText(raw)
	}
	return resp
}

// normalizeGemini reads a Google generative language payload:
// candidates[0].content.parts[].text, usageMetadata token counts.
func normalizeGemini(raw any) Response {
	m := asMap(raw)
	resp := Response{Platform: PlatformGemini, Model: stringField(m, "modelVersion")}

	if cands, ok := m["candidates"].([]any); ok && len(cands) > 0 {
		content := asMap(asMap(cands[0])["content"])
		if parts, ok := content["parts"].([]any); ok {
			var texts []string
			for _, p := range parts {
				if t := stringField(asMap(p), "text"); t != "" {
					texts = append(texts, t)
				}
			}
			resp.Text = strings.Join(texts, "\n")
		}
	}
	if usage := asMap(m["usageMetadata"]); usage != nil {
		resp.TokensIn = intField(usage, "promptTokenCount")
		resp.TokensOut = intField(usage, "candidatesTokenCount")
	}
	if resp.Text == "" {
		resp.Text = genericText(raw)
	}
	return resp
}

// normalizePerplexity reads a Perplexity payload. The chat shape mirrors
// OpenAI; older answer endpoints use a flat answer field. Citations are
// kept as metadata.
func normalizePerplexity(raw any) Response {
	m := asMap(raw)
	resp := Response{Platform: PlatformPerplexity, Model: stringField(m, "model")}

	if choices, ok := m["choices"].([]any); ok && len(choices) > 0 {
		msg := asMap(asMap(choices[0])["message"])
		resp.Text = stringField(msg, "content")
	}
	if resp.Text == "" {
		resp.Text = stringField(m, "answer")
	}
	if usage := asMap(m["usage"]); usage != nil {
		resp.TokensIn = intField(usage, "prompt_tokens")
		resp.TokensOut = intField(usage, "completion_tokens")
	}
	if cites, ok := m["citations"].([]any); ok && len(cites) > 0 {
		resp.Metadata = map[string]any{"citations": cites}
	}
	if resp.Text == "" {
		resp.Text = genericText(raw)
	}
	return resp
}

// normalizeGeneric extracts text from unknown payload shapes.
func normalizeGeneric(raw any) Response {
	return Response{
		Platform: PlatformGeneric,
		Text:     genericText(raw),
	}
}

// genericText searches a payload for text/content/message fields,
// depth-first, and falls back to serializing the whole payload.
func genericText(raw any) string {
	if t := findTextField(raw, 0); t != "" {
		return t
	}
	switch v := raw.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		b, err := json.Marshal(raw)
		if err != nil {
			return fmt.Sprintf("%v", raw)
		}
		return string(b)
	}
}

// maxGenericDepth bounds the generic field search on nested payloads.
const maxGenericDepth = 4

// findTextField walks maps and slices looking for the first string under a
// text, content, or message key.
func findTextField(raw any, depth int) string {
	if depth > maxGenericDepth {
		return ""
	}
	switch v := raw.(type) {
	case map[string]any:
		for _, key := range []string{"text", "content", "message"} {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
		for _, key := range []string{"text", "content", "message"} {
			if nested, ok := v[key]; ok {
				if s := findTextField(nested, depth+1); s != "" {
					return s
				}
			}
		}
		for _, nested := range v {
			switch nested.(type) {
			case map[string]any, []any:
				if s := findTextField(nested, depth+1); s != "" {
					return s
				}
			}
		}
	case []any:
		for _, item := range v {
			if s := findTextField(item, depth+1); s != "" {
				return s
			}
		}
	}
	return ""
}

// asMap returns raw as a string-keyed map, or nil.
func asMap(raw any) map[string]any {
	m, _ := raw.(map[string]any)
	return m
}

// stringField returns m[key] as a string, or "".
func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// intField returns m[key] as a non-negative int. JSON numbers arrive as
// float64; native ints are accepted for hand-built payloads.
func intField(m map[string]any, key string) int {
	if m == nil {
		return 0
	}
	var n int
	switch v := m[key].(type) {
	case float64:
		n = int(v)
	case int:
		n = v
	case int64:
		n = int(v)
	}
	if n < 0 {
		return 0
	}
	return n
}
