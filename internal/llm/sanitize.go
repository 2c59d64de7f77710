package llm

import "strings"

// StripThinkingTags removes <think>...</think> blocks from LLM output.
// Some models (e.g. magistral, qwen3) wrap their reasoning in these tags.
func StripThinkingTags(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(s, "</think>")
		if end == -1 {
			s = strings.TrimSpace(s[:start])
			break
		}
		s = s[:start] + s[end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}

// StripMarkdownFences removes thinking tags, then the outermost ``` fence
// pair if one is present. A lone fence counts as an opening fence only on
// the first line; anywhere else it closes the text above it. Text without
// fences is returned unchanged.
func StripMarkdownFences(s string) string {
	s = StripThinkingTags(s)

	lines := strings.Split(s, "\n")
	var fences []int
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			fences = append(fences, i)
		}
	}

	var body []string
	switch {
	case len(fences) == 0:
		return s
	case len(fences) >= 2:
		body = lines[fences[0]+1 : fences[len(fences)-1]]
	case fences[0] == 0:
		body = lines[1:]
	default:
		body = lines[:fences[0]]
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}
