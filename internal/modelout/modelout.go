// Package modelout decodes structured data out of free-form language-model
// responses. Every decoder runs in two stages: a strict JSON parse of the
// bracketed region, then a documented string-surgery fallback. Both stages are
// first-class functions so either path can be tested directly.
package modelout

import (
	"encoding/json"
	"strings"

	"ArticleInbox/internal/domain"
)

// bracketed returns the outermost [...] region of raw, or "" when absent.
func bracketed(raw string) string {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

// StringList extracts a list of strings from a model response that was asked
// for a JSON array. max caps the result; 0 means uncapped. Entries are
// trimmed and empties dropped in both stages.
func StringList(raw string, max int) []string {
	if region := bracketed(raw); region != "" {
		var parsed []string
		if err := json.Unmarshal([]byte(region), &parsed); err == nil {
			return clean(parsed, max)
		}
	}
	return clean(SplitFallback(raw), max)
}

// SplitFallback is the lenient second stage: strip bracket and quote
// characters, then split on commas.
func SplitFallback(raw string) []string {
	replacer := strings.NewReplacer("[", "", "]", "", `"`, "", "'", "")
	return strings.Split(replacer.Replace(raw), ",")
}

func clean(values []string, max int) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// block mirrors the JSON shape the structural-analysis prompt requests. Model
// output is loose: text may arrive under "text" or "content", photo paths
// under "url".
type block struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Content string `json:"content"`
	Level   int    `json:"level"`
	URL     string `json:"url"`
}

// Blocks extracts typed content items from a structural-analysis response.
// On parse failure or an empty region it returns nil; the caller falls back
// to paragraph splitting.
func Blocks(raw string) []domain.ContentItem {
	region := bracketed(raw)
	if region == "" {
		return nil
	}

	var parsed []block
	if err := json.Unmarshal([]byte(region), &parsed); err != nil {
		return nil
	}

	items := make([]domain.ContentItem, 0, len(parsed))
	for _, b := range parsed {
		text := b.Text
		if text == "" {
			text = b.Content
		}

		switch domain.ContentType(b.Type) {
		case domain.ContentHeading:
			items = append(items, domain.ContentItem{
				Type:  domain.ContentHeading,
				Text:  text,
				Level: clampLevel(b.Level),
			})
		case domain.ContentParagraph:
			items = append(items, domain.ContentItem{Type: domain.ContentParagraph, Text: text})
		case domain.ContentPhoto:
			if text == "" {
				text = b.URL
			}
			items = append(items, domain.ContentItem{Type: domain.ContentPhoto, Text: text})
		case domain.ContentLink:
			items = append(items, domain.ContentItem{Type: domain.ContentLink, Text: text, URL: b.URL})
		}
	}

	return items
}

func clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > 3 {
		return 3
	}
	return level
}
