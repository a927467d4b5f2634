package usecase

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"ArticleInbox/internal/config"
	"ArticleInbox/internal/domain"
	"ArticleInbox/internal/modelout"
	"ArticleInbox/internal/ports"
)

const (
	summaryPlaceholder = "Краткое содержание недоступно"
	defaultTag         = "статья"

	detectSystemPrompt = "You are an assistant that detects the language of text. " +
		"Respond with only the ISO language code (e.g., 'ru' for Russian, 'en' for English, etc.)."
	translateSystemPrompt = "You are a professional translator. Translate the given text to Russian, " +
		"maintaining the original meaning, tone, and format as closely as possible."
	summarySystemPrompt = "You are an assistant that creates concise but informative summaries of articles in Russian. " +
		"Write a clear summary (2-3 sentences) that captures the main points and key arguments of the article while being brief."
	tagsSystemPrompt = "You are an assistant that generates relevant tags for articles. " +
		"Create 5-10 tags that best describe the content of the article. Return only a JSON array of tags, nothing else."
	structureSystemPrompt = "You are an expert assistant that analyzes article structure. " +
		"Break down the article into well-organized sections with clear hierarchical structure. " +
		"Return a JSON array with objects of the following types: 1) 'heading' with 'text' and 'level' (1-3); " +
		"2) 'paragraph' with 'text'; 3) 'photo' with placeholder for 'url'; 4) 'link' with 'text' and 'url'."

	detectSampleLimit = 1000
)

// LanguagePipeline runs the model-backed normalization and enrichment stages.
// Every stage converts its own failures into a safe fallback value; errors
// never escape a stage boundary.
type LanguagePipeline struct {
	completer   ports.Completer
	target      string
	metaMarkers []string
	tagCap      int
	logger      *slog.Logger
}

// NewLanguagePipeline wires the completer with the language settings.
func NewLanguagePipeline(completer ports.Completer, cfg config.LanguageConfig, tagCap int, logger *slog.Logger) *LanguagePipeline {
	if tagCap <= 0 {
		tagCap = 10
	}
	return &LanguagePipeline{
		completer:   completer,
		target:      cfg.Target,
		metaMarkers: cfg.MetaMarkers,
		tagCap:      tagCap,
		logger:      logger,
	}
}

// Target exposes the configured target language code.
func (p *LanguagePipeline) Target() string {
	return p.target
}

// cyrillicRatio is the fraction of Cyrillic-range runes in text, ignoring
// whitespace.
func cyrillicRatio(text string) float64 {
	var total, cyrillic int
	for _, r := range text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		total++
		if r >= 0x0400 && r <= 0x04FF {
			cyrillic++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(cyrillic) / float64(total)
}

// DetectLanguage classifies the text. A Cyrillic ratio above 0.5 short-cuts
// to the target language without a model call; otherwise the model is asked
// for an ISO code. Empty or unparseable answers become "unknown".
func (p *LanguagePipeline) DetectLanguage(ctx context.Context, text string) string {
	if cyrillicRatio(text) > 0.5 {
		return p.target
	}

	// Cap the sample without splitting a multibyte rune.
	sample := text
	if len(sample) > detectSampleLimit {
		cut := detectSampleLimit
		for cut > 0 && !utf8.RuneStart(sample[cut]) {
			cut--
		}
		sample = sample[:cut]
	}

	out, err := p.completer.Complete(ctx, detectSystemPrompt, "Detect the language of this text: "+sample, 0.1)
	if err != nil {
		p.logger.Warn("language detection failed", "error", err)
		return "unknown"
	}

	code := strings.ToLower(strings.TrimSpace(out))
	if code == "" || len(code) > 8 || strings.ContainsAny(code, " \n") {
		return "unknown"
	}
	return code
}

// Translate renders text in the target language. A meta-response (the model
// narrating instead of translating) triggers one stricter retry; any failure
// falls back to the original text unmodified.
func (p *LanguagePipeline) Translate(ctx context.Context, text string) string {
	out, err := p.completer.Complete(ctx, translateSystemPrompt,
		"Translate this text to Russian. Return ONLY the translation, do not include phrases like "+
			"'Here's the translation' or 'Понял перевожу' or something like this: "+text, 0.2)
	if err != nil {
		p.logger.Warn("translation failed", "error", err)
		return text
	}

	if p.hasMetaMarker(out) {
		retry, retryErr := p.completer.Complete(ctx, translateSystemPrompt,
			"ONLY TRANSLATE, DO NOT INCLUDE ANY COMMENTS: "+text, 0.2)
		if retryErr != nil || strings.TrimSpace(retry) == "" || p.hasMetaMarker(retry) {
			p.logger.Warn("translation retry still meta, keeping original")
			return text
		}
		return strings.TrimSpace(retry)
	}

	if strings.TrimSpace(out) == "" {
		return text
	}
	return strings.TrimSpace(out)
}

func (p *LanguagePipeline) hasMetaMarker(text string) bool {
	lowered := strings.ToLower(text)
	for _, marker := range p.metaMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// DetailedSummary produces the 2-3 sentence summary, falling back to a fixed
// placeholder on failure.
func (p *LanguagePipeline) DetailedSummary(ctx context.Context, text string) string {
	out, err := p.completer.Complete(ctx, summarySystemPrompt,
		"Create a concise but informative summary for this article: "+text, 0.3)
	if err != nil {
		p.logger.Warn("summary generation failed", "error", err)
		return summaryPlaceholder
	}
	if strings.TrimSpace(out) == "" {
		return summaryPlaceholder
	}
	return out
}

// Tags produces the tag list (lenient decode, capped), falling back to the
// single default tag on total failure.
func (p *LanguagePipeline) Tags(ctx context.Context, text string) []string {
	out, err := p.completer.Complete(ctx, tagsSystemPrompt, "Generate tags for this article: "+text, 0.2)
	if err != nil {
		p.logger.Warn("tag generation failed", "error", err)
		return []string{defaultTag}
	}

	tags := modelout.StringList(out, p.tagCap)
	if len(tags) == 0 {
		return []string{defaultTag}
	}
	return tags
}

// Structure produces the typed content outline. On failure or an empty result
// it returns nil, which triggers the paragraph-split fallback downstream.
func (p *LanguagePipeline) Structure(ctx context.Context, text string) []domain.ContentItem {
	out, err := p.completer.Complete(ctx, structureSystemPrompt, text, 0)
	if err != nil {
		p.logger.Warn("structural analysis failed", "error", err)
		return nil
	}
	return modelout.Blocks(out)
}
