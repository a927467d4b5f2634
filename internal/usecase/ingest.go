package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"ArticleInbox/internal/aggregator"
	"ArticleInbox/internal/config"
	"ArticleInbox/internal/domain"
	"ArticleInbox/internal/ports"
)

const (
	titlePlaceholder = "Без заголовка"

	replyMostlyLinks = "Извините, статья состоит преимущественно из ссылок и не может быть обработана."
	replyFailure     = "Произошла ошибка при обработке запроса. Пожалуйста, попробуйте еще раз позже."
)

// Deps wires the driven adapters into the ingestion orchestrator.
type Deps struct {
	Language    *LanguagePipeline
	Repo        ports.ArticleRepository
	Images      ports.ImageStore
	Messenger   ports.Messenger
	Logger      *slog.Logger
	Pipeline    config.PipelineConfig
	Aggregation config.AggregatorConfig
}

// Ingestor drives one submission end-to-end: aggregation, admissibility,
// language normalization, content building, persistence, notification.
type Ingestor struct {
	language  *LanguagePipeline
	repo      ports.ArticleRepository
	images    ports.ImageStore
	messenger ports.Messenger
	logger    *slog.Logger
	cfg       config.PipelineConfig

	agg *aggregator.Aggregator

	// writeMu serializes the header/content/tag write sequence of one
	// submission; it is never held across network calls.
	writeMu sync.Mutex

	// root is the lifecycle context used for submissions dispatched by the
	// aggregator's flush timer, which outlive the originating event.
	rootMu sync.Mutex
	root   context.Context
}

// NewIngestor constructs the orchestrator and its aggregation buffer.
func NewIngestor(deps Deps) *Ingestor {
	ing := &Ingestor{
		language:  deps.Language,
		repo:      deps.Repo,
		images:    deps.Images,
		messenger: deps.Messenger,
		logger:    deps.Logger,
		cfg:       deps.Pipeline,
		root:      context.Background(),
	}
	ing.agg = aggregator.New(
		deps.Aggregation.FlushWindow(),
		deps.Aggregation.RetentionWindow(),
		ing.dispatch,
	)
	return ing
}

// Start binds the lifecycle context used for timer-dispatched submissions.
func (i *Ingestor) Start(ctx context.Context) {
	i.rootMu.Lock()
	i.root = ctx
	i.rootMu.Unlock()
}

// Stop halts the aggregation buffer; in-flight submissions finish on their
// own contexts.
func (i *Ingestor) Stop() {
	i.agg.Stop()
}

// HandleEvent accepts one transport event. The event-acceptance path does
// nothing heavier than the aggregator's buffer mutation; full processing runs
// on its own goroutine once a submission is complete.
func (i *Ingestor) HandleEvent(ctx context.Context, ev aggregator.Event) {
	sub, ready := i.agg.OnEvent(ev)
	if !ready {
		return
	}
	go i.Process(ctx, sub)
}

func (i *Ingestor) dispatch(sub domain.Submission) {
	i.rootMu.Lock()
	ctx := i.root
	i.rootMu.Unlock()
	go i.Process(ctx, sub)
}

// Process runs the full state machine for one completed submission. A panic
// is contained to this submission: logged, the submitter notified, nothing
// else affected.
func (i *Ingestor) Process(ctx context.Context, sub domain.Submission) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("submission processing panicked", "chat_id", sub.ChatID, "panic", r)
			_ = i.messenger.Reply(ctx, sub.ChatID, replyFailure)
		}
	}()

	trimmed := strings.TrimSpace(sub.Text)
	if trimmed == "" && len(sub.PhotoRefs) == 0 {
		return
	}

	_ = i.messenger.SendTyping(ctx, sub.ChatID)

	if isMostlyLinks(sub.Text, i.cfg.LinkRatio) {
		i.logger.Debug("submission rejected: mostly links", "chat_id", sub.ChatID)
		_ = i.messenger.Reply(ctx, sub.ChatID, replyMostlyLinks)
		return
	}

	if utf8.RuneCountInString(trimmed) < i.cfg.MinTextLen {
		i.logger.Debug("submission rejected: text too short", "chat_id", sub.ChatID, "len", utf8.RuneCountInString(trimmed))
		return
	}

	draft := domain.SubmissionDraft{Text: sub.Text}
	for _, ref := range sub.PhotoRefs {
		stored, err := i.images.Materialize(ctx, ref)
		if err != nil {
			i.logger.Warn("image materialization failed", "chat_id", sub.ChatID, "ref", ref, "error", err)
			continue
		}
		draft.ImagePaths = append(draft.ImagePaths, stored)
	}

	// Received -> LanguageNormalized.
	draft.Language = i.language.DetectLanguage(ctx, draft.Text)
	if draft.Language != i.language.Target() && draft.Language != "unknown" {
		_ = i.messenger.SendTyping(ctx, sub.ChatID)
		if translated := i.language.Translate(ctx, draft.Text); translated != draft.Text {
			draft.Text = translated
			draft.Translated = true
		}
	}

	title, shortDescription := deriveHeader(draft.Text, i.cfg.TitleMax, i.cfg.DescMax)

	_ = i.messenger.SendTyping(ctx, sub.ChatID)

	// LanguageNormalized -> ContentBuilt: the three stages are independent
	// and run concurrently, each degrading to its own fallback.
	var (
		summary string
		tags    []string
		items   []domain.ContentItem
		wg      sync.WaitGroup
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		defer i.containStage(sub.ChatID, "summary", func() { summary = summaryPlaceholder })
		summary = i.language.DetailedSummary(ctx, draft.Text)
	}()
	go func() {
		defer wg.Done()
		defer i.containStage(sub.ChatID, "tags", func() { tags = nil })
		tags = i.language.Tags(ctx, draft.Text)
	}()
	go func() {
		defer wg.Done()
		defer i.containStage(sub.ChatID, "structure", func() { items = nil })
		items = i.language.Structure(ctx, draft.Text)
	}()
	wg.Wait()

	content := buildContent(draft, items)
	tags = normalizeTags(tags, i.cfg.TagCap)

	coverImage := ""
	if len(draft.ImagePaths) > 0 {
		coverImage = draft.ImagePaths[0]
	}

	// ContentBuilt -> Persisted.
	articleID, err := i.persist(ctx, title, shortDescription, coverImage, summary, content, tags)
	if err != nil {
		i.logger.Error("persist submission", "chat_id", sub.ChatID, "error", err)
		_ = i.messenger.Reply(ctx, sub.ChatID, replyFailure)
		return
	}

	i.logger.Info("article persisted",
		"article_id", articleID,
		"chat_id", sub.ChatID,
		"items", len(content),
		"tags", len(tags),
		"language", draft.Language,
		"translated", draft.Translated,
	)
	_ = i.messenger.Reply(ctx, sub.ChatID, successReply(draft, tags, summary))
}

// containStage recovers a panic on a stage goroutine (recover only works on
// the goroutine that panicked) and degrades the stage to its fallback value.
func (i *Ingestor) containStage(chatID int64, stage string, fallback func()) {
	if r := recover(); r != nil {
		i.logger.Error("content stage panicked", "chat_id", chatID, "stage", stage, "panic", r)
		fallback()
	}
}

// persist writes header first, then content and tags, under the shared write
// mutex. Per-item failures are logged and skipped; the header write alone
// decides success.
func (i *Ingestor) persist(ctx context.Context, title, shortDescription, coverImage, summary string, content []domain.ContentItem, tags []string) (int64, error) {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	articleID, err := i.repo.CreateArticle(ctx, title, shortDescription, coverImage, summary)
	if err != nil {
		return 0, fmt.Errorf("create article: %w", err)
	}

	for idx, item := range content {
		if err := i.repo.AppendContentItem(ctx, articleID, idx, item); err != nil {
			i.logger.Warn("append content item failed", "article_id", articleID, "index", idx, "error", err)
		}
	}
	for _, tag := range tags {
		if err := i.repo.AppendTag(ctx, articleID, tag); err != nil {
			i.logger.Warn("append tag failed", "article_id", articleID, "tag", tag, "error", err)
		}
	}

	return articleID, nil
}

// isMostlyLinks reports whether at least ratio of the non-blank lines contain
// a URL substring.
func isMostlyLinks(text string, ratio float64) bool {
	var lines, linkLines int
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines++
		if strings.Contains(line, "http://") || strings.Contains(line, "https://") {
			linkLines++
		}
	}
	return lines > 0 && float64(linkLines)/float64(lines) >= ratio
}

// deriveHeader produces the title (first line, truncated) and the short
// description (prefix of the whole text).
func deriveHeader(text string, titleMax, descMax int) (string, string) {
	if strings.TrimSpace(text) == "" {
		return titlePlaceholder, ""
	}

	firstLine, _, _ := strings.Cut(text, "\n")
	return truncate(firstLine, titleMax), truncate(text, descMax)
}

func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

// buildContent assembles the final ordered sequence: attached photos first in
// arrival order, then model-produced items (or the paragraph-split fallback
// when the model produced nothing). Photo items without a path are dropped.
func buildContent(draft domain.SubmissionDraft, items []domain.ContentItem) []domain.ContentItem {
	if len(items) == 0 {
		items = splitParagraphs(draft.Text)
	}

	content := make([]domain.ContentItem, 0, len(draft.ImagePaths)+len(items))
	for _, path := range draft.ImagePaths {
		content = append(content, domain.ContentItem{Type: domain.ContentPhoto, Text: path})
	}
	for _, item := range items {
		if item.Type == domain.ContentPhoto && strings.TrimSpace(item.Text) == "" {
			continue
		}
		content = append(content, item)
	}
	return content
}

// splitParagraphs is the mechanical fallback: blank-line separated paragraph
// items, blanks filtered, original order kept.
func splitParagraphs(text string) []domain.ContentItem {
	var items []domain.ContentItem
	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		items = append(items, domain.ContentItem{Type: domain.ContentParagraph, Text: paragraph})
	}
	return items
}

// normalizeTags trims, drops empties, deduplicates, caps at max, and
// guarantees at least the default tag.
func normalizeTags(tags []string, max int) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if max > 0 && len(out) == max {
			break
		}
	}
	if len(out) == 0 {
		return []string{defaultTag}
	}
	return out
}

func successReply(draft domain.SubmissionDraft, tags []string, summary string) string {
	note := ""
	if draft.Translated {
		note = fmt.Sprintf(" (переведено с %s)", draft.Language)
	}

	shown := tags
	if len(shown) > 5 {
		shown = shown[:5]
	}

	return fmt.Sprintf("Статья успешно обработана и сохранена!%s\nТеги: %s...\nSummary: %s...",
		note, strings.Join(shown, ", "), truncate(summary, 100))
}

// StartGreeting is the /start command response.
const StartGreeting = "Привет! Перешли мне сообщение со статьей и я сохраню её в БД."
