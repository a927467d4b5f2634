package ports

import (
	"context"

	"ArticleInbox/internal/domain"
)

// Completer sends one prompt pair to the language-model service and returns
// the completion text. Failures surface as errors, never partial text.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

// ArticleRepository persists structured articles into the relational store.
type ArticleRepository interface {
	CreateArticle(ctx context.Context, title, shortDescription, coverImage, summary string) (int64, error)
	AppendContentItem(ctx context.Context, articleID int64, orderIndex int, item domain.ContentItem) error
	AppendTag(ctx context.Context, articleID int64, tag string) error
}

// ImageStore materializes a transport photo reference into a stable relative
// path inside the shared image directory.
type ImageStore interface {
	Materialize(ctx context.Context, ref string) (string, error)
}

// Messenger pushes notifications back to the submitter. Calls are
// fire-and-forget from the pipeline's perspective; errors are advisory.
type Messenger interface {
	SendTyping(ctx context.Context, chatID int64) error
	Reply(ctx context.Context, chatID int64, text string) error
}
