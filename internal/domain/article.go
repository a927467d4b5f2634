package domain

// ContentType enumerates the structural units an article is built from.
type ContentType string

const (
	ContentHeading   ContentType = "heading"
	ContentParagraph ContentType = "paragraph"
	ContentPhoto     ContentType = "photo"
	ContentLink      ContentType = "link"
)

// ContentItem is one ordered structural unit of an article. Photo items keep
// their stored image path in Text; link items carry the target in URL.
type ContentItem struct {
	Type  ContentType
	Text  string
	Level int // heading level 1-3, zero for other types
	URL   string
}

// Article is the committed record produced by one ingestion run.
type Article struct {
	ID               int64
	Title            string
	ShortDescription string
	CoverImage       string
	Summary          string
	Content          []ContentItem
	Tags             []string
}

// ArticlePreview is the listing shape served by the read side.
type ArticlePreview struct {
	ID          int64
	Title       string
	Description string
	ImageURL    string
	Tags        []string
}

// Submission is one logical unit of incoming content, reassembled from one or
// more transport events and ready for pipeline processing.
type Submission struct {
	ChatID    int64
	Text      string
	PhotoRefs []string
}

// SubmissionDraft is the in-flight unit owned exclusively by a single
// orchestrator run while it moves through the pipeline.
type SubmissionDraft struct {
	Text       string
	ImagePaths []string
	Language   string
	Translated bool
}
