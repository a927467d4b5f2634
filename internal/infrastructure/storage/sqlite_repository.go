package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"ArticleInbox/internal/domain"
	"ArticleInbox/internal/ports"
)

// Repository persists articles, content items and tags into SQLite. It also
// backs the read-side queries.
type Repository struct {
	db *sql.DB
}

var _ ports.ArticleRepository = (*Repository)(nil)

// Open opens (or creates) the database file, enables WAL and foreign keys,
// and ensures the schema exists.
func Open(ctx context.Context, path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma foreign_keys: %w", err)
	}

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close releases the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS articles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT,
	short_description TEXT,
	image_url TEXT,
	summary TEXT
);

CREATE TABLE IF NOT EXISTS content (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	article_id INTEGER,
	order_index INTEGER,
	type TEXT,
	content TEXT,
	header_level INTEGER,
	FOREIGN KEY(article_id) REFERENCES articles(id)
);

CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	article_id INTEGER,
	tag TEXT,
	FOREIGN KEY(article_id) REFERENCES articles(id)
);`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// CreateArticle inserts the article header record and returns its identifier.
func (r *Repository) CreateArticle(ctx context.Context, title, shortDescription, coverImage, summary string) (int64, error) {
	query, args, err := sq.Insert("articles").
		Columns("title", "short_description", "image_url", "summary").
		Values(title, shortDescription, coverImage, summary).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert article: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert article: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("article id: %w", err)
	}
	return id, nil
}

// AppendContentItem inserts one ordered content row for the article. A link
// item with empty text persists its URL so the row is never blank.
func (r *Repository) AppendContentItem(ctx context.Context, articleID int64, orderIndex int, item domain.ContentItem) error {
	text := item.Text
	if item.Type == domain.ContentLink && text == "" {
		text = item.URL
	}

	var level any
	if item.Type == domain.ContentHeading {
		level = item.Level
	}

	query, args, err := sq.Insert("content").
		Columns("article_id", "order_index", "type", "content", "header_level").
		Values(articleID, orderIndex, string(item.Type), text, level).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert content: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert content item: %w", err)
	}
	return nil
}

// AppendTag inserts one tag row for the article.
func (r *Repository) AppendTag(ctx context.Context, articleID int64, tag string) error {
	query, args, err := sq.Insert("tags").
		Columns("article_id", "tag").
		Values(articleID, tag).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert tag: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}

// ListArticles returns previews, filtered by a LIKE search over title and
// short description when query is non-empty.
func (r *Repository) ListArticles(ctx context.Context, query string) ([]domain.ArticlePreview, error) {
	builder := sq.Select("id", "title", "short_description", "image_url").From("articles")
	if query != "" {
		pattern := "%" + query + "%"
		builder = builder.Where(sq.Or{
			sq.Like{"title": pattern},
			sq.Like{"short_description": pattern},
		})
	}

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	return r.queryPreviews(ctx, sqlStr, args)
}

// ListArticlesByTags returns previews of articles carrying at least one of
// the given tags.
func (r *Repository) ListArticlesByTags(ctx context.Context, tags []string) ([]domain.ArticlePreview, error) {
	if len(tags) == 0 {
		return r.ListArticles(ctx, "")
	}

	sqlStr, args, err := sq.Select("DISTINCT a.id", "a.title", "a.short_description", "a.image_url").
		From("articles a").
		Join("tags t ON a.id = t.article_id").
		Where(sq.Eq{"t.tag": tags}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build tag query: %w", err)
	}
	return r.queryPreviews(ctx, sqlStr, args)
}

func (r *Repository) queryPreviews(ctx context.Context, sqlStr string, args []any) ([]domain.ArticlePreview, error) {
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query previews: %w", err)
	}
	defer rows.Close()

	previews := make([]domain.ArticlePreview, 0)
	for rows.Next() {
		var (
			p           domain.ArticlePreview
			title       sql.NullString
			description sql.NullString
			imageURL    sql.NullString
		)
		if err := rows.Scan(&p.ID, &title, &description, &imageURL); err != nil {
			return nil, fmt.Errorf("scan preview: %w", err)
		}
		p.Title = title.String
		p.Description = description.String
		p.ImageURL = imageURL.String
		previews = append(previews, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	for i := range previews {
		tags, err := r.ArticleTags(ctx, previews[i].ID)
		if err != nil {
			return nil, err
		}
		previews[i].Tags = tags
	}

	return previews, nil
}

// AllTags returns the distinct tag set across all articles.
func (r *Repository) AllTags(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT tag FROM tags")
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	tags := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return tags, nil
}

// ArticleTags returns the tags of one article.
func (r *Repository) ArticleTags(ctx context.Context, articleID int64) ([]string, error) {
	sqlStr, args, err := sq.Select("tag").From("tags").Where(sq.Eq{"article_id": articleID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build tags query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query article tags: %w", err)
	}
	defer rows.Close()

	tags := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan article tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return tags, nil
}

// GetPreview returns one article preview, or nil when absent.
func (r *Repository) GetPreview(ctx context.Context, articleID int64) (*domain.ArticlePreview, error) {
	sqlStr, args, err := sq.Select("id", "title", "short_description", "image_url").
		From("articles").
		Where(sq.Eq{"id": articleID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build preview query: %w", err)
	}

	var (
		p           domain.ArticlePreview
		title       sql.NullString
		description sql.NullString
		imageURL    sql.NullString
	)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	if err := row.Scan(&p.ID, &title, &description, &imageURL); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan preview: %w", err)
	}
	p.Title = title.String
	p.Description = description.String
	p.ImageURL = imageURL.String

	tags, err := r.ArticleTags(ctx, articleID)
	if err != nil {
		return nil, err
	}
	p.Tags = tags
	return &p, nil
}

// GetFullArticle returns the header plus the ordered content sequence, or nil
// when the article does not exist.
func (r *Repository) GetFullArticle(ctx context.Context, articleID int64) (*domain.Article, error) {
	var (
		article domain.Article
		title   sql.NullString
		summary sql.NullString
	)
	row := r.db.QueryRowContext(ctx,
		"SELECT id, title, summary FROM articles WHERE id = ?", articleID)
	if err := row.Scan(&article.ID, &title, &summary); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan article: %w", err)
	}
	article.Title = title.String
	article.Summary = summary.String

	sqlStr, args, err := sq.Select("type", "content", "header_level").
		From("content").
		Where(sq.Eq{"article_id": articleID}).
		OrderBy("order_index").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build content query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query content: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			itemType string
			text     sql.NullString
			level    sql.NullInt64
		)
		if err := rows.Scan(&itemType, &text, &level); err != nil {
			return nil, fmt.Errorf("scan content item: %w", err)
		}

		item := domain.ContentItem{Type: domain.ContentType(itemType), Text: text.String}
		switch item.Type {
		case domain.ContentHeading:
			item.Level = int(level.Int64)
			if item.Level == 0 {
				item.Level = 1
			}
		case domain.ContentLink:
			item.URL = ""
		}
		article.Content = append(article.Content, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	tags, err := r.ArticleTags(ctx, articleID)
	if err != nil {
		return nil, err
	}
	article.Tags = tags

	return &article, nil
}
