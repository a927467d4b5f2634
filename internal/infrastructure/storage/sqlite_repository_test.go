package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"ArticleInbox/internal/domain"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()

	repo, err := Open(context.Background(), filepath.Join(t.TempDir(), "articles.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedArticle(t *testing.T, repo *Repository) int64 {
	t.Helper()
	ctx := context.Background()

	id, err := repo.CreateArticle(ctx, "Заголовок", "Описание статьи", "/images/cover.jpg", "Краткое содержание")
	if err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}

	items := []domain.ContentItem{
		{Type: domain.ContentPhoto, Text: "/images/cover.jpg"},
		{Type: domain.ContentHeading, Text: "Вступление", Level: 2},
		{Type: domain.ContentParagraph, Text: "Первый абзац."},
		{Type: domain.ContentLink, Text: "Источник", URL: "https://example.com"},
	}
	for i, item := range items {
		if err := repo.AppendContentItem(ctx, id, i, item); err != nil {
			t.Fatalf("AppendContentItem %d: %v", i, err)
		}
	}
	for _, tag := range []string{"новости", "технологии"} {
		if err := repo.AppendTag(ctx, id, tag); err != nil {
			t.Fatalf("AppendTag: %v", err)
		}
	}
	return id
}

func TestCreateAndReadFullArticle(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	id := seedArticle(t, repo)

	article, err := repo.GetFullArticle(context.Background(), id)
	if err != nil {
		t.Fatalf("GetFullArticle: %v", err)
	}
	if article == nil {
		t.Fatal("article not found")
	}
	if article.Title != "Заголовок" || article.Summary != "Краткое содержание" {
		t.Fatalf("unexpected header: %+v", article)
	}

	wantTypes := []domain.ContentType{
		domain.ContentPhoto,
		domain.ContentHeading,
		domain.ContentParagraph,
		domain.ContentLink,
	}
	if len(article.Content) != len(wantTypes) {
		t.Fatalf("expected %d items, got %d", len(wantTypes), len(article.Content))
	}
	for i, want := range wantTypes {
		if article.Content[i].Type != want {
			t.Fatalf("item %d: expected %s, got %s", i, want, article.Content[i].Type)
		}
	}
	if article.Content[1].Level != 2 {
		t.Fatalf("heading level lost: %+v", article.Content[1])
	}
	if !reflect.DeepEqual(article.Tags, []string{"новости", "технологии"}) {
		t.Fatalf("unexpected tags: %v", article.Tags)
	}
}

func TestContentOrderPreserved(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	id, err := repo.CreateArticle(ctx, "t", "d", "", "s")
	if err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}

	// Insert out of order; retrieval must sort by order_index.
	_ = repo.AppendContentItem(ctx, id, 2, domain.ContentItem{Type: domain.ContentParagraph, Text: "third"})
	_ = repo.AppendContentItem(ctx, id, 0, domain.ContentItem{Type: domain.ContentParagraph, Text: "first"})
	_ = repo.AppendContentItem(ctx, id, 1, domain.ContentItem{Type: domain.ContentParagraph, Text: "second"})

	article, err := repo.GetFullArticle(ctx, id)
	if err != nil {
		t.Fatalf("GetFullArticle: %v", err)
	}

	var got []string
	for _, item := range article.Content {
		got = append(got, item.Text)
	}
	if !reflect.DeepEqual(got, []string{"first", "second", "third"}) {
		t.Fatalf("order not preserved: %v", got)
	}
}

func TestLinkWithEmptyTextPersistsURL(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	id, _ := repo.CreateArticle(ctx, "t", "d", "", "s")
	err := repo.AppendContentItem(ctx, id, 0, domain.ContentItem{Type: domain.ContentLink, URL: "https://example.com"})
	if err != nil {
		t.Fatalf("AppendContentItem: %v", err)
	}

	article, _ := repo.GetFullArticle(ctx, id)
	if len(article.Content) != 1 || article.Content[0].Text != "https://example.com" {
		t.Fatalf("link fallback not applied: %+v", article.Content)
	}
}

func TestListArticlesSearch(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	_, _ = repo.CreateArticle(ctx, "Go concurrency patterns", "channels and goroutines", "", "s")
	_, _ = repo.CreateArticle(ctx, "Cooking", "pasta recipes", "", "s")

	all, err := repo.ListArticles(ctx, "")
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(all))
	}

	matched, err := repo.ListArticles(ctx, "concurrency")
	if err != nil {
		t.Fatalf("ListArticles with query: %v", err)
	}
	if len(matched) != 1 || matched[0].Title != "Go concurrency patterns" {
		t.Fatalf("unexpected search result: %+v", matched)
	}
}

func TestListArticlesByTags(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	first, _ := repo.CreateArticle(ctx, "A", "a", "", "s")
	second, _ := repo.CreateArticle(ctx, "B", "b", "", "s")
	_ = repo.AppendTag(ctx, first, "go")
	_ = repo.AppendTag(ctx, first, "news")
	_ = repo.AppendTag(ctx, second, "cooking")

	got, err := repo.ListArticlesByTags(ctx, []string{"go", "rust"})
	if err != nil {
		t.Fatalf("ListArticlesByTags: %v", err)
	}
	if len(got) != 1 || got[0].ID != first {
		t.Fatalf("unexpected tag match: %+v", got)
	}

	tags, err := repo.AllTags(ctx)
	if err != nil {
		t.Fatalf("AllTags: %v", err)
	}
	if len(tags) != 3 {
		t.Fatalf("expected 3 distinct tags, got %v", tags)
	}
}

func TestGetPreviewMissing(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)

	preview, err := repo.GetPreview(context.Background(), 404)
	if err != nil {
		t.Fatalf("GetPreview: %v", err)
	}
	if preview != nil {
		t.Fatalf("expected nil for missing article, got %+v", preview)
	}
}
