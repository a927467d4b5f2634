// Package readside serves the HTTP read API over the persisted articles.
package readside

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ArticleInbox/internal/domain"
	"ArticleInbox/internal/modelout"
	"ArticleInbox/internal/ports"
)

const tagSelectSystemPrompt = "You are an assistant that selects relevant tags based on user query. " +
	"Consider both direct matches and semantically related concepts. " +
	"Return only a JSON array of selected tags, nothing else."

// ReadRepository is the query surface the handler needs from storage.
type ReadRepository interface {
	ListArticles(ctx context.Context, query string) ([]domain.ArticlePreview, error)
	ListArticlesByTags(ctx context.Context, tags []string) ([]domain.ArticlePreview, error)
	AllTags(ctx context.Context) ([]string, error)
	GetPreview(ctx context.Context, articleID int64) (*domain.ArticlePreview, error)
	GetFullArticle(ctx context.Context, articleID int64) (*domain.Article, error)
}

type Handler struct {
	repo      ReadRepository
	completer ports.Completer
	logger    *slog.Logger
}

func NewHandler(repo ReadRepository, completer ports.Completer, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, completer: completer, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/hello", h.hello)
	r.POST("/articles_list", h.articlesList)
	r.GET("/article_data/:id", h.articleData)
	r.GET("/api/articles/:id", h.fullArticle)
}

func (h *Handler) hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hi!"})
}

type listRequest struct {
	Query string `json:"query"`
}

func (h *Handler) articlesList(c *gin.Context) {
	var req listRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("Error in request: %s", err)})
		return
	}
	ctx := c.Request.Context()

	previews, err := h.search(ctx, req.Query)
	if err != nil {
		h.logger.Error("articles list", "query", req.Query, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("Error in request: %s", err)})
		return
	}

	articles := make([]gin.H, 0, len(previews))
	for _, p := range previews {
		articles = append(articles, previewJSON(p))
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

// search routes a free-text query either through model-assisted tag selection
// or, when no known tag matches, a plain substring search.
func (h *Handler) search(ctx context.Context, query string) ([]domain.ArticlePreview, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return h.repo.ListArticles(ctx, "")
	}

	allTags, err := h.repo.AllTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}

	if selected := h.selectTags(ctx, query, allTags); len(selected) > 0 {
		return h.repo.ListArticlesByTags(ctx, selected)
	}
	return h.repo.ListArticles(ctx, query)
}

// selectTags asks the model which known tags match the query and keeps only
// answers that are actually in the tag set. Any failure means no selection.
func (h *Handler) selectTags(ctx context.Context, query string, allTags []string) []string {
	if len(allTags) == 0 {
		return nil
	}

	known := make(map[string]struct{}, len(allTags))
	tagList := ""
	for i, tag := range allTags {
		known[tag] = struct{}{}
		if i > 0 {
			tagList += ", "
		}
		tagList += tag
	}

	out, err := h.completer.Complete(ctx, tagSelectSystemPrompt,
		fmt.Sprintf("Select relevant tags for this search query: '%s'. Available tags: %s. Return only a JSON array of selected tags.", query, tagList),
		0.3)
	if err != nil {
		h.logger.Warn("tag selection failed", "query", query, "error", err)
		return nil
	}

	var selected []string
	for _, tag := range modelout.StringList(out, len(allTags)) {
		if _, ok := known[tag]; ok {
			selected = append(selected, tag)
		}
	}
	return selected
}

func (h *Handler) articleData(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Article not found"})
		return
	}

	preview, err := h.repo.GetPreview(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("article preview", "article_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal error"})
		return
	}
	if preview == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Article not found"})
		return
	}
	c.JSON(http.StatusOK, previewJSON(*preview))
}

func (h *Handler) fullArticle(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Article not found"})
		return
	}

	article, err := h.repo.GetFullArticle(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("full article", "article_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal error"})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Article not found"})
		return
	}

	content := make([]gin.H, 0, len(article.Content))
	for _, item := range article.Content {
		content = append(content, contentJSON(item))
	}
	c.JSON(http.StatusOK, gin.H{
		"title":   article.Title,
		"summary": article.Summary,
		"content": content,
	})
}

// previewJSON matches the shape the frontend expects: string ids, a
// ready-made article URL and tags always present as an array.
func previewJSON(p domain.ArticlePreview) gin.H {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return gin.H{
		"id":          strconv.FormatInt(p.ID, 10),
		"title":       p.Title,
		"description": p.Description,
		"image_url":   p.ImageURL,
		"tags":        tags,
		"url":         fmt.Sprintf("/article/%d", p.ID),
	}
}

func contentJSON(item domain.ContentItem) gin.H {
	switch item.Type {
	case domain.ContentHeading:
		level := item.Level
		if level == 0 {
			level = 1
		}
		return gin.H{"type": "heading", "text": item.Text, "level": level}
	case domain.ContentPhoto:
		return gin.H{"type": "photo", "url": item.Text, "alt": "Изображение", "caption": ""}
	case domain.ContentLink:
		text := item.Text
		if text == "" {
			text = item.URL
		}
		return gin.H{"type": "link", "text": text, "url": item.URL}
	default:
		return gin.H{"type": "paragraph", "text": item.Text}
	}
}
