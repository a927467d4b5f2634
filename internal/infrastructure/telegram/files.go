package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"ArticleInbox/internal/infrastructure/images"
	"ArticleInbox/internal/ports"
)

// Files materializes Bot API photo references: resolve the file path through
// getFile, download the bytes, hand them to the image store.
type Files struct {
	bot   *Bot
	store *images.Store
}

var _ ports.ImageStore = (*Files)(nil)

// NewFiles wires the bot transport with the image store.
func NewFiles(bot *Bot, store *images.Store) *Files {
	return &Files{bot: bot, store: store}
}

// Materialize turns a photo file id into a stable public path.
func (f *Files) Materialize(ctx context.Context, ref string) (string, error) {
	filePath, err := f.resolve(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("resolve file %s: %w", ref, err)
	}

	data, err := f.download(ctx, filePath)
	if err != nil {
		return "", fmt.Errorf("download file %s: %w", ref, err)
	}

	stored, err := f.store.Save(data, path.Ext(filePath))
	if err != nil {
		return "", fmt.Errorf("store file %s: %w", ref, err)
	}
	return stored, nil
}

func (f *Files) resolve(ctx context.Context, fileID string) (string, error) {
	form := url.Values{}
	form.Set("file_id", fileID)

	var payload struct {
		OK     bool `json:"ok"`
		Result struct {
			FilePath string `json:"file_path"`
		} `json:"result"`
	}
	if err := f.bot.call(ctx, "getFile", form, &payload); err != nil {
		return "", err
	}
	if !payload.OK || payload.Result.FilePath == "" {
		return "", fmt.Errorf("getFile returned no path")
	}
	return payload.Result.FilePath, nil
}

func (f *Files) download(ctx context.Context, filePath string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.bot.fileURL(filePath), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := f.bot.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download error %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
