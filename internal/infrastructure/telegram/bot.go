package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ArticleInbox/internal/ports"
)

const defaultBaseURL = "https://api.telegram.org"

// Update is one long-poll result entry.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message carries the fields the ingestion pipeline cares about.
type Message struct {
	MessageID    int64       `json:"message_id"`
	Chat         Chat        `json:"chat"`
	Text         string      `json:"text"`
	Caption      string      `json:"caption"`
	Photo        []PhotoSize `json:"photo"`
	MediaGroupID string      `json:"media_group_id"`
}

// Chat identifies the submitter.
type Chat struct {
	ID int64 `json:"id"`
}

// PhotoSize is one resolution variant of an attached photo; the Bot API
// orders them smallest first.
type PhotoSize struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
}

// PhotoRef returns the file id of the largest attached photo, or "".
func (m Message) PhotoRef() string {
	if len(m.Photo) == 0 {
		return ""
	}
	return m.Photo[len(m.Photo)-1].FileID
}

// Body returns the submission text: caption when present, message text
// otherwise.
func (m Message) Body() string {
	if m.Caption != "" {
		return m.Caption
	}
	return m.Text
}

// Bot talks to the Bot API over plain HTTP: long-polled updates in, messages
// and chat actions out.
type Bot struct {
	token       string
	baseURL     string
	pollTimeout int
	client      *http.Client
	logger      *slog.Logger
}

var _ ports.Messenger = (*Bot)(nil)

// NewBot wires the bot token and poll timeout (seconds). The HTTP client
// timeout leaves headroom over the long-poll window.
func NewBot(token string, pollTimeout int, logger *slog.Logger) *Bot {
	if pollTimeout <= 0 {
		pollTimeout = 30
	}
	return &Bot{
		token:       token,
		baseURL:     defaultBaseURL,
		pollTimeout: pollTimeout,
		client:      &http.Client{Timeout: time.Duration(pollTimeout+10) * time.Second},
		logger:      logger,
	}
}

func (b *Bot) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", b.baseURL, b.token, method)
}

func (b *Bot) fileURL(filePath string) string {
	return fmt.Sprintf("%s/file/bot%s/%s", b.baseURL, b.token, filePath)
}

// Poll runs the getUpdates loop until ctx is canceled, invoking handle for
// every delivered message. Transport hiccups are logged and retried after a
// short pause rather than stopping the loop.
func (b *Bot) Poll(ctx context.Context, handle func(context.Context, Message)) error {
	if b.token == "" {
		return fmt.Errorf("telegram bot misconfigured: empty token")
	}

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		updates, err := b.getUpdates(ctx, offset)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			b.logger.Warn("poll updates", "error", err)
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			if upd.Message == nil {
				continue
			}
			handle(ctx, *upd.Message)
		}
	}
}

func (b *Bot) getUpdates(ctx context.Context, offset int64) ([]Update, error) {
	form := url.Values{}
	form.Set("timeout", strconv.Itoa(b.pollTimeout))
	if offset > 0 {
		form.Set("offset", strconv.FormatInt(offset, 10))
	}

	var payload struct {
		OK     bool     `json:"ok"`
		Result []Update `json:"result"`
	}
	if err := b.call(ctx, "getUpdates", form, &payload); err != nil {
		return nil, err
	}
	if !payload.OK {
		return nil, fmt.Errorf("getUpdates returned not ok")
	}
	return payload.Result, nil
}

// Reply posts a plain-text message to the chat.
func (b *Bot) Reply(ctx context.Context, chatID int64, text string) error {
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(chatID, 10))
	form.Set("text", text)
	return b.call(ctx, "sendMessage", form, nil)
}

// SendTyping shows the typing indicator in the chat.
func (b *Bot) SendTyping(ctx context.Context, chatID int64) error {
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(chatID, 10))
	form.Set("action", "typing")
	return b.call(ctx, "sendChatAction", form, nil)
}

func (b *Bot) call(ctx context.Context, method string, form url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.methodURL(method), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: telegram error %s", method, resp.Status)
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	return nil
}
