package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"ArticleInbox/internal/config"
)

// fakeCompleter scripts responses keyed by call order and counts invocations.
type fakeCompleter struct {
	mu      sync.Mutex
	calls   int
	handler func(call int, system, user string) (string, error)
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string, _ float64) (string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if f.handler == nil {
		return "", fmt.Errorf("no handler scripted")
	}
	return f.handler(call, system, user)
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(completer *fakeCompleter) *LanguagePipeline {
	cfg := config.LanguageConfig{
		Target: "ru",
		MetaMarkers: []string{
			"вот перевод", "понял, перевожу", "here's the translation", "please provide",
		},
	}
	return NewLanguagePipeline(completer, cfg, 10, quietLogger())
}

func TestCyrillicTextSkipsDetectionCall(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{}
	pipeline := newPipeline(completer)

	got := pipeline.DetectLanguage(context.Background(), "Привет мир, это статья про Go")
	if got != "ru" {
		t.Fatalf("expected ru, got %s", got)
	}
	if completer.callCount() != 0 {
		t.Fatalf("heuristic path must not invoke the model, got %d calls", completer.callCount())
	}
}

func TestDetectLanguageViaModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		err      error
		want     string
	}{
		{name: "clean code", response: " EN ", want: "en"},
		{name: "empty", response: "", want: "unknown"},
		{name: "rambling", response: "The language appears to be English", want: "unknown"},
		{name: "failure", err: fmt.Errorf("boom"), want: "unknown"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			completer := &fakeCompleter{handler: func(int, string, string) (string, error) {
				return tc.response, tc.err
			}}
			pipeline := newPipeline(completer)

			if got := pipeline.DetectLanguage(context.Background(), "plain english text"); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDetectLanguageSampleKeepsValidUTF8(t *testing.T) {
	t.Parallel()

	// 3-byte runes straddle the byte limit, so a naive byte cut would send
	// a broken rune to the model.
	text := strings.Repeat("あ", 400)

	var captured string
	completer := &fakeCompleter{handler: func(_ int, _, user string) (string, error) {
		captured = user
		return "ja", nil
	}}
	pipeline := newPipeline(completer)

	if got := pipeline.DetectLanguage(context.Background(), text); got != "ja" {
		t.Fatalf("got %s, want ja", got)
	}
	if !utf8.ValidString(captured) {
		t.Fatal("detection prompt contains invalid UTF-8")
	}
	if len(captured) >= len(text) {
		t.Fatalf("sample was not truncated, prompt %d bytes", len(captured))
	}
}

func TestTranslateMetaResponseRetries(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{handler: func(call int, _, user string) (string, error) {
		if call == 1 {
			return "Вот перевод: текст статьи", nil
		}
		if !strings.Contains(user, "ONLY TRANSLATE") {
			t.Errorf("retry prompt not strict: %q", user)
		}
		return "Текст статьи", nil
	}}
	pipeline := newPipeline(completer)

	got := pipeline.Translate(context.Background(), "article text")
	if got != "Текст статьи" {
		t.Fatalf("expected retried translation, got %q", got)
	}
	if completer.callCount() != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", completer.callCount())
	}
}

func TestTranslateKeepsOriginalOnPersistentMeta(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{handler: func(int, string, string) (string, error) {
		return "Понял, перевожу ваш текст", nil
	}}
	pipeline := newPipeline(completer)

	if got := pipeline.Translate(context.Background(), "original"); got != "original" {
		t.Fatalf("expected original text, got %q", got)
	}
}

func TestTranslateFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{handler: func(int, string, string) (string, error) {
		return "", fmt.Errorf("unavailable")
	}}
	pipeline := newPipeline(completer)

	if got := pipeline.Translate(context.Background(), "original"); got != "original" {
		t.Fatalf("expected original text, got %q", got)
	}
}

func TestDetailedSummaryPlaceholder(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{handler: func(int, string, string) (string, error) {
		return "", fmt.Errorf("unavailable")
	}}
	pipeline := newPipeline(completer)

	if got := pipeline.DetailedSummary(context.Background(), "text"); got != summaryPlaceholder {
		t.Fatalf("expected placeholder, got %q", got)
	}
}

func TestTagsLenientAndDefault(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{handler: func(int, string, string) (string, error) {
		return `Tags: ["go", "pipelines", unquoted]`, nil
	}}
	pipeline := newPipeline(completer)

	got := pipeline.Tags(context.Background(), "text")
	want := []string{"go", "pipelines", "unquoted"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	failing := &fakeCompleter{handler: func(int, string, string) (string, error) {
		return "", fmt.Errorf("unavailable")
	}}
	pipeline = newPipeline(failing)
	if got := pipeline.Tags(context.Background(), "text"); !reflect.DeepEqual(got, []string{defaultTag}) {
		t.Fatalf("expected default tag, got %v", got)
	}
}

func TestStructureEmptyOnFailure(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{handler: func(int, string, string) (string, error) {
		return "no json here", nil
	}}
	pipeline := newPipeline(completer)

	if items := pipeline.Structure(context.Background(), "text"); len(items) != 0 {
		t.Fatalf("expected empty structure, got %v", items)
	}
}
