package vocab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"hydro-harmonizer/internal/harmonize/model"
)

var ErrTranslationFailed = errors.New("translation failed")

// Translator translates a batch of strings between two languages.
type Translator interface {
	Translate(ctx context.Context, texts []string, src, dst string) ([]string, error)
}

// LibreTranslate talks to a LibreTranslate-compatible /translate endpoint.
type LibreTranslate struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewLibreTranslate(baseURL, apiKey string, timeout time.Duration) *LibreTranslate {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LibreTranslate{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type libreRequest struct {
	Q      []string `json:"q"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Format string   `json:"format"`
	APIKey string   `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText []string `json:"translatedText"`
	Error          string   `json:"error"`
}

func (t *LibreTranslate) Translate(ctx context.Context, texts []string, src, dst string) ([]string, error) {
	payload, err := json.Marshal(libreRequest{Q: texts, Source: src, Target: dst, Format: "text", APIKey: t.apiKey})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("translate request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	var out libreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return nil, errors.New(out.Error)
	}
	if len(out.TranslatedText) != len(texts) {
		return nil, fmt.Errorf("got %d translations for %d strings", len(out.TranslatedText), len(texts))
	}
	return out.TranslatedText, nil
}

// ParseLanguage validates a BCP 47 tag ("nl", "EN") and returns its base
// language code.
func ParseLanguage(s string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(s))
	if err != nil || tag == language.Und {
		return "", model.NewConfigError("language", fmt.Sprintf("invalid language %q", s))
	}
	base, _ := tag.Base()
	return base.String(), nil
}

// RetryPolicy controls TranslateWithRetry.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

var DefaultRetry = RetryPolicy{MaxAttempts: 10, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}

// TranslateWithRetry validates both languages and retries failed batches
// with exponential backoff. After the last attempt it returns
// ErrTranslationFailed wrapping the last error.
func TranslateWithRetry(ctx context.Context, tr Translator, texts []string, src, dst string, p RetryPolicy, log zerolog.Logger) ([]string, error) {
	src, err := ParseLanguage(src)
	if err != nil {
		return nil, err
	}
	dst, err = ParseLanguage(dst)
	if err != nil {
		return nil, err
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	backoff := p.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		out, err := tr.Translate(ctx, texts, src, dst)
		if err == nil {
			return out, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("translation attempt failed")
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if p.MaxDelay > 0 && backoff > p.MaxDelay {
			backoff = p.MaxDelay
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrTranslationFailed, p.MaxAttempts, lastErr)
}

// TranslateFunc binds a translator, languages and retry policy into the
// batch function the dictionary builder expects.
func TranslateFunc(tr Translator, src, dst string, p RetryPolicy, log zerolog.Logger) func(context.Context, []string) ([]string, error) {
	return func(ctx context.Context, texts []string) ([]string, error) {
		return TranslateWithRetry(ctx, tr, texts, src, dst, p, log)
	}
}
