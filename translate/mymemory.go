package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/langmeta"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/llm"
)

const (
	MyMemoryURL = "https://api.mymemory.translated.net/get"
	LibreURL    = "https://libretranslate.de/translate"
)

// ---------------------------------------------------------------------------
// MyMemory
// ---------------------------------------------------------------------------

// MyMemory is a keyless translator over the MyMemory public API.
type MyMemory struct {
	Endpoint   string
	SourceLang string
	HTTP       *http.Client
}

// NewMyMemory returns a MyMemory client translating from English.
func NewMyMemory() *MyMemory {
	return &MyMemory{Endpoint: MyMemoryURL, SourceLang: "en", HTTP: &http.Client{Timeout: 10 * time.Second}}
}

func (m *MyMemory) Translate(ctx context.Context, text, targetLang string) (string, error) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return "", nil
	}

	q := url.Values{}
	q.Set("q", cleaned)
	q.Set("langpair", m.SourceLang+"|"+langmeta.Canonical(targetLang))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := m.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("mymemory request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", &llm.Failure{Provider: "mymemory", StatusCode: resp.StatusCode, Message: truncate(string(body), 300)}
	}

	var payload struct {
		ResponseData struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
		ResponseStatus  json.RawMessage `json:"responseStatus"`
		ResponseDetails string          `json:"responseDetails"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("mymemory: invalid JSON response: %w", err)
	}

	// responseStatus arrives as a number or a quoted number.
	if status, err := strconv.Atoi(strings.Trim(string(payload.ResponseStatus), `"`)); err == nil && status != http.StatusOK {
		return "", &llm.Failure{Provider: "mymemory", StatusCode: status, Message: payload.ResponseDetails}
	}

	out := strings.TrimSpace(payload.ResponseData.TranslatedText)
	if out == "" || sameText(out, cleaned) {
		return "", fmt.Errorf("mymemory: %w", ErrEmpty)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// LibreTranslate
// ---------------------------------------------------------------------------

// Libre translates through a LibreTranslate instance.
type Libre struct {
	Endpoint   string
	APIKey     string
	SourceLang string
	HTTP       *http.Client
}

// NewLibre returns a client for the public LibreTranslate instance.
func NewLibre() *Libre {
	return &Libre{Endpoint: LibreURL, SourceLang: "en", HTTP: &http.Client{Timeout: 10 * time.Second}}
}

func (l *Libre) Translate(ctx context.Context, text, targetLang string) (string, error) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return "", nil
	}

	reqBody, err := json.Marshal(map[string]string{
		"q":       cleaned,
		"source":  l.SourceLang,
		"target":  langmeta.Base(targetLang),
		"format":  "text",
		"api_key": l.APIKey,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("libretranslate request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", &llm.Failure{Provider: "libretranslate", StatusCode: resp.StatusCode, Message: truncate(string(body), 300)}
	}

	var payload struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("libretranslate: invalid JSON response: %w", err)
	}

	out := strings.TrimSpace(payload.TranslatedText)
	if out == "" || sameText(out, cleaned) {
		return "", fmt.Errorf("libretranslate: %w", ErrEmpty)
	}
	return out, nil
}
