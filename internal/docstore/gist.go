package docstore

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
)

const defaultGistBaseURL = "https://api.github.com"

// GistConfig controls GistStore.
type GistConfig struct {
	BaseURL    string
	GistID     string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// GistStore keeps each document as the file "<key>.json" of one GitHub gist,
// which is how the bot's menu, offers and order documents were first hosted.
type GistStore struct {
	baseURL    string
	gistID     string
	token      string
	httpClient *http.Client
}

// NewGistStore validates cfg and applies defaults.
func NewGistStore(cfg GistConfig) (*GistStore, error) {
	if strings.TrimSpace(cfg.GistID) == "" {
		return nil, errors.New("docstore: gist id is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultGistBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &GistStore{
		baseURL:    baseURL,
		gistID:     cfg.GistID,
		token:      cfg.Token,
		httpClient: httpClient,
	}, nil
}

type gistFile struct {
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
	RawURL    string `json:"raw_url,omitempty"`
}

type gistBody struct {
	Files map[string]gistFile `json:"files"`
}

func (s *GistStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, status, err := s.do(ctx, http.MethodGet, "/gists/"+s.gistID, nil)
	if err != nil {
		return nil, readErr(key, err)
	}
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if status < 200 || status >= 300 {
		return nil, readErr(key, fmt.Errorf("gist status %d", status))
	}

	var body gistBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, readErr(key, fmt.Errorf("decode gist: %w", err))
	}
	file, ok := body.Files[key+".json"]
	if !ok {
		return nil, ErrNotFound
	}
	if file.Truncated && file.RawURL != "" {
		raw, status, err := s.do(ctx, http.MethodGet, file.RawURL, nil)
		if err != nil {
			return nil, readErr(key, err)
		}
		if status < 200 || status >= 300 {
			return nil, readErr(key, fmt.Errorf("gist raw status %d", status))
		}
		return raw, nil
	}
	return []byte(file.Content), nil
}

func (s *GistStore) Write(ctx context.Context, key string, data []byte) error {
	payload, err := json.Marshal(gistBody{Files: map[string]gistFile{
		key + ".json": {Content: string(data)},
	}})
	if err != nil {
		return writeErr(key, err)
	}
	_, status, err := s.do(ctx, http.MethodPatch, "/gists/"+s.gistID, payload)
	if err != nil {
		return writeErr(key, err)
	}
	if status < 200 || status >= 300 {
		return writeErr(key, fmt.Errorf("gist status %d", status))
	}
	return nil
}

func (s *GistStore) do(ctx context.Context, method, target string, body []byte) ([]byte, int, error) {
	url := target
	if strings.HasPrefix(target, "/") {
		url = s.baseURL + target
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return data, resp.StatusCode, nil
}
