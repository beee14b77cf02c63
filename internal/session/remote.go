package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RemoteQuerier 调用远端 /generate 的查询协作者
type RemoteQuerier struct {
	endpoint   string
	httpClient *http.Client
}

// NewRemoteQuerier baseURL 形如 http://localhost:8080
func NewRemoteQuerier(baseURL string, timeout time.Duration) *RemoteQuerier {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &RemoteQuerier{
		endpoint:   strings.TrimRight(baseURL, "/") + "/generate",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Query POST {prompt}，解析 {executed_cypher, results}
func (q *RemoteQuerier) Query(ctx context.Context, prompt string) (*Response, error) {
	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", q.endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &failure) == nil && failure.Error != "" {
			return nil, fmt.Errorf("server returned %s: %s", resp.Status, failure.Error)
		}
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &out, nil
}
