package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"query-visualizer/internal/logging"
	"strings"
	"time"
)

var (
	// ErrUnsafeQuery 翻译结果包含写操作关键字
	ErrUnsafeQuery = errors.New("unsafe query detected, not executed")

	// ErrEmptyTranslation 模型没有返回任何查询
	ErrEmptyTranslation = errors.New("model returned an empty query")
)

// Dialect 目标查询语言
type Dialect string

const (
	DialectCypher Dialect = "cypher"
	DialectSQL    Dialect = "sql"
)

// Translator 自然语言 -> 查询语句
type Translator interface {
	Translate(ctx context.Context, prompt string) (string, error)
}

// Config Ollama 客户端配置
type Config struct {
	Host    string
	Model   string
	Dialect Dialect
	Schema  string // 嵌入提示词的库结构描述
	Timeout time.Duration
}

// OllamaClient 本地 Ollama 客户端
type OllamaClient struct {
	endpoint   string
	model      string
	dialect    Dialect
	schema     string
	httpClient *http.Client
}

// NewOllamaClient 创建 Ollama 客户端
func NewOllamaClient(cfg Config) *OllamaClient {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "gemma3:4b"
	}
	if cfg.Dialect == "" {
		cfg.Dialect = DialectCypher
	}
	if cfg.Schema == "" && cfg.Dialect == DialectCypher {
		cfg.Schema = HappinessSchema
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OllamaClient{
		endpoint:   strings.TrimRight(cfg.Host, "/") + "/api/generate",
		model:      cfg.Model,
		dialect:    cfg.Dialect,
		schema:     cfg.Schema,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Dialect 客户端生成的查询语言
func (c *OllamaClient) Dialect() Dialect {
	return c.dialect
}

// Translate 把问题翻译为只读查询
func (c *OllamaClient) Translate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	raw, err := c.callAPI(ctx, Instruction(c.dialect, c.schema, prompt))
	if err != nil {
		return "", err
	}

	query := Clean(raw)
	logging.Debug().
		Add(logging.Component("ai")).
		Add(logging.Query(query)).
		Add(logging.Duration(time.Since(start))).
		Msg("translation received")

	if query == "" {
		return "", ErrEmptyTranslation
	}
	if word, unsafe := FindUnsafe(query, c.dialect); unsafe {
		return "", fmt.Errorf("%w: contains %q", ErrUnsafeQuery, word)
	}
	return query, nil
}

// callAPI 调用 /api/generate，按 NDJSON 拼接流式输出
func (c *OllamaClient) callAPI(ctx context.Context, prompt string) (string, error) {
	requestBody := map[string]interface{}{
		"model":  c.model,
		"prompt": prompt,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("contact ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return readStream(resp.Body)
}

// readStream 逐行解析响应片段，无法解析的行跳过
func readStream(r io.Reader) (string, error) {
	var output strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk struct {
			Response string `json:"response"`
			Text     string `json:"text"`
			Error    string `json:"error"`
		}
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("ollama: %s", chunk.Error)
		}
		if chunk.Response != "" {
			output.WriteString(chunk.Response)
		} else {
			output.WriteString(chunk.Text)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read ollama stream: %w", err)
	}
	return output.String(), nil
}
