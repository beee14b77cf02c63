// Package session 串联翻译、执行、图表推断与渲染
package session

import (
	"context"
	"errors"
	"fmt"
	"query-visualizer/internal/adapter"
	"query-visualizer/internal/ai"
	"query-visualizer/internal/chart"
	"query-visualizer/internal/logging"
	"query-visualizer/internal/record"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
)

// Querier 查询协作者：自然语言 -> 结果集
type Querier interface {
	Query(ctx context.Context, prompt string) (*Response, error)
}

// Response /generate 的响应体
// 执行失败时 Error 非空且 Results 为空（HTTP 仍为 200）。
type Response struct {
	OriginalCypher string           `json:"original_cypher"`
	ExecutedCypher *string          `json:"executed_cypher"`
	Results        record.ResultSet `json:"results"`
	Error          string           `json:"error,omitempty"`
	Charts         []chart.Spec     `json:"charts,omitempty"`
}

// BreakerConfig 熔断配置
type BreakerConfig struct {
	Threshold int           // 连续失败次数
	Timeout   time.Duration // 打开状态持续时间
}

// DefaultBreakerConfig 默认熔断配置
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Threshold: 5, Timeout: 30 * time.Second}
}

// newBreaker 只有 healthy 返回 false 的错误计入失败
func newBreaker[T any](cfg BreakerConfig, healthy func(error) bool) circuitbreaker.CircuitBreaker[T] {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 5
	}
	return circuitbreaker.New[T](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    cfg.Timeout,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- threshold > 0
		},
		IsSuccessful: func(err error) bool {
			return err == nil || healthy(err)
		},
	})
}

// rejectedTranslation 模型正常应答但结果不可用，不代表 Ollama 故障
func rejectedTranslation(err error) bool {
	return errors.Is(err, ai.ErrUnsafeQuery) || errors.Is(err, ai.ErrEmptyTranslation)
}

// Pipeline 服务端查询流水线：翻译 -> 改写 -> 执行
type Pipeline struct {
	translator ai.Translator
	executor   adapter.Executor
	dialect    ai.Dialect

	translateBreaker circuitbreaker.CircuitBreaker[string]
	executeBreaker   circuitbreaker.CircuitBreaker[record.ResultSet]
}

// NewPipeline 创建流水线
func NewPipeline(translator ai.Translator, executor adapter.Executor, dialect ai.Dialect, breaker BreakerConfig) *Pipeline {
	if dialect == "" {
		dialect = ai.DialectCypher
	}
	return &Pipeline{
		translator:       translator,
		executor:         executor,
		dialect:          dialect,
		translateBreaker: newBreaker[string](breaker, rejectedTranslation),
		executeBreaker:   newBreaker[record.ResultSet](breaker, adapter.IsQueryError),
	}
}

// Query 翻译并执行；翻译失败返回 error，执行失败写入 Response.Error
func (p *Pipeline) Query(ctx context.Context, prompt string) (*Response, error) {
	original, err := p.translateBreaker.Execute(ctx, func(ctx context.Context) (string, error) {
		return p.translator.Translate(ctx, prompt)
	})
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}

	executed := original
	if p.dialect == ai.DialectCypher {
		executed = ai.EnsureRelationshipProperties(original)
	}

	resp := &Response{
		OriginalCypher: original,
		ExecutedCypher: &executed,
		Results:        record.ResultSet{Rows: []record.Record{}},
	}

	start := time.Now()
	rs, err := p.executeBreaker.Execute(ctx, func(ctx context.Context) (record.ResultSet, error) {
		return p.executor.Execute(ctx, executed)
	})
	if err != nil {
		logging.Warn().
			Add(logging.Component("pipeline")).
			Add(logging.Query(executed)).
			Add(logging.ErrorField(err)).
			Msg("query execution failed")
		resp.Error = err.Error()
		return resp, nil
	}

	logging.Info().
		Add(logging.Component("pipeline")).
		Add(logging.Query(executed)).
		Add(logging.Rows(rs.Len())).
		Add(logging.Duration(time.Since(start))).
		Msg("query executed")

	if rs.Rows == nil {
		rs.Rows = []record.Record{}
	}
	resp.Results = rs
	return resp, nil
}
