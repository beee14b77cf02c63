package server

import (
	"context"
	"fmt"
	"query-visualizer/internal/adapter"
	"query-visualizer/internal/ai"
	"query-visualizer/internal/config"
	"query-visualizer/internal/logging"
	"query-visualizer/internal/session"
	"strings"
)

// AdapterConfig 配置 -> 执行器配置
func AdapterConfig(cfg *config.Config) adapter.Config {
	return adapter.Config{
		Backend:  cfg.Backend,
		URI:      cfg.Neo4j.URI,
		User:     cfg.Neo4j.User,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
		Driver:   cfg.SQL.Driver,
		DSN:      cfg.SQL.DSN,
	}
}

// DialectFor 后端对应的查询语言
func DialectFor(backend string) ai.Dialect {
	if strings.EqualFold(backend, "sql") {
		return ai.DialectSQL
	}
	return ai.DialectCypher
}

// OpenPipeline 按配置连接数据库与模型，返回流水线和关闭函数
// 提示词中的库结构：配置优先；Cypher 使用内置描述；SQL 自动内省。
func OpenPipeline(ctx context.Context, cfg *config.Config) (*session.Pipeline, func(), error) {
	executor, err := adapter.Open(ctx, AdapterConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := executor.Close(context.Background()); err != nil {
			logging.Warn().Add(logging.ErrorField(err)).Msg("close executor failed")
		}
	}

	dialect := DialectFor(cfg.Backend)
	schema := cfg.Query.Schema
	if schema == "" && dialect == ai.DialectSQL {
		schema, err = executor.Describe(ctx)
		if err != nil {
			closer()
			return nil, nil, fmt.Errorf("describe schema: %w", err)
		}
	}

	translator := ai.NewOllamaClient(ai.Config{
		Host:    cfg.Ollama.Host,
		Model:   cfg.Ollama.Model,
		Dialect: dialect,
		Schema:  schema,
		Timeout: cfg.Ollama.Timeout,
	})

	logging.Info().
		Add(logging.Component("server")).
		Add(logging.Str("backend", cfg.Backend)).
		Add(logging.Str("model", cfg.Ollama.Model)).
		Msg("pipeline ready")

	return session.NewPipeline(translator, executor, dialect, session.DefaultBreakerConfig()), closer, nil
}
