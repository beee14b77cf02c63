// Package config 加载 YAML 配置并叠加环境变量
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrConfigNotFound 配置文件不存在
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidConfig 配置校验失败
	ErrInvalidConfig = errors.New("invalid config")
)

// Config 完整配置
type Config struct {
	Server  ServerConfig `yaml:"server"`
	Ollama  OllamaConfig `yaml:"ollama"`
	Backend string       `yaml:"backend"` // neo4j 或 sql
	Neo4j   Neo4jConfig  `yaml:"neo4j"`
	SQL     SQLConfig    `yaml:"sql"`
	Query   QueryConfig  `yaml:"query"`
	Log     LogConfig    `yaml:"log"`
}

// ServerConfig HTTP 服务
type ServerConfig struct {
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

// OllamaConfig 本地模型
type OllamaConfig struct {
	Host    string        `yaml:"host"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// Neo4jConfig Cypher 后端
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// SQLConfig database/sql 后端
type SQLConfig struct {
	Driver string `yaml:"driver"` // mysql, sqlserver, postgres, sqlite
	DSN    string `yaml:"dsn"`
}

// QueryConfig 单次提交的限制
type QueryConfig struct {
	// Schema 嵌入提示词的库结构；为空时 Cypher 用内置描述，SQL 自动内省
	Schema  string        `yaml:"schema"`
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig 日志
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default 默认配置，与原有环境变量默认值一致
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      8080,
			StaticDir: "web/static",
		},
		Ollama: OllamaConfig{
			Host:    "http://localhost:11434",
			Model:   "gemma3:4b",
			Timeout: 60 * time.Second,
		},
		Backend: "neo4j",
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			User:     "neo4j",
			Password: "password",
		},
		Query: QueryConfig{
			Timeout: 90 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load 读取 YAML 文件（支持 ${VAR} 展开），未出现的键保留默认值
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault path 为空或文件不存在时返回默认配置
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, ErrConfigNotFound) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyEnv 环境变量覆盖文件配置
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT=%q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}

	overrides := []struct {
		env    string
		target *string
	}{
		{"OLLAMA_HOST", &c.Ollama.Host},
		{"OLLAMA_MODEL", &c.Ollama.Model},
		{"NEO4J_URI", &c.Neo4j.URI},
		{"NEO4J_USER", &c.Neo4j.User},
		{"NEO4J_PASSWORD", &c.Neo4j.Password},
		{"QUERY_BACKEND", &c.Backend},
		{"SQL_DRIVER", &c.SQL.Driver},
		{"SQL_DSN", &c.SQL.DSN},
		{"LOG_LEVEL", &c.Log.Level},
		{"LOG_FORMAT", &c.Log.Format},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && v != "" {
			*o.target = v
		}
	}
	return nil
}

// Validate 检查必填项与取值范围
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Ollama.Host == "" {
		problems = append(problems, "ollama.host is required")
	}
	if c.Ollama.Model == "" {
		problems = append(problems, "ollama.model is required")
	}

	switch strings.ToLower(c.Backend) {
	case "neo4j":
		if c.Neo4j.URI == "" {
			problems = append(problems, "neo4j.uri is required")
		}
	case "sql":
		switch c.SQL.Driver {
		case "mysql", "sqlserver", "postgres", "sqlite":
		default:
			problems = append(problems, fmt.Sprintf("sql.driver %q not supported", c.SQL.Driver))
		}
		if c.SQL.DSN == "" {
			problems = append(problems, "sql.dsn is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("backend %q must be neo4j or sql", c.Backend))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Addr 监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
