package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"query-visualizer/internal/adapter"
	"query-visualizer/internal/analyzer"
	"query-visualizer/internal/chart"
	"query-visualizer/internal/config"
	"query-visualizer/internal/logging"
	"query-visualizer/internal/record"
	"query-visualizer/internal/renderer"
	"query-visualizer/internal/server"
	"query-visualizer/internal/session"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	configPath string
	port       int
	backend    string
	model      string
	remoteURL  string
	outHTML    string
	outXLSX    string
	noDiagrams bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "visualizer",
		Short: "自然语言查询可视化工具",
		Long:  "把自然语言问题翻译为 Cypher/SQL 查询，执行后自动推断图表类型并生成报告",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "visualizer.yaml", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "查询后端 (neo4j/sql)，覆盖配置")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Ollama 模型，覆盖配置")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 Web 服务",
		Run:   runServe,
	}
	serveCmd.Flags().IntVar(&port, "port", 0, "监听端口，覆盖配置")

	askCmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "提问并输出查询结果与推断的图表",
		Args:  cobra.ExactArgs(1),
		Run:   runAsk,
	}
	askCmd.Flags().StringVar(&remoteURL, "remote", "", "远端服务地址（如 http://localhost:8080），为空时本地执行")
	askCmd.Flags().StringVar(&outHTML, "out", "", "HTML 报告输出路径")
	askCmd.Flags().StringVar(&outXLSX, "xlsx", "", "结果表 xlsx 输出路径")
	askCmd.Flags().BoolVar(&noDiagrams, "no-diagrams", false, "Markdown 输出不附带 Mermaid 图")

	inspectCmd := &cobra.Command{
		Use:   "inspect [results.json]",
		Short: "对已有结果做字段分类与图表推断，输出判定过程",
		Args:  cobra.ExactArgs(1),
		Run:   runInspect,
	}

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "输出嵌入提示词的库结构描述",
		Run:   runSchema,
	}

	rootCmd.AddCommand(serveCmd, askCmd, inspectCmd, schemaCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// loadConfig 配置文件 -> 环境变量 -> 命令行参数
func loadConfig() *config.Config {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatal(err)
	}
	if backend != "" {
		cfg.Backend = backend
	}
	if model != "" {
		cfg.Ollama.Model = model
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})
	return cfg
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

func runAsk(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	var querier session.Querier
	if remoteURL != "" {
		fmt.Printf("📡 使用远端服务 %s\n", remoteURL)
		querier = session.NewRemoteQuerier(remoteURL, cfg.Query.Timeout)
	} else {
		if err := cfg.Validate(); err != nil {
			log.Fatal(err)
		}
		pipeline, closer, err := server.OpenPipeline(ctx, cfg)
		if err != nil {
			log.Fatalf("连接失败: %v", err)
		}
		defer closer()
		querier = pipeline
	}

	controller, err := session.NewController(querier, nil, session.WithTimeout(cfg.Query.Timeout))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("🔍 正在翻译并执行查询...")
	outcome, err := controller.Submit(ctx, args[0])
	if err != nil {
		log.Fatalf("查询失败: %v", err)
	}

	resp := outcome.Response
	if resp.Error != "" {
		fmt.Printf("✗ 执行失败: %s\n", resp.Error)
	}
	fmt.Printf("✓ %d 行，%d 张图表 (%s)\n\n", resp.Results.Len(), len(outcome.Charts), outcome.Duration.Round(time.Millisecond))

	query := resp.OriginalCypher
	if resp.ExecutedCypher != nil {
		query = *resp.ExecutedCypher
	}
	md := renderer.NewMarkdownRenderer()
	md.Diagrams = !noDiagrams
	fmt.Println(md.Render(query, outcome.Charts, resp.Results))

	if outHTML != "" {
		writeFile(outHTML, controller.Render)
		fmt.Printf("✓ HTML 报告已保存: %s\n", outHTML)
	}
	if outXLSX != "" {
		writeFile(outXLSX, func(w io.Writer) error {
			return renderer.WriteXLSX(w, resp.Results)
		})
		fmt.Printf("✓ 结果表已保存: %s\n", outXLSX)
	}
}

// writeFile 创建文件并写入
func writeFile(path string, write func(io.Writer) error) {
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("创建文件失败: %v", err)
	}
	defer f.Close()

	if err := write(f); err != nil {
		log.Fatalf("写入 %s 失败: %v", path, err)
	}
}

// inspection inspect 命令的输出
type inspection struct {
	Columns        []string                `json:"columns"`
	Rows           int                     `json:"rows"`
	Classification analyzer.Classification `json:"classification"`
	Decisions      []analyzer.Decision     `json:"decisions"`
	Charts         []chart.Spec            `json:"charts"`
}

func runInspect(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatalf("读取文件失败: %v", err)
	}

	rs, err := decodeResults(data)
	if err != nil {
		log.Fatalf("解析结果失败: %v", err)
	}

	selector := analyzer.NewSelector()
	out := inspection{
		Columns:   rs.Schema(),
		Rows:      rs.Len(),
		Decisions: selector.Explain(rs),
		Charts:    selector.Select(rs),
	}
	if !rs.Empty() {
		out.Classification = selector.Classify(rs)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal(err)
	}
}

// decodeResults 接受结果数组，或 /generate 的完整响应
func decodeResults(data []byte) (record.ResultSet, error) {
	if rs, err := record.Decode(data); err == nil {
		return rs, nil
	}
	var resp session.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return record.ResultSet{}, err
	}
	return resp.Results, nil
}

func runSchema(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	executor, err := adapter.Open(ctx, server.AdapterConfig(cfg))
	if err != nil {
		log.Fatalf("连接数据库失败: %v", err)
	}
	defer executor.Close(ctx)

	text, err := executor.Describe(ctx)
	if err != nil {
		log.Fatalf("获取库结构失败: %v", err)
	}
	fmt.Print(text)
}
