// Package server HTTP 接口：/generate、报告页、状态推送与静态前端
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"query-visualizer/internal/ai"
	"query-visualizer/internal/logging"
	"query-visualizer/internal/renderer"
	"query-visualizer/internal/session"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许跨域
	},
}

// Server HTTP 服务
type Server struct {
	controller *session.Controller
	staticDir  string
	mux        *http.ServeMux

	// StatusInterval websocket 心跳间隔
	StatusInterval time.Duration
}

// New 创建服务并注册路由
func New(controller *session.Controller, staticDir string) *Server {
	s := &Server{
		controller:     controller,
		staticDir:      staticDir,
		mux:            http.NewServeMux(),
		StatusInterval: 500 * time.Millisecond,
	}

	// 静态文件
	if staticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}

	// API 路由
	s.mux.HandleFunc("/generate", s.handleGenerate)
	s.mux.HandleFunc("/report", s.handleReport)
	s.mux.HandleFunc("/report.xlsx", s.handleExport)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/ws", s.handleWebSocket)
	return s
}

// ServeHTTP 实现 http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// GenerateRequest /generate 请求体
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// handleGenerate 翻译、执行并推断图表
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	outcome, err := s.controller.Submit(r.Context(), req.Prompt)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, outcome.Response)
}

// statusFor 错误 -> HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrEmptyPrompt):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ai.ErrUnsafeQuery):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// handleReport 当前可视化（图表卡片 + 数据表）
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.controller.Render(w); err != nil {
		logging.Error().
			Add(logging.Component("server")).
			Add(logging.ErrorField(err)).
			Msg("render report failed")
	}
}

// handleExport 导出当前结果表
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rs := s.controller.View().Records()
	if rs.Empty() {
		http.Error(w, "No data", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="results.xlsx"`)
	if err := renderer.WriteXLSX(w, rs); err != nil {
		logging.Error().
			Add(logging.Component("server")).
			Add(logging.ErrorField(err)).
			Msg("export xlsx failed")
	}
}

// handleStatus 查询会话状态
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Status())
}

// handleWebSocket 推送会话状态变化
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().
			Add(logging.Component("server")).
			Add(logging.ErrorField(err)).
			Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.controller.Subscribe()
	defer unsubscribe()

	// 读循环只用于感知断开
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case st, ok := <-updates:
			if !ok {
				// 消费过慢被移除，由前端重连
				return
			}
			if err := conn.WriteJSON(st); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteJSON(s.controller.Status()); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().
			Add(logging.Component("server")).
			Add(logging.ErrorField(err)).
			Msg("encode response failed")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
