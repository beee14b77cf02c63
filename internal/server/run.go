package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"query-visualizer/internal/config"
	"query-visualizer/internal/logging"
	"query-visualizer/internal/session"
	"time"
)

// Run 启动 HTTP 服务，ctx 取消时优雅关闭
func Run(ctx context.Context, cfg *config.Config) error {
	pipeline, closer, err := OpenPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer()

	controller, err := session.NewController(pipeline, nil, session.WithTimeout(cfg.Query.Timeout))
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           New(controller, cfg.Server.StaticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	fmt.Printf("🚀 Query Visualizer Web Server\n")
	fmt.Printf("📡 服务地址: http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("📊 打开浏览器访问上述地址开始提问\n\n")
	logging.Info().
		Add(logging.Component("server")).
		Add(logging.Str("addr", httpServer.Addr)).
		Msg("listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logging.Info().Add(logging.Component("server")).Msg("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}
