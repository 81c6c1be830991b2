package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ByLCY/classnotes/config"
	"github.com/ByLCY/classnotes/describe"
	"github.com/ByLCY/classnotes/layout"
	"github.com/ByLCY/classnotes/logger"
	"github.com/ByLCY/classnotes/metrics"
	"github.com/ByLCY/classnotes/pipeline"
	"github.com/ByLCY/classnotes/renderer"
	canvasrenderer "github.com/ByLCY/classnotes/renderer/canvas"
	"github.com/ByLCY/classnotes/server"
	"github.com/ByLCY/classnotes/session"
)

func main() {
	input := flag.String("manifest", "examples/lecture.notes", "清单文件路径")
	output := flag.String("out", "output/notes.pdf", "PDF 输出路径")
	debug := flag.String("debug", "", "布局调试 JSON 输出路径")
	serve := flag.Bool("serve", false, "以 HTTP 服务方式运行")
	addr := flag.String("addr", "", "HTTP 监听地址，默认取 SERVER_ADDR")
	mock := flag.Bool("mock", false, "使用本地 mock 描述器，不调用模型")
	flag.Parse()

	cfg := config.Load()
	if err := logger.Init(logger.FromConfig(cfg.Logging, cfg.Axiom)); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
	}
	defer logger.Close()
	metrics.Init()

	if *mock {
		cfg.Describe.Mock = true
	}
	d, err := newDescriber(cfg.Describe)
	if err != nil {
		log.Fatal().Err(err).Msg("init describer")
	}

	if *serve {
		if *addr != "" {
			cfg.Server.Addr = *addr
		}
		if err := serveHTTP(cfg, d); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	var r renderer.Renderer = canvasrenderer.NewRenderer(filepath.Dir(*input))
	if err := run(ctx, *input, *output, *debug, d, r); err != nil {
		log.Error().Err(err).Msg("生成 PDF 失败")
		logger.Close()
		os.Exit(1)
	}
	fmt.Printf("已生成 PDF：%s\n", *output)
}

// newDescriber 按配置选择 OpenAI 或 mock，并套上限速。
func newDescriber(cfg config.DescribeConfig) (describe.Describer, error) {
	if cfg.Mock {
		return describe.NewThrottle(describe.Mock{}, cfg.RatePerMin), nil
	}
	o, err := describe.NewOpenAI(describe.OpenAISettings{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: &cfg.Temperature,
		MaxTokens:   int64(cfg.MaxTokens),
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return describe.NewThrottle(o, cfg.RatePerMin), nil
}

// run 串联清单解析、描述获取、布局与渲染。
func run(ctx context.Context, inputPath, outputPath, debugPath string, d describe.Describer, r renderer.Renderer) error {
	if r == nil {
		return fmt.Errorf("renderer 不能为空")
	}
	m, err := pipeline.LoadManifest(inputPath)
	if err != nil {
		return err
	}
	log.Info().Str("manifest", m.Name).Int("images", len(m.Job.Images)).Str("describer", d.Name()).Msg("start")

	res, err := pipeline.Run(ctx, m.Job, d, r)
	if err != nil {
		return err
	}

	if debugPath != "" {
		if err := writeDebug(res.Document, debugPath); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(outputPath, res.PDF, 0o644); err != nil {
		return fmt.Errorf("写入 PDF 文件失败: %w", err)
	}
	return nil
}

func writeDebug(doc *layout.Document, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(doc, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}

// newBackend 配置了 REDIS_URL 时使用 Redis，否则会话只保存在内存中。
func newBackend(ctx context.Context, cfg config.StoreConfig) (session.Backend, func(), error) {
	if cfg.RedisURL == "" {
		return session.NewMemory(), func() {}, nil
	}
	rb, err := session.NewRedis(ctx, cfg.RedisURL, cfg.KeyPrefix, cfg.TTL)
	if err != nil {
		return nil, nil, err
	}
	return rb, func() { _ = rb.Close() }, nil
}

func serveHTTP(cfg config.Config, d describe.Describer) error {
	backend, closeBackend, err := newBackend(context.Background(), cfg.Store)
	if err != nil {
		return fmt.Errorf("init session backend: %w", err)
	}
	defer closeBackend()

	srv, err := server.New(session.NewStore(backend), server.Options{
		Describer:         d,
		Renderer:          canvasrenderer.NewRenderer(""),
		Layout:            layout.DefaultOptions(),
		TitleTemplate:     pipeline.DefaultTitleTemplate,
		MaxConcurrentJobs: cfg.Server.MaxConcurrentJobs,
		MaxUploadBytes:    cfg.Server.MaxUploadMB << 20,
	})
	if err != nil {
		return err
	}

	httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: srv.Routes(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("describer", d.Name()).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("background jobs did not finish")
	}
	log.Info().Msg("shutdown complete")
	return nil
}
