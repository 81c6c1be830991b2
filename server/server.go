package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/ByLCY/classnotes/describe"
	"github.com/ByLCY/classnotes/layout"
	"github.com/ByLCY/classnotes/metrics"
	"github.com/ByLCY/classnotes/pipeline"
	"github.com/ByLCY/classnotes/renderer"
	"github.com/ByLCY/classnotes/session"
)

// Options 配置 HTTP 服务。
type Options struct {
	Describer         describe.Describer
	Renderer          renderer.Renderer
	Layout            layout.Options
	TitleTemplate     string
	MaxConcurrentJobs int64
	MaxUploadBytes    int64
	JobTimeout        time.Duration
}

// Server 是 session 之上的一层薄 HTTP 视图：处理函数只负责解析请求、调用纯状态函数并返回快照。
type Server struct {
	store     *session.Store
	describer describe.Describer
	renderer  renderer.Renderer
	layout    layout.Options
	titles    string
	maxUpload int64
	timeout   time.Duration

	jobs   *semaphore.Weighted
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func New(store *session.Store, opts Options) (*Server, error) {
	if store == nil {
		return nil, errors.New("session store required")
	}
	if opts.Describer == nil {
		return nil, errors.New("describer required")
	}
	if opts.Renderer == nil {
		return nil, errors.New("renderer required")
	}
	if opts.MaxConcurrentJobs <= 0 {
		opts.MaxConcurrentJobs = 1
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		store:     store,
		describer: opts.Describer,
		renderer:  opts.Renderer,
		layout:    opts.Layout,
		titles:    opts.TitleTemplate,
		maxUpload: opts.MaxUploadBytes,
		timeout:   opts.JobTimeout,
		jobs:      semaphore.NewWeighted(opts.MaxConcurrentJobs),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", s.handleCreate)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGet)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/sessions/{id}/events", s.handleEvents)
	mux.HandleFunc("POST /api/sessions/{id}/images", s.handleAddImages)
	mux.HandleFunc("DELETE /api/sessions/{id}/images/{idx}", s.handleRemoveImage)
	mux.HandleFunc("POST /api/sessions/{id}/move", s.handleMove)
	mux.HandleFunc("PUT /api/sessions/{id}/instruction", s.handleInstruction)
	mux.HandleFunc("POST /api/sessions/{id}/process", s.handleProcess)
	mux.HandleFunc("GET /api/sessions/{id}/document", s.handleDocument)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health", handleHealth)
	return withRecovery(withLogging(mux))
}

// Wait 等待所有后台处理结束。
func (s *Server) Wait() { s.wg.Wait() }

// Shutdown 取消进行中的处理并等待其退出。
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- Handlers ---

type moveReq struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type instructionReq struct {
	Instruction string `json:"instruction"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Create(r.Context())
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeStoreErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddImages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeErr(w, http.StatusBadRequest, "bad_upload", err.Error())
		return
	}
	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		writeErr(w, http.StatusBadRequest, "bad_upload", "no files in field \"images\"")
		return
	}
	imgs := make([]describe.Image, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeErr(w, http.StatusBadRequest, "bad_upload", err.Error())
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeErr(w, http.StatusBadRequest, "bad_upload", err.Error())
			return
		}
		mime := describe.DetectMIME(data)
		if !strings.HasPrefix(mime, "image/") {
			writeErr(w, http.StatusUnsupportedMediaType, "not_an_image", fmt.Sprintf("%s is %s", fh.Filename, mime))
			return
		}
		imgs = append(imgs, describe.Image{Name: fh.Filename, Data: data, MIME: mime})
	}
	st, err := s.store.AddImages(r.Context(), id, imgs...)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleRemoveImage(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(r.PathValue("idx"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_index", "index must be an integer")
		return
	}
	st, err := s.store.RemoveImage(r.Context(), r.PathValue("id"), idx)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[moveReq](r, 1<<16)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	st, err := s.store.Update(r.Context(), r.PathValue("id"), func(cur session.State) (session.State, error) {
		return session.MoveImage(cur, req.From, req.To)
	})
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleInstruction(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[instructionReq](r, 1<<16)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	st, err := s.store.Update(r.Context(), r.PathValue("id"), func(cur session.State) (session.State, error) {
		return session.SetInstruction(cur, req.Instruction)
	})
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleProcess 标记会话为处理中并在后台生成文档，立即返回 202。
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, err := s.store.Update(r.Context(), id, session.BeginProcessing)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	s.wg.Add(1)
	go s.process(st)
	writeJSON(w, http.StatusAccepted, st)
}

func (s *Server) process(st session.State) {
	defer s.wg.Done()
	ctx := s.ctx
	logger := log.With().Str("session", st.ID).Int("images", len(st.Images)).Logger()

	fail := func(err error) {
		logger.Error().Err(err).Msg("processing failed")
		if _, uerr := s.store.Update(context.Background(), st.ID, func(cur session.State) (session.State, error) {
			return session.FailProcessing(cur, err)
		}); uerr != nil {
			logger.Error().Err(uerr).Msg("record failure")
		}
	}

	if err := s.jobs.Acquire(ctx, 1); err != nil {
		fail(err)
		return
	}
	defer s.jobs.Release(1)
	metrics.JobStarted()
	defer metrics.JobFinished()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	imgs, err := s.store.Images(ctx, st)
	if err != nil {
		fail(err)
		return
	}
	job := pipeline.Job{
		Images:  imgs,
		Acquire: pipeline.AcquireOptions{Instruction: st.Instruction, TitleTemplate: s.titles},
		Layout:  s.layout,
	}
	res, err := pipeline.Run(ctx, job, s.describer, s.renderer)
	if err != nil {
		fail(err)
		return
	}
	ref := session.DocumentRef{Pages: len(res.Document.Pages), Overflows: len(res.Overflows)}
	if _, err := s.store.SaveDocument(context.Background(), st.ID, res.PDF, ref); err != nil {
		fail(err)
		return
	}
	logger.Info().Int("pages", ref.Pages).Msg("document ready")
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	pdf, err := s.store.Document(r.Context(), id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "notes-"+id+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	_, _ = w.Write(pdf)
}

// handleEvents 以 Server-Sent Events 推送会话状态；连接建立后先推送一次当前状态。
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "no_streaming", "streaming unsupported")
		return
	}
	// 先订阅再读当前状态；重复或更旧的版本按 Version 跳过
	updates := make(chan session.State, 1)
	cancel := s.store.Subscribe(func(next session.State) {
		if next.ID != id {
			return
		}
		// 只保留最新快照
		for {
			select {
			case updates <- next:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer cancel()

	st, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	writeEvent(w, st)
	flusher.Flush()
	last := st.Version

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.ctx.Done():
			return
		case next := <-updates:
			if next.Version <= last {
				continue
			}
			last = next.Version
			writeEvent(w, next)
			flusher.Flush()
		}
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Helpers ---

func writeEvent(w io.Writer, st session.State) {
	data, _ := json.Marshal(st)
	fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
}

func parseJSON[T any](r *http.Request, limit int64) (T, error) {
	var v T
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("invalid JSON: %w", err)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func writeStoreErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, session.ErrBusy):
		writeErr(w, http.StatusConflict, "busy", err.Error())
	case errors.Is(err, session.ErrNoImages):
		writeErr(w, http.StatusBadRequest, "no_images", err.Error())
	case errors.Is(err, session.ErrBadIndex):
		writeErr(w, http.StatusBadRequest, "bad_index", err.Error())
	case errors.Is(err, describe.ErrEmptyImage):
		writeErr(w, http.StatusBadRequest, "empty_image", err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeErr(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

type wrapWriter struct {
	http.ResponseWriter
	status int
}

func (w *wrapWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush 透传给底层 writer，SSE 依赖它。
func (w *wrapWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &wrapWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.status).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				writeErr(w, http.StatusInternalServerError, "internal", "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
