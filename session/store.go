package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ByLCY/classnotes/describe"
)

// Store 串行化对会话状态的读改写，并在每次变更后通知订阅者。
type Store struct {
	mu      sync.Mutex
	backend Backend
	now     func() time.Time

	// notifyMu 在释放 mu 之前取得，保证订阅者按版本顺序收到快照
	notifyMu sync.Mutex
	subMu    sync.Mutex
	subs     map[int]func(State)
	nextSub int
}

func NewStore(b Backend) *Store {
	return &Store{backend: b, now: time.Now, subs: map[int]func(State){}}
}

// Create 新建一个空会话。
func (s *Store) Create(ctx context.Context) (State, error) {
	st := State{ID: uuid.NewString(), Images: []ImageRef{}, Version: 1, UpdatedAt: s.now()}
	s.mu.Lock()
	if err := s.backend.Save(ctx, st); err != nil {
		s.mu.Unlock()
		return State{}, err
	}
	s.notifyMu.Lock()
	s.mu.Unlock()
	s.notify(st)
	s.notifyMu.Unlock()
	return st, nil
}

func (s *Store) Get(ctx context.Context, id string) (State, error) {
	return s.backend.Load(ctx, id)
}

// Update 对当前状态应用 fn；fn 返回错误时状态不变。
func (s *Store) Update(ctx context.Context, id string, fn func(State) (State, error)) (State, error) {
	s.mu.Lock()
	cur, err := s.backend.Load(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return State{}, err
	}
	next, err := fn(cur)
	if err != nil {
		s.mu.Unlock()
		return cur, err
	}
	next.ID = cur.ID
	next.Version = cur.Version + 1
	next.UpdatedAt = s.now()
	if err := s.backend.Save(ctx, next); err != nil {
		s.mu.Unlock()
		return cur, err
	}
	s.notifyMu.Lock()
	s.mu.Unlock()
	s.notify(next)
	s.notifyMu.Unlock()
	return next, nil
}

// Subscribe 注册状态变更回调，返回取消函数。回调在变更方的 goroutine 中同步执行，
// 各次回调按 Version 递增的顺序串行发生；回调里不能再修改 Store。
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(st State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(st.clone())
	}
}

// AddImages 保存图片数据并按顺序追加到会话。
func (s *Store) AddImages(ctx context.Context, id string, imgs ...describe.Image) (State, error) {
	refs := make([]ImageRef, 0, len(imgs))
	for _, img := range imgs {
		if len(img.Data) == 0 {
			return State{}, fmt.Errorf("%w: %s", describe.ErrEmptyImage, img.Name)
		}
		ref := ImageRef{ID: uuid.NewString(), Name: img.Name, MIME: img.MIME, Size: len(img.Data)}
		if ref.MIME == "" {
			ref.MIME = describe.DetectMIME(img.Data)
		}
		if err := s.backend.PutBlob(ctx, imageKey(ref.ID), img.Data); err != nil {
			return State{}, fmt.Errorf("保存图片 %s 失败: %w", img.Name, err)
		}
		refs = append(refs, ref)
	}
	st, err := s.Update(ctx, id, func(cur State) (State, error) { return AddImages(cur, refs...) })
	if err != nil {
		s.dropBlobs(ctx, refs)
	}
	return st, err
}

// RemoveImage 删除 idx 处的图片及其数据。
func (s *Store) RemoveImage(ctx context.Context, id string, idx int) (State, error) {
	var removed ImageRef
	st, err := s.Update(ctx, id, func(cur State) (State, error) {
		next, ref, err := RemoveImage(cur, idx)
		removed = ref
		return next, err
	})
	if err != nil {
		return st, err
	}
	s.dropBlobs(ctx, []ImageRef{removed})
	return st, nil
}

// Images 按会话顺序读出全部图片。
func (s *Store) Images(ctx context.Context, st State) ([]describe.Image, error) {
	out := make([]describe.Image, 0, len(st.Images))
	for _, ref := range st.Images {
		data, err := s.backend.GetBlob(ctx, imageKey(ref.ID))
		if err != nil {
			return nil, fmt.Errorf("读取图片 %s 失败: %w", ref.Name, err)
		}
		out = append(out, describe.Image{Name: ref.Name, Data: data, MIME: ref.MIME})
	}
	return out, nil
}

// SaveDocument 保存生成的 PDF 并结束处理。
func (s *Store) SaveDocument(ctx context.Context, id string, pdf []byte, ref DocumentRef) (State, error) {
	if err := s.backend.PutBlob(ctx, documentKey(id), pdf); err != nil {
		return State{}, fmt.Errorf("保存文档失败: %w", err)
	}
	ref.Bytes = len(pdf)
	if ref.CreatedAt.IsZero() {
		ref.CreatedAt = s.now()
	}
	return s.Update(ctx, id, func(cur State) (State, error) { return CompleteProcessing(cur, ref) })
}

// Document 返回最近一次生成的 PDF。
func (s *Store) Document(ctx context.Context, id string) ([]byte, error) {
	st, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Document == nil {
		return nil, ErrNotFound
	}
	return s.backend.GetBlob(ctx, documentKey(id))
}

// Delete 删除会话及其全部图片和文档。处理中的会话不能删除。
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	cur, err := s.backend.Load(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if cur.Processing {
		s.mu.Unlock()
		return ErrBusy
	}
	err = s.backend.Delete(ctx, id)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	for _, key := range blobKeys(cur) {
		if err := s.backend.DeleteBlob(ctx, key); err != nil {
			log.Warn().Err(err).Str("session", id).Str("key", key).Msg("delete blob failed")
		}
	}
	return nil
}

func (s *Store) dropBlobs(ctx context.Context, refs []ImageRef) {
	for _, ref := range refs {
		if err := s.backend.DeleteBlob(ctx, imageKey(ref.ID)); err != nil {
			log.Warn().Err(err).Str("image", ref.Name).Msg("delete image blob failed")
		}
	}
}

// blobKeys 列出会话引用的全部二进制数据键。
func blobKeys(st State) []string {
	keys := make([]string, 0, len(st.Images)+1)
	for _, ref := range st.Images {
		keys = append(keys, imageKey(ref.ID))
	}
	if st.Document != nil {
		keys = append(keys, documentKey(st.ID))
	}
	return keys
}

func imageKey(id string) string    { return "image:" + id }
func documentKey(id string) string { return "document:" + id }
