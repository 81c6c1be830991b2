package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ByLCY/classnotes/describe"
)

func TestStoreUpdateBumpsVersionAndNotifies(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemory())

	var mu sync.Mutex
	var seen []int
	cancel := store.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s.Version)
		mu.Unlock()
	})

	st, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	st, err = store.Update(ctx, st.ID, func(s State) (State, error) { return SetInstruction(s, "x") })
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if st.Version != 2 || st.Instruction != "x" {
		t.Fatalf("unexpected state: %+v", st)
	}

	// 失败的变更不改变状态也不通知
	if _, err := store.Update(ctx, st.ID, BeginProcessing); !errors.Is(err, ErrNoImages) {
		t.Fatalf("expected ErrNoImages, got %v", err)
	}
	cancel()
	cancel()
	if _, err := store.Update(ctx, st.ID, func(s State) (State, error) { return SetInstruction(s, "y") }); err != nil {
		t.Fatalf("update: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("unexpected notifications: %v", seen)
	}
}

func TestStoreUnknownSession(t *testing.T) {
	store := NewStore(NewMemory())
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Update(context.Background(), "missing", BeginProcessing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreImagesAndDocument(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	store := NewStore(mem)
	st, _ := store.Create(ctx)

	st, err := store.AddImages(ctx, st.ID,
		describe.Image{Name: "1.jpg", Data: []byte{1}},
		describe.Image{Name: "2.jpg", Data: []byte{2}},
		describe.Image{Name: "3.jpg", Data: []byte{3}},
	)
	if err != nil {
		t.Fatalf("add images: %v", err)
	}
	if _, err := store.AddImages(ctx, st.ID, describe.Image{Name: "empty.jpg"}); !errors.Is(err, describe.ErrEmptyImage) {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}

	removedID := st.Images[0].ID
	st, err = store.RemoveImage(ctx, st.ID, 0)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := mem.GetBlob(ctx, imageKey(removedID)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("removed image blob should be deleted, got %v", err)
	}

	st, err = store.Update(ctx, st.ID, func(s State) (State, error) { return MoveImage(s, 1, 0) })
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	imgs, err := store.Images(ctx, st)
	if err != nil {
		t.Fatalf("images: %v", err)
	}
	if len(imgs) != 2 || imgs[0].Name != "3.jpg" || imgs[1].Data[0] != 2 {
		t.Fatalf("unexpected images: %+v", imgs)
	}

	if _, err := store.Document(ctx, st.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("no document yet, got %v", err)
	}
	st, _ = store.Update(ctx, st.ID, BeginProcessing)
	st, err = store.SaveDocument(ctx, st.ID, []byte("%PDF-1.7"), DocumentRef{Pages: 1})
	if err != nil {
		t.Fatalf("save document: %v", err)
	}
	if st.Processing || st.Document.Bytes != 8 {
		t.Fatalf("unexpected state after save: %+v", st)
	}
	pdf, err := store.Document(ctx, st.ID)
	if err != nil || string(pdf) != "%PDF-1.7" {
		t.Fatalf("document: %q %v", pdf, err)
	}

	keptID := st.Images[0].ID
	if err := store.Delete(ctx, st.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, st.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted session should be gone, got %v", err)
	}
	if _, err := mem.GetBlob(ctx, imageKey(keptID)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("image blobs should be deleted with the session, got %v", err)
	}
	if _, err := mem.GetBlob(ctx, documentKey(st.ID)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("document blob should be deleted with the session, got %v", err)
	}
}

func TestStoreDeleteRejectsProcessing(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemory())
	st, _ := store.Create(ctx)
	st, _ = store.AddImages(ctx, st.ID, describe.Image{Name: "1.jpg", Data: []byte{1}})
	if _, err := store.Update(ctx, st.ID, BeginProcessing); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := store.Delete(ctx, st.ID); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := store.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	if _, err := NewRedis(context.Background(), "not a url", "t:", 0); err == nil {
		t.Fatalf("invalid url should fail")
	}
}

func TestStoreNotifiesInVersionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemory())
	st, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var mu sync.Mutex
	var seen []int
	cancel := store.Subscribe(func(s State) {
		// 偶数版本处理得慢一些，放大乱序的窗口
		if s.Version%2 == 0 {
			time.Sleep(time.Millisecond)
		}
		mu.Lock()
		seen = append(seen, s.Version)
		mu.Unlock()
	})
	defer cancel()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				if _, err := store.Update(ctx, st.ID, func(s State) (State, error) { return SetInstruction(s, "x") }); err != nil {
					t.Errorf("update: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	final, err := store.Get(ctx, st.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 20 {
		t.Fatalf("expected 20 notifications, got %d", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("notifications out of order: %v", seen)
		}
	}
	if seen[len(seen)-1] != final.Version {
		t.Fatalf("last notification %d should match stored version %d", seen[len(seen)-1], final.Version)
	}
}

func TestBlobKeysCoverImagesAndDocument(t *testing.T) {
	st := State{ID: "s1", Images: []ImageRef{{ID: "a"}, {ID: "b"}}}
	keys := blobKeys(st)
	if len(keys) != 2 || keys[0] != "image:a" || keys[1] != "image:b" {
		t.Fatalf("unexpected keys without document: %v", keys)
	}
	st.Document = &DocumentRef{Pages: 1}
	keys = blobKeys(st)
	if len(keys) != 3 || keys[2] != "document:s1" {
		t.Fatalf("document key missing: %v", keys)
	}
}
