// Package session 保存一次笔记生成会话的全部应用状态：已选图片、自定义要求、
// 处理中标记、最近一次生成的文档与错误。状态只通过纯函数变换。
package session

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound = errors.New("session: not found")
	ErrBusy     = errors.New("session: processing in progress")
	ErrNoImages = errors.New("session: no images selected")
	ErrBadIndex = errors.New("session: index out of range")
)

// ImageRef 指向存储在 Backend 中的一张图片。
type ImageRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	MIME string `json:"mime"`
	Size int    `json:"size"`
}

// DocumentRef 描述最近一次生成的 PDF。
type DocumentRef struct {
	Pages     int       `json:"pages"`
	Bytes     int       `json:"bytes"`
	Overflows int       `json:"overflows"`
	CreatedAt time.Time `json:"createdAt"`
}

// State 是会话的完整快照。函数均返回新值，不修改入参。
type State struct {
	ID          string       `json:"id"`
	Images      []ImageRef   `json:"images"`
	Instruction string       `json:"instruction"`
	Processing  bool         `json:"processing"`
	Document    *DocumentRef `json:"document,omitempty"`
	Err         string       `json:"error,omitempty"`
	Version     int          `json:"version"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func (s State) clone() State {
	out := s
	out.Images = append([]ImageRef(nil), s.Images...)
	if s.Document != nil {
		d := *s.Document
		out.Document = &d
	}
	return out
}

func editable(s State) error {
	if s.Processing {
		return ErrBusy
	}
	return nil
}

// AddImages 在末尾追加图片，保持选择顺序。
func AddImages(s State, refs ...ImageRef) (State, error) {
	if err := editable(s); err != nil {
		return s, err
	}
	out := s.clone()
	out.Images = append(out.Images, refs...)
	out.Err = ""
	return out, nil
}

// RemoveImage 删除 idx 处的图片。
func RemoveImage(s State, idx int) (State, ImageRef, error) {
	if err := editable(s); err != nil {
		return s, ImageRef{}, err
	}
	if idx < 0 || idx >= len(s.Images) {
		return s, ImageRef{}, fmt.Errorf("%w: %d (共 %d 张)", ErrBadIndex, idx, len(s.Images))
	}
	out := s.clone()
	removed := out.Images[idx]
	out.Images = append(out.Images[:idx], out.Images[idx+1:]...)
	out.Err = ""
	return out, removed, nil
}

// MoveImage 把 from 处的图片移到 to 之前；to 可以等于图片数量，表示移到末尾。
// to > from 时，移除 from 之后目标位置前移一位。
func MoveImage(s State, from, to int) (State, error) {
	if err := editable(s); err != nil {
		return s, err
	}
	n := len(s.Images)
	if from < 0 || from >= n || to < 0 || to > n {
		return s, fmt.Errorf("%w: move %d -> %d (共 %d 张)", ErrBadIndex, from, to, n)
	}
	out := s.clone()
	item := out.Images[from]
	out.Images = append(out.Images[:from], out.Images[from+1:]...)
	dest := to
	if to > from {
		dest = to - 1
	}
	out.Images = append(out.Images[:dest], append([]ImageRef{item}, out.Images[dest:]...)...)
	return out, nil
}

// SetInstruction 设置自定义要求，空串表示使用默认提示词。
func SetInstruction(s State, instruction string) (State, error) {
	if err := editable(s); err != nil {
		return s, err
	}
	out := s.clone()
	out.Instruction = instruction
	return out, nil
}

// BeginProcessing 标记开始处理；没有图片或已在处理时拒绝。
func BeginProcessing(s State) (State, error) {
	if s.Processing {
		return s, ErrBusy
	}
	if len(s.Images) == 0 {
		return s, ErrNoImages
	}
	out := s.clone()
	out.Processing = true
	out.Err = ""
	return out, nil
}

// CompleteProcessing 记录新生成的文档并结束处理。
func CompleteProcessing(s State, doc DocumentRef) (State, error) {
	out := s.clone()
	out.Processing = false
	out.Document = &doc
	out.Err = ""
	return out, nil
}

// FailProcessing 结束处理并原样记录错误；图片与上一次的文档保留。
func FailProcessing(s State, cause error) (State, error) {
	out := s.clone()
	out.Processing = false
	if cause != nil {
		out.Err = cause.Error()
	}
	return out, nil
}
