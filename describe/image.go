package describe

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	// 注册解码器
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gabriel-vasile/mimetype"
)

// JPEGQuality 是上传前重新编码使用的质量。
const JPEGQuality = 80

// DetectMIME 按文件头识别图片类型，不看文件名。
func DetectMIME(data []byte) string {
	return mimetype.Detect(data).String()
}

// Prepare 将任意受支持格式的图片统一重新编码为 JPEG（包括 JPEG 本身）。
func Prepare(img Image) (Image, error) {
	if len(img.Data) == 0 {
		return Image{}, fmt.Errorf("%w: %s", ErrEmptyImage, img.Name)
	}
	mime := DetectMIME(img.Data)
	if !strings.HasPrefix(mime, "image/") {
		return Image{}, fmt.Errorf("%s 不是图片 (%s)", img.Name, mime)
	}
	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return Image{}, fmt.Errorf("解码图片 %s (%s) 失败: %w", img.Name, mime, err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, decoded, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return Image{}, fmt.Errorf("编码图片 %s 失败: %w", img.Name, err)
	}
	return Image{Name: img.Name, Data: buf.Bytes(), MIME: "image/jpeg"}, nil
}

// DataURL 返回 data:<mime>;base64,... 形式的内联图片地址。
func DataURL(img Image) string {
	mime := img.MIME
	if mime == "" {
		mime = DetectMIME(img.Data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
