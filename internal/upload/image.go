package upload

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/nhle/bugtracker/internal/model"
)

// MaxImageSize is the largest file the upload endpoint accepts (5 MB).
const MaxImageSize = 5 * 1024 * 1024

// Validation failures. Their text is shown to the user.
var (
	ErrInvalidFile = errors.New("file is not valid")
	ErrNotImage    = errors.New("only image files are allowed")
	ErrTooLarge    = errors.New("file is too large, max 5MB")
)

// Image is a file queued for upload.
type Image struct {
	Name     string
	MIMEType string

	// Size is the file size in bytes. When zero, len(Data) is used.
	Size int64
	Data []byte
}

// ByteSize returns the effective size of the image.
func (img Image) ByteSize() int64 {
	if img.Size > 0 {
		return img.Size
	}
	return int64(len(img.Data))
}

// Validate checks an image against the endpoint's constraints without any
// network traffic.
func Validate(img Image) error {
	if img.Name == "" && len(img.Data) == 0 && img.Size == 0 {
		return ErrInvalidFile
	}
	if !strings.HasPrefix(img.MIMEType, "image/") {
		return ErrNotImage
	}
	if img.ByteSize() > MaxImageSize {
		return ErrTooLarge
	}
	if len(img.Data) == 0 {
		return ErrInvalidFile
	}
	return nil
}

// DetectType sniffs the MIME type of path from its content, falling back to
// the extension when the content is not recognised.
func DetectType(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detecting type of %s: %w", path, err)
	}

	detected := mt.String()
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}
	if detected == "application/octet-stream" || detected == "text/plain" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
			detected = byExt
		}
	}
	return detected, nil
}

// LoadFile reads path into an Image. Files larger than MaxImageSize are not
// read into memory; they keep their size so Validate rejects them later.
func LoadFile(path string) (Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Image{}, fmt.Errorf("reading image %s: %w", path, err)
	}
	if info.IsDir() {
		return Image{}, fmt.Errorf("reading image %s: %w", path, ErrInvalidFile)
	}

	mimeType, err := DetectType(path)
	if err != nil {
		return Image{}, err
	}

	img := Image{
		Name:     filepath.Base(path),
		MIMEType: mimeType,
		Size:     info.Size(),
	}
	if info.Size() > MaxImageSize {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("reading image %s: %w", path, err)
	}
	img.Data = data
	return img, nil
}

// Describe renders a one-line preview, e.g.
// "shot.png · 1.2 MB · image/png · 800x600".
func Describe(img Image) string {
	parts := []string{
		img.Name,
		humanize.Bytes(uint64(img.ByteSize())),
		img.MIMEType,
	}
	if len(img.Data) > 0 {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data)); err == nil {
			parts = append(parts, fmt.Sprintf("%dx%d", cfg.Width, cfg.Height))
		}
	}
	if err := Validate(img); err != nil {
		parts = append(parts, "("+err.Error()+")")
	}
	return strings.Join(parts, " · ")
}

// FromPending converts a pending selection entry into an Image.
func FromPending(p model.PendingImage) Image {
	return Image{Name: p.Name, MIMEType: p.MIMEType, Size: p.Size, Data: p.Data}
}
