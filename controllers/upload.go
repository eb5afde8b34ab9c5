package controllers

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"blogicum/config"
)

// saveImage stores an optional uploaded post image under a dated directory
// and returns its public URL. A request without an image is not an error.
func saveImage(ctx *gin.Context) (string, error) {
	header, err := ctx.FormFile("image")
	if err != nil {
		return "", nil
	}

	cfg := config.Get()
	maxSize := int64(cfg.UploadMaxMB) * 1024 * 1024
	if header.Size > maxSize {
		return "", fmt.Errorf("image exceeds %dMB", cfg.UploadMaxMB)
	}

	now := time.Now()
	dir := filepath.Join(cfg.UploadDir, now.Format("2006"), now.Format("01"), now.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.New("failed to create upload directory")
	}

	name := uuid.NewString() + filepath.Ext(filepath.Base(header.Filename))
	dst := filepath.Join(dir, name)

	src, err := header.Open()
	if err != nil {
		return "", errors.New("failed to read image")
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", errors.New("failed to save image")
	}
	defer out.Close()

	// Enforce the size cap even when the declared header size lies.
	written, err := io.Copy(out, &io.LimitedReader{R: src, N: maxSize + 1})
	if err != nil || written > maxSize {
		_ = out.Close()
		_ = os.Remove(dst)
		if written > maxSize {
			return "", fmt.Errorf("image exceeds %dMB", cfg.UploadMaxMB)
		}
		return "", errors.New("failed to write image")
	}

	return "/" + filepath.ToSlash(dst), nil
}
