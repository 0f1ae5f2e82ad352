// Package media stores uploaded files on local disk and produces a
// thumbnail for images.
package media

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/vkondrav/pigeon/internal/domain"
)

const thumbWidth = 320

type Store struct {
	basePath string
}

func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

type Upload struct {
	URL         string
	ThumbURL    string
	ContentType domain.ContentType
}

// Save writes the uploaded file under a fresh object name and returns
// its serving URL. Images additionally get a resized thumbnail.
func (s *Store) Save(file *multipart.FileHeader) (*Upload, error) {
	contentType, err := classify(file)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	name := uuid.NewString() + ext
	targetPath := filepath.Join(s.basePath, name)

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(targetPath)
	if err != nil {
		return nil, fmt.Errorf("create media file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(targetPath)
		return nil, fmt.Errorf("write media file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return nil, err
	}

	up := &Upload{
		URL:         "/media/" + name,
		ContentType: contentType,
	}
	if contentType == domain.ContentImage {
		if thumb, err := s.thumbnail(targetPath, name); err == nil {
			up.ThumbURL = thumb
		}
	}
	return up, nil
}

func (s *Store) thumbnail(sourcePath, name string) (string, error) {
	img, err := imaging.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	resized := imaging.Resize(img, thumbWidth, 0, imaging.Lanczos)
	thumbName := "thumb_" + name
	if err := imaging.Save(resized, filepath.Join(s.basePath, thumbName)); err != nil {
		return "", fmt.Errorf("save thumbnail: %w", err)
	}
	return "/media/" + thumbName, nil
}

func (s *Store) BasePath() string {
	return s.basePath
}

func classify(file *multipart.FileHeader) (domain.ContentType, error) {
	mime := file.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(mime, "image/"):
		return domain.ContentImage, nil
	case strings.HasPrefix(mime, "video/"):
		return domain.ContentVideo, nil
	}
	return "", fmt.Errorf("unsupported media type %q", mime)
}
