package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"rainrelay/internal/constants"
	"rainrelay/internal/errors"
	"rainrelay/internal/models"
	"rainrelay/internal/security"
)

const stagedPrefix = "stage_"

// URLResolver turns a platform file id into a downloadable URL.
type URLResolver interface {
	ResolveFileURL(ctx context.Context, fileID string) (string, error)
}

// Stager downloads inbound media into the cache directory for the duration of one send.
type Stager interface {
	Stage(ctx context.Context, m models.Media) (*models.Attachment, error)
	Release(a *models.Attachment) error
	CleanupOldFiles(maxAge time.Duration) (int, error)
}

type stager struct {
	cacheDir   string
	maxBytes   int64
	resolver   URLResolver
	httpClient *http.Client
}

func NewStager(config models.MediaConfig, resolver URLResolver) (Stager, error) {
	return NewStagerWithClient(config, resolver, &http.Client{Timeout: constants.DefaultHTTPTimeoutSec * time.Second})
}

func NewStagerWithClient(config models.MediaConfig, resolver URLResolver, client *http.Client) (Stager, error) {
	cacheDir := config.CacheDir
	if cacheDir == "" {
		cacheDir = constants.DefaultMediaCacheDir
	}
	maxMB := config.MaxSizeMB
	if maxMB <= 0 {
		maxMB = constants.DefaultMaxMediaMB
	}
	if err := os.MkdirAll(cacheDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &stager{
		cacheDir:   cacheDir,
		maxBytes:   int64(maxMB) * 1024 * 1024,
		resolver:   resolver,
		httpClient: client,
	}, nil
}

// Stage writes the media to a fresh file. Every call gets its own file, so two sends
// of the same media never share one that the other could release.
func (s *stager) Stage(ctx context.Context, m models.Media) (*models.Attachment, error) {
	if m.Size > s.maxBytes {
		return nil, errors.NewMediaError("stage", fmt.Errorf("media too large: %d > %d bytes", m.Size, s.maxBytes))
	}

	mediaURL, err := s.resolver.ResolveFileURL(ctx, m.FileID)
	if err != nil {
		return nil, errors.NewMediaError("resolve", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, errors.NewMediaError("download", fmt.Errorf("failed to create request: %w", err))
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewMediaError("download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewMediaError("download", fmt.Errorf("download failed with status: %d", resp.StatusCode))
	}

	contentType := m.MimeType
	if contentType == "" {
		contentType = resp.Header.Get("Content-Type")
	}
	ext := fileExtension(m.FileName, contentType, mediaURL)

	file, err := os.CreateTemp(s.cacheDir, stagedPrefix+"*"+ext)
	if err != nil {
		return nil, errors.NewMediaError("stage", fmt.Errorf("failed to create temp file: %w", err))
	}

	written, copyErr := io.Copy(file, io.LimitReader(resp.Body, s.maxBytes+1))
	closeErr := file.Close()
	switch {
	case copyErr != nil:
		_ = os.Remove(file.Name())
		return nil, errors.NewMediaError("download", fmt.Errorf("failed to save media: %w", copyErr))
	case closeErr != nil:
		_ = os.Remove(file.Name())
		return nil, errors.NewMediaError("stage", closeErr)
	case written > s.maxBytes:
		_ = os.Remove(file.Name())
		return nil, errors.NewMediaError("stage", fmt.Errorf("media exceeds %d bytes", s.maxBytes))
	}

	return &models.Attachment{
		Name:        security.SafeFileName(m.FileName, "media"+ext),
		ContentType: contentType,
		Path:        file.Name(),
	}, nil
}

// Release removes a staged file. Releasing twice is harmless.
func (s *stager) Release(a *models.Attachment) error {
	if a == nil || a.Path == "" {
		return nil
	}
	if err := security.ContainedPath(a.Path, s.cacheDir); err != nil {
		return fmt.Errorf("refusing to release media outside the cache: %w", err)
	}
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release staged media: %w", err)
	}
	return nil
}

// CleanupOldFiles removes staged files left behind by a crash. Only files created
// by Stage are considered.
func (s *stager) CleanupOldFiles(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.cacheDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	removed := 0
	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), stagedPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(s.cacheDir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove old file: %w", err)
		}
		removed++
	}
	return removed, nil
}

func fileExtension(fileName, contentType, mediaURL string) string {
	if ext := filepath.Ext(fileName); ext != "" {
		return strings.ToLower(ext)
	}
	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
				return exts[0]
			}
		}
	}
	if u, err := url.Parse(mediaURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			return strings.ToLower(ext)
		}
	}
	return ".bin"
}
