// internal/imagehost/github.go
package imagehost

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/go-github/v58/github"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

// extensions maps the image types we accept to file extensions.
var extensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Statically assert that GitHubHost implements the ImageHost interface.
var _ schemas.ImageHost = (*GitHubHost)(nil)

// GitHubHost stores images as files committed to a GitHub repository through the
// contents API and returns their raw download URLs.
type GitHubHost struct {
	client *github.Client
	cfg    config.ImageHostConfig
	logger *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewGitHubHost builds a host for the configured repository.
func NewGitHubHost(cfg config.ImageHostConfig, logger *zap.Logger) (*GitHubHost, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid image host configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := github.NewClient(&http.Client{Timeout: cfg.Timeout}).WithAuthToken(cfg.Token)
	if cfg.APIBaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.APIBaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid image_host.api_base_url: %w", err)
		}
		client.BaseURL = base
	}

	return &GitHubHost{
		client: client,
		cfg:    cfg,
		logger: logger.Named("imagehost.github"),
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// Put commits data as a new file and returns a URL that serves the image bytes.
// It performs exactly one API write per call.
func (h *GitHubHost) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", schemas.NewFieldError(schemas.ErrKindRequestValidation, "image", "is empty")
	}
	if h.cfg.MaxImageBytes > 0 && int64(len(data)) > h.cfg.MaxImageBytes {
		return "", schemas.NewFieldError(schemas.ErrKindRequestValidation, "image",
			fmt.Sprintf("is %d bytes, limit is %d", len(data), h.cfg.MaxImageBytes))
	}
	mimeType := http.DetectContentType(data)
	ext, ok := extensions[mimeType]
	if !ok {
		return "", schemas.NewFieldError(schemas.ErrKindRequestValidation, "image",
			fmt.Sprintf("content type %s is not a supported image", mimeType))
	}

	filePath := h.objectPath(ext)
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(h.commitMessage()),
		Content: data,
		Branch:  github.String(h.cfg.Branch),
	}

	startTime := time.Now()
	resp, _, err := h.client.Repositories.CreateFile(ctx, h.cfg.RepoOwner, h.cfg.RepoName, filePath, opts)
	if err != nil {
		h.logger.Warn("Image upload failed", zap.String("path", filePath), zap.Error(err))
		return "", schemas.NewError(schemas.ErrKindImageHost, providerMessage(err), err)
	}

	downloadURL := resp.GetContent().GetDownloadURL()
	if downloadURL == "" {
		return "", schemas.NewError(schemas.ErrKindImageHost, "GitHub did not return a download URL", nil)
	}

	h.logger.Info("Image uploaded",
		zap.String("path", filePath),
		zap.String("url", downloadURL),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(startTime)))
	return downloadURL, nil
}

// objectPath names the file {dir}/{timestamp}-{id}.{ext}. The id suffix keeps two
// uploads in the same second from colliding.
func (h *GitHubHost) objectPath(ext string) string {
	id := strings.ReplaceAll(h.newID(), "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("%s-%s.%s", h.now().UTC().Format("20060102150405"), id, ext)
	dir := strings.Trim(h.cfg.Directory, "/")
	if dir == "" {
		return name
	}
	return path.Join(dir, name)
}

func (h *GitHubHost) commitMessage() string {
	if h.cfg.CommitMessage != "" {
		return h.cfg.CommitMessage
	}
	return "Upload image"
}

// providerMessage returns GitHub's own message when the API supplied one.
func providerMessage(err error) string {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Message != "" {
		return errResp.Message
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) && rateErr.Message != "" {
		return rateErr.Message
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) && abuseErr.Message != "" {
		return abuseErr.Message
	}
	return "Unable to upload file"
}
