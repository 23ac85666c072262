package subsonic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
)

// CoverPath is where the cached art for coverID lives.
func (c *Client) CoverPath(coverID string) string {
	return filepath.Join(c.cfg.CacheDir, coverID+".jpg")
}

// CoverArt returns a local path to the cover image for coverID, fetching and
// caching it on first use. When the image cannot be obtained the fallback
// asset path is returned instead.
func (c *Client) CoverArt(ctx context.Context, coverID string, size int) string {
	if coverID == "" {
		return c.cfg.FallbackCover
	}
	if size <= 0 {
		size = DefaultCoverSize
	}

	path := c.CoverPath(coverID)
	if _, err := os.Stat(path); err == nil {
		return path
	}

	// Concurrent guilds asking for the same cover share one download.
	v, err, _ := c.covers.Do(coverID, func() (any, error) {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		return path, c.fetchCover(ctx, coverID, size, path)
	})
	if err != nil {
		c.log.Warn("cover art unavailable", "cover", coverID, "err", err)
		return c.cfg.FallbackCover
	}
	return v.(string)
}

var errNotAnImage = errors.New("cover art response is not an image")

func (c *Client) fetchCover(ctx context.Context, coverID string, size int, path string) error {
	resp, err := c.get(ctx, "getCoverArt.view", url.Values{
		"id":   {coverID},
		"size": {strconv.Itoa(size)},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Failures come back as an envelope rather than an image.
	if isEnvelope(resp.Header.Get("Content-Type")) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Error("cover art fault", "cover", coverID, "body", string(body))
		return errNotAnImage
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), coverID+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, io.LimitReader(resp.Body, maxBodySize)); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cover art: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cover art: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("storing cover art: %w", err)
	}
	c.log.Debug("cached cover art", "cover", coverID, "path", path)
	return nil
}

// isEnvelope reports whether a content type is an API response body rather
// than media.
func isEnvelope(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mt {
	case "text/xml", "application/xml", "application/json":
		return true
	}
	return false
}
