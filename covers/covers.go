// Package covers downloads catalog cover art once, shrinks it and serves it from disk
package covers

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
)

// Logger is replaced by main with the configured logger
var Logger = slog.Default()

// ErrInvalidImageID is returned for ids that could escape the cache directory
var ErrInvalidImageID = errors.New("invalid cover image id")

var imageIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Config controls where covers come from and how they are stored
type Config struct {
	CachePath string
	BaseURL   string
	Size      string
	Width     int
	Prefetch  int
}

// Cache stores resized JPEG covers keyed by IGDB image id
type Cache struct {
	cfg        Config
	httpClient *http.Client

	// serialises fetches of the same image
	mu       sync.Mutex
	inflight map[string]*imageLock
}

// imageLock is dropped from inflight once nobody holds or waits on it
type imageLock struct {
	mu   sync.Mutex
	refs int
}

// NewCache creates the cache directory and applies defaults for unset fields
func NewCache(cfg Config) (*Cache, error) {
	if cfg.Width <= 0 {
		cfg.Width = 264
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.Size == "" {
		cfg.Size = "t_cover_big"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if err := os.MkdirAll(cfg.CachePath, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create cover cache: %w", err)
	}
	return &Cache{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		inflight:   map[string]*imageLock{},
	}, nil
}

func (c *Cache) path(imageID string) string {
	return filepath.Join(c.cfg.CachePath, imageID+".jpg")
}

func (c *Cache) lock(imageID string) func() {
	c.mu.Lock()
	l, ok := c.inflight[imageID]
	if !ok {
		l = &imageLock{}
		c.inflight[imageID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.inflight, imageID)
		}
		c.mu.Unlock()
	}
}

// Get returns the path of the cached cover, downloading it first if needed
func (c *Cache) Get(ctx context.Context, imageID string) (string, error) {
	if !imageIDPattern.MatchString(imageID) {
		return "", ErrInvalidImageID
	}
	unlock := c.lock(imageID)
	defer unlock()

	path := c.path(imageID)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := c.fetch(ctx, imageID, path); err != nil {
		return "", err
	}
	return path, nil
}

func (c *Cache) fetch(ctx context.Context, imageID, path string) error {
	url := fmt.Sprintf("%s/%s/%s.jpg", c.cfg.BaseURL, c.cfg.Size, imageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download cover %s: %w", imageID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download cover %s: status %d", imageID, resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to decode cover %s: %w", imageID, err)
	}
	if img.Bounds().Dx() > c.cfg.Width {
		img = imaging.Resize(img, c.cfg.Width, 0, imaging.Lanczos)
	}

	tmp := strings.TrimSuffix(path, ".jpg") + ".part.jpg"
	if err := imaging.Save(img, tmp, imaging.JPEGQuality(85)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save cover %s: %w", imageID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	Logger.Debug("Cached cover", "image_id", imageID, "path", path)
	return nil
}

// Prefetch downloads the covers in parallel. A failed cover does not stop the others; failures
// are logged and the first one is returned after every download has finished.
func (c *Cache) Prefetch(ctx context.Context, imageIDs []string) error {
	var g errgroup.Group
	g.SetLimit(c.cfg.Prefetch)
	for _, id := range imageIDs {
		if id == "" {
			continue
		}
		g.Go(func() error {
			if _, err := c.Get(ctx, id); err != nil {
				Logger.Warn("Cover prefetch failed", "image_id", id, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
