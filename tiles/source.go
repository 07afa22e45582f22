// Package tiles generates raster tile pyramids into a GeoPackage. The
// generator plans a tile grid per zoom level from a requested bounding box,
// pulls raw tiles from a TileSource and maintains the container metadata,
// including regridding previously stored tiles when the bounds grow.
package tiles

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// TileSource supplies raw tile bytes. Coordinates are always global web
// mercator tile indices, regardless of how tiles end up addressed in the
// container.
type TileSource interface {
	// Tile returns the bytes of tile (zoom, x, y), or nil without error when
	// the source has no tile there.
	Tile(ctx context.Context, zoom int, x, y int64) ([]byte, error)
}

// URLSource fetches tiles over HTTP from a {z}/{x}/{y} templated URL.
type URLSource struct {
	urlTemplate string
	client      *http.Client
	log         *logrus.Entry
}

func NewURLSource(urlTemplate string) (*URLSource, error) {
	for _, placeholder := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(urlTemplate, placeholder) {
			return nil, fmt.Errorf("tile url template %q misses %s", urlTemplate, placeholder)
		}
	}
	return &URLSource{
		urlTemplate: urlTemplate,
		client:      &http.Client{Timeout: 30 * time.Second},
		log:         logrus.WithField("source", "url"),
	}, nil
}

// URL is the request url for one tile.
func (s *URLSource) URL(zoom int, x, y int64) string {
	url := strings.Replace(s.urlTemplate, "{z}", strconv.Itoa(zoom), -1)
	url = strings.Replace(url, "{x}", strconv.FormatInt(x, 10), -1)
	url = strings.Replace(url, "{y}", strconv.FormatInt(y, 10), -1)
	return url
}

func (s *URLSource) Tile(ctx context.Context, zoom int, x, y int64) ([]byte, error) {
	start := time.Now()
	url := s.URL(zoom, x, y)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if len(body) == 0 {
		return nil, nil
	}

	s.log.Debugf("tile(z:%d, x:%d, y:%d), %dms, %.2f kb, %s",
		zoom, x, y, time.Since(start).Milliseconds(), float32(len(body))/1024.0, url)
	return body, nil
}
