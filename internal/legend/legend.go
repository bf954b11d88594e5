// Package legend resolves renderer data for a layer: first from the map
// handle itself, then from a legend service URL.
package legend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

type Provider interface {
	// GetRenderer returns nil when neither the map nor the fallback service
	// knows the layer.
	GetRenderer(ctx context.Context, layerID, fallbackURL, fallbackLayerName string) *Renderer
}

type Symbol struct {
	Type        string    `json:"type"`
	URL         string    `json:"url,omitempty"`
	ImageData   string    `json:"imageData,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	Color       []float64 `json:"color,omitempty"`
	CSSColor    string    `json:"cssColor,omitempty"`
	Outline     *Symbol   `json:"outline,omitempty"`
	Size        float64   `json:"size,omitempty"`
}

type Class struct {
	Label  string   `json:"label"`
	Values []string `json:"values,omitempty"`
	Symbol *Symbol  `json:"symbol,omitempty"`
}

type Renderer struct {
	Type          string  `json:"type"`
	Field         string  `json:"field1,omitempty"`
	DefaultSymbol *Symbol `json:"defaultSymbol,omitempty"`
	DefaultLabel  string  `json:"defaultLabel,omitempty"`
	Classes       []Class `json:"classes,omitempty"`
	// Source is "map" or the URL the renderer was fetched from.
	Source string `json:"source"`
}

// FromMap decodes a renderer stored as loose JSON on a map layer.
func FromMap(raw map[string]any) (*Renderer, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty renderer")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var r Renderer
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode renderer: %w", err)
	}
	if r.Type == "" {
		return nil, errors.New("renderer without type")
	}
	r.Source = "map"
	return &r, nil
}

// Fetcher loads legend documents over HTTP and caches decoded results by URL.
type Fetcher struct {
	client *http.Client
	cache  *lru.Cache[string, *Renderer]
}

func NewFetcher(client *http.Client, size int) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if size <= 0 {
		size = 256
	}
	c, _ := lru.New[string, *Renderer](size)
	return &Fetcher{client: client, cache: c}
}

// FetchJSON GETs rawURL with f=json and decodes the body into target.
func (f *Fetcher) FetchJSON(ctx context.Context, rawURL string, target any) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid legend url %q", rawURL)
	}
	q := u.Query()
	q.Set("f", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// Cached returns the renderer stored under key, loading it on a miss. Load
// failures are not cached.
func (f *Fetcher) Cached(key string, load func() (*Renderer, error)) (*Renderer, error) {
	if r, ok := f.cache.Get(key); ok {
		return r, nil
	}
	r, err := load()
	if err != nil {
		return nil, err
	}
	f.cache.Add(key, r)
	return r, nil
}

// layer metadata document, {url}?f=json
type layerMetadata struct {
	DrawingInfo *struct {
		Renderer *Renderer `json:"renderer"`
	} `json:"drawingInfo"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// LayerRenderer reads drawingInfo.renderer from a map service layer URL.
func (f *Fetcher) LayerRenderer(ctx context.Context, layerURL string) (*Renderer, error) {
	return f.Cached("layer|"+layerURL, func() (*Renderer, error) {
		var md layerMetadata
		if err := f.FetchJSON(ctx, layerURL, &md); err != nil {
			return nil, err
		}
		if md.Error != nil {
			return nil, fmt.Errorf("legend service: %s", md.Error.Message)
		}
		if md.DrawingInfo == nil || md.DrawingInfo.Renderer == nil {
			return nil, fmt.Errorf("no renderer at %s", layerURL)
		}
		r := md.DrawingInfo.Renderer
		r.Source = layerURL
		return r, nil
	})
}

// legend document, {service}/legend?f=json
type legendDocument struct {
	Layers []struct {
		LayerID   int    `json:"layerId"`
		LayerName string `json:"layerName"`
		Legend    []struct {
			Label       string   `json:"label"`
			URL         string   `json:"url"`
			ImageData   string   `json:"imageData"`
			ContentType string   `json:"contentType"`
			Width       int      `json:"width"`
			Height      int      `json:"height"`
			Values      []string `json:"values"`
		} `json:"legend"`
	} `json:"layers"`
}

// ServiceLegend reads the legend of layerName from a map service's legend
// endpoint.
func (f *Fetcher) ServiceLegend(ctx context.Context, serviceURL, layerName string) (*Renderer, error) {
	endpoint := strings.TrimRight(serviceURL, "/")
	if !strings.HasSuffix(endpoint, "/legend") {
		endpoint += "/legend"
	}
	return f.Cached("legend|"+endpoint+"|"+layerName, func() (*Renderer, error) {
		var doc legendDocument
		if err := f.FetchJSON(ctx, endpoint, &doc); err != nil {
			return nil, err
		}
		for _, l := range doc.Layers {
			if !strings.EqualFold(l.LayerName, layerName) {
				continue
			}
			r := &Renderer{Type: "legend", Source: endpoint}
			for _, e := range l.Legend {
				r.Classes = append(r.Classes, Class{
					Label:  e.Label,
					Values: e.Values,
					Symbol: &Symbol{
						Type:        "picture-marker",
						URL:         e.URL,
						ImageData:   e.ImageData,
						ContentType: e.ContentType,
						Width:       e.Width,
						Height:      e.Height,
					},
				})
			}
			return r, nil
		}
		return nil, fmt.Errorf("layer %q not in legend at %s", layerName, endpoint)
	})
}
