// Package executor runs WFS GetFeature requests against the upstream OWS
// endpoint.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/core/observability"
	"github.com/mohammed-shakir/geoview/internal/core/ogc"
)

// maxBody bounds a single GetFeature page read into memory.
const maxBody = 32 << 20

// Interface is the feature source the query orchestrator pages through.
type Interface interface {
	FetchGetFeature(ctx context.Context, q model.QueryRequest) ([]byte, string, error)
}

// UpstreamError reports a non-2xx reply or an OWS exception report.
type UpstreamError struct {
	Layer  string
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d for %s: %s", e.Status, e.Layer, e.Detail)
}

type Executor struct {
	logger *slog.Logger
	client *http.Client
	owsURL *url.URL
	now    func() time.Time
}

func New(logger *slog.Logger, client *http.Client, ows string) (*Executor, error) {
	u, err := url.Parse(ows)
	if err != nil {
		return nil, fmt.Errorf("parse ows url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ows url %q: scheme and host required", ows)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger, client: client, owsURL: u, now: time.Now}, nil
}

func (e *Executor) FetchGetFeature(ctx context.Context, q model.QueryRequest) ([]byte, string, error) {
	params, err := ogc.BuildGetFeatureParams(q)
	if err != nil {
		return nil, "", fmt.Errorf("build params: %w", err)
	}

	u := *e.owsURL
	u.RawQuery = params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := e.now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("get feature %s: %w", q.Layer, err)
	}
	defer func() { _ = resp.Body.Close() }()
	observability.ObserveUpstreamLatency("geoserver", e.now().Sub(start).Seconds())

	e.logger.Debug("wfs GetFeature",
		"layer", q.Layer,
		"start_index", q.StartIndex,
		"count", q.Count,
		"status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, "", &UpstreamError{Layer: q.Layer, Status: resp.StatusCode, Detail: strings.TrimSpace(string(b))}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	if len(b) > maxBody {
		return nil, "", fmt.Errorf("get feature %s: response exceeds %d bytes", q.Layer, maxBody)
	}
	ct := resp.Header.Get("Content-Type")
	if isExceptionReport(ct, b) {
		return nil, "", &UpstreamError{Layer: q.Layer, Status: resp.StatusCode, Detail: exceptionText(b)}
	}
	return b, ct, nil
}

// isExceptionReport detects the XML error documents GeoServer returns with a
// 200 status when a request names an unknown layer or a bad filter.
func isExceptionReport(contentType string, body []byte) bool {
	mt, _, _ := mime.ParseMediaType(contentType)
	if mt != "" && !strings.Contains(mt, "xml") {
		return false
	}
	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(head, []byte("ExceptionReport"))
}

func exceptionText(body []byte) string {
	const open, end = "ExceptionText>", "</"
	i := bytes.Index(body, []byte(open))
	if i < 0 {
		return "exception report"
	}
	rest := body[i+len(open):]
	if j := bytes.Index(rest, []byte(end)); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(string(rest))
}
