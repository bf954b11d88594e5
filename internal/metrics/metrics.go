// Package metrics owns the private Prometheus registry that geoviewd serves,
// either on the API router or on a dedicated listener.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type BuildInfo struct {
	Version   string
	Revision  string
	Branch    string
	BuildDate string
}

type Config struct {
	Enabled bool
	Addr    string
	Path    string
	Build   BuildInfo
	// Collectors are registered alongside the runtime collectors.
	Collectors []prometheus.Collector
}

// Provider wraps a registry that never sees the global default collectors, so
// tests and the daemon scrape exactly what was registered here.
type Provider struct {
	reg *prometheus.Registry
}

func Init(cfg Config) *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		buildInfo(cfg.Build),
	)
	p := &Provider{reg: reg}
	p.Register(cfg.Collectors...)
	return p
}

func buildInfo(b BuildInfo) prometheus.Collector {
	if b.Version == "" {
		b.Version = "dev"
	}
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "app_build_info",
		Help: "Build info for this binary (value is always 1).",
	}, []string{"version", "revision", "branch", "build_date"})
	g.WithLabelValues(b.Version, b.Revision, b.Branch, b.BuildDate).Set(1)
	return g
}

// Handler serves the registry. A collector failing mid-scrape drops its own
// series instead of failing the whole response.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{
		Registry:      p.reg,
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Register adds collectors, skipping any already registered.
func (p *Provider) Register(cs ...prometheus.Collector) {
	for _, c := range cs {
		if err := p.reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }

func (p *Provider) Gatherer() prometheus.Gatherer { return p.reg }
