// Package session keeps one map handle and query orchestrator per client
// session, bounded by an LRU.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/geoview/internal/backend"
	"github.com/mohammed-shakir/geoview/internal/catalog"
	"github.com/mohammed-shakir/geoview/internal/core/executor"
	"github.com/mohammed-shakir/geoview/internal/highlight"
	"github.com/mohammed-shakir/geoview/internal/legend"
	"github.com/mohammed-shakir/geoview/internal/mapview"
	"github.com/mohammed-shakir/geoview/internal/query"
)

var ErrNotFound = errors.New("session not found")

const DefaultMax = 256

type Session struct {
	ID      string
	Created time.Time
	Handle  mapview.Handle
	Query   *query.Orchestrator
}

type Options struct {
	Max   int
	Query query.Config
	// Observer receives every applied interaction, tagged with the session id.
	Observer func(id string, r query.Result)
}

type Store struct {
	backend backend.Backend
	catalog *catalog.Catalog
	source  executor.Interface
	opts    Options
	log     *slog.Logger
	cache   *lru.Cache[string, *Session]
}

func NewStore(b backend.Backend, cat *catalog.Catalog, src executor.Interface, opts Options, log *slog.Logger) (*Store, error) {
	if b == nil || cat == nil || src == nil {
		return nil, errors.New("session: backend, catalog and source are required")
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.Max <= 0 {
		opts.Max = DefaultMax
	}
	s := &Store{backend: b, catalog: cat, source: src, opts: opts, log: log.With("component", "session")}
	c, err := lru.NewWithEvict[string, *Session](opts.Max, func(id string, _ *Session) {
		s.log.Info("session evicted", "session", id)
	})
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	s.cache = c
	return s, nil
}

func (s *Store) Backend() backend.Backend { return s.backend }

func (s *Store) Catalog() *catalog.Catalog { return s.catalog }

func (s *Store) Create(cam backend.Camera) (*Session, error) {
	h, err := s.backend.NewHandle(cam, s.catalog.Layers())
	if err != nil {
		return nil, err
	}
	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}

	var observer func(query.Result)
	if s.opts.Observer != nil {
		observer = func(r query.Result) { s.opts.Observer(id, r) }
	}
	o, err := query.New(s.opts.Query, query.Deps{
		Catalog:     s.catalog,
		Source:      s.source,
		Adapter:     s.backend.Adapter(),
		Handle:      h,
		Highlighter: s.backend.Highlighter(h),
		Logger:      s.log.With("session", id),
		Observer:    observer,
	})
	if err != nil {
		return nil, err
	}

	sess := &Session{ID: id, Created: time.Now().UTC(), Handle: h, Query: o}
	s.cache.Add(id, sess)
	s.log.Info("session created", "session", id, "backend", string(s.backend.Kind()),
		"width", cam.Width, "height", cam.Height, "zoom", cam.Zoom)
	return sess, nil
}

func (s *Store) Get(id string) (*Session, error) {
	sess, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

func (s *Store) Delete(id string) bool {
	return s.cache.Remove(id)
}

func (s *Store) Len() int { return s.cache.Len() }

// Highlighter returns the highlight provider bound to the session's map.
func (s *Store) Highlighter(sess *Session) highlight.Provider {
	return s.backend.Highlighter(sess.Handle)
}

func (s *Store) Legend(sess *Session) legend.Provider {
	return s.backend.Legend(sess.Handle)
}
