// Package selection holds the set of features currently selected in a session.
package selection

import (
	"sync"

	"github.com/mohammed-shakir/geoview/internal/aggregate/geojsonagg"
	"github.com/mohammed-shakir/geoview/internal/core/model"
)

// Set is an insertion-ordered, key-unique collection of selected features.
type Set struct {
	mu    sync.RWMutex
	items []geojsonagg.Tagged
	index map[string]int
}

func New() *Set {
	return &Set{index: map[string]int{}}
}

// Replace swaps the selection for items. Duplicate keys keep their first occurrence.
func (s *Set) Replace(items []geojsonagg.Tagged) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = s.items[:0]
	clear(s.index)
	s.appendLocked(items)
}

// Add unions items into the selection and returns how many were new.
func (s *Set) Add(items []geojsonagg.Tagged) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(items)
}

func (s *Set) appendLocked(items []geojsonagg.Tagged) int {
	added := 0
	for _, it := range items {
		if _, ok := s.index[it.Key]; ok {
			continue
		}
		s.index[it.Key] = len(s.items)
		s.items = append(s.items, it)
		added++
	}
	return added
}

// Apply merges items with additive or replace semantics. An empty non-additive
// result clears the set; an empty additive result leaves it untouched.
func (s *Set) Apply(items []geojsonagg.Tagged, additive bool) {
	if additive {
		s.Add(items)
		return
	}
	s.Replace(items)
}

func (s *Set) Clear() {
	s.mu.Lock()
	s.items = nil
	clear(s.index)
	s.mu.Unlock()
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Set) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[key]
	return ok
}

// Items returns a copy of the selection in order.
func (s *Set) Items() []geojsonagg.Tagged {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]geojsonagg.Tagged(nil), s.items...)
}

func (s *Set) Features() []*model.Feature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Feature, len(s.items))
	for i, it := range s.items {
		out[i] = it.Feature
	}
	return out
}

// Layers returns the distinct layers in first-seen order.
func (s *Set) Layers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	seen := map[string]struct{}{}
	for _, it := range s.items {
		if _, ok := seen[it.Layer]; ok {
			continue
		}
		seen[it.Layer] = struct{}{}
		out = append(out, it.Layer)
	}
	return out
}
