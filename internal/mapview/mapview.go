// Package mapview holds the backend-neutral view of a live map handle.
//
// A handle is owned by one session; the concrete engine and vector types live
// in the subpackages and guard their own state.
package mapview

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindEngine Kind = "engine"
	KindVector Kind = "vector"
)

var ErrNotReady = errors.New("map handle not ready")

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindEngine, "":
		return KindEngine, nil
	case KindVector:
		return KindVector, nil
	default:
		return "", fmt.Errorf("unknown map backend %q", s)
	}
}

// Handle is implemented by *engine.View and *vector.Map.
type Handle interface {
	Kind() Kind
	// LayerVisible reports the visibility of a data layer; known is false
	// when the handle has never seen the layer.
	LayerVisible(id string) (visible, known bool)
	SetLayerVisible(id string, visible bool)
	State() ViewState
}

// ViewState is the serializable camera state shared by both backends.
type ViewState struct {
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Center [2]float64 `json:"center"`
	Zoom   float64    `json:"zoom"`
	// Resolution is map units per pixel in the backend's native CRS.
	Resolution float64 `json:"resolution"`
	CRS        string  `json:"crs"`
}
