package geojsonagg

import "github.com/mohammed-shakir/geoview/internal/core/model"

// LayerPart is one layer's query result, features in service order.
type LayerPart struct {
	Layer    string
	Features []*model.Feature
}

// Tagged is a merged feature with the layer it came from and its selection key.
type Tagged struct {
	Layer   string
	Key     string
	Feature *model.Feature
}

type Diagnostics struct {
	TotalIn   int `json:"total_in"`
	TotalOut  int `json:"total_out"`
	DedupByID int `json:"dedup_by_id"`
	DedupByGH int `json:"dedup_by_geom"`
	Invalid   int `json:"invalid"`
}
