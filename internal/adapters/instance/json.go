package instance

import (
	"encoding/json"
	"fmt"
	"io"

	"vrp-search-service/internal/domain"
)

// Document is the JSON form of an instance; Points[0] is the depot.
type Document struct {
	Name     string          `json:"name"`
	Capacity int             `json:"capacity"`
	Rounded  *bool           `json:"rounded,omitempty"`
	Points   []DocumentPoint `json:"points"`
}

type DocumentPoint struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Demand int     `json:"demand"`
}

// Build validates the document into an Instance. The document's rounded
// flag, when present, overrides opts.
func (d Document) Build(opts domain.InstanceOptions) (*domain.Instance, error) {
	if d.Rounded != nil {
		opts.Rounded = *d.Rounded
	}
	points := make([]domain.Point, len(d.Points))
	for i, p := range d.Points {
		points[i] = domain.Point{X: p.X, Y: p.Y, Demand: p.Demand}
	}
	return domain.NewInstance(d.Name, points, d.Capacity, opts)
}

// ParseJSON decodes a Document from r.
func ParseJSON(r io.Reader, opts domain.InstanceOptions) (*domain.Instance, error) {
	var doc Document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse json instance: %v: %w", err, ErrFormat)
	}
	return doc.Build(opts)
}
