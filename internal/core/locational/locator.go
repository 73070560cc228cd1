package locational

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
)

//go:embed neighborhood_locator.json
var defaultLocatorJSON []byte

// Centroid is a known neighbourhood reference point.
type Centroid struct {
	Neighborhood string `json:"neighborhood"`
	District     string `json:"district"`
	Coord
}

// Locator resolves coordinates to the nearest known neighbourhood centroid.
type Locator struct {
	centroids []Centroid
	byName    map[string]int
}

func NewLocator(centroids []Centroid) *Locator {
	idx := make(map[string]int, len(centroids))
	for i, c := range centroids {
		idx[c.Neighborhood] = i
	}
	return &Locator{centroids: centroids, byName: idx}
}

// ParseLocator decodes a JSON array of centroids.
func ParseLocator(data []byte) (*Locator, error) {
	var centroids []Centroid
	if err := json.Unmarshal(data, &centroids); err != nil {
		return nil, fmt.Errorf("decode neighborhood locator: %w", err)
	}
	return NewLocator(centroids), nil
}

// DefaultLocator returns the centroid table compiled into the binary.
func DefaultLocator() *Locator {
	l, err := ParseLocator(defaultLocatorJSON)
	if err != nil {
		panic(err)
	}
	return l
}

// Nearest performs a pointwise nearest-neighbour search by great-circle distance.
func (l *Locator) Nearest(p Coord) (Centroid, bool) {
	if l == nil || len(l.centroids) == 0 {
		return Centroid{}, false
	}
	best := -1
	bestDist := math.Inf(1)
	for i, c := range l.centroids {
		d := HaversineKm(p, c.Coord)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return l.centroids[best], true
}

func (l *Locator) Lookup(name string) (Centroid, bool) {
	if l == nil {
		return Centroid{}, false
	}
	i, ok := l.byName[name]
	if !ok {
		return Centroid{}, false
	}
	return l.centroids[i], true
}

func (l *Locator) Len() int {
	if l == nil {
		return 0
	}
	return len(l.centroids)
}
