package domain

// NeighborhoodBaseline is the per-neighbourhood anchor price and its extrapolated trend.
// JSON keys are fixed; anchor and target years are configured on the builder.
type NeighborhoodBaseline struct {
	Neighborhood   string  `json:"neighborhood"`
	District       string  `json:"district"`
	PriceAnchor    float64 `json:"price_2015_eur_sqm"`
	SlopePerYear   float64 `json:"slope_per_year"`
	ProjectedPrice float64 `json:"price_2025_eur_sqm"`
}

// BaselineTable indexes baseline records by neighbourhood name.
type BaselineTable struct {
	Records []NeighborhoodBaseline
	byName  map[string]int
}

func NewBaselineTable(records []NeighborhoodBaseline) *BaselineTable {
	idx := make(map[string]int, len(records))
	for i, r := range records {
		idx[r.Neighborhood] = i
	}
	return &BaselineTable{Records: records, byName: idx}
}

// Lookup returns the record for a neighbourhood.
func (t *BaselineTable) Lookup(name string) (NeighborhoodBaseline, bool) {
	if t == nil {
		return NeighborhoodBaseline{}, false
	}
	i, ok := t.byName[name]
	if !ok {
		return NeighborhoodBaseline{}, false
	}
	return t.Records[i], true
}

// MeanProjectedPrice is the citywide fallback price per square metre.
func (t *BaselineTable) MeanProjectedPrice() float64 {
	if t == nil || len(t.Records) == 0 {
		return 0
	}
	var sum float64
	for _, r := range t.Records {
		sum += r.ProjectedPrice
	}
	return sum / float64(len(t.Records))
}

func (t *BaselineTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}
