package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"apartment-valuation-service/internal/core/domain"
	ports "apartment-valuation-service/internal/core/ports/output"
)

const missingToken = "n.d."

var integerPattern = regexp.MustCompile(`^-?\d+$`)

// BaselineOptions fixes the years of the trend extrapolation.
type BaselineOptions struct {
	AnchorYear    int
	HistoryYears  []int
	TargetYear    int
	CityAggregate string // snapshot row holding the citywide total

	// MaxDecadeDecline bounds the share of its anchor price a neighbourhood
	// may lose over ten years.
	MaxDecadeDecline float64
}

func DefaultBaselineOptions() BaselineOptions {
	return BaselineOptions{
		AnchorYear:       2015,
		HistoryYears:     []int{2007, 2008, 2009, 2010, 2011},
		TargetYear:       2025,
		CityAggregate:    "Barcelona",
		MaxDecadeDecline: 0.2,
	}
}

// withDefaults fills unset fields from DefaultBaselineOptions.
func (o BaselineOptions) withDefaults() BaselineOptions {
	d := DefaultBaselineOptions()
	if o.AnchorYear == 0 {
		o.AnchorYear = d.AnchorYear
	}
	if len(o.HistoryYears) == 0 {
		o.HistoryYears = d.HistoryYears
	}
	if o.TargetYear == 0 {
		o.TargetYear = d.TargetYear
	}
	if o.CityAggregate == "" {
		o.CityAggregate = d.CityAggregate
	}
	if o.MaxDecadeDecline <= 0 {
		o.MaxDecadeDecline = d.MaxDecadeDecline
	}
	return o
}

func (o BaselineOptions) lastHistoryYear() int {
	last := 0
	for _, y := range o.HistoryYears {
		last = max(last, y)
	}
	return last
}

// BaselineService builds the per-neighbourhood price baseline.
type BaselineService struct {
	source ports.BaselineSource
	store  ports.ObjectStore
	opts   BaselineOptions
}

func NewBaselineService(source ports.BaselineSource, store ports.ObjectStore, opts BaselineOptions) *BaselineService {
	return &BaselineService{source: source, store: store, opts: opts.withDefaults()}
}

// Build fetches both datasets, computes the baseline and replaces the stored table.
// Nothing is written when either fetch fails or no snapshot row parses.
func (s *BaselineService) Build(ctx context.Context) ([]domain.NeighborhoodBaseline, error) {
	snapshot, err := s.source.FetchSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	history, err := s.source.FetchHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	baselines, err := ComputeBaselines(snapshot, history, s.opts)
	if err != nil {
		return nil, err
	}

	body, err := json.MarshalIndent(baselines, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal baseline: %w", err)
	}
	if err := s.store.Put(ctx, domain.BaselineKey, body); err != nil {
		return nil, fmt.Errorf("write baseline: %w", err)
	}

	log.WithFields(log.Fields{
		"neighborhoods": len(baselines),
		"key":           domain.BaselineKey,
	}).Info("baseline table written")
	return baselines, nil
}

// Load reads the current baseline table.
func (s *BaselineService) Load(ctx context.Context) ([]domain.NeighborhoodBaseline, error) {
	return LoadBaselines(ctx, s.store)
}

// LoadBaselines reads the stored baseline table; a missing table is domain.ErrNoBaseline.
func LoadBaselines(ctx context.Context, store ports.ObjectStore) ([]domain.NeighborhoodBaseline, error) {
	body, err := store.Get(ctx, domain.BaselineKey)
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			return nil, domain.ErrNoBaseline
		}
		return nil, fmt.Errorf("read baseline: %w", err)
	}
	var out []domain.NeighborhoodBaseline
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode baseline: %w", err)
	}
	if len(out) == 0 {
		return nil, domain.ErrNoBaseline
	}
	return out, nil
}

type snapshotEntry struct {
	price    float64
	district string
}

// ComputeBaselines is the pure part of Build.
func ComputeBaselines(snapshot []ports.SnapshotRecord, history []ports.HistoryRecord, opts BaselineOptions) ([]domain.NeighborhoodBaseline, error) {
	current := make(map[string]snapshotEntry)
	for _, rec := range snapshot {
		name := NormalizeName(rec.Neighborhood)
		if name == "" || strings.EqualFold(name, opts.CityAggregate) {
			continue
		}
		price, ok := ParseThousands(rec.Price)
		if !ok {
			log.WithFields(log.Fields{"neighborhood": name, "raw": rec.Price}).Debug("snapshot row dropped: missing price")
			continue
		}
		current[name] = snapshotEntry{price: price, district: strings.TrimSpace(rec.District)}
	}
	if len(current) == 0 {
		return nil, domain.ErrEmptySnapshot
	}

	slopes := make(map[string]float64)
	values := make(map[string]map[int]float64)
	for _, rec := range history {
		name := NormalizeName(rec.Neighborhood)
		if name == "" {
			continue
		}
		var xs, ys []float64
		byYear := make(map[int]float64)
		for _, year := range opts.HistoryYears {
			v, ok := ParseHistoric(rec.Prices[year])
			if !ok {
				continue
			}
			xs = append(xs, float64(year))
			ys = append(ys, v)
			byYear[year] = v
		}
		values[name] = byYear
		slopes[name] = RegressSlope(xs, ys)
	}

	fallback := fallbackSlope(slopes)
	lastYear := opts.lastHistoryYear()

	out := make([]domain.NeighborhoodBaseline, 0, len(current))
	for name, entry := range current {
		var growth float64
		if last, ok := values[name][lastYear]; ok {
			growth = (entry.price - last) / float64(opts.AnchorYear-lastYear)
		} else {
			growth = slopes[name]
		}
		if growth == 0 {
			growth = fallback
		}
		growth = ClampGrowth(growth, entry.price, opts.MaxDecadeDecline)

		projected := math.Max(0, entry.price+growth*float64(opts.TargetYear-opts.AnchorYear))
		out = append(out, domain.NeighborhoodBaseline{
			Neighborhood:   name,
			District:       entry.district,
			PriceAnchor:    round2(entry.price),
			SlopePerYear:   round2(growth),
			ProjectedPrice: round2(projected),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Neighborhood < out[j].Neighborhood })
	return out, nil
}

// RegressSlope is the ordinary-least-squares slope of ys on xs; 0 with fewer than 2 points.
func RegressSlope(xs, ys []float64) float64 {
	if len(xs) < 2 || len(xs) != len(ys) {
		return 0
	}
	if stat.Variance(xs, nil) == 0 {
		return 0
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	return beta
}

// ClampGrowth floors the annual growth so that at most maxDecadeDecline of
// the current price is lost over ten years.
func ClampGrowth(growth, current, maxDecadeDecline float64) float64 {
	return math.Max(growth, -maxDecadeDecline*current/10)
}

func fallbackSlope(slopes map[string]float64) float64 {
	var nonzero []float64
	for _, s := range slopes {
		if s != 0 {
			nonzero = append(nonzero, s)
		}
	}
	if len(nonzero) == 0 {
		return 0
	}
	sort.Float64s(nonzero)
	return stat.Mean(nonzero, nil)
}

// ParseThousands parses integers written with "." or "," thousands separators.
func ParseThousands(raw string) (float64, bool) {
	v := strings.TrimSpace(raw)
	if v == "" || strings.EqualFold(v, missingToken) {
		return 0, false
	}
	cleaned := strings.NewReplacer(".", "", ",", "").Replace(v)
	if !integerPattern.MatchString(cleaned) {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseHistoric parses history values, which carry two implied decimals.
func ParseHistoric(raw string) (float64, bool) {
	f, ok := ParseThousands(raw)
	if !ok {
		return 0, false
	}
	return f / 100, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
