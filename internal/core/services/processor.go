package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"apartment-valuation-service/internal/core/domain"
	ports "apartment-valuation-service/internal/core/ports/output"
)

const trainFraction = 0.8

type ProcessorOptions struct {
	SplitSeed uint64
}

func DefaultProcessorOptions() ProcessorOptions {
	return ProcessorOptions{SplitSeed: 42}
}

type ProcessResult struct {
	RunID       string `json:"run_id"`
	RawKey      string `json:"raw_key"`
	TrainKey    string `json:"train_key"`
	TestKey     string `json:"test_key"`
	MetadataKey string `json:"metadata_key"`
	TrainRows   int    `json:"train_rows"`
	TestRows    int    `json:"test_rows"`
	Dropped     int    `json:"dropped"`
}

// ProcessorService encodes one raw dataset into a train/test split plus its metadata.
type ProcessorService struct {
	store ports.ObjectStore
	opts  ProcessorOptions
	now   func() time.Time
}

func NewProcessorService(store ports.ObjectStore, opts ProcessorOptions) *ProcessorService {
	return &ProcessorService{store: store, opts: opts, now: time.Now}
}

// Process encodes rawKey, or the newest raw dataset when rawKey is empty.
func (s *ProcessorService) Process(ctx context.Context, rawKey string) (*ProcessResult, error) {
	if rawKey == "" {
		latest, err := s.latestRaw(ctx)
		if err != nil {
			return nil, err
		}
		rawKey = latest
	}
	runID, err := domain.RunIDFromKey(rawKey)
	if err != nil {
		return nil, err
	}

	body, err := s.store.Get(ctx, rawKey)
	if err != nil {
		return nil, fmt.Errorf("read raw dataset %s: %w", rawKey, err)
	}

	ds, err := EncodeDataset(bytes.NewReader(body), s.now().Year())
	if err != nil {
		return nil, err
	}
	ds.Metadata.RunID = runID

	train, test := ds.Split(s.opts.SplitSeed)

	res := &ProcessResult{
		RunID:       runID,
		RawKey:      rawKey,
		TrainKey:    domain.TrainKey(runID),
		TestKey:     domain.TestKey(runID),
		MetadataKey: domain.ProcessedMetadataKey(runID),
		TrainRows:   len(train),
		TestRows:    len(test),
		Dropped:     ds.Dropped,
	}

	for _, part := range []struct {
		key  string
		rows [][]float64
	}{{res.TrainKey, train}, {res.TestKey, test}} {
		out, err := encodeRows(ds.Metadata.FeatureColumns, part.rows)
		if err != nil {
			return nil, err
		}
		if err := s.store.Put(ctx, part.key, out); err != nil {
			return nil, fmt.Errorf("write %s: %w", part.key, err)
		}
	}

	// metadata goes last: its presence marks a complete split
	meta, err := json.MarshalIndent(ds.Metadata, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	if err := s.store.Put(ctx, res.MetadataKey, meta); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	log.WithFields(log.Fields{
		"run_id":  runID,
		"train":   res.TrainRows,
		"test":    res.TestRows,
		"dropped": res.Dropped,
	}).Info("dataset processed")
	return res, nil
}

func (s *ProcessorService) latestRaw(ctx context.Context) (string, error) {
	keys, err := s.store.List(ctx, domain.RawPrefix)
	if err != nil {
		return "", fmt.Errorf("list raw datasets: %w", err)
	}
	for i := len(keys) - 1; i >= 0; i-- {
		if _, err := domain.RunIDFromKey(keys[i]); err == nil {
			return keys[i], nil
		}
	}
	return "", fmt.Errorf("%w: no raw dataset under %s", domain.ErrEmptyDataset, domain.RawPrefix)
}

// ============================================================================
// Encoding
// ============================================================================

// EncodedDataset holds encoded rows; each row is the feature vector followed by the price.
type EncodedDataset struct {
	Rows     [][]float64
	Metadata domain.Metadata
	Dropped  int
}

// Split shuffles a copy of the rows once with seed and cuts it at 80%.
func (d *EncodedDataset) Split(seed uint64) (train, test [][]float64) {
	rows := make([][]float64, len(d.Rows))
	copy(rows, d.Rows)
	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	cut := int(float64(len(rows)) * trainFraction)
	return rows[:cut], rows[cut:]
}

type rowReader struct {
	header map[string]int
	record []string
}

func (r rowReader) text(col string) (string, bool) {
	i, ok := r.header[col]
	if !ok {
		return "", false
	}
	v := strings.TrimSpace(r.record[i])
	return v, v != ""
}

func (r rowReader) label(col, fallback string) string {
	if v, ok := r.text(col); ok {
		return v
	}
	return fallback
}

func (r rowReader) number(col string, fallback float64) float64 {
	v, ok := r.text(col)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// EncodeDataset reads a raw listing CSV. Categorical codes are assigned in
// first-seen order and records with the wrong field count are dropped.
func EncodeDataset(r io.Reader, currentYear int) (*EncodedDataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.ErrEmptyDataset
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}

	neighborhoods := domain.NewEncodingBuilder()
	floorPlans := domain.NewEncodingBuilder()
	buildingTypes := domain.NewEncodingBuilder()
	conditions := domain.NewEncodingBuilder()
	materials := domain.NewEncodingBuilder()

	ds := &EncodedDataset{}
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			log.WithError(domain.ErrParseRow).WithField("line", perr.Line).Warn("malformed record dropped")
			ds.Dropped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if len(record) != len(header) {
			log.WithError(domain.ErrParseRow).
				WithFields(log.Fields{"line": line, "fields": len(record), "want": len(header)}).
				Warn("record dropped")
			ds.Dropped++
			continue
		}

		row := rowReader{header: cols, record: record}
		yearBuilt := row.number(domain.ColYearBuilt, 1970)
		yearRenovated := row.number(domain.ColYearRenovated, yearBuilt)

		ds.Rows = append(ds.Rows, []float64{
			float64(neighborhoods.Code(row.label(domain.ColNeighborhood, domain.UnknownLabel))),
			row.number(domain.ColSqm, 80),
			row.number(domain.ColBedrooms, 2),
			row.number(domain.ColBathrooms, 1),
			row.number(domain.ColFloor, 1),
			yearBuilt,
			max(0, float64(currentYear)-yearRenovated),
			float64(conditions.Code(row.label(domain.ColCondition, domain.UnknownLabel))),
			float64(materials.Code(row.label(domain.ColMaterialQuality, domain.UnknownLabel))),
			float64(floorPlans.Code(row.label(domain.ColFloorPlan, domain.DefaultFloorPlan))),
			float64(buildingTypes.Code(row.label(domain.ColBuildingType, domain.DefaultBuildingType))),
			row.number(domain.ColHasElevator, 0),
			row.number(domain.ColHasAC, 0),
			row.number(domain.ColHasFireplace, 0),
			row.number(domain.ColHasBalcony, 0),
			row.number(domain.ColHasTerrace, 0),
			row.number(domain.ColTerraceSqm, 0),
			row.number(domain.ColParkingSpots, 0),
			row.number(domain.ColHasPool, 0),
			row.number(domain.ColHasGym, 0),
			row.number(domain.ColHasDoorman, 0),
			row.number(domain.ColHOAMonthly, 0),
			row.number(domain.ColPropertyTaxRate, 0),
			row.number(domain.ColDistanceCBD, 0),
			row.number(domain.ColDistanceMetro, 0),
			row.number(domain.ColWalkScore, 0),
			row.number(domain.ColSafetyScore, 0),
			row.number(domain.ColAmenitiesScore, 0),
			row.number(domain.ColPrice, 0),
		})
	}
	if len(ds.Rows) == 0 {
		return nil, domain.ErrEmptyDataset
	}

	features := make([]string, len(domain.ProcessedFeatureColumns))
	copy(features, domain.ProcessedFeatureColumns)
	ds.Metadata = domain.Metadata{
		FeatureColumns:  features,
		NeighborhoodMap: neighborhoods.Build(),
		FloorPlanMap:    floorPlans.Build(),
		BuildingTypeMap: buildingTypes.Build(),
		ConditionMap:    conditions.Build(),
		MaterialMap:     materials.Build(),
	}
	return ds, nil
}

func encodeRows(features []string, rows [][]float64) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := append(append([]string{}, features...), domain.ColPrice)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for i, v := range row {
			record[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// DecodeRows parses a processed CSV into a feature matrix ordered by features
// and the price column. Any column in features missing from the file is
// domain.ErrMetadataMismatch.
func DecodeRows(r io.Reader, features []string) ([][]float64, []float64, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, domain.ErrEmptyDataset
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}
	idx := make([]int, len(features))
	for i, f := range features {
		p, ok := pos[f]
		if !ok {
			return nil, nil, fmt.Errorf("%w: column %q", domain.ErrMetadataMismatch, f)
		}
		idx[i] = p
	}
	target, ok := pos[domain.ColPrice]
	if !ok {
		return nil, nil, fmt.Errorf("%w: column %q", domain.ErrMetadataMismatch, domain.ColPrice)
	}

	var X [][]float64
	var y []float64
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read line %d: %w", line, err)
		}
		x := make([]float64, len(idx))
		for i, p := range idx {
			v, err := strconv.ParseFloat(record[p], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: line %d column %q", domain.ErrParseRow, line, features[i])
			}
			x[i] = v
		}
		price, err := strconv.ParseFloat(record[target], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d price", domain.ErrParseRow, line)
		}
		X = append(X, x)
		y = append(y, price)
	}
	return X, y, nil
}
