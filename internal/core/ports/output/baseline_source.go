package ports

import (
	"context"
)

// SnapshotRecord is one raw row of the anchor-year price dataset.
type SnapshotRecord struct {
	Neighborhood string
	District     string
	Price        string
}

// HistoryRecord is one raw row of the multi-year history dataset.
type HistoryRecord struct {
	Neighborhood string
	Prices       map[int]string // year -> raw price string
}

// BaselineSource fetches the external tabular datasets of the baseline builder.
type BaselineSource interface {
	FetchSnapshot(ctx context.Context) ([]SnapshotRecord, error)
	FetchHistory(ctx context.Context) ([]HistoryRecord, error)
}
