package usecase

import (
	"context"

	"live-tick-excel/internal/ingest"
	"live-tick-excel/internal/stream"
)

type UsecaseItf interface {
	GetSnapshot(context.Context) ([][]string, error)
	GetStatus(context.Context) (Status, error)
}

// RowSource renders the current registry snapshot as table rows.
type RowSource interface {
	Rows() [][]string
}

type StreamStatus interface {
	Status() stream.Status
}

type IngestStats interface {
	Stats() ingest.Stats
}

type Status struct {
	Instruments int
	Stream      stream.Status
	Ingest      ingest.Stats
}

type Usecase struct {
	rows        RowSource
	stream      StreamStatus
	ingest      IngestStats
	instruments int
}

func NewUsecase(rows RowSource, stream StreamStatus, ingest IngestStats, instruments int) *Usecase {
	return &Usecase{rows: rows, stream: stream, ingest: ingest, instruments: instruments}
}

// GetSnapshot returns the header row followed by one row per instrument.
// It never blocks on the stream; the registry hands out a copy.
func (uc *Usecase) GetSnapshot(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return uc.rows.Rows(), nil
}

func (uc *Usecase) GetStatus(ctx context.Context) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}
	return Status{
		Instruments: uc.instruments,
		Stream:      uc.stream.Status(),
		Ingest:      uc.ingest.Stats(),
	}, nil
}
