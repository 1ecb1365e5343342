package dto

import (
	"time"

	"live-tick-excel/internal/ingest"
	"live-tick-excel/internal/stream"
)

// Res is the envelope of every JSON response.
type Res struct {
	Success bool `json:"success"`
	Error   any  `json:"error"`
	Data    any  `json:"data"`
}

type ErrorType struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// GetSnapshot

type GetSnapshotReq struct {
	Format string `form:"format" binding:"omitempty,oneof=json csv xlsx"`
}

type GetSnapshotRes struct {
	Columns     []string   `json:"columns"`
	Rows        [][]string `json:"rows"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// GetHealth

type GetHealthRes struct {
	Instruments int           `json:"instruments"`
	Stream      stream.Status `json:"stream"`
	Ingest      ingest.Stats  `json:"ingest"`
}
