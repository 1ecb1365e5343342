package export

import (
	"bytes"
	"testing"
	"time"

	"live-tick-excel/internal/models"
	"live-tick-excel/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestRowsFormatting(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 45, 123456000, time.UTC)

	testCases := []struct {
		name     string
		record   models.TickFields
		expected []string
	}{
		{
			name:     "no tick yet renders empty cells",
			record:   models.TickFields{},
			expected: []string{"INFY", "408065", "", "", "", "", "", "", "", "", "", "", ""},
		},
		{
			name: "prices get two decimals, integers stay as-is",
			record: models.TickFields{
				Timestamp:    models.Some(ts),
				LastPrice:    models.Some(123.4),
				Open:         models.Some(120.0),
				High:         models.Some(125.555),
				Low:          models.Some(119.999),
				Close:        models.Some(121.1),
				Volume:       models.Some(int64(500)),
				AveragePrice: models.Some(122.345),
				OI:           models.Some(int64(0)),
				BuyQuantity:  models.Some(int64(1200)),
				SellQuantity: models.Some(int64(800)),
			},
			expected: []string{
				"INFY", "408065", "123.40", "2024-01-15 10:30:45.123456",
				"120.00", "125.56", "120.00", "121.10", "500", "122.34", "0", "1200", "800",
			},
		},
		{
			name: "zero is a value, not absence",
			record: models.TickFields{
				LastPrice: models.Some(0.0),
				Volume:    models.Some(int64(0)),
			},
			expected: []string{"INFY", "408065", "0.00", "", "", "", "", "", "0", "", "", "", ""},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			reg := registry.New()
			require.NoError(t, reg.Register(408065, "INFY"))
			reg.ApplyTick(408065, tt.record)

			rows := NewReader(reg, time.UTC).Rows()

			require.Len(t, rows, 2)
			assert.Equal(t, Header, rows[0])
			assert.Equal(t, tt.expected, rows[1])
		})
	}
}

func TestRowsEmptyRegistry(t *testing.T) {
	rows := NewReader(registry.New(), nil).Rows()

	assert.Equal(t, [][]string{Header}, rows)
}

func TestRowsEndToEnd(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 15, 0, 250000000, time.UTC)
	reg := registry.New()
	require.NoError(t, reg.Register(256265, "NIFTY 50"))
	require.NoError(t, reg.Register(408065, "INFY"))

	reg.ApplyTick(256265, models.TickFields{
		LastPrice: models.Some(19500.1),
		Timestamp: models.Some(ts),
	})
	rows := NewReader(reg, time.UTC).Rows()

	require.Len(t, rows, 3)
	assert.Equal(t, "NIFTY 50", rows[1][0])
	assert.Equal(t, "19500.10", rows[1][2])
	assert.Equal(t, "2024-03-01 09:15:00.250000", rows[1][3])
	assert.Equal(t, "INFY", rows[2][0])
	for i := 2; i < len(Header); i++ {
		assert.Equal(t, "", rows[2][i], Header[i])
	}
}

func TestRowsHeaderIsNotShared(t *testing.T) {
	rows := NewReader(registry.New(), nil).Rows()
	rows[0][0] = "changed"

	assert.Equal(t, "Instrument_Name", Header[0])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	rows := [][]string{
		{"Instrument_Name", "Last_Price"},
		{"NIFTY 50", "19500.10"},
		{"M&M, LTD", ""},
	}

	require.NoError(t, WriteCSV(&buf, rows))

	assert.Equal(t, "Instrument_Name,Last_Price\nNIFTY 50,19500.10\n\"M&M, LTD\",\n", buf.String())
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	rows := [][]string{
		{"Instrument_Name", "Last_Price"},
		{"NIFTY 50", "19500.10"},
	}

	require.NoError(t, WriteXLSX(&buf, rows, "live_prices"))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetRows("live_prices")
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}
