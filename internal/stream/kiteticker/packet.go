package kiteticker

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"live-tick-excel/internal/models"
)

var ErrMalformedMessage = errors.New("malformed tick message")

// Exchange segments, taken from the low byte of the instrument token.
const (
	segmentNSECD   = 3
	segmentBSECD   = 6
	segmentIndices = 9
)

// Packet sizes by mode.
const (
	sizeLTP        = 8
	sizeIndexQuote = 28
	sizeIndexFull  = 32
	sizeQuote      = 44
	sizeFull       = 184
)

// ParseMessage decodes one binary ticker frame. Frames shorter than two
// bytes are heartbeats and yield no ticks. A packet of unknown layout is
// skipped and the rest of the frame still decodes; a frame cut short stops
// at the last whole packet. Either way the ticks decoded so far are returned
// alongside an ErrMalformedMessage error.
func ParseMessage(data []byte) ([]models.Tick, error) {
	if len(data) < 2 {
		return nil, nil
	}

	n := int(binary.BigEndian.Uint16(data[0:2]))
	ticks := make([]models.Tick, 0, n)
	var errs []error
	off := 2
	for i := 0; i < n; i++ {
		if off+2 > len(data) {
			errs = append(errs, fmt.Errorf("%w: packet %d header past end", ErrMalformedMessage, i))
			break
		}
		size := int(binary.BigEndian.Uint16(data[off : off+2]))
		off += 2
		if off+size > len(data) {
			errs = append(errs, fmt.Errorf("%w: packet %d of %d bytes past end", ErrMalformedMessage, i, size))
			break
		}

		t, err := parsePacket(data[off : off+size])
		off += size
		if err != nil {
			errs = append(errs, fmt.Errorf("packet %d: %w", i, err))
			continue
		}
		ticks = append(ticks, t)
	}
	return ticks, errors.Join(errs...)
}

func parsePacket(p []byte) (models.Tick, error) {
	if len(p) < sizeLTP {
		return models.Tick{}, fmt.Errorf("%w: %d byte packet", ErrMalformedMessage, len(p))
	}

	token := binary.BigEndian.Uint32(p[0:4])
	segment := token & 0xff
	div := divisor(segment)
	price := func(off int) models.Optional[float64] {
		return models.Some(float64(int32(binary.BigEndian.Uint32(p[off:off+4]))) / div)
	}
	quantity := func(off int) models.Optional[int64] {
		return models.Some(int64(binary.BigEndian.Uint32(p[off : off+4])))
	}

	f := models.TickFields{LastPrice: price(4)}

	switch {
	case len(p) == sizeLTP:
	case segment == segmentIndices && (len(p) == sizeIndexQuote || len(p) == sizeIndexFull):
		f.High = price(8)
		f.Low = price(12)
		f.Open = price(16)
		f.Close = price(20)
		if len(p) == sizeIndexFull {
			f.Timestamp = unixTime(p[28:32])
		}
	case len(p) == sizeQuote || len(p) == sizeFull:
		f.AveragePrice = price(12)
		f.Volume = quantity(16)
		f.BuyQuantity = quantity(20)
		f.SellQuantity = quantity(24)
		f.Open = price(28)
		f.High = price(32)
		f.Low = price(36)
		f.Close = price(40)
		if len(p) == sizeFull {
			f.OI = quantity(48)
			f.Timestamp = unixTime(p[60:64])
		}
	default:
		return models.Tick{}, fmt.Errorf("%w: unexpected %d byte packet for token %d",
			ErrMalformedMessage, len(p), token)
	}

	return models.Tick{Token: token, Fields: f}, nil
}

// divisor converts integer paise (or currency sub-units) to price.
func divisor(segment uint32) float64 {
	switch segment {
	case segmentNSECD:
		return 10000000.0
	case segmentBSECD:
		return 10000.0
	default:
		return 100.0
	}
}

func unixTime(b []byte) models.Optional[time.Time] {
	sec := binary.BigEndian.Uint32(b)
	if sec == 0 {
		return models.Optional[time.Time]{}
	}
	return models.Some(time.Unix(int64(sec), 0))
}
