// Package store implements the Chunked Column Store from spec.md §4.3: a
// persistent, time-oriented array keyed by (variable, location chunk,
// time chunk), plus the per-forecast-hour space files that stage data
// before it is transposed into that array.
package store

import (
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// naNSentinel is the quantised-integer stand-in for a missing value. Real
// quantised values never reach the low end of int32 range for any
// scalefactor/physical-range combination this catalogue uses.
const naNSentinel int32 = math.MinInt32

// quantize converts floats to scalefactor-quantised integers, mapping NaN
// to naNSentinel.
func quantize(values []float64, scalefactor float64) []int32 {
	out := make([]int32, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = naNSentinel
			continue
		}
		out[i] = int32(math.Round(v * scalefactor))
	}
	return out
}

// dequantize is quantize's inverse.
func dequantize(values []int32, scalefactor float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v == naNSentinel {
			out[i] = math.NaN()
			continue
		}
		out[i] = float64(v) / scalefactor
	}
	return out
}

// payload is the msgpack-serialised, zstd-compressed unit both space
// files and column-store chunks are built from — the same artifact shape
// the example corpus's HRRR ingest path uses for its msgpack+zstd
// weather-sample objects.
type payload struct {
	Shape       []int
	Scalefactor float64
	Quantized   []int32
}

func encodePayload(shape []int, scalefactor float64, values []float64) ([]byte, error) {
	p := payload{Shape: shape, Scalefactor: scalefactor, Quantized: quantize(values, scalefactor)}

	raw, err := msgpack.Marshal(&p)
	if err != nil {
		return nil, fmt.Errorf("store: marshal payload: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("store: zstd writer: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

func decodePayload(data []byte) (shape []int, scalefactor float64, values []float64, err error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("store: zstd reader: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("store: zstd decompress: %w", err)
	}

	var p payload
	if err := msgpack.Unmarshal(raw, &p); err != nil {
		return nil, 0, nil, fmt.Errorf("store: unmarshal payload: %w", err)
	}

	return p.Shape, p.Scalefactor, dequantize(p.Quantized, p.Scalefactor), nil
}
