package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

const (
	chunkType       = "spectrum_chunk"
	scanStartedType = "new_scan_started"
)

// MessageKind identifies one of the wire shapes.
type MessageKind int

const (
	KindPoint  MessageKind = iota + 1 // {freq_mhz, dbm}
	KindChunk                         // {type: "spectrum_chunk", freqs_mhz, dbm_values}
	KindMarker                        // {event: "new_scan_started"}
	KindError                         // {error}
)

func (k MessageKind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindChunk:
		return "chunk"
	case KindMarker:
		return "marker"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

var (
	// ErrMalformed is returned for frames that match no known shape
	ErrMalformed = errors.New("malformed frame")
)

// Message is a decoded stream frame.
type Message struct {
	Kind   MessageKind
	Points []spectrum.Point
	Error  string
}

type wireMessage struct {
	FreqMHz   *float64  `json:"freq_mhz"`
	DBm       *float64  `json:"dbm"`
	Type      string    `json:"type"`
	FreqsMHz  []float64 `json:"freqs_mhz"`
	DBmValues []float64 `json:"dbm_values"`
	Event     string    `json:"event"`
	Error     *string   `json:"error"`
}

// DecodeMessage decodes a JSON frame into a Message.
func DecodeMessage(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	switch {
	case w.Error != nil:
		return Message{Kind: KindError, Error: *w.Error}, nil

	case w.Event != "":
		if w.Event != scanStartedType {
			return Message{}, fmt.Errorf("%w: unknown event '%s'", ErrMalformed, w.Event)
		}
		return Message{Kind: KindMarker}, nil

	case w.Type != "":
		if w.Type != chunkType {
			return Message{}, fmt.Errorf("%w: unknown type '%s'", ErrMalformed, w.Type)
		}
		if len(w.FreqsMHz) != len(w.DBmValues) {
			return Message{}, fmt.Errorf("%w: %d frequencies but %d power values", ErrMalformed, len(w.FreqsMHz), len(w.DBmValues))
		}

		points := make([]spectrum.Point, len(w.FreqsMHz))
		for i := range points {
			points[i] = spectrum.Point{Frequency: w.FreqsMHz[i], Power: w.DBmValues[i]}
		}
		return Message{Kind: KindChunk, Points: points}, nil

	case w.FreqMHz != nil && w.DBm != nil:
		return Message{Kind: KindPoint, Points: []spectrum.Point{{Frequency: *w.FreqMHz, Power: *w.DBm}}}, nil

	default:
		return Message{}, fmt.Errorf("%w: no known fields", ErrMalformed)
	}
}
