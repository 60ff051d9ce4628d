package stream

import (
	"errors"
	"testing"
)

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		kind   MessageKind
		points int
		errMsg string
	}{
		{name: "point", data: `{"freq_mhz": 2412.5, "dbm": -61.2}`, kind: KindPoint, points: 1},
		{name: "zero point", data: `{"freq_mhz": 0, "dbm": 0}`, kind: KindPoint, points: 1},
		{name: "chunk", data: `{"type": "spectrum_chunk", "freqs_mhz": [2401, 2400, 2402], "dbm_values": [-70, -71, -72]}`, kind: KindChunk, points: 3},
		{name: "empty chunk", data: `{"type": "spectrum_chunk", "freqs_mhz": [], "dbm_values": []}`, kind: KindChunk},
		{name: "marker", data: `{"event": "new_scan_started"}`, kind: KindMarker},
		{name: "error", data: `{"error": "Ocorreu um erro inesperado no servidor."}`, kind: KindError, errMsg: "Ocorreu um erro inesperado no servidor."},
		{name: "empty error", data: `{"error": ""}`, kind: KindError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tc.data))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if msg.Kind != tc.kind {
				t.Errorf("Expected kind %s, got %s", tc.kind, msg.Kind)
			}
			if len(msg.Points) != tc.points {
				t.Errorf("Expected %d points, got %d", tc.points, len(msg.Points))
			}
			if msg.Error != tc.errMsg {
				t.Errorf("Expected error %q, got %q", tc.errMsg, msg.Error)
			}
		})
	}
}

func TestDecodeMessage_ChunkPairs(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"type": "spectrum_chunk", "freqs_mhz": [2450, 2410], "dbm_values": [-40, -80]}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if msg.Points[0].Frequency != 2450 || msg.Points[0].Power != -40 {
		t.Errorf("Unexpected first point: %+v", msg.Points[0])
	}
	if msg.Points[1].Frequency != 2410 || msg.Points[1].Power != -80 {
		t.Errorf("Unexpected second point: %+v", msg.Points[1])
	}
}

func TestDecodeMessage_Malformed(t *testing.T) {
	for _, data := range []string{
		`not json`,
		`{}`,
		`{"freq_mhz": 2412}`,
		`{"type": "spectrum_chunk", "freqs_mhz": [1, 2], "dbm_values": [-1]}`,
		`{"type": "waterfall"}`,
		`{"event": "scan_paused"}`,
	} {
		if _, err := DecodeMessage([]byte(data)); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: expected ErrMalformed, got %v", data, err)
		}
	}
}
