package dashboard

import "time"

// Scanner states reported by the dashboard.
const (
	ScannerActive = "Ativo"
	ScannerPaused = "Pausado"
)

// DeviceStatus is the state of the SDR attached to the dashboard host.
type DeviceStatus struct {
	Connected  bool   `json:"connected"`
	StatusText string `json:"status_text"`
}

// LogEntry is one line of the scheduler log.
type LogEntry struct {
	Timestamp string `json:"timestamp"` // local wall clock, HH:MM:SS
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// Pass is a predicted satellite pass.
type Pass struct {
	Name  string    `json:"name"`
	Start time.Time `json:"start_utc"`
	End   time.Time `json:"end_utc"`
}

// Status is the dashboard status document.
type Status struct {
	Scanner            string       `json:"scanner_status"`
	Device             DeviceStatus `json:"hackrf_status"`
	NextPass           *Pass        `json:"next_pass"`
	SchedulerLog       []LogEntry   `json:"scheduler_log"`
	ManualCapture      bool         `json:"manual_capture_active"`
	SchedulerCapturing bool         `json:"is_scheduler_capturing"`
}

// ScannerActive reports whether the satellite scanner is running.
func (s *Status) ScannerActive() bool {
	return s.Scanner == ScannerActive
}

// Capturing reports whether any capture, manual or scheduled, is running.
func (s *Status) Capturing() bool {
	return s.ManualCapture || s.SchedulerCapturing
}

// Signal is a completed capture.
type Signal struct {
	ID        int64   `json:"id"`
	Target    string  `json:"target"`
	Frequency float64 `json:"frequency"` // Hz
	Timestamp string  `json:"timestamp"`
	FilePath  string  `json:"filepath"`
	ImagePath *string `json:"image_path"`
}

// FrequencyMHz returns the capture frequency in MHz.
func (s *Signal) FrequencyMHz() float64 {
	return s.Frequency / 1e6
}

// ManualCapture requests a capture outside the pass schedule. Zero values
// are filled in by the server.
type ManualCapture struct {
	Name         string  `json:"name,omitempty"`
	FrequencyMHz float64 `json:"frequency_mhz"`
	DurationSec  int     `json:"duration_sec,omitempty"`
	SampleRate   int     `json:"sample_rate,omitempty"`
	Mode         string  `json:"mode,omitempty"`
	LNAGain      int     `json:"lna_gain,omitempty"`
	VGAGain      int     `json:"vga_gain,omitempty"`
	AmpEnabled   bool    `json:"amp_enabled"`
	ForceDecode  bool    `json:"force_decode"`
	DecoderType  string  `json:"decoder_type,omitempty"`
}
