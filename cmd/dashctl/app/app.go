package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/spectrum-watch/internal/dashboard"
)

// Commands is the command summary printed by the usage message.
const Commands = `Commands:
  status                 scanner, device and next pass
  passes                 predicted passes
  signals                completed captures
  signal <id>            one capture
  delete <id>            delete a capture and its files
  capture [flags] <MHz>  start a manual capture
  toggle                 pause or resume the scanner
`

// ErrUsage is returned for an unknown command or bad arguments.
var ErrUsage = errors.New("invalid usage")

// Run executes a single dashboard command and prints the result to out.
func Run(ctx context.Context, client *dashboard.Client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command given", ErrUsage)
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "status":
		return printStatus(ctx, client, out)
	case "passes":
		return printPasses(ctx, client, out)
	case "signals":
		return printSignals(ctx, client, out)
	case "signal":
		id, err := signalID(args)
		if err != nil {
			return err
		}
		sig, err := client.Signal(ctx, id)
		if err != nil {
			return err
		}
		return writeSignals(out, []dashboard.Signal{*sig})
	case "delete":
		id, err := signalID(args)
		if err != nil {
			return err
		}
		if err = client.DeleteSignal(ctx, id); err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "Signal %d deleted.\n", id)
		return err
	case "capture":
		return startCapture(ctx, client, args, out)
	case "toggle":
		state, err := client.ToggleScanner(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "Scanner %s.\n", state)
		return err
	default:
		return fmt.Errorf("%w: unknown command '%s'", ErrUsage, cmd)
	}
}

func signalID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: expected a signal id", ErrUsage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid signal id '%s'", ErrUsage, args[0])
	}
	return id, nil
}

func printStatus(ctx context.Context, client *dashboard.Client, out io.Writer) error {
	s, err := client.Status(ctx)
	if err != nil {
		return err
	}

	device := "disconnected"
	if s.Device.Connected {
		device = "connected"
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Scanner:\t%s\n", s.Scanner)
	fmt.Fprintf(w, "Device:\t%s (%s)\n", s.Device.StatusText, device)
	fmt.Fprintf(w, "Capturing:\t%t\n", s.Capturing())
	if s.NextPass != nil {
		fmt.Fprintf(w, "Next pass:\t%s %s\n", s.NextPass.Name, humanize.Time(s.NextPass.Start))
	}
	for _, entry := range s.SchedulerLog {
		fmt.Fprintf(w, "%s\t[%s] %s\n", entry.Timestamp, entry.Level, entry.Message)
	}
	return w.Flush()
}

func printPasses(ctx context.Context, client *dashboard.Client, out io.Writer) error {
	passes, err := client.Passes(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTART\tDURATION\t")
	for _, p := range passes {
		fmt.Fprintf(w, "%s\t%s (%s)\t%s\t\n",
			p.Name,
			p.Start.Local().Format(time.DateTime),
			humanize.Time(p.Start),
			p.End.Sub(p.Start).Round(time.Second),
		)
	}
	return w.Flush()
}

func printSignals(ctx context.Context, client *dashboard.Client, out io.Writer) error {
	signals, err := client.Signals(ctx)
	if err != nil {
		return err
	}
	return writeSignals(out, signals)
}

func writeSignals(out io.Writer, signals []dashboard.Signal) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTARGET\tMHz\tTIME\tFILE\tIMAGE\t")
	for _, s := range signals {
		image := "-"
		if s.ImagePath != nil {
			image = *s.ImagePath
		}
		fmt.Fprintf(w, "%d\t%s\t%.3f\t%s\t%s\t%s\t\n", s.ID, s.Target, s.FrequencyMHz(), s.Timestamp, s.FilePath, image)
	}
	return w.Flush()
}

func startCapture(ctx context.Context, client *dashboard.Client, args []string, out io.Writer) error {
	var req dashboard.ManualCapture

	fs := flag.NewFlagSet("capture", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&req.Name, "name", "", "Capture name")
	fs.IntVar(&req.DurationSec, "duration", 0, "Capture length in seconds")
	fs.IntVar(&req.SampleRate, "rate", 0, "Sample rate in Hz")
	fs.StringVar(&req.Mode, "mode", "", "Capture mode, e.g. RAW or FM")
	fs.IntVar(&req.LNAGain, "lna", 0, "LNA gain in dB")
	fs.IntVar(&req.VGAGain, "vga", 0, "VGA gain in dB")
	fs.BoolVar(&req.AmpEnabled, "amp", false, "Enable the RF amplifier")
	fs.BoolVar(&req.ForceDecode, "decode", false, "Decode the capture when it completes")
	fs.StringVar(&req.DecoderType, "decoder", "", "Decoder to use with -decode")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("%w: expected a frequency in MHz", ErrUsage)
	}
	freq, err := strconv.ParseFloat(fs.Arg(0), 64)
	if err != nil || freq <= 0 {
		return fmt.Errorf("%w: invalid frequency '%s'", ErrUsage, fs.Arg(0))
	}
	req.FrequencyMHz = freq

	if err = client.StartManualCapture(ctx, req); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Capture started at %s.\n", formatMHz(freq))
	return err
}

func formatMHz(mhz float64) string {
	v, prefix := humanize.ComputeSI(mhz * 1e6)
	return humanize.FtoaWithDigits(v, 3) + " " + prefix + "Hz"
}
