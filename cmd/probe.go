package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/rollcall/internal/capture"
	"github.com/okian/rollcall/internal/config"
	"github.com/okian/rollcall/internal/recognition"
	"github.com/okian/rollcall/pkg/logger"
)

var probeFrames int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Capture frames once and print what the recognizer sees",
	Long: `Activate the configured camera, capture --frames stills, send each one
to the recognition endpoint and print the outcome. Nothing is written to the
live view. Useful for checking camera and upstream wiring.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.Init(logger.WithOutput(cmd.ErrOrStderr()), logger.WithJSON(jsonLogs)); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		ctx := cmd.Context()
		cfg, err := config.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		_ = logger.SetLevelString(cfg.LogLevel)

		device, err := newDevice(cfg)
		if err != nil {
			return err
		}
		client := recognition.NewClient(cfg.RecognitionURL, recognition.WithTimeout(cfg.RecognitionTimeout()))
		return runProbe(ctx, cmd.OutOrStdout(), device, capture.NewEncoder(encodeOptions(cfg)), client, probeFrames)
	},
}

func init() {
	probeCmd.Flags().IntVar(&probeFrames, "frames", 1, "Number of frames to capture")
	rootCmd.AddCommand(probeCmd)
}

// runProbe stops at the first capture error. Recognition failures are
// printed and do not end the run.
func runProbe(ctx context.Context, w io.Writer, device capture.Device, enc *capture.Encoder, rec recognition.Recognizer, frames int) error {
	if frames < 1 {
		frames = 1
	}

	h, err := device.Activate(ctx)
	if err != nil {
		return fmt.Errorf("activate camera: %w", err)
	}
	defer device.Deactivate(ctx)
	fmt.Fprintf(w, "camera %s opened (%s)\n", h.Source, h.ID)

	for i := 0; i < frames; i++ {
		raw, err := device.CaptureFrame(ctx)
		if err != nil {
			return fmt.Errorf("capture frame %d: %w", i+1, err)
		}
		frame, err := enc.Encode(raw)
		if err != nil {
			return fmt.Errorf("encode frame %d: %w", i+1, err)
		}

		result, err := rec.Recognize(ctx, frame)
		outcome := recognition.Classify(result, err)
		line := fmt.Sprintf("frame %d %dx%d %d bytes: %s", frame.Seq, frame.Width, frame.Height, len(frame.Data), outcome)
		switch outcome {
		case recognition.OutcomeMatched:
			line += " [" + strings.Join(result.Identities, ", ") + "]"
		case recognition.OutcomeTransportFailure:
			line += " (" + err.Error() + ")"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
