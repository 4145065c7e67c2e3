package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jsphweid/pianoscribe/audio"
	"github.com/jsphweid/pianoscribe/config"
	"github.com/jsphweid/pianoscribe/infer"
	"github.com/jsphweid/pianoscribe/job"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(transcribeCmd)
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <input-audio> <output.mid>",
	Short: "Transcribes an audio file to MIDI",
	Long:  `Transcribes an audio file to MIDI`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transcribe(args[0], args[1])
	},
}

func transcribe(inPath, outPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	waveform, err := audio.NewFFmpeg(cfg).Decode(ctx, inPath)
	if err != nil {
		return err
	}
	if err := audio.ValidateDuration(waveform, cfg); err != nil {
		return err
	}

	result, midiBytes, degraded, err := job.Transcribe(ctx, cfg, infer.NewFluxModel(), waveform, func(progress int, message string) {
		fmt.Printf("[%3d%%] %s\n", progress, message)
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(outPath, midiBytes, 0644); err != nil {
		return err
	}

	fmt.Printf("Wrote %v notes to %v\n", len(result.Notes), outPath)
	if degraded > 0 {
		fmt.Printf("Warning: %v window(s) degraded to silence\n", degraded)
	}
	return nil
}
