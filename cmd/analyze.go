package cmd

import (
	"context"
	"fmt"

	"github.com/jsphweid/pianoscribe/audio"
	"github.com/jsphweid/pianoscribe/chunk"
	"github.com/jsphweid/pianoscribe/config"
	"github.com/jsphweid/pianoscribe/constants"
	"github.com/jsphweid/pianoscribe/feature"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <input-audio>",
	Short: "Reports the feature and window plan for an audio file",
	Long:  `Reports the feature and window plan for an audio file`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return analyze(args[0])
	},
}

func analyze(path string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	waveform, err := audio.NewFFmpeg(cfg).Decode(context.Background(), path)
	if err != nil {
		return err
	}

	waveform = audio.Normalize(waveform, cfg)
	feats, err := feature.NewExtractor(cfg).Extract(waveform)
	if err != nil {
		return err
	}
	windows := chunk.Schedule(len(feats), cfg.WindowFrames(), cfg.OverlapFrames())

	fmt.Printf("duration:   %.2fs\n", waveform.Seconds())
	fmt.Printf("rms:        %.4f\n", audio.RMS(waveform.Samples))
	fmt.Printf("frames:     %v (%.2f fps)\n", len(feats), constants.FrameRate)
	fmt.Printf("windows:    %v of %v frames, overlap %v frames\n",
		len(windows), cfg.WindowFrames(), cfg.OverlapFrames())
	for _, w := range windows {
		fmt.Printf("  window %v: frames %v..%v\n", w.Index, w.Start, w.End())
	}
	return nil
}
