package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pianoscribe",
	Short: "Piano audio to MIDI transcription",
	Long:  `Transcribes piano recordings into MIDI via chunked model inference.`,
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
