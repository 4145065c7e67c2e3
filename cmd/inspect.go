package cmd

import (
	"fmt"

	"github.com/jsphweid/pianoscribe/constants"
	"github.com/jsphweid/pianoscribe/midi"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid>",
	Short: "Inspects a MIDI file's note events",
	Long:  `Inspects a MIDI file's note events`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspect(args[0])
	},
}

func inspect(path string) error {
	s, err := midi.ReadFile(path)
	if err != nil {
		return err
	}

	notes := midi.NotesFromSMF(s)
	for _, n := range notes {
		fmt.Printf("note %3d  on %8.3fs  off %8.3fs  vel %3d\n",
			int(n.Pitch)+constants.MinMidiNote, n.Onset, n.Offset, n.Velocity)
	}
	fmt.Printf("%v notes total\n", len(notes))
	return nil
}
