// Command voiceclient drives the voice socket from the terminal: it streams
// a raw PCM16 recording to the companion and saves the spoken answer.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "voiceclient",
	Short:         "Talk to the companion's voice socket",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func main() {
	rootCmd.AddCommand(newStreamCmd(), newInspectCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
