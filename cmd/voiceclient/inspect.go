package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"calma/backend/internal/audio"
)

func newInspectCmd() *cobra.Command {
	var rate int
	cmd := &cobra.Command{
		Use:   "inspect <file.pcm>",
		Short: "Print the length of a raw PCM16 mono file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			info, err := inspect(f, rate)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "samples=%d rate=%d duration=%s peak=%.3f\n",
				info.Samples, rate, info.Duration, info.Peak)
			return nil
		},
	}
	cmd.Flags().IntVar(&rate, "rate", audio.OutputSampleRate, "sample rate in Hz")
	return cmd
}

type pcmInfo struct {
	Samples  int
	Duration time.Duration
	Peak     float32
}

func inspect(r io.Reader, rate int) (pcmInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return pcmInfo{}, err
	}
	samples, err := audio.DecodePCM16(data)
	if err != nil {
		return pcmInfo{}, err
	}

	info := pcmInfo{Samples: len(samples), Duration: audio.Duration(len(samples), rate)}
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > info.Peak {
			info.Peak = s
		}
	}
	return info, nil
}
