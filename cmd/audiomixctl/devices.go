package main

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/spf13/cobra"
)

func listDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-devices",
		Short: "List available PortAudio output devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := portaudio.Initialize(); err != nil {
				return err
			}
			defer portaudio.Terminate()

			devices, err := portaudio.Devices()
			if err != nil {
				return err
			}
			for i, d := range devices {
				if d.MaxOutputChannels > 0 {
					fmt.Printf("%d: %s (%d channels, %.0f Hz)\n", i, d.Name, d.MaxOutputChannels, d.DefaultSampleRate)
				}
			}
			return nil
		},
	}
}
