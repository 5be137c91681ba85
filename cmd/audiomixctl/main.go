// Command audiomixctl is a demo CLI wiring github.com/rustyguts/audiomix
// against the real PortAudio mixer and WAV/FLAC decoders.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := RootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// RootCommand builds the audiomixctl command tree.
func RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "audiomixctl",
		Short: "Demo CLI for the audiomix playback library",
	}
	root.PersistentFlags().String("config", "", "path to a YAML config file")
	_ = viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.AddCommand(listDevicesCommand())
	root.AddCommand(playCommand())
	root.AddCommand(serveCommand())
	return root
}

func configPath() string {
	if p := viper.GetString("config"); p != "" {
		return p
	}
	return "audiomix.yaml"
}
