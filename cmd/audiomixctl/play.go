package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func playCommand() *cobra.Command {
	var category string
	var fadeIn float32
	var loop bool

	cmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Play a single sound file to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closeMixer, err := buildManager(configPath())
			if err != nil {
				return err
			}
			defer closeMixer()
			defer mgr.Destroy()

			mgr.CreateCategory(category, false)
			sound, err := mgr.CreateSound(args[0], category, "")
			if err != nil {
				return fmt.Errorf("create sound: %w", err)
			}

			src := sound.Play(fadeIn, loop)
			if src == nil {
				return fmt.Errorf("play: voice pool exhausted")
			}

			ticker := time.NewTicker(20 * time.Millisecond)
			defer ticker.Stop()
			for range ticker.C {
				mgr.Update(0.02)
				if !src.IsPlaying() && !src.IsPaused() {
					return nil
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "sfx", "category to create the sound under")
	cmd.Flags().Float32Var(&fadeIn, "fade-in", 0, "fade-in duration in seconds")
	cmd.Flags().BoolVar(&loop, "loop", false, "loop playback")
	return cmd
}
