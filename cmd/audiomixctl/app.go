package main

import (
	"fmt"
	"log"

	"github.com/rustyguts/audiomix"
	"github.com/rustyguts/audiomix/internal/decoder"
	"github.com/rustyguts/audiomix/internal/mixer"
)

const (
	demoSampleRate = 48000
	demoChannels   = 2
)

// buildManager loads the YAML config at path and constructs a Manager wired
// to the real PortAudio mixer and the WAV/FLAC decoder adapters. The caller
// owns the returned closeMixer func and must call it after mgr.Destroy().
func buildManager(path string) (mgr *audiomix.Manager, closeMixer func() error, err error) {
	cfg, err := audiomix.LoadFileConfig(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	var pam *mixer.PortAudioMixer
	if cfg.DeviceName != audiomix.NoSoundDevice {
		pam, err = mixer.New(demoSampleRate, demoChannels)
		if err != nil {
			return nil, nil, fmt.Errorf("open mixer: %w", err)
		}
	}

	managerCfg, err := cfg.ToManagerConfig(pam)
	if err != nil {
		if pam != nil {
			pam.Close()
		}
		return nil, nil, fmt.Errorf("build manager config: %w", err)
	}

	mgr, err = audiomix.New(managerCfg)
	if err != nil {
		if pam != nil {
			pam.Close()
		}
		return nil, nil, fmt.Errorf("init manager: %w", err)
	}

	mgr.RegisterDecoder(".wav", decoder.WAV{})
	mgr.RegisterDecoder(".flac", decoder.FLAC{})

	for _, sp := range cfg.SoundPaths {
		if _, err := mgr.CreateSoundsFromPath(sp.Path, sp.Category, sp.Prefix); err != nil {
			log.Printf("[audiomixctl] load sound path %q: %v", sp.Path, err)
		}
	}

	closeFn := func() error {
		if pam != nil {
			return pam.Close()
		}
		return nil
	}
	return mgr, closeFn, nil
}
