package audiomix

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape loaded by the audiomixctl CLI. It mirrors
// Config but uses plain field types that marshal cleanly to YAML (a
// time.Duration string instead of a Go duration literal, sound paths/
// categories instead of a bound Mixer).
type FileConfig struct {
	DeviceName     string         `yaml:"device_name"`
	Threaded       bool           `yaml:"threaded"`
	UpdateInterval string         `yaml:"update_interval"`
	MaxVoices      int            `yaml:"max_voices"`
	SoundPaths     []SoundPathCfg `yaml:"sound_paths"`
}

// SoundPathCfg names a directory to bulk-load at startup. Category is
// optional; when empty, CreateSoundsFromPath derives one category per
// immediate subdirectory.
type SoundPathCfg struct {
	Path     string `yaml:"path"`
	Category string `yaml:"category,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// DefaultFileConfig returns the configuration used when no file is present.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		DeviceName:     "default",
		Threaded:       true,
		UpdateInterval: DefaultUpdateInterval.String(),
		MaxVoices:      DefaultMaxVoices,
	}
}

// LoadFileConfig reads a YAML config from path. A missing file is not an
// error: the defaults are returned instead, matching the "defaults first,
// override if present" convention the rest of the stack uses for
// persistent preferences.
func LoadFileConfig(path string) (FileConfig, error) {
	cfg := DefaultFileConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ToManagerConfig converts the file shape into a Manager Config, with mixer
// supplied by the caller (the CLI wires in the PortAudio adapter; tests wire
// in a fake).
func (fc FileConfig) ToManagerConfig(mixer MixerBackend) (Config, error) {
	interval := DefaultUpdateInterval
	if fc.UpdateInterval != "" {
		d, err := time.ParseDuration(fc.UpdateInterval)
		if err != nil {
			return Config{}, err
		}
		interval = d
	}
	return Config{
		DeviceName:     fc.DeviceName,
		Threaded:       fc.Threaded,
		UpdateInterval: interval,
		MaxVoices:      fc.MaxVoices,
		Mixer:          mixer,
	}, nil
}
