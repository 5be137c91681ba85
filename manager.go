package audiomix

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// NoSoundDevice is the sentinel device name that disables the backend
	// entirely: Manager remains constructed but IsEnabled reports false and
	// all playback calls become no-ops.
	NoSoundDevice = "nosound"

	// DefaultMaxVoices is used when Config.MaxVoices is left at zero.
	DefaultMaxVoices = 32

	// DefaultUpdateInterval is used when Config.UpdateInterval is left at zero.
	DefaultUpdateInterval = 20 * time.Millisecond
)

// Config configures Manager.Init (or New).
type Config struct {
	DeviceName     string
	Threaded       bool
	UpdateInterval time.Duration
	MaxVoices      int
	LogFunc        LogFunc
	// Mixer lets a caller supply a concrete MixerBackend (e.g. the PortAudio
	// adapter in internal/mixer). Nil and DeviceName != "nosound" is an
	// error — the library never guesses a backend.
	Mixer MixerBackend
}

// Manager is the singleton audio manager: voice-ID pool, category registry,
// sound registry, live Source collection and the periodic update pump.
// Sources and SoundBuffers never point back into each other for lifetime
// purposes; the Manager is the sole owner of both, and the Source->Sound
// relationship and the Sound->sources back-reference are just references
// resolved through it, avoiding the original's raw-pointer cycles.
type Manager struct {
	mu sync.RWMutex

	deviceName string
	enabled    bool
	mixer      MixerBackend

	globalGain float32

	voicePool []VoiceID
	categories map[string]*Category
	sounds     map[string]*SoundBuffer
	sources    map[*Source]struct{}

	decoders *decoderRegistry
	metrics  *Metrics
	logFunc  atomic.Pointer[LogFunc]

	updateInterval time.Duration
	threaded       bool
	stopCh         chan struct{}
	wg             sync.WaitGroup
}

// New constructs and initializes a Manager. Callers hold the returned
// handle explicitly rather than reaching for a hidden package-level global.
func New(cfg Config) (*Manager, error) {
	m := &Manager{
		deviceName: cfg.DeviceName,
		globalGain: 1.0,
		categories: make(map[string]*Category),
		sounds:     make(map[string]*SoundBuffer),
		sources:    make(map[*Source]struct{}),
		decoders:   newDecoderRegistry(),
		metrics:    newMetrics(),
	}
	lf := cfg.LogFunc
	if lf == nil {
		lf = defaultLogFunc
	}
	m.logFunc.Store(&lf)

	maxVoices := cfg.MaxVoices
	if maxVoices <= 0 {
		maxVoices = DefaultMaxVoices
	}
	interval := cfg.UpdateInterval
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	m.updateInterval = interval
	m.threaded = cfg.Threaded

	m.logf("initializing audiomix")
	if cfg.DeviceName == NoSoundDevice {
		m.logf("audio is disabled")
		m.mixer = nullMixer{}
		m.enabled = false
	} else {
		if cfg.Mixer == nil {
			return nil, fmt.Errorf("audiomix: Config.Mixer is required when DeviceName != %q", NoSoundDevice)
		}
		m.mixer = cfg.Mixer
		m.enabled = true
	}

	voices, err := m.mixer.AllocateVoices(maxVoices)
	if err != nil {
		return nil, fmt.Errorf("audiomix: allocate voices: %w", err)
	}
	m.voicePool = voices

	if m.threaded {
		m.logf("starting update thread")
		m.stopCh = make(chan struct{})
		m.wg.Add(1)
		go m.pump()
	}
	return m, nil
}

// IsEnabled reports whether a live mixer device backs this manager.
func (m *Manager) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Metrics returns the manager's prometheus collectors for registration by
// the host process. Never nil.
func (m *Manager) Metrics() *Metrics { return m.metrics }

// RegisterMetrics registers the manager's collectors on reg. Convenience
// wrapper around Metrics().Register for callers that don't need the
// collectors themselves.
func (m *Manager) RegisterMetrics(reg prometheus.Registerer) error {
	return m.metrics.Register(reg)
}

func (m *Manager) pump() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.updateInterval)
	defer ticker.Stop()
	dt := float32(m.updateInterval.Seconds())
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Update(dt)
		}
	}
}

// Destroy stops the update thread (if any), stops and tears down every live
// source, and releases the registries. Destruction is top-down from the
// manager, never from a Source or SoundBuffer destructor.
func (m *Manager) Destroy() {
	if m.threaded {
		close(m.stopCh)
		m.wg.Wait()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for src := range m.sources {
		src.locked = false
		src.stop(0)
	}
	for src := range m.sources {
		delete(m.sources, src)
	}
	m.sounds = make(map[string]*SoundBuffer)
	m.categories = make(map[string]*Category)
	m.logf("destroyed")
}

// GlobalGain returns the current global gain multiplier.
func (m *Manager) GlobalGain() float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.globalGainLocked()
}

// globalGainLocked reads globalGain without taking the lock, for callers
// (pushGain, reached via play/update/SetGlobalGain/SetCategoryGain) that
// already hold m.mu on the calling goroutine.
func (m *Manager) globalGainLocked() float32 {
	return m.globalGain
}

// SetGlobalGain updates the stored global gain and immediately pushes the
// recomputed final gain to every live voice.
func (m *Manager) SetGlobalGain(v float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.globalGain = clamp01(v)
	for src := range m.sources {
		src.pushGain()
	}
}

// SetCategoryGain updates a category's gain and pushes the recomputed final
// gain to every live voice whose Source belongs to that category.
func (m *Manager) SetCategoryGain(name string, v float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cat, ok := m.categories[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrCategoryMissing, name)
	}
	cat.setGain(clamp01(v))
	for src := range m.sources {
		if src.sound.category == cat {
			src.pushGain()
		}
	}
	return nil
}

// CategoryGain returns the current gain of the named category.
func (m *Manager) CategoryGain(name string) (float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cat, ok := m.categories[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrCategoryMissing, name)
	}
	return cat.Gain(), nil
}

// CreateCategory is idempotent: if name already exists, the call is a no-op
// and the existing streamed flag is kept (first definition wins).
func (m *Manager) CreateCategory(name string, streamed bool) *Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cat, ok := m.categories[name]; ok {
		return cat
	}
	cat := newCategory(name, streamed)
	m.categories[name] = cat
	return cat
}

func (m *Manager) categoryByName(name string) (*Category, error) {
	cat, ok := m.categories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCategoryMissing, name)
	}
	return cat, nil
}

// CreateSound loads filename under categoryName, selecting a streaming or
// static SoundBuffer by the category's policy, and registers it under its
// derived name (prefix + base filename without extension). Returns
// ErrCategoryMissing if categoryName was never created, or a wrapped
// ErrAssetLoadFailure if decode/stream-open fails.
func (m *Manager) CreateSound(filename, categoryName, prefix string) (*SoundBuffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cat, err := m.categoryByName(categoryName)
	if err != nil {
		return nil, err
	}

	kind := kindStatic
	if cat.Streamed() {
		kind = kindStreaming
	}
	sb := &SoundBuffer{
		mgr:             m,
		name:            soundNameFor(filename, prefix),
		virtualFileName: filename,
		category:        cat,
		kind:            kind,
		sources:         make(map[*Source]struct{}),
	}
	if err := sb.load(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssetLoadFailure, err)
	}
	m.sounds[sb.name] = sb
	return sb, nil
}

// GetSound returns the asset registered under name, or nil.
func (m *Manager) GetSound(name string) *SoundBuffer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sounds[name]
}

// RequireSound is GetSound with an explicit ErrSoundMissing instead of a nil
// return, for callers that want errors.Is-style handling.
func (m *Manager) RequireSound(name string) (*SoundBuffer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sb, ok := m.sounds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSoundMissing, name)
	}
	return sb, nil
}

// DestroySound stops every Source bound to sound, removes it from the
// registry and discards it.
func (m *Manager) DestroySound(sound *SoundBuffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroySoundLocked(sound)
}

// DestroySoundByName looks sound up by name before destroying it, returning
// ErrSoundMissing if no sound is registered under that name.
func (m *Manager) DestroySoundByName(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sb, ok := m.sounds[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSoundMissing, name)
	}
	m.destroySoundLocked(sb)
	return nil
}

func (m *Manager) destroySoundLocked(sound *SoundBuffer) {
	for src := range sound.sources {
		src.locked = false
		src.stop(0)
	}
	delete(m.sounds, sound.name)
}

// DestroySoundsWithPrefix removes and tears down every registered sound
// whose name starts with prefix.
func (m *Manager) DestroySoundsWithPrefix(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, sb := range m.sounds {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			m.destroySoundLocked(sb)
		}
	}
}

// allocateVoiceID returns a voice ID from the pool not currently used by any
// live Source, or 0 when the pool is exhausted. O(N*M) but N (pool size) and
// M (live sources) are small bounded constants.
func (m *Manager) allocateVoiceID() VoiceID {
	used := make(map[VoiceID]struct{}, len(m.sources))
	for src := range m.sources {
		if src.voiceID != 0 {
			used[src.voiceID] = struct{}{}
		}
	}
	for _, id := range m.voicePool {
		if _, taken := used[id]; !taken {
			return id
		}
	}
	return 0
}

func (m *Manager) createSource(sound *SoundBuffer) *Source {
	src := newSource(m, sound)
	m.sources[src] = struct{}{}
	return src
}

func (m *Manager) destroySourceLocked(src *Source) {
	delete(m.sources, src)
}

func (m *Manager) markForDestruction(src *Source) {
	// The sweep in Update removes any source reporting !bound; nothing to do
	// here beyond what unbind already changed (voiceID == 0), but keeping a
	// named hook gives tests a place to observe teardown without reaching
	// into Update directly.
}

// Update is the pump tick: advance every live Source's fade envelope and
// stream refill, then sweep away any Source that is no longer bound (and
// not paused or locked).
func (m *Manager) Update(dt float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled {
		return
	}
	for src := range m.sources {
		src.update(dt)
	}
	for src := range m.sources {
		if !src.isBound() && !src.paused && !src.locked {
			src.sound.removeSource(src)
			delete(m.sources, src)
		}
	}
	m.metrics.setActiveVoices(m.activeVoiceCountLocked())
}

func (m *Manager) activeVoiceCountLocked() int {
	n := 0
	for src := range m.sources {
		if src.isBound() {
			n++
		}
	}
	return n
}

// StopAll unlocks and stops every live source.
func (m *Manager) StopAll(fadeTime float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for src := range m.sources {
		src.locked = false
		src.stop(fadeTime)
	}
}

// StopCategory unlocks and stops every live source whose sound belongs to
// the named category.
func (m *Manager) StopCategory(name string, fadeTime float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cat, err := m.categoryByName(name)
	if err != nil {
		return err
	}
	for src := range m.sources {
		if src.sound.category == cat {
			src.locked = false
			src.stop(fadeTime)
		}
	}
	return nil
}

// RegisterDecoder adds or replaces the Decoder used for files with the given
// extension (case-insensitive, including the leading dot, e.g. ".wav").
func (m *Manager) RegisterDecoder(ext string, d Decoder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decoders.register(ext, d)
}

// PlaySound is a one-shot convenience: it looks sound up by name and plays
// it immediately. It returns ErrSoundMissing if name is not registered and
// ErrDeviceDisabled if the manager has no live mixer device, since a caller
// using the name-based API has no SoundBuffer handle to fall back to.
func (m *Manager) PlaySound(name string, fadeTime float32, looping bool) (*Source, error) {
	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return nil, ErrDeviceDisabled
	}
	sb, ok := m.sounds[name]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrSoundMissing, name)
	}
	if sb.streamed() && len(sb.sources) > 0 {
		m.mu.Unlock()
		return nil, nil
	}
	src := m.createSource(sb)
	sb.addSource(src)
	if src.play(fadeTime, looping) == nil {
		sb.removeSource(src)
		m.destroySourceLocked(src)
		m.mu.Unlock()
		return nil, nil
	}
	m.mu.Unlock()
	return src, nil
}
