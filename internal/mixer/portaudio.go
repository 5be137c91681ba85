// Package mixer provides a concrete audiomix.MixerBackend implementation
// backed by a single PortAudio output stream. The "N hardware voices" the
// abstract interface promises are software-mixed in this adapter: each
// voice keeps its own playback cursor and gain, and every tick sums their
// contributions into one real device buffer, the same technique the voice
// client uses to blend a notification channel into its single playback
// stream.
package mixer

import (
	"encoding/binary"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/rustyguts/audiomix"
)

const defaultFramesPerBuffer = 960 // 20ms @ 48kHz, matching the pack's voice frame size

// PortAudioMixer is a software mixer over one PortAudio output stream. All
// uploaded buffers are assumed to already be 16-bit PCM at the stream's
// configured sample rate and channel count; resampling is out of scope
// (non-goal).
type PortAudioMixer struct {
	sampleRate int
	channels   int
	framesPerBuffer int

	stream *portaudio.Stream
	outBuf []float32

	mu          sync.Mutex
	voices      map[audiomix.VoiceID]*voice
	bufferData  map[audiomix.BufferHandle][]int16
	nextBuffer  uint64
	nextVoiceID uint32

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

type voice struct {
	mu      sync.Mutex
	gain    float32
	looping bool
	state   audiomix.VoiceState

	staticPCM []int16
	pos       int

	queue               [][]int16
	queuePos            int
	posWithinQueueHead  int
	processedSinceQuery int
}

// New opens a PortAudio output stream at sampleRate/channels and returns a
// mixer ready for AllocateVoices.
func New(sampleRate, channels int) (*PortAudioMixer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	m := &PortAudioMixer{
		sampleRate:      sampleRate,
		channels:        channels,
		framesPerBuffer: defaultFramesPerBuffer,
		voices:          make(map[audiomix.VoiceID]*voice),
		bufferData:      make(map[audiomix.BufferHandle][]int16),
	}
	m.outBuf = make([]float32, m.framesPerBuffer*channels)

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   mustDefaultOutputDevice(),
			Channels: channels,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: m.framesPerBuffer,
	}
	stream, err := portaudio.OpenStream(params, m.outBuf)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, err
	}
	m.stream = stream
	m.stopCh = make(chan struct{})
	m.running.Store(true)
	m.wg.Add(1)
	go m.mixLoop()
	return m, nil
}

func mustDefaultOutputDevice() *portaudio.DeviceInfo {
	dev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		log.Printf("[mixer] default output device: %v", err)
		return nil
	}
	return dev
}

// Close stops the stream and releases PortAudio. Safe to call once.
func (m *PortAudioMixer) Close() error {
	if !m.running.CompareAndSwap(true, false) {
		return nil
	}
	close(m.stopCh)
	m.wg.Wait()
	err := m.stream.Stop()
	m.stream.Close()
	portaudio.Terminate()
	return err
}

func (m *PortAudioMixer) mixLoop() {
	defer m.wg.Done()
	for m.running.Load() {
		select {
		case <-m.stopCh:
			return
		default:
		}
		m.mixOneBuffer()
		if err := m.stream.Write(); err != nil {
			if m.running.Load() {
				log.Printf("[mixer] write: %v", err)
			}
			return
		}
	}
}

func (m *PortAudioMixer) mixOneBuffer() {
	for i := range m.outBuf {
		m.outBuf[i] = 0
	}
	m.mu.Lock()
	voices := make([]*voice, 0, len(m.voices))
	for _, v := range m.voices {
		voices = append(voices, v)
	}
	m.mu.Unlock()

	frames := m.framesPerBuffer
	for _, v := range voices {
		v.mu.Lock()
		if v.state == audiomix.VoicePlaying {
			v.mixInto(m.outBuf, frames, m.channels)
		}
		v.mu.Unlock()
	}
	for i, s := range m.outBuf {
		m.outBuf[i] = clampFloat32(s)
	}
}

// mixInto sums up to frames*channels samples of this voice's current source
// (static buffer or queued stream chunks) into dst, advancing its cursor and
// wrapping/looping as configured.
func (v *voice) mixInto(dst []float32, frames, channels int) {
	need := frames * channels
	written := 0
	for written < need {
		src, ok := v.currentSource()
		if !ok {
			return
		}
		avail := len(src) - v.sourcePos()
		if avail <= 0 {
			if !v.advanceSource() {
				return
			}
			continue
		}
		n := need - written
		if n > avail {
			n = avail
		}
		pos := v.sourcePos()
		for i := 0; i < n; i++ {
			sample := float32(src[pos+i]) / 32768.0 * v.gain
			dst[written+i] += sample
		}
		v.setSourcePos(pos + n)
		written += n
	}
}

// currentSource returns the PCM slice the voice is currently reading from:
// the static buffer, or the head of the streaming queue.
func (v *voice) currentSource() ([]int16, bool) {
	if v.staticPCM != nil {
		return v.staticPCM, true
	}
	if v.queuePos < len(v.queue) {
		return v.queue[v.queuePos], true
	}
	return nil, false
}

func (v *voice) sourcePos() int {
	if v.staticPCM != nil {
		return v.pos
	}
	return v.posWithinQueueHead
}

func (v *voice) setSourcePos(p int) {
	if v.staticPCM != nil {
		v.pos = p
		return
	}
	v.posWithinQueueHead = p
}

// advanceSource moves to the next source chunk: wraps the static buffer when
// looping, or pops a consumed queue entry, returning false when nothing more
// is available right now.
func (v *voice) advanceSource() bool {
	if v.staticPCM != nil {
		if v.looping {
			v.pos = 0
			return true
		}
		v.state = audiomix.VoiceStopped
		return false
	}
	if v.queuePos < len(v.queue) {
		v.queuePos++
		v.posWithinQueueHead = 0
		v.processedSinceQuery++
		if v.queuePos >= len(v.queue) {
			v.queue = nil
			v.queuePos = 0
		}
		return v.queuePos < len(v.queue)
	}
	return false
}

func clampFloat32(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// --- audiomix.MixerBackend ---------------------------------------------

func (m *PortAudioMixer) AllocateVoices(n int) ([]audiomix.VoiceID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]audiomix.VoiceID, n)
	for i := 0; i < n; i++ {
		m.nextVoiceID++
		id := audiomix.VoiceID(m.nextVoiceID)
		m.voices[id] = &voice{gain: 1.0}
		ids[i] = id
	}
	return ids, nil
}

func (m *PortAudioMixer) UploadBuffer(pcm []byte, sampleRate, channels, bits int) (audiomix.BufferHandle, error) {
	if bits != 16 {
		return 0, errors.New("mixer: only 16-bit PCM is supported")
	}
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBuffer++
	handle := audiomix.BufferHandle(m.nextBuffer)
	m.bufferData[handle] = samples
	return handle, nil
}

func (m *PortAudioMixer) voiceFor(id audiomix.VoiceID) (*voice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.voices[id]
	return v, ok
}

func (m *PortAudioMixer) Attach(id audiomix.VoiceID, buf audiomix.BufferHandle) error {
	v, ok := m.voiceFor(id)
	if !ok {
		return errors.New("mixer: unknown voice")
	}
	m.mu.Lock()
	pcm := m.bufferData[buf]
	m.mu.Unlock()
	v.mu.Lock()
	v.staticPCM = pcm
	v.pos = 0
	v.queue = nil
	v.mu.Unlock()
	return nil
}

func (m *PortAudioMixer) QueueBuffer(id audiomix.VoiceID, buf audiomix.BufferHandle) error {
	v, ok := m.voiceFor(id)
	if !ok {
		return errors.New("mixer: unknown voice")
	}
	m.mu.Lock()
	pcm := m.bufferData[buf]
	m.mu.Unlock()
	v.mu.Lock()
	v.staticPCM = nil
	v.queue = append(v.queue, pcm)
	v.mu.Unlock()
	return nil
}

func (m *PortAudioMixer) UnqueueProcessed(id audiomix.VoiceID) (int, error) {
	v, ok := m.voiceFor(id)
	if !ok {
		return 0, errors.New("mixer: unknown voice")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	n := v.processedSinceQuery
	v.processedSinceQuery = 0
	return n, nil
}

func (m *PortAudioMixer) QueuedCount(id audiomix.VoiceID) (int, error) {
	v, ok := m.voiceFor(id)
	if !ok {
		return 0, errors.New("mixer: unknown voice")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.queue) - v.queuePos, nil
}

func (m *PortAudioMixer) ProcessedCount(id audiomix.VoiceID) (int, error) {
	return m.UnqueueProcessed(id)
}

func (m *PortAudioMixer) SetGain(id audiomix.VoiceID, gain float32) error {
	v, ok := m.voiceFor(id)
	if !ok {
		return errors.New("mixer: unknown voice")
	}
	v.mu.Lock()
	v.gain = gain
	v.mu.Unlock()
	return nil
}

func (m *PortAudioMixer) SetLooping(id audiomix.VoiceID, looping bool) error {
	v, ok := m.voiceFor(id)
	if !ok {
		return errors.New("mixer: unknown voice")
	}
	v.mu.Lock()
	v.looping = looping
	v.mu.Unlock()
	return nil
}

func (m *PortAudioMixer) SetOffset(id audiomix.VoiceID, seconds float64) error {
	v, ok := m.voiceFor(id)
	if !ok {
		return errors.New("mixer: unknown voice")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	frame := int(seconds * float64(m.sampleRate))
	v.pos = frame * m.channels
	if v.staticPCM != nil && v.pos > len(v.staticPCM) {
		v.pos = len(v.staticPCM)
	}
	return nil
}

func (m *PortAudioMixer) GetOffset(id audiomix.VoiceID) (float64, error) {
	v, ok := m.voiceFor(id)
	if !ok {
		return 0, errors.New("mixer: unknown voice")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	frames := v.pos / max(m.channels, 1)
	return float64(frames) / float64(max(m.sampleRate, 1)), nil
}

func (m *PortAudioMixer) Start(id audiomix.VoiceID) error {
	v, ok := m.voiceFor(id)
	if !ok {
		return errors.New("mixer: unknown voice")
	}
	v.mu.Lock()
	v.state = audiomix.VoicePlaying
	v.mu.Unlock()
	return nil
}

func (m *PortAudioMixer) Stop(id audiomix.VoiceID) error {
	v, ok := m.voiceFor(id)
	if !ok {
		return errors.New("mixer: unknown voice")
	}
	v.mu.Lock()
	v.state = audiomix.VoiceStopped
	v.pos = 0
	v.queue = nil
	v.queuePos = 0
	v.posWithinQueueHead = 0
	v.mu.Unlock()
	return nil
}

func (m *PortAudioMixer) Pause(id audiomix.VoiceID) error {
	v, ok := m.voiceFor(id)
	if !ok {
		return errors.New("mixer: unknown voice")
	}
	v.mu.Lock()
	v.state = audiomix.VoicePaused
	v.mu.Unlock()
	return nil
}

func (m *PortAudioMixer) State(id audiomix.VoiceID) (audiomix.VoiceState, error) {
	v, ok := m.voiceFor(id)
	if !ok {
		return audiomix.VoiceStopped, errors.New("mixer: unknown voice")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state, nil
}

