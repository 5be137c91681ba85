package audiomix

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/smallnest/ringbuffer"
)

type soundKind int

const (
	kindStatic soundKind = iota
	kindStreaming
)

// streamRingBuffers is the ring depth: four buffers of roughly
// streamBufferDuration each.
const streamRingBuffers = 4

// SoundBuffer is one logical sound asset: either a fully decoded static PCM
// buffer or a streaming asset that decodes incrementally into a rolling
// buffer ring. The kind field selects which half of the struct is live, a
// tagged variant on {static, streaming} rather than a class hierarchy.
type SoundBuffer struct {
	mgr *Manager

	name            string
	fileName        string
	virtualFileName string
	category        *Category
	kind            soundKind

	duration time.Duration
	loaded   bool
	decoded  bool
	locked   bool

	sampleRate, channels, bits int

	// static
	bufferHandle BufferHandle

	// streaming
	streamDecoder StreamDecoder
	cursor        StreamCursor
	ring          *ringbuffer.RingBuffer
	slabBytes     int
	streamPath    string
	exhausted     bool // decode cursor hit EOF and is not looping

	sources map[*Source]struct{}
}

func soundNameFor(filename, prefix string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if prefix == "" {
		return base
	}
	return prefix + base
}

// load performs lazy initialization: header parse plus static decode for
// non-streamed sounds, or header parse plus opening the decode cursor for
// streaming ones. load does not fill the streaming ring; the first fill
// happens in queueBuffers when a Source starts playing. The link case resolves virtualFileName to the real
// fileName before any decoder runs.
func (sb *SoundBuffer) load() error {
	path := sb.virtualFileName
	if isLink(path) {
		target, err := resolveLink(path)
		if err != nil {
			return fmt.Errorf("resolve link %q: %w", path, err)
		}
		sb.fileName = target
	} else {
		sb.fileName = path
	}

	decoder, ok := sb.mgr.decoders.forPath(sb.fileName)
	if !ok {
		return fmt.Errorf("no decoder registered for %q", sb.fileName)
	}

	if sb.kind == kindStreaming {
		streamDecoder, ok := decoder.(StreamDecoder)
		if !ok {
			return fmt.Errorf("decoder for %q does not support streaming", sb.fileName)
		}
		cursor, meta, err := streamDecoder.OpenStream(sb.fileName)
		if err != nil {
			return fmt.Errorf("open stream %q: %w", sb.fileName, err)
		}
		sb.streamDecoder = streamDecoder
		sb.cursor = cursor
		sb.sampleRate, sb.channels, sb.bits = meta.SampleRate, meta.Channels, meta.Bits
		sb.duration = meta.Duration
		sb.slabBytes = bytesPerBuffer(meta.SampleRate, meta.Channels, meta.Bits)
		sb.ring = ringbuffer.New(sb.slabBytes * streamRingBuffers)
		sb.streamPath = sb.fileName
		sb.loaded = true
		sb.decoded = true
		return nil
	}

	asset, err := decoder.Decode(sb.fileName)
	if err != nil {
		return fmt.Errorf("decode %q: %w", sb.fileName, err)
	}
	handle, err := sb.mgr.mixer.UploadBuffer(asset.PCM, asset.SampleRate, asset.Channels, asset.Bits)
	if err != nil {
		return fmt.Errorf("upload buffer for %q: %w", sb.fileName, err)
	}
	sb.bufferHandle = handle
	sb.sampleRate, sb.channels, sb.bits = asset.SampleRate, asset.Channels, asset.Bits
	sb.duration = asset.Duration
	sb.loaded = true
	sb.decoded = true
	return nil
}

func bytesPerBuffer(sampleRate, channels, bits int) int {
	bytesPerSample := bits / 8
	if bytesPerSample < 1 {
		bytesPerSample = 2
	}
	n := int(float64(sampleRate) * streamBufferDuration.Seconds())
	return n * channels * bytesPerSample
}

func (sb *SoundBuffer) streamed() bool { return sb.kind == kindStreaming }

// Name, FileName, VirtualFileName, Category, Duration and Locked expose the
// asset's identifying data model fields.
func (sb *SoundBuffer) Name() string            { return sb.name }
func (sb *SoundBuffer) FileName() string        { return sb.fileName }
func (sb *SoundBuffer) VirtualFileName() string  { return sb.virtualFileName }
func (sb *SoundBuffer) Category() *Category      { return sb.category }
func (sb *SoundBuffer) Duration() time.Duration { return sb.duration }
func (sb *SoundBuffer) Locked() bool             { return sb.locked }

// IsOgg, IsSpx, IsM4a and IsLink classify the asset by its resolved file
// extension.
func (sb *SoundBuffer) IsOgg() bool  { return isOgg(sb.fileName) }
func (sb *SoundBuffer) IsSpx() bool  { return isSpx(sb.fileName) }
func (sb *SoundBuffer) IsM4a() bool  { return isM4a(sb.fileName) }
func (sb *SoundBuffer) IsLink() bool { return isLink(sb.virtualFileName) }

// Lock pins the asset: its active Sources must not be torn down
// opportunistically while locked.
func (sb *SoundBuffer) Lock()   { sb.mgr.mu.Lock(); sb.locked = true; sb.mgr.mu.Unlock() }
func (sb *SoundBuffer) Unlock() { sb.mgr.mu.Lock(); sb.locked = false; sb.mgr.mu.Unlock() }

// Play is the convenience wrapper: it binds a new Source and starts it. The
// source is registered on sb.sources before play() runs, not after: a
// looping streaming sound's very first buffer fill calls anyLoopingSource to
// decide whether to rewind-and-continue at EOF, and it needs to see this
// source's looping flag on that first call, not only on later refills.
//
// A streaming asset holds one decode cursor, so it can only ever back one
// live Source at a time; a second concurrent Play on the same streaming
// SoundBuffer is refused (nil) rather than silently sharing the cursor.
func (sb *SoundBuffer) Play(fadeTime float32, looping bool) *Source {
	sb.mgr.mu.Lock()
	defer sb.mgr.mu.Unlock()
	if sb.streamed() && len(sb.sources) > 0 {
		return nil
	}
	src := sb.mgr.createSource(sb)
	sb.addSource(src)
	if src.play(fadeTime, looping) == nil {
		sb.removeSource(src)
		sb.mgr.destroySourceLocked(src)
		return nil
	}
	return src
}

// StopAll stops every Source currently bound to this asset.
func (sb *SoundBuffer) StopAll(fadeTime float32) {
	sb.mgr.mu.Lock()
	defer sb.mgr.mu.Unlock()
	for src := range sb.sources {
		src.stop(fadeTime)
	}
}

func (sb *SoundBuffer) addSource(s *Source) {
	if sb.sources == nil {
		sb.sources = make(map[*Source]struct{})
	}
	sb.sources[s] = struct{}{}
}

func (sb *SoundBuffer) removeSource(s *Source) {
	delete(sb.sources, s)
}

// --- streaming-only behaviour, no-ops for static sounds --------------------

// queueBuffers performs the initial fill of the ring, called from Source.play.
func (sb *SoundBuffer) queueBuffers(mgr *Manager, voice VoiceID) error {
	if sb.kind != kindStreaming {
		return nil
	}
	sb.exhausted = false
	if err := sb.refill(); err != nil && err != io.EOF {
		return err
	}
	return sb.drainToVoice(mgr, voice, streamRingBuffers)
}

// updateStream is called every tick from Source.update: it refills the ring from the decoder and pushes any newly full slab to the
// voice's queue.
func (sb *SoundBuffer) updateStream(mgr *Manager, voice VoiceID, dt float32) error {
	if sb.kind != kindStreaming {
		return nil
	}
	if err := sb.refill(); err != nil && err != io.EOF {
		return err
	}
	processed, err := mgr.mixer.UnqueueProcessed(voice)
	if err != nil {
		return err
	}
	if processed == 0 {
		return nil
	}
	return sb.drainToVoice(mgr, voice, processed)
}

// refill tops up the byte ring from the decode cursor, looping or marking
// exhaustion at EOF as appropriate.
func (sb *SoundBuffer) refill() error {
	if sb.exhausted {
		return nil
	}
	for {
		free := sb.ring.Free()
		if free < sb.slabBytes {
			return nil
		}
		chunk, err := sb.cursor.ReadChunk(sb.slabBytes)
		if len(chunk) > 0 {
			if _, werr := sb.ring.Write(chunk); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			src := sb.anyLoopingSource()
			if src != nil {
				if rerr := sb.cursor.Rewind(); rerr != nil {
					return rerr
				}
				continue
			}
			sb.exhausted = true
			return nil
		} else if err != nil {
			return err
		}
	}
}

// anyLoopingSource returns a looping Source registered on this asset (bound
// or paused), used to
// decide whether EOF should rewind-and-continue or stop queuing.
func (sb *SoundBuffer) anyLoopingSource() *Source {
	for s := range sb.sources {
		if s.looping {
			return s
		}
	}
	return nil
}

// drainToVoice uploads and queues up to n ready slabs from the ring.
func (sb *SoundBuffer) drainToVoice(mgr *Manager, voice VoiceID, n int) error {
	for i := 0; i < n; i++ {
		if sb.ring.Length() < sb.slabBytes {
			return nil
		}
		slab := make([]byte, sb.slabBytes)
		if _, err := sb.ring.Read(slab); err != nil {
			return err
		}
		handle, err := mgr.mixer.UploadBuffer(slab, sb.sampleRate, sb.channels, sb.bits)
		if err != nil {
			return err
		}
		if err := mgr.mixer.QueueBuffer(voice, handle); err != nil {
			return err
		}
	}
	return nil
}

// unqueueBuffers releases the buffers the voice has already processed,
// keeping the decode cursor and ring where they are — called on pause.
// Buffers still waiting in the voice's queue are not detached here.
func (sb *SoundBuffer) unqueueBuffers(mgr *Manager, voice VoiceID) error {
	if sb.kind != kindStreaming {
		return nil
	}
	_, err := mgr.mixer.UnqueueProcessed(voice)
	return err
}

// rewindStream resets the decode cursor — called on stop.
func (sb *SoundBuffer) rewindStream(mgr *Manager) error {
	if sb.kind != kindStreaming {
		return nil
	}
	sb.ring.Reset()
	sb.exhausted = false
	if sb.cursor != nil {
		return sb.cursor.Rewind()
	}
	return nil
}

// isPlayingStream reports whether a streaming source still has live audio:
// nonzero queued buffers, or at least one slab still pending in the ring.
// The processed-buffer count is not consulted.
func (sb *SoundBuffer) isPlayingStream(mgr *Manager, voice VoiceID) (bool, error) {
	queued, err := mgr.mixer.QueuedCount(voice)
	if err != nil {
		return false, err
	}
	if queued > 0 {
		return true, nil
	}
	return sb.ring.Length() >= sb.slabBytes, nil
}
