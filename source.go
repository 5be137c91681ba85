package audiomix

// Source is one active playback instance bound to a voice. It owns the fade
// envelope, the looping flag, and (for a paused instance) the sample offset
// needed to resume. Sources never hold a pointer back into their owning
// SoundBuffer or Manager collection directly for lifetime purposes — they
// are indexed by the Manager, which is the sole owner of both Sounds and
// Sources; see DESIGN.md for the back-reference rationale.
//
// All unexported methods assume the caller already holds the owning
// Manager's mutex. The small set of exported methods take the lock
// themselves so a client holding a *Source across goroutines is safe.
type Source struct {
	mgr   *Manager
	sound *SoundBuffer

	voiceID VoiceID
	gain    float32

	looping bool
	paused  bool
	locked  bool

	fadeTime  float32 // in [0,1]; 1 == full gain
	fadeSpeed float32 // signed; >0 fading in, <0 fading out, 0 steady

	sampleOffset float64 // seconds, captured on pause
}

func newSource(mgr *Manager, sound *SoundBuffer) *Source {
	return &Source{mgr: mgr, sound: sound, gain: 1.0}
}

// isBound reports whether the source currently owns a voice.
func (s *Source) isBound() bool { return s.voiceID != 0 }

// play binds a voice if needed, attaches the sound (seeking to the captured
// offset when resuming a pause), and starts (or restarts) the fade envelope
// toward full gain over fadeTime seconds.
func (s *Source) play(fadeTime float32, looping bool) *Source {
	wasPaused := s.paused
	if !s.isBound() {
		voice := s.mgr.allocateVoiceID()
		if voice == 0 {
			s.mgr.metrics.voiceExhausted()
			s.mgr.logf("unable to allocate voice for %q", s.sound.name)
			return nil
		}
		s.voiceID = voice
	}

	if !wasPaused {
		s.looping = looping
	}

	if s.sound.streamed() {
		_ = s.mgr.mixer.SetLooping(s.voiceID, false)
		if err := s.sound.queueBuffers(s.mgr, s.voiceID); err != nil {
			s.mgr.logf("stream %q: queueBuffers: %v", s.sound.name, err)
		}
	} else {
		_ = s.mgr.mixer.Attach(s.voiceID, s.sound.bufferHandle)
		_ = s.mgr.mixer.SetLooping(s.voiceID, s.looping)
	}

	if wasPaused {
		_ = s.mgr.mixer.SetOffset(s.voiceID, s.sampleOffset)
	}

	alreadyFading := s.isFading()
	if fadeTime > 0 {
		s.fadeSpeed = 1.0 / fadeTime
	} else {
		s.fadeTime = 1.0
		s.fadeSpeed = 0
	}

	s.pushGain()
	if !alreadyFading {
		_ = s.mgr.mixer.Start(s.voiceID)
	}

	s.paused = false
	return s
}

// stop implements stop(fadeTime) = stopSoft(fadeTime, pause=false).
func (s *Source) stop(fadeTime float32) {
	s.stopSoft(fadeTime, false)
	if fadeTime <= 0 {
		s.unbind(false)
	}
}

// pause implements pause(fadeTime) = stopSoft(fadeTime, pause=true).
func (s *Source) pause(fadeTime float32) {
	s.stopSoft(fadeTime, true)
	if fadeTime <= 0 {
		s.unbind(true)
	}
}

// stopSoft is shared by stop and pause.
func (s *Source) stopSoft(fadeTime float32, pause bool) {
	if !s.isBound() {
		return
	}
	s.paused = pause
	if fadeTime > 0 {
		s.fadeSpeed = -1.0 / fadeTime
		return
	}
	offset, err := s.mgr.mixer.GetOffset(s.voiceID)
	if err == nil {
		s.sampleOffset = offset
	}
	_ = s.mgr.mixer.Stop(s.voiceID)
	if s.sound.streamed() {
		if pause {
			_ = s.sound.unqueueBuffers(s.mgr, s.voiceID)
		} else {
			_ = s.sound.rewindStream(s.mgr)
		}
	}
}

// update advances the fade envelope by dt seconds and propagates the tick to
// the bound SoundBuffer (streams use this to refill their queue).
func (s *Source) update(dt float32) {
	if !s.isBound() {
		return
	}
	if err := s.sound.updateStream(s.mgr, s.voiceID, dt); err != nil {
		s.mgr.metrics.streamUnderrun()
		s.mgr.logf("stream %q underrun: %v", s.sound.name, err)
	}

	if s.isPlaying() && s.isFading() {
		s.fadeTime += s.fadeSpeed * dt
		switch {
		case s.fadeTime >= 1 && s.fadeSpeed > 0:
			s.fadeTime = 1.0
			s.fadeSpeed = 0
			s.pushGain()
			s.mgr.metrics.fadeCompleted("in")
		case s.fadeTime <= 0 && s.fadeSpeed < 0:
			s.fadeTime = 0
			s.fadeSpeed = 0
			s.mgr.metrics.fadeCompleted("out")
			if s.paused {
				s.pause(0)
			} else {
				s.stop(0)
			}
		default:
			s.pushGain()
		}
	}

	if !s.isPlaying() && !s.isPaused() && !s.sound.locked {
		s.unbind(false)
	}
}

// unbind releases the voice. When pause is false the source also detaches
// from its SoundBuffer and asks the manager to destroy it on the next sweep;
// when pause is true the source is retained so a later play() resumes it.
func (s *Source) unbind(pause bool) {
	if s.locked {
		return
	}
	s.voiceID = 0
	if !pause {
		s.sound.removeSource(s)
		s.mgr.markForDestruction(s)
	}
}

func (s *Source) pushGain() {
	if !s.isBound() {
		return
	}
	g := s.fadeTime * s.gain * s.sound.category.Gain() * s.mgr.globalGainLocked()
	_ = s.mgr.mixer.SetGain(s.voiceID, g)
}

// isPlaying inspects the queued buffer count and the ring's pending data for
// a streaming source (see isPlayingStream; the processed-buffer count is not
// consulted) or the voice's reported state for a static one.
func (s *Source) isPlaying() bool {
	if !s.isBound() {
		return false
	}
	if s.sound.streamed() {
		playing, _ := s.sound.isPlayingStream(s.mgr, s.voiceID)
		return playing
	}
	state, err := s.mgr.mixer.State(s.voiceID)
	if err != nil {
		return false
	}
	return state == VoicePlaying
}

func (s *Source) isPaused() bool  { return s.paused && !s.isFading() }
func (s *Source) isFading() bool  { return s.fadeSpeed != 0 }
func (s *Source) isFadingIn() bool  { return s.fadeSpeed > 0 }
func (s *Source) isFadingOut() bool { return s.fadeSpeed < 0 }

// --- exported, lock-taking surface -----------------------------------------

// Play starts or resumes playback. fadeTime <= 0 plays at full gain
// immediately; looping is ignored when resuming from a pause (the original
// looping flag is preserved). Returns nil if the voice pool is exhausted.
func (s *Source) Play(fadeTime float32, looping bool) *Source {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()
	if s.play(fadeTime, looping) == nil {
		return nil
	}
	return s
}

// Stop stops playback, optionally fading out over fadeTime seconds.
func (s *Source) Stop(fadeTime float32) {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()
	s.stop(fadeTime)
}

// Pause pauses playback, optionally fading out over fadeTime seconds, and
// retains the source so Play resumes it from the captured sample offset.
func (s *Source) Pause(fadeTime float32) {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()
	s.pause(fadeTime)
}

// SetGain sets the per-instance gain in [0,1] and pushes the recomputed
// final gain to the voice if bound.
func (s *Source) SetGain(gain float32) {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()
	s.gain = clamp01(gain)
	s.pushGain()
}

// Gain returns the per-instance gain.
func (s *Source) Gain() float32 {
	s.mgr.mu.RLock()
	defer s.mgr.mu.RUnlock()
	return s.gain
}

// Lock pins the source so natural end-of-playback does not tear it down.
func (s *Source) Lock() {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()
	s.locked = true
}

// Unlock un-pins a locked source.
func (s *Source) Unlock() {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()
	s.locked = false
}

// IsPlaying, IsPaused, IsFadingIn, IsFadingOut and SampleOffset report the
// source's current state under the manager's read lock.
func (s *Source) IsPlaying() bool {
	s.mgr.mu.RLock()
	defer s.mgr.mu.RUnlock()
	return s.isPlaying()
}

func (s *Source) IsPaused() bool {
	s.mgr.mu.RLock()
	defer s.mgr.mu.RUnlock()
	return s.isPaused()
}

func (s *Source) IsFadingIn() bool {
	s.mgr.mu.RLock()
	defer s.mgr.mu.RUnlock()
	return s.isFadingIn()
}

func (s *Source) IsFadingOut() bool {
	s.mgr.mu.RLock()
	defer s.mgr.mu.RUnlock()
	return s.isFadingOut()
}

// SampleOffset returns the last captured (on pause) or live playback
// position in seconds.
func (s *Source) SampleOffset() float64 {
	s.mgr.mu.RLock()
	defer s.mgr.mu.RUnlock()
	if s.isBound() {
		if off, err := s.mgr.mixer.GetOffset(s.voiceID); err == nil {
			return off
		}
	}
	return s.sampleOffset
}

// VoiceID returns the voice currently bound to the source, or 0 if unbound.
func (s *Source) VoiceID() VoiceID {
	s.mgr.mu.RLock()
	defer s.mgr.mu.RUnlock()
	return s.voiceID
}
