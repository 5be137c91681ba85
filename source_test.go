package audiomix

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSource_SetGainClamps(t *testing.T) {
	mgr := newTestManager(t, newFakeMixer())
	defer mgr.Destroy()

	sound, err := mgr.CreateSound("a.fake", "sfx", "")
	require.NoError(t, err)
	src := sound.Play(0, false)
	require.NotNil(t, src)

	src.SetGain(5)
	require.Equal(t, float32(1.0), src.Gain())

	src.SetGain(-5)
	require.Equal(t, float32(0), src.Gain())
}

func TestSource_LockPreventsSweepTeardown(t *testing.T) {
	mixer := newFakeMixer()
	mgr := newTestManager(t, mixer)
	defer mgr.Destroy()

	sound, err := mgr.CreateSound("a.fake", "sfx", "")
	require.NoError(t, err)
	src := sound.Play(0, false)
	require.NotNil(t, src)
	src.Lock()

	// Simulate natural end-of-playback: the mixer backend reports the voice
	// stopped, but the source is locked so the sweep must retain it.
	mixer.voice(src.VoiceID()).state = VoiceStopped

	mgr.Update(0.01)
	require.NotZero(t, src.VoiceID(), "a locked source must survive the sweep even once it stops playing")

	src.Unlock()
	mgr.Update(0.01)
	require.Zero(t, src.VoiceID(), "unlocking must allow the next sweep to tear the source down")
}

func TestDistinctSources_GetDistinctNonzeroVoiceIDs(t *testing.T) {
	mgr := newTestManager(t, newFakeMixer())
	defer mgr.Destroy()

	sound, err := mgr.CreateSound("a.fake", "sfx", "")
	require.NoError(t, err)

	a := sound.Play(0, true)
	require.NotNil(t, a)
	sound2, err := mgr.CreateSound("b.fake", "sfx", "")
	require.NoError(t, err)
	b := sound2.Play(0, true)
	require.NotNil(t, b)

	require.NotZero(t, a.VoiceID())
	require.NotZero(t, b.VoiceID())
	require.NotEqual(t, a.VoiceID(), b.VoiceID())
}

func TestStreamingSoundBuffer_RefusesConcurrentSecondSource(t *testing.T) {
	chunks := [][]byte{{1, 0}, {2, 0}, {3, 0}, {4, 0}, {5, 0}}
	mgr, _ := newStreamingTestManager(t, chunks)
	defer mgr.Destroy()

	sound, err := mgr.CreateSound("song.fake", "music", "")
	require.NoError(t, err)

	first := sound.Play(0, true)
	require.NotNil(t, first)

	second := sound.Play(0, true)
	require.Nil(t, second, "a streaming SoundBuffer holds one decode cursor and must refuse a second concurrent Source")

	first.Stop(0)
	third := sound.Play(0, true)
	require.NotNil(t, third, "once the first Source is torn down, the streaming cursor is free again")
}

func TestFadeEnvelope_MidFadeGainAndLiveGlobalGainUpdate(t *testing.T) {
	mixer := newFakeMixer()
	mgr := newTestManager(t, mixer)
	defer mgr.Destroy()

	sound, err := mgr.CreateSound("a.fake", "sfx", "")
	require.NoError(t, err)

	src := sound.Play(1.0, true) // 1 second fade-in
	require.NotNil(t, src)

	mgr.Update(0.5)
	require.InDelta(t, 0.5, mixer.voice(src.VoiceID()).gain, 1e-6,
		"at the midpoint of a 1s fade-in the observed voice gain must be ~0.5x base")

	mgr.Update(0.5)
	require.InDelta(t, 1.0, mixer.voice(src.VoiceID()).gain, 1e-6,
		"fade-in must reach base gain once fadeTime completes")

	// Live global gain update must be reflected on the already-playing voice
	// within the same call, not on the next pump tick.
	mgr.SetGlobalGain(0.25)
	require.InDelta(t, 0.25, mixer.voice(src.VoiceID()).gain, 1e-6)

	src.Stop(1.0) // 1 second fade-out
	mgr.Update(0.5)
	require.InDelta(t, 0.125, mixer.voice(src.VoiceID()).gain, 1e-6,
		"at the midpoint of a 1s fade-out the observed voice gain must be ~0.5x its pre-fade level")
}

func TestPlayThenImmediateStop_RestoresVoicePool(t *testing.T) {
	mixer := newFakeMixer()
	mgr, err := New(Config{DeviceName: "default", Mixer: mixer, MaxVoices: 1})
	require.NoError(t, err)
	defer mgr.Destroy()
	mgr.RegisterDecoder(".fake", fakeDecoder{asset: DecodedAsset{PCM: []byte{0, 0}, SampleRate: 8000, Channels: 1, Bits: 16}})
	mgr.CreateCategory("sfx", false)

	sound, err := mgr.CreateSound("a.fake", "sfx", "")
	require.NoError(t, err)

	src := sound.Play(0, false)
	require.NotNil(t, src)
	src.Stop(0)

	// The single voice must be free again for a brand new Source.
	again := sound.Play(0, false)
	require.NotNil(t, again, "play(f); stop(0) must leave the voice pool in its prior, reusable state")
}
