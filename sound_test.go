package audiomix

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newStreamingTestManager(t *testing.T, chunks [][]byte) (*Manager, *fakeMixer) {
	t.Helper()
	mixer := newFakeMixer()
	mgr, err := New(Config{DeviceName: "default", Mixer: mixer, MaxVoices: 4})
	require.NoError(t, err)
	// sampleRate=4, channels=1, bits=16 makes bytesPerBuffer (streamBufferDuration
	// of samples) come out to exactly 2 bytes, matching each fake chunk's size
	// one-for-one so ring math in the assertions below stays simple.
	mgr.RegisterDecoder(".fake", fakeDecoder{
		asset:  DecodedAsset{SampleRate: 4, Channels: 1, Bits: 16},
		chunks: chunks,
	})
	mgr.CreateCategory("music", true)
	return mgr, mixer
}

func TestStreamingSound_QueuesInitialBuffersOnPlay(t *testing.T) {
	chunks := [][]byte{{1, 0}, {2, 0}, {3, 0}, {4, 0}, {5, 0}}
	mgr, mixer := newStreamingTestManager(t, chunks)
	defer mgr.Destroy()

	sound, err := mgr.CreateSound("song.fake", "music", "")
	require.NoError(t, err)
	require.True(t, sound.streamed())

	src := sound.Play(0, false)
	require.NotNil(t, src)
	require.True(t, src.IsPlaying())

	queued, err := mixer.QueuedCount(src.VoiceID())
	require.NoError(t, err)
	require.Equal(t, streamRingBuffers, queued, "initial fill must queue streamRingBuffers slabs")
}

func TestStreamingSound_RefillsAsMixerConsumes(t *testing.T) {
	chunks := make([][]byte, 10)
	for i := range chunks {
		chunks[i] = []byte{byte(i), 0}
	}
	mgr, mixer := newStreamingTestManager(t, chunks)
	defer mgr.Destroy()

	sound, err := mgr.CreateSound("song.fake", "music", "")
	require.NoError(t, err)
	src := sound.Play(0, false)
	require.NotNil(t, src)

	mixer.consumeOne(src.VoiceID())
	mgr.Update(0.02)

	queued, err := mixer.QueuedCount(src.VoiceID())
	require.NoError(t, err)
	require.Equal(t, streamRingBuffers, queued, "a refill must replace exactly the consumed slab")
}

func TestStreamingSound_StopsAtExhaustionWhenNotLooping(t *testing.T) {
	chunks := [][]byte{{1, 0}}
	mgr, mixer := newStreamingTestManager(t, chunks)
	defer mgr.Destroy()

	sound, err := mgr.CreateSound("song.fake", "music", "")
	require.NoError(t, err)
	src := sound.Play(0, false)
	require.NotNil(t, src)

	for i := 0; i < streamRingBuffers+1; i++ {
		mixer.consumeOne(src.VoiceID())
		mgr.Update(0.02)
	}

	require.False(t, src.IsPlaying())
}

func TestStreamingSound_LoopsAroundInsteadOfExhausting(t *testing.T) {
	chunks := [][]byte{{1, 0}, {2, 0}}
	mgr, mixer := newStreamingTestManager(t, chunks)
	defer mgr.Destroy()

	sound, err := mgr.CreateSound("song.fake", "music", "")
	require.NoError(t, err)
	src := sound.Play(0, true)
	require.NotNil(t, src)

	for i := 0; i < 20; i++ {
		mixer.consumeOne(src.VoiceID())
		mgr.Update(0.02)
	}

	require.True(t, src.IsPlaying(), "a looping stream must keep refilling instead of exhausting")
}

func TestPlaySound_LoopsAroundInsteadOfExhausting(t *testing.T) {
	chunks := [][]byte{{1, 0}, {2, 0}}
	mgr, mixer := newStreamingTestManager(t, chunks)
	defer mgr.Destroy()

	_, err := mgr.CreateSound("song.fake", "music", "")
	require.NoError(t, err)

	src, err := mgr.PlaySound("song", 0, true)
	require.NoError(t, err)
	require.NotNil(t, src)

	for i := 0; i < 20; i++ {
		mixer.consumeOne(src.VoiceID())
		mgr.Update(0.02)
	}

	require.True(t, src.IsPlaying(), "PlaySound must register the source before starting playback so a looping stream sees itself on its first refill")
}

func TestPlaySound_RefusesConcurrentSecondSourceOnStreamingSound(t *testing.T) {
	chunks := [][]byte{{1, 0}, {2, 0}, {3, 0}, {4, 0}, {5, 0}}
	mgr, _ := newStreamingTestManager(t, chunks)
	defer mgr.Destroy()

	_, err := mgr.CreateSound("song.fake", "music", "")
	require.NoError(t, err)

	first, err := mgr.PlaySound("song", 0, true)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := mgr.PlaySound("song", 0, true)
	require.NoError(t, err)
	require.Nil(t, second, "a streaming sound holds one decode cursor and PlaySound must refuse a second concurrent play")
}

func TestSoundBuffer_LockPreventsOpportunisticTeardown(t *testing.T) {
	mixer := newFakeMixer()
	mgr := newTestManager(t, mixer)
	defer mgr.Destroy()

	sound, err := mgr.CreateSound("a.fake", "sfx", "")
	require.NoError(t, err)
	src := sound.Play(0, false)
	require.NotNil(t, src)
	sound.Lock()
	require.True(t, sound.Locked())

	// Natural end-of-playback while the asset is locked must not unbind the source.
	mixer.voice(src.VoiceID()).state = VoiceStopped
	mgr.Update(0.01)
	require.NotZero(t, src.VoiceID())

	sound.Unlock()
	require.False(t, sound.Locked())
	mgr.Update(0.01)
	require.Zero(t, src.VoiceID())
}

func TestSoundBuffer_StopAllStopsEveryBoundSource(t *testing.T) {
	mgr := newTestManager(t, newFakeMixer())
	defer mgr.Destroy()

	sound, err := mgr.CreateSound("a.fake", "sfx", "")
	require.NoError(t, err)
	a := sound.Play(0, true)
	b := sound.Play(0, true)
	require.NotNil(t, a)
	require.NotNil(t, b)

	sound.StopAll(0)
	require.Zero(t, a.VoiceID())
	require.Zero(t, b.VoiceID())
}

func TestDestroySoundsWithPrefix(t *testing.T) {
	mgr := newTestManager(t, newFakeMixer())
	defer mgr.Destroy()

	_, err := mgr.CreateSound("click.fake", "sfx", "ui_")
	require.NoError(t, err)
	_, err = mgr.CreateSound("ambient.fake", "sfx", "")
	require.NoError(t, err)

	mgr.DestroySoundsWithPrefix("ui_")
	require.Nil(t, mgr.GetSound("ui_click"))
	require.NotNil(t, mgr.GetSound("ambient"))
}
