// Package decoder provides concrete Decoder adapters that satisfy
// audiomix.Decoder / audiomix.StreamDecoder over real codec libraries,
// exercising the pack's audio decoding dependencies instead of leaving the
// interface unimplemented.
package decoder

import (
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/rustyguts/audiomix"
)

// WAV decodes RIFF/WAVE files via github.com/go-audio/wav.
type WAV struct{}

// Decode fully decodes a WAV file into signed 16-bit little-endian PCM.
func (WAV) Decode(path string) (audiomix.DecodedAsset, error) {
	f, err := os.Open(path)
	if err != nil {
		return audiomix.DecodedAsset{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return audiomix.DecodedAsset{}, os.ErrInvalid
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return audiomix.DecodedAsset{}, err
	}

	pcm := intBufferToPCM16(buf)
	rate := int(dec.SampleRate)
	channels := int(dec.NumChans)
	frames := len(buf.Data) / channels
	duration := time.Duration(0)
	if rate > 0 {
		duration = time.Duration(float64(frames) / float64(rate) * float64(time.Second))
	}

	return audiomix.DecodedAsset{
		PCM:        pcm,
		SampleRate: rate,
		Channels:   channels,
		Bits:       16,
		Duration:   duration,
	}, nil
}

// OpenStream opens path for chunked reads, used by StreamSound's buffer ring.
func (w WAV) OpenStream(path string) (audiomix.StreamCursor, audiomix.DecodedAsset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, audiomix.DecodedAsset{}, err
	}
	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		f.Close()
		return nil, audiomix.DecodedAsset{}, os.ErrInvalid
	}

	meta := audiomix.DecodedAsset{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		Bits:       16,
	}
	cur := &wavCursor{file: f, path: path, dec: dec, channels: meta.Channels}
	return cur, meta, nil
}

// wavCursor implements audiomix.StreamCursor over an open *wav.Decoder.
type wavCursor struct {
	file     *os.File
	path     string
	dec      *wav.Decoder
	channels int
}

func (c *wavCursor) ReadChunk(maxBytes int) ([]byte, error) {
	frames := maxBytes / 2 / max(c.channels, 1)
	if frames <= 0 {
		frames = 1
	}
	buf := &audio.IntBuffer{
		Data:   make([]int, frames*c.channels),
		Format: &audio.Format{SampleRate: int(c.dec.SampleRate), NumChannels: c.channels},
	}
	n, err := c.dec.PCMBuffer(buf)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	buf.Data = buf.Data[:n]
	return intBufferToPCM16(buf), nil
}

func (c *wavCursor) Rewind() error {
	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	c.dec = wav.NewDecoder(c.file)
	c.dec.ReadInfo()
	return nil
}

func (c *wavCursor) Close() error { return c.file.Close() }

func intBufferToPCM16(buf *audio.IntBuffer) []byte {
	out := make([]byte, len(buf.Data)*2)
	for i, s := range buf.Data {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s)))
	}
	return out
}
