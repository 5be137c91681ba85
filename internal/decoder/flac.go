package decoder

import (
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/tphakala/flac"
	"github.com/tphakala/flac/frame"

	"github.com/rustyguts/audiomix"
)

// FLAC decodes free lossless audio codec files via github.com/tphakala/flac.
type FLAC struct{}

// Decode fully decodes a FLAC file into signed PCM at its native bit depth.
func (FLAC) Decode(path string) (audiomix.DecodedAsset, error) {
	f, err := os.Open(path)
	if err != nil {
		return audiomix.DecodedAsset{}, err
	}
	defer f.Close()

	stream, err := flac.Parse(f)
	if err != nil {
		return audiomix.DecodedAsset{}, err
	}

	bytesPerSample := int(stream.Info.BitsPerSample) / 8
	var pcm []byte
	for {
		fr, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return audiomix.DecodedAsset{}, err
		}
		pcm = append(pcm, frameToPCM(fr, bytesPerSample)...)
	}

	rate := int(stream.Info.SampleRate)
	duration := time.Duration(0)
	if rate > 0 && stream.Info.NSamples > 0 {
		duration = time.Duration(float64(stream.Info.NSamples) / float64(rate) * float64(time.Second))
	}

	return audiomix.DecodedAsset{
		PCM:        pcm,
		SampleRate: rate,
		Channels:   int(stream.Info.NChannels),
		Bits:       int(stream.Info.BitsPerSample),
		Duration:   duration,
	}, nil
}

// OpenStream opens path for frame-at-a-time reads.
func (d FLAC) OpenStream(path string) (audiomix.StreamCursor, audiomix.DecodedAsset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, audiomix.DecodedAsset{}, err
	}
	stream, err := flac.Parse(f)
	if err != nil {
		f.Close()
		return nil, audiomix.DecodedAsset{}, err
	}
	meta := audiomix.DecodedAsset{
		SampleRate: int(stream.Info.SampleRate),
		Channels:   int(stream.Info.NChannels),
		Bits:       int(stream.Info.BitsPerSample),
	}
	cur := &flacCursor{file: f, path: path, stream: stream, bytesPerSample: int(stream.Info.BitsPerSample) / 8}
	return cur, meta, nil
}

type flacCursor struct {
	file           *os.File
	path           string
	stream         *flac.Stream
	bytesPerSample int
	pending        []byte
}

func (c *flacCursor) ReadChunk(maxBytes int) ([]byte, error) {
	for len(c.pending) < maxBytes {
		fr, err := c.stream.Next()
		if err == io.EOF {
			if len(c.pending) == 0 {
				return nil, io.EOF
			}
			break
		}
		if err != nil {
			return nil, err
		}
		c.pending = append(c.pending, frameToPCM(fr, c.bytesPerSample)...)
	}
	n := maxBytes
	if n > len(c.pending) {
		n = len(c.pending)
	}
	chunk := c.pending[:n]
	c.pending = c.pending[n:]
	return chunk, nil
}

func (c *flacCursor) Rewind() error {
	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	stream, err := flac.Parse(c.file)
	if err != nil {
		return err
	}
	c.stream = stream
	c.pending = nil
	return nil
}

func (c *flacCursor) Close() error { return c.file.Close() }

// frameToPCM interleaves a decoded FLAC frame's subframes into little-endian
// PCM bytes at the stream's native bit depth.
func frameToPCM(fr *frame.Frame, bytesPerSample int) []byte {
	if len(fr.Subframes) == 0 {
		return nil
	}
	numSamples := len(fr.Subframes[0].Samples)
	out := make([]byte, 0, numSamples*len(fr.Subframes)*bytesPerSample)
	for i := 0; i < numSamples; i++ {
		for _, sub := range fr.Subframes {
			v := int32(sub.Samples[i])
			switch bytesPerSample {
			case 1:
				out = append(out, byte(v))
			case 2:
				var b [2]byte
				binary.LittleEndian.PutUint16(b[:], uint16(int16(v)))
				out = append(out, b[:]...)
			default:
				var b [4]byte
				binary.LittleEndian.PutUint32(b[:], uint32(v))
				out = append(out, b[:bytesPerSample]...)
			}
		}
	}
	return out
}
