package audiomix

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DecodedAsset is the metadata and (for static assets) full PCM payload
// returned by a one-shot Decoder.Decode call.
type DecodedAsset struct {
	PCM        []byte
	SampleRate int
	Channels   int
	Bits       int
	Duration   time.Duration
}

// Decoder is the external codec collaborator. The core never parses a
// bitstream itself; it dispatches to a Decoder chosen by file extension and
// treats the result as opaque PCM + metadata.
//
// StreamDecoder additionally supports incremental reads for StreamSound; a
// Decoder that does not implement it can still back a static SimpleSound.
type Decoder interface {
	// Decode fully decodes path and returns its PCM payload and metadata.
	Decode(path string) (DecodedAsset, error)
}

// StreamDecoder is a Decoder that can also be driven incrementally, one
// chunk at a time, for StreamSound's buffer ring.
type StreamDecoder interface {
	Decoder
	// OpenStream opens path for incremental reads and returns its metadata
	// (PCM is empty; use ReadChunk to pull samples).
	OpenStream(path string) (StreamCursor, DecodedAsset, error)
}

// StreamCursor is a single open decode session used by StreamSound.
type StreamCursor interface {
	// ReadChunk returns up to maxBytes of PCM, or io.EOF when the asset is
	// exhausted.
	ReadChunk(maxBytes int) ([]byte, error)
	// Rewind resets the cursor to the start of the asset, used both by
	// looped streams and by Source.stop's rewindStream.
	Rewind() error
	Close() error
}

// registry maps a file extension to the Decoder responsible for it. The
// Manager's constructor creates it empty; callers fill it through
// Manager.RegisterDecoder (the audiomixctl CLI registers the WAV and FLAC
// adapters from internal/decoder), and embedders can add their own
// Ogg/Speex/M4A decoders satisfying the same Decoder interface.
type decoderRegistry struct {
	byExt map[string]Decoder
}

func newDecoderRegistry() *decoderRegistry {
	return &decoderRegistry{byExt: make(map[string]Decoder)}
}

func (r *decoderRegistry) register(ext string, d Decoder) {
	r.byExt[strings.ToLower(ext)] = d
}

func (r *decoderRegistry) forPath(path string) (Decoder, bool) {
	d, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return d, ok
}

// isOgg, isSpx and isM4a classify a sound by file extension, for per-
// extension routing to a decoder, even though the actual decode work is
// delegated to whatever Decoder the registry holds for that extension.
func isOgg(path string) bool { return strings.EqualFold(filepath.Ext(path), ".ogg") }
func isSpx(path string) bool { return strings.EqualFold(filepath.Ext(path), ".spx") }
func isM4a(path string) bool { return strings.EqualFold(filepath.Ext(path), ".m4a") }
func isWav(path string) bool { return strings.EqualFold(filepath.Ext(path), ".wav") }
func isFlac(path string) bool { return strings.EqualFold(filepath.Ext(path), ".flac") }

// isLink reports whether path is a link file: a plain text file whose single
// line names the real asset, resolved relative to path's own directory.
func isLink(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".link")
}

// resolveLink reads a link file and returns the path of the asset it names,
// joined onto the link file's own directory (absolute only when linkPath is). The link file format is a single line containing the target
// filename, relative to the directory the link file lives in.
func resolveLink(linkPath string) (string, error) {
	f, err := os.Open(linkPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", os.ErrInvalid
	}
	target := strings.TrimSpace(scanner.Text())
	return filepath.Join(filepath.Dir(linkPath), target), nil
}
