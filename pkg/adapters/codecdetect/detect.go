// Package codecdetect identifies the payload format of an elementary stream
// from its leading bytes.
package codecdetect

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/user/vidsurface/pkg/adapters/h264decoder"
	"github.com/user/vidsurface/pkg/adapters/rawcodec"
	"github.com/user/vidsurface/pkg/ports"
)

// ErrUnknownCodec is returned when no known signature matches.
var ErrUnknownCodec = errors.New("codecdetect: unknown codec")

// sniffLen is how many leading bytes are inspected.
const sniffLen = 64

var jpegSOI = []byte{0xFF, 0xD8, 0xFF}

// Detect returns the codec whose signature starts data.
func Detect(data []byte) (ports.CodecName, error) {
	switch {
	case bytes.HasPrefix(data, rawcodec.Magic):
		return ports.CodecRaw, nil
	case bytes.HasPrefix(data, jpegSOI):
		return ports.CodecMJPEG, nil
	case h264decoder.HasStartCode(data):
		if _, err := h264decoder.ParseAccessUnit(data); err == nil {
			return ports.CodecH264, nil
		}
	}
	return ports.CodecUnknown, ErrUnknownCodec
}

// DetectFromReader inspects the first bytes of r.
func DetectFromReader(r io.Reader) (ports.CodecName, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return ports.CodecUnknown, fmt.Errorf("read: %w", err)
	}
	return Detect(head[:n])
}

// DetectFromFile detects the codec of the stream stored at path.
func DetectFromFile(path string) (ports.CodecName, error) {
	f, err := os.Open(path)
	if err != nil {
		return ports.CodecUnknown, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return DetectFromReader(f)
}
