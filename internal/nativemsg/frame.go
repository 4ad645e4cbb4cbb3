// Package nativemsg implements the browser native messaging wire format:
// every message is a 32-bit length in native byte order followed by that
// many bytes of UTF-8 JSON.
package nativemsg

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Taichi-iskw/yt-skip/internal/errors"
)

// MaxFrameSize is the largest message the browser accepts from a host
const MaxFrameSize = 1 << 20

// ReadFrame reads one message into v. io.EOF is returned untouched when the
// stream ends cleanly before a new frame.
func ReadFrame(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return errors.Wrap(err, errors.CodeTransport, "failed to read frame header")
	}

	size := binary.NativeEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return errors.New(errors.CodeTransport, fmt.Sprintf("frame of %d bytes exceeds limit of %d", size, MaxFrameSize))
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return errors.Wrap(err, errors.CodeTransport, "failed to read frame body")
	}

	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrap(err, errors.CodeMalformed, "frame is not valid JSON")
	}
	return nil
}

// WriteFrame encodes v and writes it as one message
func WriteFrame(w io.Writer, v any) error {
	body, err := Encode(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return errors.Wrap(err, errors.CodeTransport, "failed to write frame")
	}
	return nil
}

// Encode returns the framed bytes for v
func Encode(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to encode frame")
	}
	if len(payload) > MaxFrameSize {
		return nil, errors.New(errors.CodeInvalidArg, fmt.Sprintf("frame of %d bytes exceeds limit of %d", len(payload), MaxFrameSize))
	}

	buf := make([]byte, 4+len(payload))
	binary.NativeEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	return buf, nil
}
