package v086

import (
	"encoding/binary"
	"fmt"

	"github.com/rs/zerolog/log"
)

// MaxBundleMessages is the largest count a bundle header may declare.
const MaxBundleMessages = 32

// Frame is one numbered message inside a bundle.
type Frame struct {
	Number  uint16
	Message Message
}

// DecodeBundle parses a datagram into frames, dropping the ones already seen.
// lastSeen is the highest message number processed so far, or -1 before the
// first message. Frames come back in wire order, which is newest first.
func DecodeBundle(b []byte, lastSeen int, cs Charset) ([]Frame, error) {
	if len(b) < 5 {
		return nil, fmt.Errorf("%w: datagram length %d", ErrBundleFormat, len(b))
	}
	count := int(b[0])
	if count < 1 || count > MaxBundleMessages {
		return nil, fmt.Errorf("%w: message count %d", ErrBundleFormat, count)
	}
	if len(b) < 1+count*6 {
		return nil, fmt.Errorf("%w: datagram length %d for %d messages", ErrBundleFormat, len(b), count)
	}
	r := &reader{buf: b, pos: 1, cs: cs}

	first := int(binary.LittleEndian.Uint16(b[1:]))
	if first-1 == lastSeen || (first == 0 && lastSeen == 0xFFFF) {
		r.pos += 2
		f, err := decodeFrame(r, uint16(first))
		if err != nil {
			return nil, err
		}
		return []Frame{f}, nil
	}

	frames := make([]Frame, 0, count)
	for len(frames) < count {
		num, err := r.u16()
		if err != nil {
			return nil, err
		}
		if !Newer(num, lastSeen) {
			break
		}
		f, err := decodeFrame(r, num)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// Newer reports whether message number n comes after lastSeen. Numbers are
// compared as serial numbers modulo 65536: n is newer when it lies in the
// half of the number space that follows lastSeen. Every number is newer than
// lastSeen -1.
func Newer(n uint16, lastSeen int) bool {
	if lastSeen < 0 {
		return true
	}
	d := n - uint16(lastSeen)
	return d != 0 && d < 0x8000
}

func decodeFrame(r *reader, num uint16) (Frame, error) {
	length, err := r.u16()
	if err != nil {
		return Frame{}, err
	}
	if length < 2 || int(length) > r.remaining() {
		return Frame{}, fmt.Errorf("%w: message %d length %d", ErrBundleFormat, num, length)
	}
	typ, _ := r.u8()
	dec, ok := decoders[typ]
	if !ok {
		return Frame{}, fmt.Errorf("%w: 0x%02x", ErrUnknownMessageType, typ)
	}
	start := r.pos
	msg, err := dec(r)
	if err != nil {
		return Frame{}, fmt.Errorf("decode message %d type 0x%02x: %w", num, typ, err)
	}
	if parsed := r.pos - start + 1; parsed != int(length) {
		log.Warn().
			Uint16("message_number", num).
			Uint8("type_id", typ).
			Int("declared", int(length)).
			Int("parsed", parsed).
			Msg("bundle length mismatch")
	}
	return Frame{Number: num, Message: msg}, nil
}

// EncodeBundle writes frames in the order given. Callers put the newest
// message first. Frames past MaxBundleMessages are not written.
func EncodeBundle(frames []Frame, cs Charset) []byte {
	if len(frames) > MaxBundleMessages {
		frames = frames[:MaxBundleMessages]
	}
	w := &writer{buf: make([]byte, 0, 256), cs: cs}
	w.u8(uint8(len(frames)))
	for _, f := range frames {
		appendFrame(w, f)
	}
	return w.buf
}

func appendFrame(w *writer, f Frame) {
	start := len(w.buf)
	w.u16(f.Number)
	w.u16(0)
	w.u8(f.Message.TypeID())
	f.Message.writeBody(w)
	binary.LittleEndian.PutUint16(w.buf[start+2:], uint16(len(w.buf)-start-4))
}

// BodySize is the encoded size of m's body, excluding the type byte.
func BodySize(m Message, cs Charset) int {
	w := &writer{cs: cs}
	m.writeBody(w)
	return len(w.buf)
}
