package v086

import (
	"bytes"
	"encoding/binary"
)

type reader struct {
	buf []byte
	pos int
	cs  Charset
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) u8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, ErrInsufficientBytes
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, ErrInsufficientBytes
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, ErrInsufficientBytes
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) str() (string, error) {
	i := bytes.IndexByte(r.buf[r.pos:], 0)
	if i < 0 {
		return "", ErrInsufficientBytes
	}
	s := r.cs.Decode(r.buf[r.pos : r.pos+i])
	r.pos += i + 1
	return s, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, ErrInsufficientBytes
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

// zero consumes the leading 0x00 byte several bodies start with.
func (r *reader) zero() error {
	b, err := r.u8()
	if err != nil {
		return err
	}
	if b != 0 {
		return formatErr("leading byte = 0x%02x, want 0x00", b)
	}
	return nil
}

type writer struct {
	buf []byte
	cs  Charset
}

func (w *writer) u8(v uint8) { w.buf = append(w.buf, v) }

func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

func (w *writer) str(s string) {
	w.buf = append(w.buf, w.cs.Encode(s)...)
	w.buf = append(w.buf, 0)
}

func (w *writer) bytes(b []byte) { w.buf = append(w.buf, b...) }
