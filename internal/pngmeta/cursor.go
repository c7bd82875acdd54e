package pngmeta

import (
	"encoding/binary"
	"errors"
)

var errShortRead = errors.New("read past end of buffer")

// cursor walks an immutable byte buffer with bounds-checked reads.
type cursor struct {
	buf []byte
	off int
}

func newCursor(buf []byte, off int) *cursor {
	return &cursor{buf: buf, off: off}
}

func (c *cursor) remaining() int {
	if c.off >= len(c.buf) {
		return 0
	}
	return len(c.buf) - c.off
}

func (c *cursor) readUint32() (uint32, error) {
	if c.remaining() < 4 {
		return 0, errShortRead
	}
	v := binary.BigEndian.Uint32(c.buf[c.off : c.off+4])
	c.off += 4
	return v, nil
}

func (c *cursor) readTag() ([4]byte, error) {
	var tag [4]byte
	if c.remaining() < 4 {
		return tag, errShortRead
	}
	copy(tag[:], c.buf[c.off:c.off+4])
	c.off += 4
	return tag, nil
}

// readBytes returns a view of the next n bytes without copying.
func (c *cursor) readBytes(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, errShortRead
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}
