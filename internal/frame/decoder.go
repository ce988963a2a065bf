package frame

import (
	"bufio"
	"bytes"
	"io"

	"codeberg.org/mutker/hostlink/internal/errors"
)

// Decoder splits a byte stream back into frames using the tag registry
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next frame. It returns io.EOF at a clean end of stream,
// ErrShortFrame when the stream ends inside a payload and ErrUnknownTag for
// a tag with no registered length.
func (d *Decoder) Next() (Frame, error) {
	errFactory := errors.New()

	tag, err := d.r.ReadByte()
	if err != nil {
		return nil, err
	}

	size, ok := PayloadLen(DataType(tag))
	if !ok {
		return nil, errFactory.WithData(errors.ErrUnknownTag, DataType(tag))
	}

	f := make(Frame, 1+size)
	f[0] = tag
	if _, err := io.ReadFull(d.r, f[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrShortFrame, err)
	}

	return f, nil
}

// DecodeAll decodes every frame in b
func DecodeAll(b []byte) ([]Frame, error) {
	d := NewDecoder(bytes.NewReader(b))

	var frames []Frame
	for {
		f, err := d.Next()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
}
