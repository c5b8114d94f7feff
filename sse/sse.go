// Package sse implements the line framing of the chat event stream.
//
// A frame is one newline-terminated line starting with "data: ". The
// Decoder turns arbitrarily split byte chunks into frame payloads, the
// Reader pulls payloads from an io.Reader, and the Writer emits frames on
// the server side. Payload semantics live elsewhere.
package sse

import (
	"bytes"
	"errors"
	"io"
)

// Prefix marks a line that carries an event payload.
const Prefix = "data: "

var prefix = []byte(Prefix)

// readSize is the buffer size used by Reader for each Read call.
const readSize = 4096

// Decoder splits a byte stream into frame payloads. It keeps the unfinished
// last line between calls, so chunks may be split at any byte. Lines without
// the data prefix (comments, keep-alives, blank separators, "event:" fields)
// are dropped. A trailing "\r" is stripped from every line.
//
// The zero value is ready to use. A Decoder is not safe for concurrent use.
type Decoder struct {
	buf []byte
}

// Feed appends chunk to the pending input and returns the payloads of all
// lines it completed, in order. The prefix is removed from each payload.
func (d *Decoder) Feed(chunk []byte) []string {
	d.buf = append(d.buf, chunk...)

	var frames []string
	start := 0
	for {
		i := bytes.IndexByte(d.buf[start:], '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(d.buf[start:start+i], []byte{'\r'})
		start += i + 1
		if payload, ok := bytes.CutPrefix(line, prefix); ok {
			frames = append(frames, string(payload))
		}
	}
	n := copy(d.buf, d.buf[start:])
	d.buf = d.buf[:n]
	return frames
}

// Pending returns the number of buffered bytes not yet terminated by a newline.
func (d *Decoder) Pending() int { return len(d.buf) }

// Flush ends the stream. An unterminated last line is not a frame: it is
// dropped and its length returned so callers can report it.
func (d *Decoder) Flush() int {
	n := len(d.buf)
	d.buf = d.buf[:0]
	return n
}

// Reader pulls frame payloads from an underlying io.Reader.
type Reader struct {
	r         io.Reader
	dec       Decoder
	buf       []byte
	pending   []string
	err       error
	discarded int
}

// NewReader returns a Reader decoding frames from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, buf: make([]byte, readSize)}
}

// Next returns the next payload. It returns io.EOF once r is exhausted and
// every complete frame has been returned, or the first read error. Frames
// decoded before a read error are still returned first.
func (r *Reader) Next() (string, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return "", r.err
		}
		n, err := r.r.Read(r.buf)
		if n > 0 {
			r.pending = r.dec.Feed(r.buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.discarded = r.dec.Flush()
				err = io.EOF
			}
			r.err = err
		}
	}
	frame := r.pending[0]
	r.pending = r.pending[1:]
	return frame, nil
}

// Discarded returns the size of the unterminated tail dropped at end of
// stream. It is zero until Next has returned io.EOF.
func (r *Reader) Discarded() int { return r.discarded }
