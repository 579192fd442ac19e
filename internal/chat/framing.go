package chat

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"unicode"
)

// ErrMessageTooLong is returned by LineReader when a single line exceeds the
// configured maximum message size. The oversized line is consumed, so the
// stream stays aligned and the connection remains usable.
var ErrMessageTooLong = errors.New("message exceeds maximum size")

// LineReader reads newline-delimited messages from a byte stream and enforces
// the maximum message size.
//
// The wire protocol is one logical message per line. The reader's internal
// buffer is sized to the limit, so a line that does not fit is detected
// without unbounded buffering: the remainder of the line is drained and
// ErrMessageTooLong is returned for that message only.
type LineReader struct {
	r   *bufio.Reader
	max int
}

// NewLineReader wraps r with a size-bounded line reader. max is the maximum
// accepted line length in bytes, excluding the trailing newline.
func NewLineReader(r io.Reader, max int) *LineReader {
	if max < minMessageSize {
		max = minMessageSize
	}
	return &LineReader{
		// +1 so a line of exactly max bytes plus its '\n' fits the buffer.
		r:   bufio.NewReaderSize(r, max+1),
		max: max,
	}
}

// bufio.NewReaderSize silently rounds tiny buffers up; keep the floor explicit.
const minMessageSize = 64

// ReadLine reads the next message. The trailing newline (and optional
// carriage return) is stripped. On ErrMessageTooLong the caller may keep
// reading; any other error is terminal for the connection.
func (lr *LineReader) ReadLine() (string, error) {
	line, err := lr.r.ReadSlice('\n')
	if err == nil {
		return trimLineEnding(string(line)), nil
	}
	if errors.Is(err, bufio.ErrBufferFull) {
		// Line longer than the limit: drain up to the newline so the next
		// read starts on a message boundary.
		for errors.Is(err, bufio.ErrBufferFull) {
			_, err = lr.r.ReadSlice('\n')
		}
		if err != nil {
			return "", err
		}
		return "", ErrMessageTooLong
	}
	// EOF with a partial unterminated line still counts as a message; this
	// matches clients that close right after their last write.
	if errors.Is(err, io.EOF) && len(line) > 0 {
		return trimLineEnding(string(line)), nil
	}
	return "", err
}

func trimLineEnding(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

// Sanitize strips non-printable control characters from a message before it
// is broadcast, preventing terminal escape injection against other clients.
// Printable runes (including space) pass through unchanged.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
}
