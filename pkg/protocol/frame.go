package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Frame limits.
const (
	// MaxArrayLen bounds the number of elements in one frame. The
	// largest request, MOVE, has six.
	MaxArrayLen = 8

	// DefaultMaxBulkLen bounds a single element (16 MiB).
	DefaultMaxBulkLen = 16 << 20

	// maxHeaderLen bounds "*<n>\r\n" and "$<n>\r\n" lines.
	maxHeaderLen = 32
)

var (
	ErrProtocol      = errors.New("protocol: framing error")
	ErrLimitExceeded = errors.New("protocol: limit exceeded")
)

// Reader decodes frames from a buffered stream.
type Reader struct {
	r          *bufio.Reader
	maxBulkLen int
}

// NewReader returns a Reader. maxBulkLen <= 0 selects DefaultMaxBulkLen.
func NewReader(r *bufio.Reader, maxBulkLen int) *Reader {
	if maxBulkLen <= 0 {
		maxBulkLen = DefaultMaxBulkLen
	}
	return &Reader{r: r, maxBulkLen: maxBulkLen}
}

// Buffered exposes the underlying reader, e.g. for Peek.
func (fr *Reader) Buffered() *bufio.Reader { return fr.r }

// ReadFrame reads one frame. io.EOF is returned only on a clean
// boundary; EOF inside a frame is io.ErrUnexpectedEOF.
func (fr *Reader) ReadFrame() ([][]byte, error) {
	line, err := readLine(fr.r)
	if err != nil {
		return nil, err
	}
	if len(line) < 2 || line[0] != '*' {
		return nil, fmt.Errorf("%w: expected array header", ErrProtocol)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil || n < 1 {
		return nil, fmt.Errorf("%w: invalid array length %q", ErrProtocol, line[1:])
	}
	if n > MaxArrayLen {
		return nil, fmt.Errorf("%w: array length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
	}

	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		part, err := fr.readBulk()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		out = append(out, part)
	}
	return out, nil
}

func (fr *Reader) readBulk() ([]byte, error) {
	line, err := readLine(fr.r)
	if err != nil {
		return nil, err
	}
	if len(line) < 2 || line[0] != '$' {
		return nil, fmt.Errorf("%w: expected bulk string", ErrProtocol)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: invalid bulk length %q", ErrProtocol, line[1:])
	}
	if n > fr.maxBulkLen {
		return nil, fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrLimitExceeded, n, fr.maxBulkLen)
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		return nil, err
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return nil, fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	return buf[:n], nil
}

func readLine(r *bufio.Reader) (string, error) {
	var buf []byte
	for {
		frag, err := r.ReadSlice('\n')
		buf = append(buf, frag...)
		if len(buf) > maxHeaderLen {
			return "", fmt.Errorf("%w: header line exceeds limit %d", ErrLimitExceeded, maxHeaderLen)
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && len(buf) > 0 {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}

	if !bytes.HasSuffix(buf, []byte("\r\n")) {
		return "", fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}
	return strings.TrimSpace(string(buf[:len(buf)-2])), nil
}

// WriteFrame encodes parts as one frame. The caller flushes w.
func WriteFrame(w *bufio.Writer, parts ...[]byte) error {
	if len(parts) == 0 || len(parts) > MaxArrayLen {
		return fmt.Errorf("%w: frame with %d elements", ErrLimitExceeded, len(parts))
	}
	if _, err := w.WriteString("*" + strconv.Itoa(len(parts)) + "\r\n"); err != nil {
		return err
	}
	for _, p := range parts {
		if _, err := w.WriteString("$" + strconv.Itoa(len(p)) + "\r\n"); err != nil {
			return err
		}
		if _, err := w.Write(p); err != nil {
			return err
		}
		if _, err := w.WriteString("\r\n"); err != nil {
			return err
		}
	}
	return nil
}

// IsFramingError reports whether err leaves the stream unusable.
func IsFramingError(err error) bool {
	return errors.Is(err, ErrProtocol) || errors.Is(err, ErrLimitExceeded) || errors.Is(err, io.ErrUnexpectedEOF)
}
