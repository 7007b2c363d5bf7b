// Package chunked implements the framed output transport read by the host.
//
// A frame is an ASCII line "chunked 1.0,<header_len>,<body_len>\n" followed by
// header_len bytes of JSON header and body_len bytes of body.
package chunked

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// Preamble starts every frame.
	Preamble = "chunked 1.0"
	// StreamTypeKey is the header field carrying the negotiated stream type.
	StreamTypeKey = "stream_type"
	// StreamTypeRaw marks a body of newline separated records.
	StreamTypeRaw = "raw"

	maxFrameLine = 64
)

// ErrBadFrame is returned by Reader for input that is not a valid frame.
var ErrBadFrame = errors.New("bad chunk frame")

// Writer emits frames to an underlying stream. It buffers output until Flush.
type Writer struct {
	w          *bufio.Writer
	streamType string
}

// NewWriter creates a Writer with the raw stream type.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w), streamType: StreamTypeRaw}
}

// SetStreamType changes the stream type announced in subsequent headers.
func (w *Writer) SetStreamType(t string) { w.streamType = t }

// WriteHeader emits a header-only frame.
func (w *Writer) WriteHeader(fields map[string]string) error {
	payload := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	if w.streamType != "" {
		payload[StreamTypeKey] = w.streamType
	}
	header, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode chunk header: %w", err)
	}
	return w.frame(header, nil)
}

// WriteBody emits a body-only frame. Empty bodies are skipped.
func (w *Writer) WriteBody(body []byte) error {
	if len(body) == 0 {
		return nil
	}
	return w.frame(nil, body)
}

// Flush pushes buffered frames to the underlying stream.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

func (w *Writer) frame(header, body []byte) error {
	if _, err := fmt.Fprintf(w.w, "%s,%d,%d\n", Preamble, len(header), len(body)); err != nil {
		return err
	}
	if _, err := w.w.Write(header); err != nil {
		return err
	}
	_, err := w.w.Write(body)
	return err
}

// Chunk is one decoded frame. Exactly one of Header and Body is set.
type Chunk struct {
	Header map[string]string
	Body   []byte
}

// IsHeader reports whether the chunk carried a header.
func (c Chunk) IsHeader() bool { return c.Header != nil }

// Reader decodes frames written by Writer.
type Reader struct {
	r *bufio.Reader
}

// NewReader creates a Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next frame, or io.EOF when the stream ends cleanly.
func (r *Reader) Next() (Chunk, error) {
	line, err := r.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line == "" {
			return Chunk{}, io.EOF
		}
		return Chunk{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if len(line) > maxFrameLine {
		return Chunk{}, fmt.Errorf("%w: frame line too long", ErrBadFrame)
	}

	headerLen, bodyLen, err := parseFrameLine(strings.TrimSuffix(line, "\n"))
	if err != nil {
		return Chunk{}, err
	}

	var c Chunk
	if headerLen > 0 {
		buf := make([]byte, headerLen)
		if _, err := io.ReadFull(r.r, buf); err != nil {
			return Chunk{}, fmt.Errorf("%w: header: %v", ErrBadFrame, err)
		}
		if err := json.Unmarshal(buf, &c.Header); err != nil {
			return Chunk{}, fmt.Errorf("%w: header: %v", ErrBadFrame, err)
		}
		if c.Header == nil {
			c.Header = map[string]string{}
		}
	}
	if bodyLen > 0 {
		c.Body = make([]byte, bodyLen)
		if _, err := io.ReadFull(r.r, c.Body); err != nil {
			return Chunk{}, fmt.Errorf("%w: body: %v", ErrBadFrame, err)
		}
	}
	return c, nil
}

func parseFrameLine(line string) (int, int, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 || parts[0] != Preamble {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadFrame, line)
	}
	headerLen, err := strconv.Atoi(parts[1])
	if err != nil || headerLen < 0 {
		return 0, 0, fmt.Errorf("%w: header length %q", ErrBadFrame, parts[1])
	}
	bodyLen, err := strconv.Atoi(parts[2])
	if err != nil || bodyLen < 0 {
		return 0, 0, fmt.Errorf("%w: body length %q", ErrBadFrame, parts[2])
	}
	return headerLen, bodyLen, nil
}

// ReadAll decodes every frame of r.
func ReadAll(r io.Reader) ([]Chunk, error) {
	cr := NewReader(r)
	var out []Chunk
	for {
		c, err := cr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
}
