package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxContentLength bounds a single message. Editors send whole documents on
// didOpen and didChange, so it is generous.
const maxContentLength = 64 << 20

// Stream abstracts the transport mechanics from the JSON RPC protocol.
// A Conn reads and writes messages using the stream it was provided on
// construction, and assumes that each call to Read or Write fully transfers
// a single message, or returns an error.
// A stream is not safe for concurrent use, it is expected it will be used by
// a single Conn in a safe manner.
type Stream interface {
	// Read gets the next message from the stream.
	Read(context.Context) (Message, int64, error)
	// Write sends a message to the stream.
	Write(context.Context, Message) (int64, error)
}

// NewHeaderStream returns a Stream that frames messages with a
// Content-Length header, the framing LSP uses on stdio.
func NewHeaderStream(in io.Reader, out io.Writer) Stream {
	return &headerStream{
		out: out,
		in:  bufio.NewReader(in),
	}
}

type headerStream struct {
	out io.Writer
	in  *bufio.Reader
}

func (s *headerStream) Read(ctx context.Context) (Message, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	length, total, err := s.readHeader()
	if err != nil {
		return nil, total, err
	}
	data := make([]byte, length)
	n, err := io.ReadFull(s.in, data)
	total += int64(n)
	if err != nil {
		return nil, total, fmt.Errorf("reading %d byte body: %w", length, err)
	}
	msg, err := DecodeMessage(data)
	return msg, total, err
}

// readHeader consumes header lines up to the blank separator line and
// returns the announced body length.
func (s *headerStream) readHeader() (int64, int64, error) {
	var length, total int64
	for {
		line, err := s.in.ReadString('\n')
		total += int64(len(line))
		if err != nil {
			return 0, total, fmt.Errorf("failed reading header line: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return 0, total, fmt.Errorf("invalid header line %q", line)
		}
		// Content-Type is optional and always utf-8 JSON in practice
		if !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		length, err = strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return 0, total, fmt.Errorf("failed parsing Content-Length %q: %w", value, err)
		}
		if length <= 0 || length > maxContentLength {
			return 0, total, fmt.Errorf("invalid Content-Length: %d", length)
		}
	}
	if length == 0 {
		return 0, total, fmt.Errorf("missing Content-Length header")
	}
	return length, total, nil
}

func (s *headerStream) Write(ctx context.Context, msg Message) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("marshaling message: %w", err)
	}
	// header and body go out in one write so a failed write never leaves
	// half a frame behind a complete header
	var frame bytes.Buffer
	frame.Grow(len(data) + 32)
	fmt.Fprintf(&frame, "Content-Length: %d\r\n\r\n", len(data))
	frame.Write(data)
	n, err := s.out.Write(frame.Bytes())
	return int64(n), err
}
