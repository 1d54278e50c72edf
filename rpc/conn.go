package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Conn is the common interface to jsonrpc servers.
// Conn is bidirectional; it does not have a designated server or client end.
// It manages the jsonrpc2 protocol, connecting responses back to their calls.
type Conn interface {
	// Call invokes the target method and waits for a response.
	// The params will be marshaled to JSON before sending over the wire, and will
	// be handed to the method invoked.
	// The response will be unmarshaled from JSON into the result.
	// The id returned will be unique from this connection, and can be used for
	// logging or tracking.
	Call(ctx context.Context, method string, params, result any) (ID, error)

	// Notify invokes the target method but does not wait for a response.
	// The params will be marshaled to JSON before sending over the wire, and will
	// be handed to the method invoked.
	Notify(ctx context.Context, method string, params any) error

	// Run reads messages until the stream fails or ctx is done. A stream that
	// reaches EOF ends Run without an error.
	Run(ctx context.Context, handler Handler) error

	Done() <-chan struct{}

	Logger() *slog.Logger
}

type conn struct {
	seq       int64 // must only be accessed using atomic operations
	stream    Stream
	logger    *slog.Logger
	writeMu   sync.Mutex // serializes writes to stream
	pendingMu sync.Mutex // protects the pending map
	pending   map[ID]chan *Response
	handling  sync.WaitGroup
	done      chan struct{}
}

// NewConn creates a new connection object around the supplied stream.
func NewConn(s Stream, logger *slog.Logger) Conn {
	if logger == nil {
		logger = slog.Default()
	}
	conn := &conn{
		stream:  s,
		logger:  logger,
		pending: make(map[ID]chan *Response),
		done:    make(chan struct{}),
	}
	return conn
}

func (c *conn) Logger() *slog.Logger {
	return c.logger
}

func (c *conn) Notify(ctx context.Context, method string, params any) (err error) {
	notify, err := NewNotification(method, params)
	if err != nil {
		return fmt.Errorf("marshaling notify parameters: %v", err)
	}
	_, err = c.write(ctx, notify)
	return err
}

func (c *conn) Call(ctx context.Context, method string, params, result any) (_ ID, err error) {
	// generate a new request identifier
	id := ID{number: atomic.AddInt64(&c.seq, 1)}
	call, err := NewCall(id, method, params)
	if err != nil {
		return id, fmt.Errorf("marshaling call parameters: %v", err)
	}
	// We have to add ourselves to the pending map before we send, otherwise we
	// are racing the response. Also add a buffer to rchan, so that if we get a
	// wire response between the time this call is cancelled and id is deleted
	// from c.pending, the send to rchan will not block.
	rchan := make(chan *Response, 1)
	c.pendingMu.Lock()
	c.pending[id] = rchan
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()
	// now we are ready to send
	_, err = c.write(ctx, call)
	if err != nil {
		// sending failed, we will never get a response, so don't leave it pending
		return id, err
	}
	// now wait for the response
	select {
	case response := <-rchan:
		// is it an error response?
		if response.err != nil {
			return id, response.err
		}
		if result == nil || len(response.result) == 0 {
			return id, nil
		}
		if err := json.Unmarshal(response.result, result); err != nil {
			return id, fmt.Errorf("unmarshaling result: %v", err)
		}
		return id, nil
	case <-c.done:
		return id, fmt.Errorf("connection closed while waiting for %q", method)
	case <-ctx.Done():
		return id, ctx.Err()
	}
}

func (c *conn) replier(req Request) Replier {
	return func(ctx context.Context, result any, err error) error {
		call, ok := req.(*Call)
		if !ok {
			// request was a notify, no need to respond
			return nil
		}
		response, err := NewResponse(call.id, result, err)
		if err != nil {
			return err
		}
		_, err = c.write(ctx, response)
		if err != nil {
			return err
		}
		return nil
	}
}

func (c *conn) write(ctx context.Context, msg Message) (int64, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.stream.Write(ctx, msg)
}

func (c *conn) Run(ctx context.Context, handler Handler) error {
	defer c.handling.Wait()
	defer close(c.done)
	for {
		// get the next message
		msg, _, err := c.stream.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			// The stream failed, we cannot continue.
			return fmt.Errorf("reading from stream: %w", err)
		}
		switch msg := msg.(type) {
		case *Notification:
			// notifications are handled in order, document changes depend on it
			if err := handler(ctx, c.replier(msg), msg); err != nil {
				c.logger.Debug("notification delivery failed", "method", msg.Method(), "error", err)
			}
		case *Call:
			// calls may issue calls of their own, so they must not block the
			// read loop that delivers the responses
			c.handling.Add(1)
			go func() {
				defer c.handling.Done()
				if err := handler(ctx, c.replier(msg), msg); err != nil {
					c.logger.Debug("call delivery failed", "method", msg.Method(), "error", err)
				}
			}()
		case *Response:
			// If method is not set, this should be a response, in which case we must
			// have an id to send the response back to the caller.
			c.pendingMu.Lock()
			rchan, ok := c.pending[msg.id]
			c.pendingMu.Unlock()
			if ok {
				rchan <- msg
			}
		}
	}
}

func (c *conn) Done() <-chan struct{} {
	return c.done
}
