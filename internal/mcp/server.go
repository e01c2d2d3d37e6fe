// Package mcp serves database tools to an agent over newline-delimited
// JSON-RPC: the tool registry, argument normalization, the dispatcher and
// the stdio server loop.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Server is the MCP server
type Server struct {
	dispatcher *Dispatcher
	in         io.Reader
	out        io.Writer
	logger     *slog.Logger
	slots      *semaphore.Weighted

	writeMu sync.Mutex
}

// ServerOptions configures a Server.
type ServerOptions struct {
	MaxInFlight int
	Logger      *slog.Logger
}

// NewServer creates a server that reads requests from in and writes
// responses to out.
func NewServer(d *Dispatcher, in io.Reader, out io.Writer, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxInFlight := opts.MaxInFlight
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Server{
		dispatcher: d,
		in:         in,
		out:        out,
		logger:     logger,
		slots:      semaphore.NewWeighted(int64(maxInFlight)),
	}
}

// Run serves requests until the input ends or ctx is done. Requests run
// concurrently and each response is written when its request completes.
// When the input ends Run waits for in-flight requests; when ctx is done it
// returns at once.
func (s *Server) Run(ctx context.Context) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		var err error
		defer func() {
			scanErr <- err
			close(lines)
		}()

		scanner := bufio.NewScanner(s.in)
		// Increase buffer size for large messages
		buf := make([]byte, 0, 1024*1024)
		scanner.Buffer(buf, 10*1024*1024)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			msg := append([]byte(nil), line...)
			select {
			case lines <- msg:
			case <-ctx.Done():
				return
			}
		}
		err = scanner.Err()
	}()

	var g errgroup.Group

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				_ = g.Wait()
				if err := <-scanErr; err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				return nil
			}
			s.handleLine(ctx, &g, line)
		}
	}
}

func (s *Server) handleLine(ctx context.Context, g *errgroup.Group, line []byte) {
	msg, err := jsonrpc.DecodeMessage(line)
	if err != nil {
		// Don't send error with null ID
		s.logger.Warn("parse error", "error", err)
		return
	}

	req, ok := msg.(*jsonrpc.Request)
	if !ok {
		s.logger.Debug("ignoring message", "type", fmt.Sprintf("%T", msg))
		return
	}
	if !req.IsCall() {
		// Notifications get no response
		s.logger.Debug("received notification", "method", req.Method)
		return
	}

	// Waiting for a free slot gives way to shutdown.
	if err := s.slots.Acquire(ctx, 1); err != nil {
		s.logger.Debug("dropping request on shutdown", "method", req.Method)
		return
	}

	id := req.ID.Raw()
	// In-flight calls are not cancelled by shutdown.
	callCtx := context.WithoutCancel(ctx)
	g.Go(func() error {
		defer s.slots.Release(1)
		env := s.dispatcher.Handle(callCtx, req.Method, req.Params)
		s.send(id, env)
		return nil
	})
}

func (s *Server) send(id interface{}, env Envelope) {
	resp := Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  env.Result,
		Error:   env.Error,
	}
	if env.Error != nil {
		resp.Result = nil
	}

	output, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("encode response", "error", err)
		output, _ = json.Marshal(Response{
			JSONRPC: "2.0",
			ID:      id,
			Error:   internalError(err).Error,
		})
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(append(output, '\n')); err != nil {
		s.logger.Error("write response", "error", err)
	}
}
