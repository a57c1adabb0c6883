package server

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/golovatskygroup/compliance-mcp/pkg/mcp"
)

// ServeStdio reads line-delimited requests from r and writes responses to w
// until EOF. tools/call requests run concurrently; responses may arrive out of
// order and are matched by id.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	transport := mcp.NewTransport(r, w)
	var wg sync.WaitGroup
	defer wg.Wait()

	write := func(resp *mcp.Response) {
		if resp == nil {
			return
		}
		if err := transport.WriteResponse(resp); err != nil {
			s.logger.Error("error writing response", "error", err)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		req, err := transport.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return nil
			case errors.Is(err, mcp.ErrEmptyLine):
				continue
			case errors.Is(err, mcp.ErrMalformed):
				s.logger.Warn("malformed message", "error", err)
				write(mcp.NewErrorResponse(nil, mcp.ParseError, err.Error()))
				continue
			default:
				return err
			}
		}

		if req.Method == "tools/call" {
			wg.Add(1)
			go func() {
				defer wg.Done()
				write(s.Handle(ctx, req))
			}()
			continue
		}
		write(s.Handle(ctx, req))
	}
}
