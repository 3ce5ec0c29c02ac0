package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/duelscope/recorder/internal/config"
)

// Serve reads from the source named in cfg until it is exhausted or ctx is done.
// A TCP source accepts one simulation connection at a time and keeps listening
// after each one disconnects.
func (r *Reader) Serve(ctx context.Context, cfg config.ListenConfig) error {
	switch cfg.Source {
	case "", "stdin":
		st, err := r.Read(ctx, os.Stdin)
		r.logStats("stdin", st)
		return err

	case "file":
		f, err := os.Open(cfg.Path)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer f.Close()
		st, err := r.Read(ctx, f)
		r.logStats(cfg.Path, st)
		return err

	case "tcp":
		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", cfg.Address)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.Address, err)
		}
		return r.ServeListener(ctx, ln)

	default:
		return fmt.Errorf("unknown listen source %q", cfg.Source)
	}
}

// ServeListener accepts connections from ln until ctx is done. ln is closed on return.
func (r *Reader) ServeListener(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer ln.Close()

	r.logger.Info("Listening for simulation", "address", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}

		remote := conn.RemoteAddr().String()
		r.logger.Info("Simulation connected", "remote", remote)
		closeConn := context.AfterFunc(ctx, func() { conn.Close() })
		st, err := r.Read(ctx, conn)
		closeConn()
		conn.Close()
		r.logStats(remote, st)

		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) {
				r.logger.Warn("Simulation connection dropped", "remote", remote, "error", err)
				continue
			}
			return err
		}
	}
}

func (r *Reader) logStats(source string, st Stats) {
	r.logger.Info("Input finished",
		"source", source,
		"lines", st.Lines,
		"dispatched", st.Dispatched,
		"unhandled", st.Unhandled,
		"malformed", st.Malformed,
		"rejected", st.Rejected)
}
