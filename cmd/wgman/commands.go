package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/loykin/wgman"
)

type command struct {
	mgr *wgman.Manager
	out io.Writer
}

// Up rotates to a random configuration matching f.Pattern.
func (c command) Up(ctx context.Context, f UpFlags) error {
	pattern, err := wgman.CompilePattern(f.Pattern)
	if err != nil {
		return err
	}
	// failed transitions are counted too, so export on every path
	defer c.writeMetrics()
	_, err = c.mgr.Up(ctx, pattern)
	return err
}

// Ls prints the configurations matching f.Pattern without touching any tunnel.
func (c command) Ls(f LsFlags) error {
	pattern, err := wgman.CompilePattern(f.Pattern)
	if err != nil {
		return err
	}
	return c.mgr.PrintList(pattern)
}

// Down brings the recorded configuration down. Nothing recorded is not an error.
func (c command) Down(ctx context.Context) error {
	defer c.writeMetrics()
	name, wasActive, err := c.mgr.Down(ctx)
	if err != nil {
		return err
	}
	if !wasActive {
		slog.Info("no active configuration")
	} else {
		slog.Debug("configuration down", "name", name)
	}
	return nil
}

func (c command) Status(f StatusFlags) error {
	st, err := c.mgr.Status()
	if err != nil {
		return err
	}
	if err := printJSON(c.out, st, f.Compact); err != nil {
		return fmt.Errorf("print status: %w", err)
	}
	return nil
}

func (c command) writeMetrics() {
	if err := c.mgr.WriteMetrics(); err != nil {
		slog.Warn("metrics export failed", "error", err)
	}
}
