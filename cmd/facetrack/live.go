package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/MrCodeEU/facetrack/pkg/logging"
	"github.com/MrCodeEU/facetrack/pkg/naming"
	"github.com/MrCodeEU/facetrack/pkg/render"
	"github.com/MrCodeEU/facetrack/pkg/session"
)

func cmdLive(args []string) error {
	snapshotPath := cfg.Display.SnapshotPath
	if len(args) > 0 {
		snapshotPath = args[0]
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	engine, err := newEngine()
	if err != nil {
		return err
	}

	s, err := session.Open(cfg, engine, newCameraSource())
	if err != nil {
		_ = engine.Close()
		var serr *session.Error
		if errors.As(err, &serr) && serr.Fatal {
			return fmt.Errorf("%s: %w", serr.Message, serr.Err)
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := render.NewSnapshotSink(snapshotPath, render.NewRenderer(image.Pt(cfg.Display.Width, cfg.Display.Height)))
	stdin := bufio.NewReader(os.Stdin)
	controller := naming.NewController(s, s.Store(), naming.NewLinePrompter(stdin, os.Stdout))

	var wg sync.WaitGroup
	wg.Add(2)
	runErr := make(chan error, 1)
	go func() {
		defer wg.Done()
		runErr <- s.Run(ctx)
		stop()
	}()
	go func() {
		defer wg.Done()
		if err := sink.Consume(ctx, s.Frames()); err != nil {
			logging.WithError(err).Warn("Snapshot writer stopped")
		}
	}()

	fmt.Printf("Tracking. Snapshots: %s\n", snapshotPath)
	fmt.Println("Commands: move <x> <y>, leave, size <w> <h>, click, quit")

	go func() {
		readCommands(ctx, stdin, s, controller, os.Stdout)
		stop()
	}()

	<-ctx.Done()
	fmt.Println("\nStopping...")

	// Close stops the loop and wakes the snapshot writer.
	closeErr := s.Close()
	wg.Wait()
	if closeErr != nil {
		logging.WithError(closeErr).Warn("Session closed with errors")
	}

	if err := <-runErr; err != nil {
		return err
	}
	return closeErr
}

// pointerSession is the part of a session driven by terminal commands.
type pointerSession interface {
	SetPointer(p image.Point)
	ClearPointer()
	SetDisplaySize(size image.Point)
}

// readCommands applies terminal commands until quit, end of input or ctx
// ends. The naming prompt reads from the same input as the commands.
func readCommands(ctx context.Context, in *bufio.Reader, s pointerSession, controller *naming.Controller, out io.Writer) {
	for ctx.Err() == nil {
		line, err := in.ReadString('\n')
		if line != "" && !handleCommand(line, s, controller, out) {
			return
		}
		if err != nil {
			return
		}
	}
}

// handleCommand applies one command line. It returns false on quit.
func handleCommand(line string, s pointerSession, controller *naming.Controller, out io.Writer) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch fields[0] {
	case "move":
		p, ok := parsePoint(fields[1:])
		if !ok {
			fmt.Fprintln(out, "usage: move <x> <y>")
			return true
		}
		s.SetPointer(p)
	case "leave":
		s.ClearPointer()
	case "size":
		p, ok := parsePoint(fields[1:])
		if !ok || p.X <= 0 || p.Y <= 0 {
			fmt.Fprintln(out, "usage: size <w> <h>")
			return true
		}
		s.SetDisplaySize(p)
	case "click":
		id, outcome, err := controller.Rename()
		switch {
		case errors.Is(err, naming.ErrNoSelection):
			fmt.Fprintln(out, "No face under the pointer.")
		case err != nil:
			fmt.Fprintf(out, "Rename failed: %v\n", err)
		default:
			fmt.Fprintf(out, "ID %d %s.\n", id, outcome)
		}
	case "quit", "exit":
		return false
	default:
		fmt.Fprintf(out, "unknown command: %s\n", fields[0])
	}
	return true
}

func parsePoint(args []string) (image.Point, bool) {
	if len(args) != 2 {
		return image.Point{}, false
	}
	x, err := strconv.Atoi(args[0])
	if err != nil {
		return image.Point{}, false
	}
	y, err := strconv.Atoi(args[1])
	if err != nil {
		return image.Point{}, false
	}
	return image.Pt(x, y), true
}
