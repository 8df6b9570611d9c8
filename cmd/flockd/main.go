// Command flockd runs the flock without a window. It can stream frames to
// websocket clients and record them to a length-delimited dump file.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	golog "github.com/tochemey/goakt/v3/log"
	"golang.org/x/sync/errgroup"

	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/simulation"
	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/wire"
)

func main() {
	configPath := flag.String("config", "", "path to a .json or .toml configuration file")
	duration := flag.Duration("duration", 0, "stop after this much wall time, 0 runs until interrupted")
	listen := flag.String("listen", "", "serve the websocket frame stream on this address, e.g. :8080")
	dump := flag.String("dump", "", "record frames to this file, skipping frames while the writer lags behind")
	format := flag.String("format", "proto", "frame encoding: proto or msgpack")
	rate := flag.Float64("rate", 60, "frames per second sent to the world")
	debug := flag.Bool("debug", false, "log engine events")
	flag.Parse()

	cfg := simulation.DefaultConfig()
	if *configPath != "" {
		loaded, err := simulation.LoadConfig(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}
	codec, err := wire.CodecByName(*format)
	if err != nil {
		log.Fatal(err)
	}
	if *rate <= 0 {
		log.Fatalf("frame rate must be positive, got %v", *rate)
	}

	level := golog.InfoLevel
	if *debug {
		level = golog.DebugLevel
	}
	logger := golog.New(level, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, codec, *rate, *duration, *listen, *dump); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *simulation.Config, logger golog.Logger, codec wire.Codec,
	rate float64, duration time.Duration, listen, dump string) error {
	var frames chan *wire.Frame
	if dump != "" {
		frames = make(chan *wire.Frame, 64)
	}

	sim, err := simulation.Start(ctx, cfg, logger, frames, codec)
	if err != nil {
		return err
	}
	defer sim.Stop(context.Background())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return drive(ctx, sim, rate, duration)
	})

	if dump != "" {
		g.Go(func() error {
			return record(ctx, dump, codec, frames)
		})
	}

	if listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", simulation.NewStreamHandler(sim, time.Duration(float64(time.Second)/rate), logger))
		srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			logger.Infof("streaming frames on ws://%s/ws", listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to serve stream: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if f, err := sim.CurrentFrame(context.Background(), time.Second); err == nil {
		logger.Infof("stopped at tick %d with %d agents", f.Tick, len(f.Agents))
	}
	return nil
}

// drive sends the wall time elapsed since the previous frame to the world
// at a fixed rate until ctx ends or duration has passed.
func drive(ctx context.Context, sim *simulation.Simulation, rate float64, duration time.Duration) error {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
	defer ticker.Stop()

	var deadline <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		deadline = timer.C
	}

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			return nil
		case now := <-ticker.C:
			if err := sim.Frame(ctx, now.Sub(last)); err != nil {
				return fmt.Errorf("failed to send frame to world: %w", err)
			}
			last = now
		}
	}
}

// record writes pushed frames to path until ctx ends.
func record(ctx context.Context, path string, codec wire.Codec, frames <-chan *wire.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dump file: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	w := wire.NewWriter(bw, codec)
	for {
		select {
		case <-ctx.Done():
			if err := bw.Flush(); err != nil {
				return fmt.Errorf("failed to flush dump file: %w", err)
			}
			return f.Sync()
		case frame := <-frames:
			if err := w.Write(frame); err != nil {
				return err
			}
		}
	}
}
