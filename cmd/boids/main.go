package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	golog "github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/simulation"
	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/wire"
)

func main() {
	configPath := flag.String("config", "", "path to a .json or .toml configuration file")
	debug := flag.Bool("debug", false, "log engine events and show timing figures")
	flag.Parse()

	cfg := simulation.DefaultConfig()
	if *configPath != "" {
		loaded, err := simulation.LoadConfig(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	var logger golog.Logger = golog.DiscardLogger
	if *debug {
		logger = golog.New(golog.DebugLevel, os.Stdout)
	}

	ctx := context.Background()
	frames := make(chan *wire.Frame, 2)
	sim, err := simulation.Start(ctx, cfg, logger, frames, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer sim.Stop(ctx)

	ebiten.SetWindowSize(cfg.ScreenWidth, cfg.ScreenHeight)
	ebiten.SetWindowTitle("Boids")
	if err := ebiten.RunGame(simulation.NewGame(ctx, cfg, sim, frames, *debug)); err != nil {
		log.Fatal(err)
	}
}
