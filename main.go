package main

import (
	"flag"
	"log"

	"github.com/hajimehoshi/ebiten/v2"

	"quadswarm/game"
)

func main() {
	config := game.DefaultConfig()
	config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if err := config.Validate(); err != nil {
		log.Fatal(err)
	}
	log.Printf("starting %v mode: %d bodies, world %gx%g, leaf capacity %d",
		config.Mode, config.Bodies, 2*config.WorldExtentX, 2*config.WorldExtentY, config.Capacity)

	g, err := game.NewGame(config)
	if err != nil {
		log.Fatalf("Failed to create game: %v", err)
	}

	ebiten.SetWindowSize(config.ScreenWidth, config.ScreenHeight)
	ebiten.SetWindowTitle("quadswarm")
	ebiten.SetWindowResizable(true)

	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
