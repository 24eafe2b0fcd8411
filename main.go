/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/umbra/engine"
	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/testbed"
)

func main() {
	configPath := flag.String("config", "config.toml", "path of the TOML configuration")
	flag.Parse()

	config, err := core.LoadConfig(*configPath)
	if err != nil {
		core.LogError(err.Error())
		os.Exit(1)
	}

	e, err := engine.New(testbed.NewTestGame().Game, config)
	if err != nil {
		os.Exit(1)
	}

	if err := e.Initialize(); err != nil {
		core.LogError("initialization failed: %s", err.Error())
		_ = e.Shutdown()
		os.Exit(1)
	}

	// the loop must stay on the main thread, so signals only ask it to stop
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-sigCh
		e.Quit()
	}()

	if err := e.Run(); err != nil {
		core.LogError(err.Error())
		os.Exit(1)
	}
}
