package main

import (
	"context"
	"log/slog"
	"os"
)

// App is the global app instance - set up in initApp, used by command
// handlers.
var App *StakerApp

func main() {
	App = initApp()

	if err := App.cliCmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("Error", "msg", err)
		os.Exit(1)
	}
}
