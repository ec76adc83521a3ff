// favorites manages a list of favorite cities with current weather and forecasts.
//
// Usage:
//
//	favorites search <query>
//	favorites list
//	favorites toggle <city> [--lat=<lat> --lon=<lon>] [--country=<code>]
//	favorites remove <city>
//	favorites select <city> [--weekly]
//	favorites enrich <city> [--kind=weather|hourly|weekly|all]
//	favorites watch [--interval=<duration>]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	c := &cli{open: openApp}
	err := newRootCmd(c).ExecuteContext(ctx)
	c.shutdown()
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
