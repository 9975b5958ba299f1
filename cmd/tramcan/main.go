package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/tramcan-session/internal/cli"
	"github.com/jrsteele09/tramcan-session/internal/config"
)

func main() {
	config.LoadDotEnv()
	c := config.New()

	if len(os.Args) == 1 {
		displayAppname(c.GetAppName())
	}
	if err := run(c); err != nil {
		os.Exit(1)
	}
}

func run(c config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cli.NewRootCmd(c).ExecuteContext(ctx)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
