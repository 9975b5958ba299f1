package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/tramcan-session/backend/backendfake"
	"github.com/jrsteele09/tramcan-session/internal/config"
	"github.com/jrsteele09/tramcan-session/internal/logging"
	"github.com/rs/zerolog"
)

func main() {
	config.LoadDotEnv()
	c := config.New()
	logger := logging.NewLogger(logging.ParseLevel(c.GetLogLevel()), logging.FormatFor(c.GetEnv()))

	for {
		if err := run(c, logger); err != nil {
			logger.Error().Err(err).Msg("fake backend failed, restarting")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	logger.Info().Msg("fake backend stopped")
}

func run(c config.Config, logger zerolog.Logger) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("stack", string(debug.Stack())).Msg(fmt.Sprintf("recovered from panic: %v", r))
			returnError = errors.New("panic recovered")
		}
	}()

	displayAppname(c.GetAppName() + " fake")
	fake := backendfake.New(backendfake.WithLogger(logger), backendfake.WithEnv(c.GetEnv()))
	if err := fake.Seed(backendfake.DemoData()); err != nil {
		return err
	}

	server := &http.Server{Addr: c.GetPort(), Handler: fake, ReadHeaderTimeout: 10 * time.Second}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(server, logger) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

func listenAndServe(server *http.Server, logger zerolog.Logger) error {
	logger.Info().Str("addr", server.Addr).Msg("fake backend listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
