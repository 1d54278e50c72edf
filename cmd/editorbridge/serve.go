package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corymhall/editorbridge/config"
	"github.com/corymhall/editorbridge/debug"
	"github.com/corymhall/editorbridge/logger"
	"github.com/corymhall/editorbridge/lsp"
	"github.com/corymhall/editorbridge/rpc"
	"github.com/corymhall/editorbridge/server"
	"github.com/corymhall/editorbridge/xcontext"
	"github.com/pulumi/pulumi/sdk/v3/go/common/util/contract"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// stdinGrace is how long serve waits for the editor to close stdin once the
// server has shut down.
const stdinGrace = 2 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the language server on stdio",
		Long:  "Run the language server on stdin/stdout. The bridge binds once the editor sends initialized and closes on shutdown.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	level, err := config.ParseLevel(a.cfg.Log.Level)
	contract.AssertNoErrorf(err, "log level was validated when loading config")

	logfile, err := os.OpenFile(a.cfg.Log.File, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o666)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logfile.Close()
	fileHandler := slog.NewTextHandler(logfile, &slog.HandlerOptions{Level: level})

	stream := rpc.NewHeaderStream(os.Stdin, os.Stdout)
	conn := rpc.NewConn(stream, slog.New(fileHandler).With("component", "rpc"))
	client := lsp.ClientDispatcher(conn)

	logger.ProgramLevel.Set(level)
	log := slog.New(logger.Tee(fileHandler, logger.NewHandler(client, nil)))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	exitCode := make(chan int, 1)
	srv := server.New(log, client, server.Options{
		BridgeAddr: a.cfg.Bridge.Addr,
		Version:    version(),
		Exit: func(code int) {
			exitCode <- code
			cancel()
		},
	})
	ctx = debug.WithLogger(ctx, log)
	log.Info("starting language server", "version", version(), "bridge", a.cfg.Bridge.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return conn.Run(gctx, lsp.ServerHandler(srv, rpc.MethodNotFound))
	})
	g.Go(func() error {
		<-gctx.Done()
		// releases the bridge port whichever way we got here
		return srv.Shutdown(xcontext.Detach(gctx))
	})

	wait := make(chan error, 1)
	go func() { wait <- g.Wait() }()

	var runErr error
	<-ctx.Done()
	select {
	case runErr = <-wait:
	case <-time.After(stdinGrace):
		log.Warn("stdin still open after shutdown")
	}

	select {
	case code := <-exitCode:
		if code != 0 {
			return errors.New("exit received before shutdown")
		}
	default:
	}
	return runErr
}
