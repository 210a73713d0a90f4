package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-formflow/components/leads"
)

const shutdownTimeout = 5 * time.Second

type serveFlags struct {
	addr     string
	db       string
	basePath string
}

func newServeCommand(a *app) *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the lead-capture endpoint",
		Long: `Accept partial and final answers from formflow clients and store them as
leads in SQLite. Point ` + "`formflow run --sync-url`" + ` at the printed endpoint.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), a, flags)
		},
	}
	cmd.Flags().StringVar(&flags.addr, "addr", envOr("ADDR", ":8080"), "listen address")
	cmd.Flags().StringVar(&flags.db, "db", envOr("DB", "formflow-leads.db"), "SQLite database file")
	cmd.Flags().StringVar(&flags.basePath, "base-path", envOr("BASE_PATH", ""), "prefix for every route")
	return cmd
}

func serve(ctx context.Context, a *app, flags *serveFlags) error {
	db, err := leads.OpenSQLite(flags.db)
	if err != nil {
		return err
	}
	defer db.Close()

	repo, err := leads.NewSQLiteRepository(ctx, db)
	if err != nil {
		return err
	}
	handler, endpoint, err := newServeMux(repo, flags.basePath, a.logger)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", flags.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", flags.addr, err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	fmt.Fprintf(a.out, "Accepting leads at http://%s%s\n", listener.Addr(), endpoint)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		a.logger.Info("formflow: shutting down lead endpoint")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newServeMux mounts the lead routes plus a health check and returns the
// collection path.
func newServeMux(repo leads.Repository, basePath string, logger *zap.Logger) (http.Handler, string, error) {
	mux := http.NewServeMux()
	endpoint, err := leads.RegisterRoutes(mux, basePath, repo, leads.WithLogger(logger.Named("leads")))
	if err != nil {
		return nil, "", err
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux, endpoint, nil
}
