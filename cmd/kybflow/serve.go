package main

import (
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alexcabrera/kybflow/internal/seed"
	"github.com/alexcabrera/kybflow/internal/server"
	"github.com/alexcabrera/kybflow/internal/workflow"
)

func newServeCmd(g *globals) *cobra.Command {
	var addr, dbPath string
	var withSeed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}
			if dbPath != "" {
				cfg.DatabasePath = dbPath
			}
			logger := g.logger(cfg)
			ctx := cmd.Context()

			store, err := workflow.Open(ctx, cfg.DatabasePath, workflow.WithLogger(logger))
			if err != nil {
				return err
			}
			defer store.Close()
			n, err := store.Count(ctx)
			if err != nil {
				return err
			}
			logger.Info("database ready", "path", cfg.DatabasePath, "workflows", n)

			if withSeed {
				wf, created, err := seed.Run(ctx, store, time.Now())
				if err != nil {
					return err
				}
				if created {
					logger.Info("seeded sample workflow", "id", wf.ID, "name", wf.Name)
				}
			}

			srv := server.New(store, server.WithLogger(logger))
			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				return srv.ListenAndServe(egCtx, cfg.ListenAddr)
			})
			eg.Go(func() error {
				<-egCtx.Done()
				logger.Info("shutdown requested")
				return nil
			})
			return eg.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, KYBFLOW_ADDR)")
	cmd.Flags().StringVar(&dbPath, "db", "", "database path (default from config, KYBFLOW_DB)")
	cmd.Flags().BoolVar(&withSeed, "seed", false, "import the sample workflow when the database is empty")

	return cmd
}
