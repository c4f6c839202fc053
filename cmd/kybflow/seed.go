package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexcabrera/kybflow/internal/client"
	"github.com/alexcabrera/kybflow/internal/config"
	"github.com/alexcabrera/kybflow/internal/seed"
)

func newSeedCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Import the sample KYB/KYC workflow into an empty server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(func(_ config.Config, c *client.Client) error {
				wf, created, err := seed.Run(cmd.Context(), c, time.Now())
				if err != nil {
					return err
				}
				if !created {
					fmt.Println(mutedStyle.Render("Workflows already exist. Nothing to do."))
					return nil
				}
				return g.emit(wf, func() {
					fmt.Println(okStyle.Render("Created") + " " + wf.Name + " " + mutedStyle.Render("("+wf.ID+")"))
				})
			})
		},
	}
}
