package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alexcabrera/kybflow/internal/client"
	"github.com/alexcabrera/kybflow/internal/config"
	"github.com/alexcabrera/kybflow/internal/editor"
	"github.com/alexcabrera/kybflow/internal/graph"
	"github.com/alexcabrera/kybflow/internal/paths"
)

func newLayoutCmd(g *globals) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "layout <id>",
		Short: "Auto-format a workflow's canvas and save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(func(cfg config.Config, c *client.Client) error {
				ctx := cmd.Context()
				wf, err := c.Get(ctx, args[0])
				if err != nil {
					return err
				}

				if dryRun {
					l := graph.FromCanvas(wf.Canvas).Plan()
					return g.emit(l, func() { renderLayout(wf.Name, l, nil) })
				}

				s, err := editor.Open(wf, c,
					editor.WithAutosaveDelay(cfg.AutosaveDelay),
					editor.WithWidthStore(editor.FileWidthStore{Path: paths.UIStateFile()}),
					editor.WithLogger(g.logger(cfg)),
				)
				if err != nil {
					return err
				}
				defer s.Close()

				l := s.AutoFormat()
				saved, err := s.Save(ctx)
				if err != nil {
					return err
				}
				return g.emit(saved, func() {
					renderLayout(saved.Name, l, &saved.Canvas)
					fmt.Println(okStyle.Render("Saved") + " " + mutedStyle.Render(fmt.Sprintf("version %d", saved.Version)))
				})
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the layout without saving")

	return cmd
}

func renderLayout(name string, l graph.Layout, canvas *graph.Canvas) {
	printTitle("Layout of " + name)

	var pos map[string]graph.Position
	if canvas != nil {
		pos = make(map[string]graph.Position, len(canvas.Nodes))
		for _, n := range canvas.Nodes {
			if _, ok := pos[n.ID]; !ok {
				pos[n.ID] = n.Position
			}
		}
	}

	t := newTable("LAYER", "ROW", "NODE", "POSITION")
	for i, col := range l.Columns {
		for j, id := range col {
			at := "-"
			if p, ok := pos[id]; ok {
				at = fmt.Sprintf("%.0f,%.0f", p.X, p.Y)
			}
			t.Row(strconv.Itoa(i), strconv.Itoa(j), id, at)
		}
	}
	printTable(t)
}
