package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/alexcabrera/kybflow/internal/client"
	"github.com/alexcabrera/kybflow/internal/config"
	"github.com/alexcabrera/kybflow/internal/graph"
)

type connectedResult struct {
	Node      string   `json:"node"`
	Connected []string `json:"connected"`
	Edges     []string `json:"edges"`
}

func newConnectedCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "connected <id> <node>",
		Short: "Show every node linked to a node, upstream and downstream",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(func(_ config.Config, c *client.Client) error {
				wf, err := c.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				gr := graph.FromCanvas(wf.Canvas)
				if gr.Node(args[1]) == nil {
					return fmt.Errorf("node %q not found in %s", args[1], wf.Name)
				}

				h := gr.Highlight(args[1])
				res := connectedResult{Node: args[1], Connected: []string{}, Edges: []string{}}
				for id := range h.Set {
					res.Connected = append(res.Connected, id)
				}
				slices.Sort(res.Connected)
				for _, e := range gr.Edges {
					if h.EdgeOpacity(e) == graph.OpacityLit {
						res.Edges = append(res.Edges, e.ID)
					}
				}

				return g.emit(res, func() {
					printTitle(fmt.Sprintf("Connected to %s", args[1]))
					t := newTable("NODE", "NAME", "STATE")
					for _, n := range gr.Nodes {
						state := mutedStyle.Render("dimmed")
						if h.NodeOpacity(n.ID) == graph.OpacityLit {
							state = okStyle.Render("lit")
						}
						t.Row(n.ID, truncate(n.Name(), 40), state)
					}
					printTable(t)
				})
			})
		},
	}
}
