package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alexcabrera/kybflow/internal/client"
	"github.com/alexcabrera/kybflow/internal/config"
	"github.com/alexcabrera/kybflow/internal/graph"
	"github.com/alexcabrera/kybflow/internal/pipe"
	"github.com/alexcabrera/kybflow/internal/schema"
)

type sampleResult struct {
	Node   string   `json:"node"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func newSampleCmd(g *globals) *cobra.Command {
	var showSchema bool

	cmd := &cobra.Command{
		Use:   "sample <id> <node> [payload.json|-]",
		Short: "Check a sample payload against a data node's schema",
		Long: "Check a sample payload against the schema of a data node. With --schema,\n" +
			"print the node's schema as JSON Schema instead.",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !showSchema && len(args) < 3 {
				return errors.New("a payload file (or -) is required unless --schema is set")
			}
			return g.withClient(func(_ config.Config, c *client.Client) error {
				wf, err := c.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				n := graph.FromCanvas(wf.Canvas).Node(args[1])
				if n == nil || !n.IsData() {
					return fmt.Errorf("data node %q not found in %s", args[1], wf.Name)
				}
				if n.Data.Schema == nil {
					return fmt.Errorf("data node %q has no schema", args[1])
				}

				if showSchema {
					return printJSON(os.Stdout, schema.ToJSONSchema(n.Data.Schema))
				}

				payload, err := pipe.ReadInput(args[2])
				if err != nil {
					return err
				}
				res := sampleResult{Node: n.ID, Valid: true}
				if err := schema.ValidateSample(n.Data.Schema, payload); err != nil {
					var serr *schema.SampleError
					if !errors.As(err, &serr) {
						return err
					}
					res.Valid = false
					res.Errors = serr.Details
				}

				if err := g.emit(res, func() { renderSample(res) }); err != nil {
					return err
				}
				if !res.Valid {
					return errors.New("sample does not match schema")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showSchema, "schema", false, "print the node's JSON Schema")

	return cmd
}

func renderSample(res sampleResult) {
	if res.Valid {
		fmt.Println(okStyle.Render("Sample matches " + res.Node))
		return
	}
	fmt.Println(errorStyle.Render("Sample does not match " + res.Node))
	for _, msg := range res.Errors {
		fmt.Println("  - " + msg)
	}
}
