package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alexcabrera/kybflow/internal/client"
	"github.com/alexcabrera/kybflow/internal/config"
	"github.com/alexcabrera/kybflow/internal/graph"
	"github.com/alexcabrera/kybflow/internal/pipe"
	"github.com/alexcabrera/kybflow/internal/workflow"
)

func newWorkflowsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflows",
		Aliases: []string{"workflow", "wf"},
		Short:   "Manage stored workflows",
	}

	cmd.AddCommand(newWorkflowsListCmd(g))
	cmd.AddCommand(newWorkflowsShowCmd(g))
	cmd.AddCommand(newWorkflowsCreateCmd(g))
	cmd.AddCommand(newWorkflowsRenameCmd(g))
	cmd.AddCommand(newWorkflowsTagCmd(g))
	cmd.AddCommand(newWorkflowsDeleteCmd(g))
	cmd.AddCommand(newWorkflowsDuplicateCmd(g))
	cmd.AddCommand(newWorkflowsExportCmd(g))
	cmd.AddCommand(newWorkflowsImportCmd(g))
	cmd.AddCommand(newWorkflowsHistoryCmd(g))
	cmd.AddCommand(newWorkflowsPruneFieldsCmd(g))

	return cmd
}

func newWorkflowsListCmd(g *globals) *cobra.Command {
	var p workflow.ListParams

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(func(_ config.Config, c *client.Client) error {
				res, err := c.List(cmd.Context(), p)
				if err != nil {
					return err
				}
				return g.emit(res, func() {
					if len(res.Workflows) == 0 {
						fmt.Println(mutedStyle.Render("No workflows found"))
						return
					}
					t := newTable("ID", "NAME", "TAGS", "VERSION", "NODES", "EDGES", "UPDATED")
					for _, w := range res.Workflows {
						t.Row(w.ID, truncate(w.Name, 40), joinOrDash(w.Tags),
							strconv.Itoa(w.Version), strconv.Itoa(w.TotalNodes), strconv.Itoa(w.TotalEdges),
							formatTime(w.UpdatedAt))
					}
					printTable(t)
					pg := res.Pagination
					fmt.Println(mutedStyle.Render(fmt.Sprintf("  %d-%d of %d",
						pg.Offset+1, pg.Offset+len(res.Workflows), pg.Total)))
				})
			})
		},
	}

	cmd.Flags().StringVarP(&p.Query, "query", "q", "", "match name or description")
	cmd.Flags().StringSliceVarP(&p.Tags, "tag", "t", nil, "keep workflows with any of these tags")
	cmd.Flags().BoolVar(&p.Archived, "archived", false, "list archived workflows instead")
	cmd.Flags().IntVarP(&p.Limit, "limit", "n", 50, "page size")
	cmd.Flags().IntVar(&p.Offset, "offset", 0, "rows to skip")

	return cmd
}

func newWorkflowsShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a workflow and its nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(func(_ config.Config, c *client.Client) error {
				wf, err := c.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return g.emit(wf, func() { renderWorkflow(wf) })
			})
		},
	}
}

func renderWorkflow(wf workflow.Workflow) {
	printTitle(wf.Name)
	fmt.Printf("  %s %s\n", mutedStyle.Render("id:     "), wf.ID)
	fmt.Printf("  %s %s\n", mutedStyle.Render("slug:   "), wf.Slug)
	fmt.Printf("  %s %d\n", mutedStyle.Render("version:"), wf.Version)
	fmt.Printf("  %s %s\n", mutedStyle.Render("tags:   "), joinOrDash(wf.Tags))
	if wf.Description != "" {
		fmt.Printf("  %s %s\n", mutedStyle.Render("about:  "), wf.Description)
	}
	fmt.Println()

	if len(wf.Canvas.Nodes) == 0 {
		fmt.Println(mutedStyle.Render("  Empty canvas"))
		return
	}
	t := newTable("ID", "KIND", "NAME", "LINKS")
	for _, n := range wf.Canvas.Nodes {
		kind, links := describeNode(n)
		t.Row(n.ID, kind, truncate(n.Name(), 40), links)
	}
	printTable(t)

	if issues := graph.FromCanvas(wf.Canvas).Validate(); len(issues) > 0 {
		fmt.Println()
		for _, is := range issues {
			fmt.Println("  " + errorStyle.Render("!") + " " + is.String())
		}
	}
}

func describeNode(n *graph.Node) (kind, links string) {
	switch {
	case n.IsData():
		return string(n.Data.Category) + " data", "from " + orDash(n.Data.SourceID())
	case n.IsProcess():
		return string(n.Process.Category), "inputs " + joinOrDash(n.Process.Inputs)
	}
	return string(n.Kind), "-"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newWorkflowsCreateCmd(g *globals) *cobra.Command {
	var description, canvasPath string
	var tags []string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			canvas := &graph.Canvas{}
			if canvasPath != "" {
				data, err := pipe.ReadInput(canvasPath)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(data, canvas); err != nil {
					return fmt.Errorf("parse canvas %s: %w", canvasPath, err)
				}
			}
			return g.withClient(func(_ config.Config, c *client.Client) error {
				wf, err := c.Create(cmd.Context(), workflow.CreateParams{
					Name:        args[0],
					Description: description,
					Tags:        tags,
					Canvas:      canvas,
				})
				if err != nil {
					return err
				}
				return g.emit(wf, func() {
					fmt.Println(okStyle.Render("Created") + " " + wf.Name + " " + mutedStyle.Render("("+wf.ID+")"))
				})
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "workflow description")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tags")
	cmd.Flags().StringVar(&canvasPath, "canvas", "", "canvas JSON file, or - for stdin")

	return cmd
}

func newWorkflowsRenameCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a workflow and re-derive its slug",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[1]
			return g.withClient(func(_ config.Config, c *client.Client) error {
				wf, err := c.Update(cmd.Context(), args[0], workflow.UpdateParams{Name: &name})
				if err != nil {
					return err
				}
				return g.emit(wf, func() {
					fmt.Println(okStyle.Render("Renamed") + " " + wf.Name + " " + mutedStyle.Render("("+wf.Slug+")"))
				})
			})
		},
	}
}

func newWorkflowsTagCmd(g *globals) *cobra.Command {
	var remove, replace bool

	cmd := &cobra.Command{
		Use:   "tag <id> <tag>...",
		Short: "Add, remove, or replace workflow tags",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, given := args[0], args[1:]
			// Tags are read-modify-write, so the update is pinned to the
			// version read and recomputed on conflict.
			apply := func(current []string) []string {
				switch {
				case replace:
					return given
				case remove:
					return slices.DeleteFunc(slices.Clone(current), func(t string) bool {
						return slices.Contains(given, t)
					})
				default:
					return append(slices.Clone(current), given...)
				}
			}
			return g.withClient(func(_ config.Config, c *client.Client) error {
				wf, err := c.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				version := wf.Version
				wf, err = c.UpdateWithRetry(cmd.Context(), id,
					workflow.UpdateParams{Tags: nonNil(apply(wf.Tags)), Version: &version},
					func(latest workflow.Workflow) workflow.UpdateParams {
						return workflow.UpdateParams{Tags: nonNil(apply(latest.Tags))}
					})
				if err != nil {
					return err
				}
				return g.emit(wf, func() {
					fmt.Println(okStyle.Render("Tags") + " " + joinOrDash(wf.Tags))
				})
			})
		},
	}

	cmd.Flags().BoolVar(&remove, "remove", false, "remove the given tags")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace all tags with the given ones")
	cmd.MarkFlagsMutuallyExclusive("remove", "replace")

	return cmd
}

type pruneResult struct {
	Removed  int               `json:"removed"`
	Workflow workflow.Workflow `json:"workflow"`
}

func newWorkflowsPruneFieldsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "prune-fields <id>",
		Short: "Drop field selections that no longer match their input's schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			prune := func(wf workflow.Workflow) (*graph.Canvas, int) {
				gr := graph.FromCanvas(wf.Canvas)
				n := gr.PruneFields()
				c := gr.Canvas(wf.Canvas.Metadata)
				return &c, n
			}
			return g.withClient(func(_ config.Config, c *client.Client) error {
				wf, err := c.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				canvas, removed := prune(wf)
				if removed > 0 {
					version := wf.Version
					wf, err = c.UpdateWithRetry(cmd.Context(), id,
						workflow.UpdateParams{Canvas: canvas, Version: &version},
						func(latest workflow.Workflow) workflow.UpdateParams {
							canvas, removed = prune(latest)
							return workflow.UpdateParams{Canvas: canvas}
						})
					if err != nil {
						return err
					}
				}
				res := pruneResult{Removed: removed, Workflow: wf}
				return g.emit(res, func() {
					fmt.Printf("%s %d stale field selections from %s (version %d)\n",
						okStyle.Render("Removed"), res.Removed, wf.Name, wf.Version)
				})
			})
		},
	}
}

// nonNil sends an emptied tag list as [] so the server clears the tags;
// null would leave them unchanged.
func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func newWorkflowsDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"archive"},
		Short:   "Archive a workflow",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(func(_ config.Config, c *client.Client) error {
				a, err := c.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return g.emit(a, func() {
					fmt.Println(okStyle.Render("Archived") + " " + a.Name)
				})
			})
		},
	}
}

func newWorkflowsDuplicateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "duplicate <id>",
		Aliases: []string{"copy"},
		Short:   "Copy a workflow",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(func(_ config.Config, c *client.Client) error {
				wf, err := c.Duplicate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return g.emit(wf, func() {
					fmt.Println(okStyle.Render("Created") + " " + wf.Name + " " + mutedStyle.Render("("+wf.ID+")"))
				})
			})
		},
	}
}

func newWorkflowsExportCmd(g *globals) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a workflow as an export document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(func(_ config.Config, c *client.Client) error {
				doc, err := c.Export(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					return printJSON(os.Stdout, doc)
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := printJSON(f, doc); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				fmt.Fprintln(os.Stderr, okStyle.Render("Exported")+" "+out)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")

	return cmd
}

func newWorkflowsImportCmd(g *globals) *cobra.Command {
	var p workflow.ImportParams

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Create a workflow from an export document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := pipe.ReadInput(args[0])
			if err != nil {
				return err
			}
			p.Document = data
			return g.withClient(func(_ config.Config, c *client.Client) error {
				wf, err := c.Import(cmd.Context(), p)
				if err != nil {
					return err
				}
				return g.emit(wf, func() {
					fmt.Println(okStyle.Render("Imported") + " " + wf.Name + " " + mutedStyle.Render("("+wf.ID+")"))
				})
			})
		},
	}

	cmd.Flags().StringVar(&p.Name, "name", "", "workflow name (default Imported Workflow)")
	cmd.Flags().StringVarP(&p.Description, "description", "d", "", "workflow description")
	cmd.Flags().StringSliceVarP(&p.Tags, "tag", "t", nil, "tags")

	return cmd
}

func newWorkflowsHistoryCmd(g *globals) *cobra.Command {
	var at int

	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "List earlier versions of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(func(_ config.Config, c *client.Client) error {
				if at > 0 {
					v, err := c.Version(cmd.Context(), args[0], at)
					if err != nil {
						return err
					}
					return printJSON(os.Stdout, v)
				}

				versions, err := c.History(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return g.emit(versions, func() {
					if len(versions) == 0 {
						fmt.Println(mutedStyle.Render("No earlier versions"))
						return
					}
					t := newTable("VERSION", "NODES", "EDGES", "REPLACED")
					for _, v := range versions {
						t.Row(strconv.Itoa(v.Version), strconv.Itoa(len(v.Canvas.Nodes)),
							strconv.Itoa(len(v.Canvas.Edges)), formatTime(v.CreatedAt))
					}
					printTable(t)
				})
			})
		},
	}

	cmd.Flags().IntVar(&at, "version", 0, "print the canvas of one version")

	return cmd
}
