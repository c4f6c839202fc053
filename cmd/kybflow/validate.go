package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexcabrera/kybflow/internal/exchange"
	"github.com/alexcabrera/kybflow/internal/graph"
	"github.com/alexcabrera/kybflow/internal/pipe"
)

type validateResult struct {
	Valid   bool                 `json:"valid"`
	Errors  []string             `json:"errors,omitempty"`
	Issues  []graph.Issue        `json:"issues,omitempty"`
	Summary *exchange.Statistics `json:"statistics,omitempty"`
}

func newValidateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <export.json|->",
		Short: "Check an export document before importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := pipe.ReadInput(args[0])
			if err != nil {
				return err
			}

			var res validateResult
			if doc, err := exchange.Parse(data); err != nil {
				res.Errors = validationMessages(err)
			} else {
				res.Valid = true
				res.Issues = graph.FromCanvas(exchange.ToCanvas(doc, "", time.Now())).Validate()
				stats := doc.Flow.Count()
				res.Summary = &stats
			}

			if err := g.emit(res, func() { renderValidation(res) }); err != nil {
				return err
			}
			if !res.Valid {
				return errors.New("document is not importable")
			}
			return nil
		},
	}
}

func validationMessages(err error) []string {
	var verr *exchange.ValidationError
	if errors.As(err, &verr) && len(verr.Details) > 0 {
		return verr.Details
	}
	return []string{err.Error()}
}

func renderValidation(res validateResult) {
	if !res.Valid {
		fmt.Println(errorStyle.Render("Invalid export document"))
		for _, msg := range res.Errors {
			fmt.Println("  - " + msg)
		}
		return
	}
	fmt.Println(okStyle.Render("Valid export document"))
	if s := res.Summary; s != nil {
		fmt.Println(mutedStyle.Render(fmt.Sprintf("  %d raw inputs, %d main and %d nested processes, %d intermediate, %d outputs",
			s.RawInputs, s.MainProcesses, s.NestedProcesses, s.IntermediateData, s.Outputs)))
	}
	for _, is := range res.Issues {
		fmt.Println("  " + errorStyle.Render("!") + " " + is.String())
	}
}
