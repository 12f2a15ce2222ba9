package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/renovo/backend/internal/models"
)

type costRow struct {
	budget string
	label  string
	cost   int
}

// creditCostRows lists unlock prices ordered by cost. With a budget range it
// returns only that row.
func creditCostRows(budget string) ([]costRow, error) {
	if budget != "" {
		cost, ok := models.CreditCostFor(budget)
		if !ok {
			return nil, fmt.Errorf("unknown budget range %q", budget)
		}
		return []costRow{{budget: budget, label: models.BudgetLabels[budget], cost: cost}}, nil
	}
	rows := make([]costRow, 0, len(models.BudgetLabels))
	for b, label := range models.BudgetLabels {
		cost, _ := models.CreditCostFor(b)
		rows = append(rows, costRow{budget: b, label: label, cost: cost})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].cost < rows[j].cost })
	return rows, nil
}

var creditCostCmd = &cli.Command{
	Name:      "credit-cost",
	Usage:     "print the credits needed to unlock a project",
	ArgsUsage: "[budget-range]",
	Action: func(cctx *cli.Context) error {
		rows, err := creditCostRows(cctx.Args().First())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cctx.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "BUDGET\tLABEL\tCREDITS")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", r.budget, r.label, r.cost)
		}
		return tw.Flush()
	},
}
