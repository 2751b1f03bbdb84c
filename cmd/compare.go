package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/pkg/comparison"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Show the saved documents side by side",
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := openState().Documents()
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return fmt.Errorf("no processed documents; run 'quotes process' first")
		}
		printComparison(comparison.Build(docs))
		return nil
	},
}

func printComparison(cmp *models.Comparison) {
	const labelWidth, colWidth = 20, 16

	header := fmt.Sprintf("%-*s", labelWidth, "")
	kinds := fmt.Sprintf("%-*s", labelWidth, "")
	for _, c := range cmp.Columns {
		header += fmt.Sprintf("%*s", colWidth, truncate(c.Carrier, colWidth-1))
		kinds += fmt.Sprintf("%*s", colWidth, c.Category)
	}
	color.Cyan("%s", header)
	fmt.Println(kinds)
	fmt.Println(strings.Repeat("─", labelWidth+colWidth*len(cmp.Columns)))

	for _, row := range cmp.Rows {
		line := fmt.Sprintf("%-*s", labelWidth, truncate(row.Coverage, labelWidth-1))
		for _, p := range row.Premiums {
			if p == nil {
				line += fmt.Sprintf("%*s", colWidth, "-")
				continue
			}
			line += fmt.Sprintf("%*.2f", colWidth, *p)
		}
		fmt.Println(line)
	}

	fmt.Println(strings.Repeat("─", labelWidth+colWidth*len(cmp.Columns)))
	monthly := fmt.Sprintf("%-*s", labelWidth, "Monthly total")
	annual := fmt.Sprintf("%-*s", labelWidth, "Annual total")
	diff := fmt.Sprintf("%-*s", labelWidth, "vs current")
	for _, c := range cmp.Columns {
		monthly += fmt.Sprintf("%*.2f", colWidth, c.MonthlyTotal)
		annual += fmt.Sprintf("%*.2f", colWidth, c.AnnualTotal)
		switch {
		case c.DiffPercent != nil:
			diff += fmt.Sprintf("%*s", colWidth, fmt.Sprintf("%+.2f%%", *c.DiffPercent))
		case c.DiffAmount != nil:
			diff += fmt.Sprintf("%*s", colWidth, fmt.Sprintf("%+.2f", *c.DiffAmount))
		default:
			diff += fmt.Sprintf("%*s", colWidth, "")
		}
	}
	color.White("%s", monthly)
	fmt.Println(annual)
	if _, ok := comparison.Current(cmp); ok {
		fmt.Println(diff)
	}

	if cheapest, ok := comparison.Cheapest(cmp); ok {
		color.Green("\nLowest priced alternative: %s (%s) at $%.2f/month", cheapest.Carrier, cheapest.Category, cheapest.MonthlyTotal)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
