package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/quotes/pkg/client"
	"github.com/xhad/quotes/pkg/report"
)

var reportInput struct {
	title  string
	client string
	notes  string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Save, list and share comparison reports",
}

// withClient runs fn against the API with a spinner while it waits.
func withClient(description string, fn func(ctx context.Context, c *client.Client) error) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	spinner := getSpinner(description)
	defer func() { _ = spinner.Finish() }()
	return fn(context.Background(), c)
}

var reportCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Save the processed documents as a report",
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := openState().Documents()
		if err != nil {
			return err
		}
		in := report.Input{Title: reportInput.title, ClientName: reportInput.client, Notes: reportInput.notes, Documents: docs}
		if errs := in.Validate(); len(errs) > 0 {
			printValidation(errs)
			return fmt.Errorf("report is incomplete")
		}

		return withClient("Saving report", func(ctx context.Context, c *client.Client) error {
			r, err := c.CreateReport(ctx, in)
			if err != nil {
				return err
			}
			fmt.Println()
			color.Green("Report %s saved with %d document(s)", r.ID, len(r.Documents))
			return nil
		})
	},
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your reports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient("Loading reports", func(ctx context.Context, c *client.Client) error {
			reports, err := c.ListReports(ctx)
			if err != nil {
				return err
			}
			fmt.Println()
			if len(reports) == 0 {
				fmt.Println("No reports yet")
				return nil
			}
			for _, r := range reports {
				shared := ""
				if r.SharedUntil != nil {
					shared = color.CyanString(" shared until %s", r.SharedUntil.Format("2006-01-02"))
				}
				fmt.Printf("%s  %-40s %s%s\n", r.ID, r.Title, r.CreatedAt.Format("2006-01-02"), shared)
			}
			return nil
		})
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print a report's comparison",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient("Loading report", func(ctx context.Context, c *client.Client) error {
			r, err := c.GetReport(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println()
			color.Cyan("%s", r.Title)
			if r.ClientName != "" {
				fmt.Printf("Client: %s\n", r.ClientName)
			}
			if r.Notes != "" {
				fmt.Println(r.Notes)
			}
			fmt.Println()
			if r.Comparison != nil {
				printComparison(r.Comparison)
			}
			return nil
		})
	},
}

var reportShareCmd = &cobra.Command{
	Use:   "share ID",
	Short: "Create a read-only link to a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient("Creating share link", func(ctx context.Context, c *client.Client) error {
			link, err := c.ShareReport(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println()
			color.Green("%s", link.URL)
			fmt.Printf("Expires %s\n", link.ExpiresAt.Format("2006-01-02 15:04 MST"))
			return nil
		})
	},
}

var reportUnshareCmd = &cobra.Command{
	Use:   "unshare ID",
	Short: "Revoke a report's share link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient("Revoking share link", func(ctx context.Context, c *client.Client) error {
			return c.UnshareReport(ctx, args[0])
		})
	},
}

var reportDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient("Deleting report", func(ctx context.Context, c *client.Client) error {
			return c.DeleteReport(ctx, args[0])
		})
	},
}

func init() {
	reportCreateCmd.Flags().StringVar(&reportInput.title, "title", "", "Report title")
	reportCreateCmd.Flags().StringVar(&reportInput.client, "client", "", "Client name")
	reportCreateCmd.Flags().StringVar(&reportInput.notes, "notes", "", "Notes for the client")

	reportCmd.AddCommand(reportCreateCmd)
	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportShareCmd)
	reportCmd.AddCommand(reportUnshareCmd)
	reportCmd.AddCommand(reportDeleteCmd)
}
