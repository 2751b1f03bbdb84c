package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/quotes/pkg/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset the saved quoting progress",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Summarize what is saved",
	RunE: func(cmd *cobra.Command, args []string) error {
		st := openState()
		fmt.Printf("State file: %s\n", st.Path())

		docs, err := st.Documents()
		if err != nil {
			return err
		}
		mode, err := st.UploadMode()
		if err != nil {
			return err
		}
		data, err := st.QuestionnaireData()
		if err != nil {
			return err
		}
		results, err := st.QuestionnaireResults()
		if err != nil {
			return err
		}

		fmt.Printf("Upload mode: %s\n", mode)
		fmt.Printf("Documents:   %d\n", len(docs))
		for _, d := range docs {
			fmt.Printf("  %-30s %-14s %s\n", d.FileName, d.Category, d.Carrier)
		}
		if data != nil {
			fmt.Printf("Questionnaire: %s (step %s)\n", data.CompanyName, data.CurrentStep)
		}
		if results != nil {
			fmt.Printf("Completed:   %s\n", results.CompletedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var stateResetCmd = &cobra.Command{
	Use:       "reset [KEY]...",
	Short:     "Clear saved state, all of it or only the given keys",
	ValidArgs: state.Keys,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openState().Reset(args...); err != nil {
			return err
		}
		if len(args) == 0 {
			color.Green("All saved state cleared")
		} else {
			color.Green("Cleared %v", args)
		}
		return nil
	},
}

var stateModeCmd = &cobra.Command{
	Use:       "mode single|multiple",
	Short:     "Set whether one or several quotes are uploaded per run",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(state.UploadModeSingle), string(state.UploadModeMultiple)},
	RunE: func(cmd *cobra.Command, args []string) error {
		return openState().SetUploadMode(state.UploadMode(args[0]))
	},
}

func init() {
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateResetCmd)
	stateCmd.AddCommand(stateModeCmd)
}
