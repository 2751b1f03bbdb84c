package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/internal/validation"
	"github.com/xhad/quotes/pkg/questionnaire"
	"github.com/xhad/quotes/pkg/state"
)

var answers struct {
	company    string
	employees  int
	region     string
	industry   string
	carrier    string
	renewal    string
	priorities []string
	budget     float64
}

var questionnaireCmd = &cobra.Command{
	Use:     "questionnaire",
	Aliases: []string{"q"},
	Short:   "Fill in the client questionnaire",
}

// loadSession resumes the questionnaire with the documents processed so far.
func loadSession() (*questionnaire.Session, error) {
	st := openState()
	session, err := questionnaire.NewSession(questionnaire.SessionConfig{Store: st, Logger: logger})
	if err != nil {
		return nil, err
	}
	docs, err := st.Documents()
	if err != nil {
		return nil, err
	}
	session.UseDocuments(docs)
	return session, nil
}

var questionnaireShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the answers and the current step",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := loadSession()
		if err != nil {
			return err
		}
		printAnswers(session)
		return nil
	},
}

var questionnaireAnswerCmd = &cobra.Command{
	Use:   "answer",
	Short: "Record answers without changing the step",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := loadSession()
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		err = session.Update(func(d *models.QuestionnaireData) {
			if flags.Changed("company") {
				d.CompanyName = answers.company
			}
			if flags.Changed("employees") {
				d.EmployeeCount = answers.employees
			}
			if flags.Changed("region") {
				d.Region = answers.region
			}
			if flags.Changed("industry") {
				d.Industry = answers.industry
			}
			if flags.Changed("carrier") {
				d.CurrentCarrier = answers.carrier
			}
			if flags.Changed("renewal") {
				d.RenewalDate = answers.renewal
			}
			if flags.Changed("priority") {
				d.Priorities = answers.priorities
			}
			if flags.Changed("budget") {
				d.BudgetChangePercent = answers.budget
			}
		})
		if err != nil {
			return err
		}
		printAnswers(session)
		return nil
	},
}

var questionnaireNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Validate the current step and move to the next one",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := loadSession()
		if err != nil {
			return err
		}
		step, err := session.Next()
		var errs validation.Errors
		if errors.As(err, &errs) {
			printValidation(errs)
			return fmt.Errorf("step %q is incomplete", step)
		}
		if err != nil {
			return err
		}
		color.Green("Now at step %s", step)
		return nil
	},
}

var questionnaireBackCmd = &cobra.Command{
	Use:   "back",
	Short: "Go back one step",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := loadSession()
		if err != nil {
			return err
		}
		step, err := session.Back()
		if err != nil {
			return err
		}
		color.Green("Now at step %s", step)
		return nil
	},
}

var questionnaireFinalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Complete the questionnaire and print the recommendation",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := loadSession()
		if err != nil {
			return err
		}
		results, err := session.Finalize()
		var errs validation.Errors
		switch {
		case errors.As(err, &errs):
			printValidation(errs)
			return fmt.Errorf("questionnaire is incomplete")
		case errors.Is(err, questionnaire.ErrProcessingPending):
			return fmt.Errorf("%w; run 'quotes process' first", err)
		case err != nil:
			return err
		}

		color.Green("Questionnaire completed for %s", results.Data.CompanyName)
		fmt.Printf("Documents: %d\n", len(results.DocumentIDs))
		if len(results.FailedFiles) > 0 {
			color.Yellow("Failed files: %s", strings.Join(results.FailedFiles, ", "))
		}
		fmt.Println()
		color.Cyan("%s", results.Recommendation)
		return nil
	},
}

var questionnaireResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the answers and results",
	RunE: func(cmd *cobra.Command, args []string) error {
		return openState().Reset(state.KeyQuestionnaireData, state.KeyQuestionnaireResults)
	},
}

func init() {
	f := questionnaireAnswerCmd.Flags()
	f.StringVar(&answers.company, "company", "", "Company name")
	f.IntVar(&answers.employees, "employees", 0, "Number of employees")
	f.StringVar(&answers.region, "region", "", "Province or region")
	f.StringVar(&answers.industry, "industry", "", "Industry")
	f.StringVar(&answers.carrier, "carrier", "", "Current carrier")
	f.StringVar(&answers.renewal, "renewal", "", "Renewal date (YYYY-MM-DD)")
	f.StringSliceVar(&answers.priorities, "priority", nil, "Priorities in order: "+strings.Join(questionnaire.Priorities, ", "))
	f.Float64Var(&answers.budget, "budget", 0, "Target premium change in percent")

	questionnaireCmd.AddCommand(questionnaireShowCmd)
	questionnaireCmd.AddCommand(questionnaireAnswerCmd)
	questionnaireCmd.AddCommand(questionnaireNextCmd)
	questionnaireCmd.AddCommand(questionnaireBackCmd)
	questionnaireCmd.AddCommand(questionnaireFinalizeCmd)
	questionnaireCmd.AddCommand(questionnaireResetCmd)
}

func printAnswers(session *questionnaire.Session) {
	d := session.Data()
	color.Cyan("Step: %s", session.Step())
	fmt.Printf("  Company:    %s\n", d.CompanyName)
	fmt.Printf("  Employees:  %d\n", d.EmployeeCount)
	fmt.Printf("  Region:     %s\n", d.Region)
	if d.Industry != "" {
		fmt.Printf("  Industry:   %s\n", d.Industry)
	}
	fmt.Printf("  Carrier:    %s\n", d.CurrentCarrier)
	fmt.Printf("  Renewal:    %s\n", d.RenewalDate)
	fmt.Printf("  Priorities: %s\n", strings.Join(d.Priorities, ", "))
	fmt.Printf("  Budget:     %+.1f%%\n", d.BudgetChangePercent)
	fmt.Printf("  Processing: %s\n", session.Lifecycle())
}

func printValidation(errs validation.Errors) {
	for _, e := range errs {
		color.Red("  %s: %s", e.Field, e.Message)
	}
}
