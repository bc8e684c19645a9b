// Command rulectl inspects and edits a file-backed rule collection offline.
//
// Subcommands:
//
//	list       print every stored rule
//	show       print one rule with its history
//	revert     restore an earlier version of a rule
//	delete     remove a rule and its history
//	check      validate rule code with the local checker
//	fix        apply heuristic repairs to rule code
//	templates  print the template catalog
//	apply      fill in a template and optionally store it
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/liamcoop/ruleweave/autofix"
	"github.com/liamcoop/ruleweave/checker"
	"github.com/liamcoop/ruleweave/internal/logger"
	"github.com/liamcoop/ruleweave/rules"
	"github.com/liamcoop/ruleweave/templates"
	"github.com/spf13/cobra"
)

const defaultRulesFile = "data/rules.json"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var rulesFile string

	root := &cobra.Command{
		Use:           "rulectl",
		Short:         "Manage a ruleweave rule file",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	fileDefault := os.Getenv("RULES_FILE")
	if fileDefault == "" {
		fileDefault = defaultRulesFile
	}
	root.PersistentFlags().StringVar(&rulesFile, "file", fileDefault, "rule collection file (default $RULES_FILE)")

	store := func() rules.RuleStore {
		return rules.NewBlobRuleStore(rules.NewFileStorage(rulesFile))
	}

	root.AddCommand(
		listCmd(store),
		showCmd(store),
		revertCmd(store),
		deleteCmd(store),
		checkCmd(),
		fixCmd(),
		templatesCmd(),
		applyCmd(store),
	)
	return root
}

func listCmd(store func() rules.RuleStore) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every stored rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := store().ListAll(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range list {
				fmt.Fprintf(out, "%s\t%s\tv%d\t%s\n", r.ID, r.Name, len(r.Versions), r.RuleCode)
			}
			return nil
		},
	}
}

func showCmd(store func() rules.RuleStore) *cobra.Command {
	return &cobra.Command{
		Use:   "show <rule-id>",
		Short: "Print one rule with its version history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := store().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, rule)
		},
	}
}

func revertCmd(store func() rules.RuleStore) *cobra.Command {
	return &cobra.Command{
		Use:   "revert <rule-id> <version-index>",
		Short: "Append a version restoring an earlier one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid version index %q: %w", args[1], err)
			}
			rule, err := store().Revert(cmd.Context(), args[0], idx)
			if err != nil {
				return err
			}
			return printJSON(cmd, rule)
		},
	}
}

func deleteCmd(store func() rules.RuleStore) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <rule-id>",
		Short: "Remove a rule and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return store().Delete(cmd.Context(), args[0])
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <rule-code>",
		Short: "Validate rule code without calling a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := checker.New()
			if err != nil {
				return err
			}
			res := c.Check(args[0])
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			if !res.IsValid {
				return fmt.Errorf("rule is invalid: %s", strings.Join(res.Errors, "; "))
			}
			return nil
		},
	}
}

func fixCmd() *cobra.Command {
	var tokenize bool

	cmd := &cobra.Command{
		Use:   "fix <rule-code>",
		Short: "Repair common syntax mistakes in rule code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := autofix.FixWithOptions(args[0], nil, autofix.Options{TokenizeOperators: tokenize})
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().BoolVar(&tokenize, "tokenize-operators", false, "match the longest comparison operator")
	return cmd
}

func templatesCmd() *cobra.Command {
	var category, query string

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Print the template catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, t := range templates.List(category, query) {
				fmt.Fprintf(out, "%s\t%s\t%s\n", t.ID, t.Category, t.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only templates in this category")
	cmd.Flags().StringVar(&query, "query", "", "case-insensitive search over name and description")
	return cmd
}

func applyCmd(store func() rules.RuleStore) *cobra.Command {
	var sets []string
	var save bool

	cmd := &cobra.Command{
		Use:   "apply <template-id>",
		Short: "Fill in a template's variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseValues(sets)
			if err != nil {
				return err
			}
			applied, err := templates.Apply(args[0], values)
			if err != nil {
				return err
			}
			if !save {
				return printJSON(cmd, applied)
			}
			rule, err := store().Save(cmd.Context(), rules.RuleInput{
				Name:            applied.Name,
				NaturalLanguage: applied.NaturalLanguage,
				RuleCode:        applied.RuleCode,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, rule)
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "variable as name=value; the value is parsed as JSON when possible")
	cmd.Flags().BoolVar(&save, "save", false, "store the result as a new rule")
	return cmd
}

// parseValues turns name=value pairs into template values. Values that are
// valid JSON keep their JSON type, anything else is a string.
func parseValues(pairs []string) (map[string]any, error) {
	values := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q: want name=value", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		values[name] = v
	}
	return values, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
