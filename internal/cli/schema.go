package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aardvark-ui/bridge/application/schema"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [name]",
		Short: "List or print the JSON schemas of built-in messages",
		Long: `Without arguments, list the registered schema names. With a name,
print that JSON schema (pointer, timer or config).`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}
			registry := schema.DefaultRegistry()

			if len(args) == 0 {
				names := registry.List()
				if rootOpts.Format == "json" {
					return formatter.Success(names)
				}
				return formatter.Success(strings.Join(names, "\n"))
			}

			doc, ok := registry.GetSchema(args[0])
			if !ok {
				_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no schema named %q", args[0]), registry.List())
				return &ExitError{Code: ExitFailure, Message: "unknown schema " + args[0]}
			}
			if rootOpts.Format == "json" {
				return formatter.Success(json.RawMessage(doc))
			}
			return formatter.Success(doc)
		},
	}
}
