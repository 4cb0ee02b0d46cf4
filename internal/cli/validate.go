package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aardvark-ui/bridge/domain/entities"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Channels []string `json:"channels"`
	Engine   string   `json:"engine"`
	Surface  string   `json:"surface"`
	Events   int      `json:"events,omitempty"`
	Valid    bool     `json:"valid"`
}

func (r ValidationResult) String() string {
	s := fmt.Sprintf("Configuration valid: %s engine, %s surface, channels %v", r.Engine, r.Surface, r.Channels)
	if r.Events > 0 {
		s += fmt.Sprintf(", %d event(s)", r.Events)
	}
	return s
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var eventsPath string

	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a configuration and optionally an event script",
		Long: `Parse and validate a bridge configuration without starting an engine.

With --events, every line of the event script is checked as well: known
event types, declared channels, and pointer events against the pointer
message schema.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], eventsPath, cmd)
		},
	}

	cmd.Flags().StringVarP(&eventsPath, "events", "e", "", "event script to check against the configuration")

	return cmd
}

func runValidate(opts *RootOptions, configPath, eventsPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return outputConfigError(formatter, err)
	}
	formatter.VerboseLog("Loaded %s", configPath)

	result := ValidationResult{
		Valid:    true,
		Engine:   cfg.Engine.Kind,
		Surface:  cfg.Surface.String(),
		Channels: channelNames(cfg),
	}

	if eventsPath != "" {
		input, closeInput, err := openInput(eventsPath, cmd.InOrStdin())
		if err != nil {
			return outputRunError(formatter, ErrCodeNotFound, ExitCommandError, err)
		}
		defer closeInput()

		err = newEventParser(cfg).scanEvents(input, func(ev Event) error {
			result.Events++
			formatter.VerboseLog("event %d: %s", result.Events, ev.Type)
			return nil
		})
		if err != nil {
			return outputRunError(formatter, ErrCodeEvents, ExitFailure, err)
		}
	}

	return formatter.Success(result)
}

// channelNames lists the channels a host built from cfg registers, in
// creation order.
func channelNames(cfg *entities.BridgeConfig) []string {
	names := []string{entities.SystemChannel}
	for _, cc := range cfg.Channels {
		names = append(names, cc.Name)
	}
	if cfg.Timers {
		names = append(names, entities.TimersChannel)
	}
	return names
}
