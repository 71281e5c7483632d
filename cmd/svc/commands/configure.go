package commands

import (
	"fmt"

	"github.com/fivetwenty-io/svc-client/internal/config"
	"github.com/fivetwenty-io/svc-client/internal/constants"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var secretKeys = map[string]bool{
	config.KeySecretAccessKey: true,
	config.KeySessionToken:    true,
}

// NewConfigureCommand creates the configure command. Without a subcommand
// it prompts for credentials and a default region.
func NewConfigureCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Configure credentials and defaults",
		Long:  "Prompt for an access key, secret key and default region and save them to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(env)
		},
	}

	cmd.AddCommand(newConfigureSetCommand(env))
	cmd.AddCommand(newConfigureGetCommand(env))
	cmd.AddCommand(newConfigureListCommand(env))

	return cmd
}

func runConfigure(env *Env) error {
	fields := []struct {
		key    string
		label  string
		secret bool
	}{
		{key: config.KeyAccessKeyID, label: "Access key ID"},
		{key: config.KeySecretAccessKey, label: "Secret access key", secret: true},
		{key: svc.OptRegion, label: "Default region"},
	}

	for _, f := range fields {
		current := display(f.key, env.Viper.GetString(f.key))

		label := fmt.Sprintf("%s [%s]: ", f.label, current)

		var (
			value string
			err   error
		)

		if f.secret {
			value, err = env.ReadSecret(label)
		} else {
			value, err = env.prompt(label)
		}

		if err != nil {
			return err
		}

		if value == "" {
			continue
		}

		if err := config.Save(env.Viper, f.key, value); err != nil {
			return err
		}
	}

	return nil
}

func newConfigureSetCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set an option such as region or max_retries, or a credentials.* key",
		Args:  cobra.ExactArgs(constants.MinimumArgumentCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Save(env.Viper, args[0], args[1]); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(env.Out, "Set %s to %s\n", args[0], display(args[0], args[1]))

			return nil
		},
	}
}

func newConfigureGetCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Show a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !env.Viper.IsSet(args[0]) {
				return fmt.Errorf("%w: %s", svc.ErrUnknownOption, args[0])
			}

			_, _ = fmt.Fprintln(env.Out, display(args[0], env.Viper.GetString(args[0])))

			return nil
		},
	}
}

func newConfigureListCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configuration values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := append(svc.OptionKeys(),
				config.KeyAccessKeyID, config.KeySecretAccessKey, config.KeySessionToken, config.KeyMetadataEndpoint)

			values := map[string]string{}

			for _, key := range keys {
				if env.Viper.IsSet(key) {
					values[key] = display(key, env.Viper.GetString(key))
				}
			}

			return env.render(values, func(t *tablewriter.Table) error {
				t.Header("Key", "Value")

				for _, key := range keys {
					value, ok := values[key]
					if !ok {
						continue
					}

					if err := t.Append(key, value); err != nil {
						return fmt.Errorf("failed to add row: %w", err)
					}
				}

				return nil
			})
		},
	}
}

// display masks secrets, keeping the last four characters of long ones.
func display(key, value string) string {
	if value == "" {
		return constants.None
	}

	if !secretKeys[key] {
		return value
	}

	const visible = 4
	if len(value) <= visible*2 {
		return constants.MaskedSecret
	}

	return constants.MaskedSecret + value[len(value)-visible:]
}
