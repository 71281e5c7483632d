package commands

import (
	"fmt"

	"github.com/fivetwenty-io/svc-client/pkg/plugins"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(env *Env, version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Long:  "Display detailed version information about the svc CLI",
		RunE: func(cmd *cobra.Command, args []string) error {
			type VersionInfo struct {
				Version   string `json:"version"    yaml:"version"`
				Commit    string `json:"commit"     yaml:"commit"`
				Built     string `json:"built"      yaml:"built"`
				UserAgent string `json:"user_agent" yaml:"user_agent"`
			}

			info := VersionInfo{
				Version:   version,
				Commit:    commit,
				Built:     date,
				UserAgent: plugins.UserAgentString(""),
			}

			return env.render(info, func(t *tablewriter.Table) error {
				t.Header("Property", "Value")

				for _, row := range [][]any{
					{"Version", info.Version},
					{"Commit", info.Commit},
					{"Built", info.Built},
					{"User Agent", info.UserAgent},
				} {
					if err := t.Append(row...); err != nil {
						return fmt.Errorf("failed to add row: %w", err)
					}
				}

				return nil
			})
		},
	}
}
