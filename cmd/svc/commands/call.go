package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/svc-client/internal/constants"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewCallCommand creates the call command.
func NewCallCommand(env *Env) *cobra.Command {
	var (
		params   string
		allPages bool
	)

	cmd := &cobra.Command{
		Use:   "call SERVICE OPERATION",
		Short: "Call an operation",
		Long: `Call an operation with parameters given as a JSON object.

Use --params @file.json to read the parameters from a file. With
--all-pages a pageable operation is followed until its last page.`,
		Example: `  svc call Widgets PutWidget --params '{"Name":"bolt"}'
  svc call Widgets ListWidgets --all-pages --output json`,
		Args: cobra.ExactArgs(constants.MinimumArgumentCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := parseParams(params)
			if err != nil {
				return err
			}

			client, err := env.Client(args[0])
			if err != nil {
				return err
			}

			defer func() {
				if logger, err := env.Logger(); err == nil {
					_ = logger.Sync()
				}
			}()

			if !allPages {
				out, err := client.Call(cmd.Context(), args[1], input)
				if err != nil {
					return err
				}

				return env.render(out, func(t *tablewriter.Table) error {
					t.Header("Field", "Value")

					return appendFields(t, nil, out)
				})
			}

			paginator, err := client.Paginate(args[1], input)
			if err != nil {
				return err
			}

			var pages []map[string]any

			for page, err := range paginator.Pages(cmd.Context()) {
				if err != nil {
					return err
				}

				pages = append(pages, page.Output)
			}

			return env.render(pages, func(t *tablewriter.Table) error {
				t.Header("Page", "Field", "Value")

				for i, out := range pages {
					if err := appendFields(t, []any{strconv.Itoa(i + 1)}, out); err != nil {
						return err
					}
				}

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&params, "params", "p", "", "operation parameters as JSON, or @file")
	cmd.Flags().BoolVar(&allPages, "all-pages", false, "follow pagination to the last page")

	return cmd
}

func parseParams(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}

	if path, ok := strings.CutPrefix(raw, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read params: %w", err)
		}

		raw = string(data)
	}

	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("%w: %w", constants.ErrInvalidParams, err)
	}

	if params == nil {
		params = map[string]any{}
	}

	return params, nil
}
