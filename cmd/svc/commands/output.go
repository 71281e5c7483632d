package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fivetwenty-io/svc-client/internal/config"
	"github.com/fivetwenty-io/svc-client/internal/constants"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// render writes data as JSON or YAML, or calls table for table output.
func (e *Env) render(data any, table func(*tablewriter.Table) error) error {
	switch format := e.Viper.GetString(config.KeyOutput); format {
	case constants.FormatJSON:
		encoder := json.NewEncoder(e.Out)
		encoder.SetIndent("", strings.Repeat(" ", constants.JSONIndentSize))

		return encoder.Encode(data)
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(e.Out)
		defer func() { _ = encoder.Close() }()

		return encoder.Encode(data)
	case constants.FormatTable, "":
		t := tablewriter.NewWriter(e.Out)
		if err := table(t); err != nil {
			return err
		}

		if err := t.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnsupportedFormat, format)
	}
}

// appendFields adds one row per top-level key of out, sorted.
func appendFields(t *tablewriter.Table, prefix []any, out map[string]any) error {
	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		row := append(append([]any(nil), prefix...), k, cell(out[k]))
		if err := t.Append(row...); err != nil {
			return fmt.Errorf("failed to add row: %w", err)
		}
	}

	return nil
}

func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return constants.None
	case string:
		return truncate(val)
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}

		return truncate(string(data))
	default:
		return fmt.Sprint(val)
	}
}

func truncate(s string) string {
	if len(s) <= constants.StringTruncationLength {
		return s
	}

	return s[:constants.StringTruncationLength-3] + "..."
}
