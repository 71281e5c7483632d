package commands

import (
	"fmt"
	"strconv"

	"github.com/fivetwenty-io/svc-client/internal/constants"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type serviceInfo struct {
	Service    string `json:"service"     yaml:"service"`
	APIVersion string `json:"api_version" yaml:"api_version"`
	Protocol   string `json:"protocol"    yaml:"protocol"`
	Signature  string `json:"signature"   yaml:"signature"`
	Operations int    `json:"operations"  yaml:"operations"`
}

type operationInfo struct {
	Operation string   `json:"operation"        yaml:"operation"`
	Method    string   `json:"method"           yaml:"method"`
	URI       string   `json:"uri"              yaml:"uri"`
	Pageable  bool     `json:"pageable"         yaml:"pageable"`
	Errors    []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// NewServicesCommand creates the services command.
func NewServicesCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:     "services",
		Aliases: []string{"svcs"},
		Short:   "List known services",
		Long:    "List every service loaded from the manifest directory and --manifest files",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := env.Registry()
			if err != nil {
				return err
			}

			infos := make([]serviceInfo, 0)

			for _, id := range reg.Services() {
				typ, err := reg.Lookup(id)
				if err != nil {
					return err
				}

				meta := typ.API().Metadata
				if meta.APIVersion == "" {
					meta.APIVersion = constants.NotAvailable
				}

				infos = append(infos, serviceInfo{
					Service:    meta.ServiceID,
					APIVersion: meta.APIVersion,
					Protocol:   string(meta.Protocol),
					Signature:  meta.SignatureVersion,
					Operations: len(typ.API().Operations),
				})
			}

			return env.render(infos, func(t *tablewriter.Table) error {
				t.Header("Service", "API Version", "Protocol", "Signature", "Operations")

				for _, info := range infos {
					if err := t.Append(info.Service, info.APIVersion, info.Protocol, info.Signature, strconv.Itoa(info.Operations)); err != nil {
						return fmt.Errorf("failed to add row: %w", err)
					}
				}

				return nil
			})
		},
	}
}

// NewOperationsCommand creates the operations command.
func NewOperationsCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:     "operations SERVICE",
		Aliases: []string{"ops"},
		Short:   "List the operations of a service",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := env.Registry()
			if err != nil {
				return err
			}

			typ, err := reg.Lookup(args[0])
			if err != nil {
				return err
			}

			api := typ.API()
			infos := make([]operationInfo, 0, len(api.Operations))

			for _, name := range api.OperationNames() {
				op := api.Operations[name]
				infos = append(infos, operationInfo{
					Operation: name,
					Method:    op.HTTP.Method,
					URI:       op.HTTP.RequestURI,
					Pageable:  op.Pageable(),
					Errors:    op.Errors,
				})
			}

			return env.render(infos, func(t *tablewriter.Table) error {
				t.Header("Operation", "Method", "URI", "Pageable")

				for _, info := range infos {
					if err := t.Append(info.Operation, info.Method, info.URI, strconv.FormatBool(info.Pageable)); err != nil {
						return fmt.Errorf("failed to add row: %w", err)
					}
				}

				return nil
			})
		},
	}
}
