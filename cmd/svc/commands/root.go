// Package commands implements the svc command line.
package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fivetwenty-io/svc-client/internal/config"
	"github.com/fivetwenty-io/svc-client/internal/logging"
	"github.com/fivetwenty-io/svc-client/pkg/manifest"
	"github.com/fivetwenty-io/svc-client/pkg/plugins"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"github.com/fivetwenty-io/svc-client/pkg/svcclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// Env is the state shared by the commands of one invocation.
type Env struct {
	Viper *viper.Viper
	Out   io.Writer
	In    io.Reader

	// ReadSecret reads a value without echoing it.
	ReadSecret func(prompt string) (string, error)

	cfgFile   string
	manifests []string
	registry  *svcclient.Registry
	logger    *logging.Logger
	reader    *bufio.Reader
}

// NewRootCommand creates the svc command tree.
func NewRootCommand(version, commit, date string) *cobra.Command {
	env := &Env{}

	root := &cobra.Command{
		Use:   "svc",
		Short: "Call versioned remote services",
		Long: `A command-line interface for services described by API manifests.

Manifests are read from $HOME/.svc/manifests (or --manifests) and from
every --manifest file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return env.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&env.cfgFile, "config", "c", "", "config file (default is $HOME/.svc/config.yml)")
	flags.String("output", "table", "output format (table, json, yaml)")
	flags.StringP("region", "r", "", "service region")
	flags.String("endpoint", "", "endpoint URL overriding region resolution")
	flags.String("manifests", "", "manifest directory (default is $HOME/.svc/manifests)")
	flags.StringSliceVar(&env.manifests, "manifest", nil, "additional manifest file")
	flags.BoolP("verbose", "v", false, "log requests and responses")

	root.AddCommand(NewServicesCommand(env))
	root.AddCommand(NewOperationsCommand(env))
	root.AddCommand(NewCallCommand(env))
	root.AddCommand(NewConfigureCommand(env))
	root.AddCommand(NewVersionCommand(env, version, commit, date))

	return root
}

func (e *Env) init(cmd *cobra.Command) error {
	v, err := config.New(e.cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Root().PersistentFlags()
	bindings := map[string]string{
		config.KeyOutput:    "output",
		svc.OptRegion:       "region",
		svc.OptEndpoint:     "endpoint",
		config.KeyManifests: "manifests",
		"verbose":           "verbose",
	}

	for key, flag := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}

	e.Viper = v
	e.Out = cmd.OutOrStdout()
	e.In = cmd.InOrStdin()

	if e.ReadSecret == nil {
		e.ReadSecret = e.readSecret
	}

	return nil
}

func (e *Env) verbose() bool {
	return e.Viper.GetBool("verbose")
}

// Registry loads every manifest into a registry, once.
func (e *Env) Registry() (*svcclient.Registry, error) {
	if e.registry != nil {
		return e.registry, nil
	}

	dir := e.Viper.GetString(config.KeyManifests)
	if dir == "" {
		base, err := config.Dir()
		if err != nil {
			return nil, err
		}

		dir = filepath.Join(base, "manifests")
	}

	apis, err := manifest.LoadDir(dir)
	if err != nil {
		return nil, err
	}

	for _, path := range e.manifests {
		api, err := manifest.Load(path)
		if err != nil {
			return nil, err
		}

		apis = append(apis, api)
	}

	reg := svcclient.NewRegistry()

	for _, api := range apis {
		if _, err := reg.Register(api); err != nil {
			return nil, err
		}
	}

	if err := reg.AddPlugin(plugins.NewRateLimiter().Plugin()); err != nil {
		return nil, err
	}

	if e.verbose() {
		if err := reg.AddPlugin(plugins.Logging()); err != nil {
			return nil, err
		}
	}

	e.registry = reg

	return reg, nil
}

// Logger returns the zap logger at the configured level.
func (e *Env) Logger() (*logging.Logger, error) {
	if e.logger != nil {
		return e.logger, nil
	}

	level := e.Viper.GetString(svc.OptLogLevel)
	if level == "" {
		level = "warn"
	}

	if e.verbose() {
		level = "debug"
	}

	logger, err := logging.NewZapLogger(level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	e.logger = logger

	return logger, nil
}

// Client creates a client of service from the loaded configuration.
func (e *Env) Client(service string) (*svc.Client, error) {
	reg, err := e.Registry()
	if err != nil {
		return nil, err
	}

	logger, err := e.Logger()
	if err != nil {
		return nil, err
	}

	store := svc.NewStore()
	if err := config.Load(e.Viper, store); err != nil {
		return nil, err
	}

	creds, err := config.Credentials(e.Viper, logger)
	if err != nil {
		return nil, err
	}

	return reg.New(service,
		svcclient.WithStore(store),
		svcclient.WithCredentials(creds),
		svcclient.WithLogger(logger),
		svcclient.WithDebug(e.verbose()),
	)
}

func (e *Env) prompt(label string) (string, error) {
	if e.reader == nil {
		e.reader = bufio.NewReader(e.In)
	}

	_, _ = fmt.Fprint(e.Out, label)

	line, err := e.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return strings.TrimSpace(line), nil
}

func (e *Env) readSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if e.In != os.Stdin || !term.IsTerminal(fd) {
		return e.prompt(label)
	}

	_, _ = fmt.Fprint(e.Out, label)

	secret, err := term.ReadPassword(fd)

	_, _ = fmt.Fprintln(e.Out)

	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	return string(secret), nil
}
