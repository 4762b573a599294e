package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sarchlab/membridge/sim"
)

// Environment variables read by the command.
const (
	envConfig = "MEMBRIDGE_CONFIG"
	envHome   = "MEMBRIDGE_HOME"
)

type globalOptions struct {
	envFile  string
	logLevel string
	config   string
	xid      bool
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use: "membridge",
		Short: "membridge drives memory timing engines with synthetic, " +
			"traced, or scripted workloads.",
		Long: `membridge drives memory timing engines with synthetic, ` +
			`traced, or scripted workloads. Configurations are YAML or TOML ` +
			`files laid out like Ramulator2 configurations.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env",
		"File to load environment variables from, if it exists.")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info",
		"Log level (debug, info, warn, error).")
	root.PersistentFlags().StringVarP(&opts.config, "config", "c", "",
		"Configuration file. Defaults to $"+envConfig+
			" or the built-in reference configuration.")
	root.PersistentFlags().BoolVar(&opts.xid, "xid", false,
		"Give requests globally unique IDs instead of sequential numbers.")

	root.AddCommand(
		newRunCommand(opts),
		newSweepCommand(opts),
		newCheckCommand(opts),
		newInspectCommand(),
	)

	return root
}

func (o *globalOptions) setup(cmd *cobra.Command) error {
	err := godotenv.Load(o.envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	level, err := logrus.ParseLevel(o.logLevel)
	if err != nil {
		return err
	}

	logrus.SetLevel(level)
	logrus.SetOutput(cmd.ErrOrStderr())
	logrus.SetFormatter(formatterFor(cmd.ErrOrStderr()))

	if o.config == "" {
		o.config = os.Getenv(envConfig)
	}

	o.config = resolvePath(o.config)

	if o.xid {
		sim.UseParallelIDGenerator()
	}

	return nil
}

// formatterFor prints colored text to terminals and JSON lines elsewhere.
func formatterFor(out any) logrus.Formatter {
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return &logrus.TextFormatter{FullTimestamp: true}
	}

	return &logrus.JSONFormatter{}
}

// resolvePath resolves relative paths against $MEMBRIDGE_HOME if it is set.
func resolvePath(path string) string {
	home := os.Getenv(envHome)
	if path == "" || home == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(home, path)
}
