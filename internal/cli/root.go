// Package cli implements the gapline command line tool.
package cli

import (
	"io"
	"os"
	"strings"
	"time"

	"git.unix.lgbt/diamondburned/gapline"
	"git.unix.lgbt/diamondburned/gapline/internal/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app holds the state shared by all subcommands of one invocation.
type app struct {
	v   *viper.Viper
	cfg *config.Config
}

// NewRootCommand creates the gapline command tree. Flags may also be given as
// GAPLINE_* environment variables, such as GAPLINE_DB.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "gapline",
		Short:         "gapline fills the gaps of measurement series for charting",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "YAML config file")
	flags.String("db", "", "badgerdb path")
	flags.Duration("interval", 0, "measurement interval, overrides the config")

	for _, name := range []string{"config", "db", "interval"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	a.v.SetEnvPrefix("gapline")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		a.validateCommand(),
		a.fillCommand(),
		a.gapsCommand(),
		a.importCommand(),
		a.exportCommand(),
		a.migrateCommand(),
		a.configCommand(),
	)

	return root
}

// Execute runs the root command with the process arguments.
func Execute() error {
	return NewRootCommand().Execute()
}

func (a *app) loadConfig() error {
	cfg, err := config.LoadOrDefault(a.v.GetString("config"))
	if err != nil {
		return err
	}

	a.cfg = cfg
	return nil
}

// intervalOf returns the measurement interval of the given series, preferring
// the --interval flag.
func (a *app) intervalOf(key string) time.Duration {
	if d := a.v.GetDuration("interval"); d > 0 {
		return d
	}
	return a.cfg.IntervalOf(key)
}

func (a *app) dbPath() (string, error) {
	path := a.v.GetString("db")
	if path == "" {
		return "", errors.New("missing --db flag or GAPLINE_DB")
	}
	return path, nil
}

func (a *app) openDB(write bool) (*gapline.Database, error) {
	path, err := a.dbPath()
	if err != nil {
		return nil, err
	}

	db, err := gapline.OpenWithLogger(path, write, a.cfg.Logger())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	return db, nil
}

// readInput reads the file at path, or the standard input if path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read input")
	}

	return b, nil
}

func (a *app) readDocument(cmd *cobra.Command, path string) (gapline.Document, error) {
	b, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}

	return gapline.ParseDocument(b)
}
