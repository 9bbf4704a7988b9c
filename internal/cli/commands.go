package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"git.unix.lgbt/diamondburned/gapline"
	"github.com/fatih/color"
	"github.com/k0kubun/pp"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"maze.io/x/duration"
)

var (
	okText    = color.New(color.FgGreen).SprintFunc()
	errText   = color.New(color.FgRed).SprintFunc()
	gapText   = color.New(color.FgYellow).SprintFunc()
	titleText = color.New(color.Bold).SprintFunc()
)

func (a *app) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a chart data document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			doc, err := gapline.ParseDocument(b)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), errText("invalid:"), err)
				return err
			}

			for _, series := range doc {
				if _, err := gapline.Gaps(series.Values, a.intervalOf(series.Key)); err != nil {
					fmt.Fprintln(cmd.OutOrStdout(), errText("invalid:"), err)
					return errors.Wrapf(err, "series %q", series.Key)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %d series\n", okText("ok:"), len(doc))
			return nil
		},
	}
}

func (a *app) fillCommand() *cobra.Command {
	var (
		ref    string
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "fill FILE",
		Short: "Insert gap markers into a chart data document",
		Long: "Fill reads a chart data document and writes it back with a null " +
			"sample after every real sample that is followed by a silence longer " +
			"than the measurement interval.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.readDocument(cmd, args[0])
			if err != nil {
				return err
			}

			filled, err := doc.Fill(a.intervalOf)
			if err != nil {
				return err
			}

			var out interface{} = filled

			if ref != "" {
				series, err := filled.Select(ref)
				if err != nil {
					return err
				}
				out = series
			}

			return writeJSON(cmd, out, pretty)
		},
	}

	cmd.Flags().StringVarP(&ref, "series", "s", "", "only output the series with this key or index")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the output")

	return cmd
}

func (a *app) gapsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gaps FILE",
		Short: "List the gaps of every series in a chart data document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.readDocument(cmd, args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()

			for _, series := range doc {
				interval := a.intervalOf(series.Key)

				gaps, err := gapline.Gaps(series.Values, interval)
				if err != nil {
					return errors.Wrapf(err, "series %q", series.Key)
				}

				fmt.Fprintf(w, "%s (%d samples, interval %v): ",
					titleText(series.Key), len(series.Values), interval)

				if len(gaps) == 0 {
					fmt.Fprintln(w, okText("no gaps"))
					continue
				}

				fmt.Fprintln(w, gapText(fmt.Sprintf("%d gaps", len(gaps))))

				for _, gap := range gaps {
					fmt.Fprintf(w, "  %s to %s (%v)\n",
						gap.From.Format(gapline.DateFormat),
						gap.To.Format(gapline.DateFormat),
						gap.Duration(),
					)
				}
			}

			return nil
		},
	}
}

func (a *app) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Store every series of a chart data document into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.readDocument(cmd, args[0])
			if err != nil {
				return err
			}

			db, err := a.openDB(true)
			if err != nil {
				return err
			}
			defer db.Close()

			for _, series := range doc {
				// Gap markers are derived on read; only real samples are kept.
				series = series.Defined()
				series.Info = a.cfg.Apply(series.Info)

				if err := db.Update(series); err != nil {
					return errors.Wrapf(err, "failed to import %q", series.Key)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d samples)\n",
					okText("imported"), series.Key, len(series.Values))
			}

			return nil
		},
	}
}

func (a *app) exportCommand() *cobra.Command {
	var (
		since  string
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "export [KEY]",
		Short: "Print stored series with their gaps filled",
		Long:  "Export prints the series with the given key, or the whole document if no key is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := gapline.IteratorOpts{}

			if since != "" {
				d, err := duration.ParseDuration(since)
				if err != nil {
					return errors.Wrap(err, "invalid --since")
				}
				opts = gapline.LastDuration(time.Now(), time.Duration(d))
			}

			db, err := a.openDB(false)
			if err != nil {
				return err
			}
			defer db.Close()

			if len(args) == 0 {
				doc, err := db.ReadDocument(opts)
				if err != nil {
					return err
				}

				for i := range doc {
					doc[i].Info = a.cfg.Apply(doc[i].Info)
				}

				filled, err := doc.Fill(a.intervalOf)
				if err != nil {
					return err
				}

				return writeJSON(cmd, filled, pretty)
			}

			series, err := db.ReadSeries(args[0], opts)
			if err != nil {
				return err
			}

			series.Info = a.cfg.Apply(series.Info)

			filled, err := series.Fill(a.intervalOf(series.Key))
			if err != nil {
				return err
			}

			return writeJSON(cmd, filled, pretty)
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "only export the last duration, such as 3h or 2d")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the output")

	return cmd
}

func (a *app) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate LEGACY",
		Short: "Copy a version 1 (bbolt) database into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			legacy, err := gapline.OpenLegacyExisting(args[0])
			if err != nil {
				return errors.Wrap(err, "failed to open legacy database")
			}
			defer legacy.Close()

			db, err := a.openDB(true)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := legacy.MigrateTo(db); err != nil {
				return errors.Wrap(err, "failed to migrate")
			}

			fmt.Fprintln(cmd.OutOrStdout(), okText("migrated"), args[0])
			return nil
		},
	}
}

func (a *app) configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the processed configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := pp.Fprintln(cmd.OutOrStdout(), a.cfg)
			return err
		},
	}
}

func writeJSON(cmd *cobra.Command, v interface{}, pretty bool) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
