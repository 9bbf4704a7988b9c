package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"git.unix.lgbt/diamondburned/gapline"
	"git.unix.lgbt/diamondburned/gapline/internal/config"
	"github.com/pkg/errors"
)

func main() {
	var (
		dbPath     string
		configPath string
		gc         bool
	)

	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(),
			"Usage:")
		fmt.Fprintln(flag.CommandLine.Output(),
			"  "+filepath.Base(os.Args[0]), "-db path [flags...]")
		fmt.Fprintln(flag.CommandLine.Output(),
			"")
		fmt.Fprintln(flag.CommandLine.Output(),
			"Flags:")
		flag.PrintDefaults()
	}

	flag.StringVar(&dbPath, "db", dbPath, "badgerdb path")
	flag.StringVar(&configPath, "config", configPath, "optional YAML config path")
	flag.BoolVar(&gc, "gc", gc, "delete points older than the configured retention instead of recording")
	flag.Parse()

	if dbPath == "" {
		log.Fatalln("missing -db flag; refer to -h.")
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		log.Fatalln("failed to load config:", err)
	}

	run := update
	if gc {
		run = runGC
	}

	if err := run(dbPath, cfg); err != nil {
		log.Fatalln("unexpected error:", err)
	}
}

func update(dbPath string, cfg *config.Config) error {
	probed, err := gapline.ProbeHost()
	if err != nil {
		return errors.Wrap(err, "failed to probe host")
	}

	d, err := gapline.OpenWithLogger(dbPath, true, cfg.Logger())
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer d.Close()

	for _, series := range probed {
		series.Info = cfg.Apply(series.Info)

		if err := d.Update(series); err != nil {
			return errors.Wrapf(err, "failed to update %s", series.Key)
		}
	}

	return nil
}

func runGC(dbPath string, cfg *config.Config) error {
	d, err := gapline.OpenWithLogger(dbPath, true, cfg.Logger())
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer d.Close()

	n, err := d.GC(cfg.Retention)
	if err != nil {
		return errors.Wrap(err, "failed to GC")
	}

	log.Printf("deleted %d points older than %v", n, cfg.Retention)

	return nil
}
