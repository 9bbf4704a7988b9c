package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"git.unix.lgbt/diamondburned/gapline/cmd/gapline-http/handler"
	"git.unix.lgbt/diamondburned/gapline/internal/config"
)

var (
	dbPath     string
	configPath string
)

func init() {
	p := func(v ...interface{}) { fmt.Fprintln(flag.CommandLine.Output(), v...) }
	flag.Usage = func() {
		p("Usage:")
		p("  gapline-http -db <badgerdb path> [-config <yaml path>] <http address>")
		p("")
		p("Flags:")
		flag.PrintDefaults()
	}

	flag.StringVar(&dbPath, "db", dbPath, "badgerdb path")
	flag.StringVar(&configPath, "config", configPath, "optional YAML config path")
	flag.Parse()
}

func main() {
	if dbPath == "" {
		log.Fatalln("missing -db flag, see -h")
	}

	listen := flag.Arg(0)
	if listen == "" {
		log.Fatalln("missing listen addr, see -h")
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		log.Fatalln("failed to load config:", err)
	}

	log.Println("listening on", listen)

	if err := http.ListenAndServe(listen, handler.New(dbPath, cfg)); err != nil {
		log.Fatalln("failed to serve:", err)
	}
}
