package main

import (
	"flag"
	"log"
	"net/http/cgi"

	"git.unix.lgbt/diamondburned/gapline/cmd/gapline-http/handler"
	"git.unix.lgbt/diamondburned/gapline/internal/config"
)

var (
	dbPath     string
	configPath string
)

func init() {
	flag.StringVar(&dbPath, "db", dbPath, "badgerdb path")
	flag.StringVar(&configPath, "config", configPath, "optional YAML config path")
	flag.Parse()

	if dbPath == "" {
		log.Fatalln("missing -db flag.")
	}
}

func main() {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		log.Fatalln("failed to load config:", err)
	}

	if err := cgi.Serve(handler.New(dbPath, cfg)); err != nil {
		log.Fatalln("failed to serve:", err)
	}
}
