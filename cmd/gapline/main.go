package main

import (
	"log"

	"git.unix.lgbt/diamondburned/gapline/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Fatalln(err)
	}
}
