package main

import (
	"flag"

	"github.com/robotalks/instrbus/pkg/cli/sh"
	"github.com/robotalks/instrbus/pkg/env"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags(flag.CommandLine)
}

func main() {
	sh.Main()
}
