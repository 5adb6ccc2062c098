// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"codeberg.org/oliverandrich/loginflow/internal/config"
	"codeberg.org/oliverandrich/loginflow/internal/server"
)

func main() {
	cmd := &cli.Command{
		Name:   "loginflow",
		Usage:  "Account identification, login and email verification service",
		Flags:  config.Flags(),
		Action: server.Run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
