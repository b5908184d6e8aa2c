// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/llm-twin/ic-autoscaler/command"
	"github.com/llm-twin/ic-autoscaler/version"
	"github.com/mitchellh/cli"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// create context to handle signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	go func() {
		select {
		case <-signalCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ui := &cli.BasicUi{
		Reader:      os.Stdin,
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	meta := command.Meta{
		Ctx:           ctx,
		Ui:            ui,
		ClientFactory: command.AWSClientFactory,
	}

	c := cli.NewCLI("ic-autoscaler", version.GetHumanVersion())
	c.Args = args
	c.Commands = map[string]cli.CommandFactory{
		"setup": func() (cli.Command, error) {
			return &command.SetupCommand{Meta: meta}, nil
		},
		"cleanup": func() (cli.Command, error) {
			return &command.CleanupCommand{Meta: meta}, nil
		},
		"status": func() (cli.Command, error) {
			return &command.StatusCommand{Meta: meta}, nil
		},
		"version": func() (cli.Command, error) {
			return &command.VersionCommand{Ui: ui, Version: version.GetHumanVersion()}, nil
		},
	}

	exitCode, err := c.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing CLI: %v\n", err)
		return 1
	}
	return exitCode
}
