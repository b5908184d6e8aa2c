// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/llm-twin/ic-autoscaler/scaling"
)

type SetupCommand struct {
	Meta
}

// Help should return long-form help text that includes the command-line
// usage, a brief few sentences explaining the function of the command,
// and the complete list of flags the command accepts.
func (c *SetupCommand) Help() string {
	helpText := `
Usage: ic-autoscaler setup [options]

  Registers the inference component as a scalable target and attaches a
  target tracking scaling policy to it. The command is idempotent; running
  it again with changed options updates the capacity bounds and policy.

  The configuration primarily comes from the config files used, but all of
  the options may also be passed directly as CLI arguments, listed below.

` + metaHelp()
	return strings.TrimSpace(helpText)
}

// Synopsis should return a one-line, short synopsis of the command.
// This should be less than 50 characters ideally.
func (c *SetupCommand) Synopsis() string {
	return "Sets up inference component autoscaling"
}

// Run should run the actual command with the given CLI instance and
// command-line arguments. It should return the exit status when it is
// finished.
func (c *SetupCommand) Run(args []string) int {
	return c.run("setup", args, func(ctx context.Context, o *scaling.Orchestrator) error {
		if err := o.Setup(ctx); err != nil {
			return err
		}
		c.Ui.Output(fmt.Sprintf("Autoscaling configured for %s", o.Identity().ResourceID))
		return nil
	})
}
