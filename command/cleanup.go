// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/llm-twin/ic-autoscaler/scaling"
)

type CleanupCommand struct {
	Meta
}

// Help should return long-form help text that includes the command-line
// usage, a brief few sentences explaining the function of the command,
// and the complete list of flags the command accepts.
func (c *CleanupCommand) Help() string {
	helpText := `
Usage: ic-autoscaler cleanup [options]

  Deletes the scaling policy and deregisters the inference component as a
  scalable target. Deregistration is attempted even when deleting the policy
  fails, and every failure is reported. Cleaning up a resource which is not
  registered succeeds.

  Only the inference component name, endpoint name and policy name are used;
  the capacity and policy options are ignored.

` + metaHelp()
	return strings.TrimSpace(helpText)
}

// Synopsis should return a one-line, short synopsis of the command.
// This should be less than 50 characters ideally.
func (c *CleanupCommand) Synopsis() string {
	return "Removes inference component autoscaling"
}

// Run should run the actual command with the given CLI instance and
// command-line arguments. It should return the exit status when it is
// finished.
func (c *CleanupCommand) Run(args []string) int {
	return c.run("cleanup", args, func(ctx context.Context, o *scaling.Orchestrator) error {
		if err := o.Cleanup(ctx); err != nil {
			return err
		}
		c.Ui.Output(fmt.Sprintf("Autoscaling removed for %s", o.Identity().ResourceID))
		return nil
	})
}
