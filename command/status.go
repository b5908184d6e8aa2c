// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/llm-twin/ic-autoscaler/scaling"
)

type StatusCommand struct {
	Meta
}

// Help should return long-form help text that includes the command-line
// usage, a brief few sentences explaining the function of the command,
// and the complete list of flags the command accepts.
func (c *StatusCommand) Help() string {
	helpText := `
Usage: ic-autoscaler status [options]

  Describes the scalable target and scaling policy of the inference
  component. The command only reads from the provider.

` + metaHelp()
	return strings.TrimSpace(helpText)
}

// Synopsis should return a one-line, short synopsis of the command.
// This should be less than 50 characters ideally.
func (c *StatusCommand) Synopsis() string {
	return "Shows inference component autoscaling status"
}

// Run should run the actual command with the given CLI instance and
// command-line arguments. It should return the exit status when it is
// finished.
func (c *StatusCommand) Run(args []string) int {
	return c.run("status", args, func(ctx context.Context, o *scaling.Orchestrator) error {
		status, err := o.Status(ctx)
		if err != nil {
			return err
		}
		c.Ui.Output(formatStatus(status))
		return nil
	})
}

func formatStatus(s *scaling.Status) string {
	lines := []string{
		fmt.Sprintf("Resource ID     = %s", s.ResourceID),
		fmt.Sprintf("State           = %s", s.State),
		fmt.Sprintf("Policy Name     = %s", s.PolicyName),
	}

	if s.Target != nil {
		lines = append(lines,
			fmt.Sprintf("Min Capacity    = %d", s.Target.MinCapacity),
			fmt.Sprintf("Max Capacity    = %d", s.Target.MaxCapacity))
	}

	if p := s.Policy; p != nil && p.TargetTrackingScalingPolicyConfiguration != nil {
		tt := p.TargetTrackingScalingPolicyConfiguration
		lines = append(lines,
			fmt.Sprintf("Target Value    = %g", tt.TargetValue),
			fmt.Sprintf("Scale In Delay  = %ds", tt.ScaleInCooldown),
			fmt.Sprintf("Scale Out Delay = %ds", tt.ScaleOutCooldown),
			fmt.Sprintf("Scale In        = %t", !tt.DisableScaleIn))
	}

	return strings.Join(lines, "\n")
}
