package main

import (
	"fmt"
	"strings"

	"github.com/soroosh-tanzadeh/bgqueue/contracts"
	"github.com/soroosh-tanzadeh/bgqueue/engine"
	"github.com/spf13/cobra"
)

func newPushCommand(ctx *commandContext) *cobra.Command {
	var (
		payloadFlags []string
		dispatch     bool
	)

	cmd := &cobra.Command{
		Use:   "push <queue> <subject>...",
		Short: "Queue subjects for background processing",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := parsePayload(payloadFlags)
			if err != nil {
				return err
			}
			queue := args[0]
			return ctx.withApp(cmd.Context(), func(a *app) error {
				for _, subject := range args[1:] {
					if err := a.engine.Push(cmd.Context(), queue, subject, payload); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued %d subject(s) on %s\n", len(args)-1, queue)
				if dispatch {
					return a.engine.Dispatch(cmd.Context(), queue)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&payloadFlags, "payload", "p", nil, "Payload entry as key=value (repeatable)")
	cmd.Flags().BoolVar(&dispatch, "dispatch", false, "Dispatch a runner after queueing")
	return cmd
}

func newDispatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch <queue>",
		Short: "Start a runner for a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				return a.engine.Dispatch(cmd.Context(), args[0])
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <queue>",
		Short: "Drop every pending item of a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				removed, err := a.engine.Cancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d item(s) from %s\n", removed, args[0])
				return nil
			})
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [queue]",
		Short: "Show queue status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				var statuses []engine.QueueStatus
				if len(args) == 1 {
					status, err := a.engine.Status(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					statuses = append(statuses, status)
				} else {
					var err error
					statuses, err = a.engine.Statuses(cmd.Context())
					if err != nil {
						return err
					}
				}
				if jsonOutput {
					return writeJSON(cmd, statuses)
				}
				return renderStatuses(cmd, statuses)
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func parsePayload(entries []string) (contracts.Payload, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	payload := make(contracts.Payload, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid payload entry %q, want key=value", entry)
		}
		payload[key] = value
	}
	return payload, nil
}
