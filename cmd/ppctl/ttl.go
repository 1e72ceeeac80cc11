package main

import (
	"fmt"
	"time"

	"patchpilot/backend/app/dto"

	"github.com/spf13/cobra"
)

func ttlCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ttl",
		Short:   "read or change an action's time to live",
		GroupID: "operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get ACTION_ID",
		Short: "show remaining time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseActionID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := opts.ctx()
			defer cancel()
			resp, err := opts.session().TTL(ctx, id)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.jsonOut, resp, func() string { return ttlText(resp) })
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set ACTION_ID SECONDS",
		Short: "set the action to expire SECONDS from now (clamped by the server)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseActionID(args[0])
			if err != nil {
				return err
			}
			var secs int64
			if _, err := fmt.Sscan(args[1], &secs); err != nil {
				return fmt.Errorf("invalid seconds %q", args[1])
			}
			ctx, cancel := opts.ctx()
			defer cancel()
			resp, err := opts.session().SetTTL(ctx, id, secs)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.jsonOut, resp, func() string { return ttlText(resp) })
		},
	})
	return cmd
}

func ttlText(r dto.TTLResponse) string {
	state := statusText("queued")
	if r.Canceled {
		state = statusText("canceled")
	}
	remaining := time.Duration(r.RemainingSeconds) * time.Second
	return fmt.Sprintf("action %d %s, expires %s (%s left)\n", r.ActionID, state, r.ExpiresAt.Local().Format(time.DateTime), remaining)
}
