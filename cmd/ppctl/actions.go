package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"patchpilot/backend/app/dto"

	"github.com/spf13/cobra"
)

func parseActionID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid action id %q", s)
	}
	return uint(id), nil
}

func actionsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "actions",
		Short:   "submit and inspect actions",
		GroupID: "operations",
	}
	cmd.AddCommand(submitCommand(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list recent actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.ctx()
			defer cancel()
			acts, err := opts.session().Actions(ctx)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.jsonOut, acts, func() string {
				return title("Actions") + actionsTable(acts, time.Now())
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "targets ACTION_ID",
		Short: "show per-device status and output of an action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseActionID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := opts.ctx()
			defer cancel()
			targets, err := opts.session().Targets(ctx, id)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.jsonOut, targets, func() string {
				return title(fmt.Sprintf("Action %d", id)) + targetsText(targets)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "cancel ACTION_ID",
		Short: "cancel an action at the next sweep",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseActionID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := opts.ctx()
			defer cancel()
			if err := opts.session().Cancel(ctx, id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), warnStyle.Render(fmt.Sprintf("action %d scheduled for cancellation", id)))
			return nil
		},
	})
	return cmd
}

func submitCommand(opts *options) *cobra.Command {
	var (
		req     dto.SubmitActionRequest
		targets []string
		ttl     int64
		timeout uint64
	)
	cmd := &cobra.Command{
		Use:   "submit COMMAND",
		Short: "queue a command for one or more devices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Command = args[0]
			req.TargetDeviceIDs = targets
			if cmd.Flags().Changed("ttl") {
				req.TTLSeconds = &ttl
			}
			if cmd.Flags().Changed("timeout-secs") {
				req.TimeoutSecs = &timeout
			}
			ctx, cancel := opts.ctx()
			defer cancel()
			resp, err := opts.session().Submit(ctx, req)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.jsonOut, resp, func() string {
				return fmt.Sprintf("action %d %s for %d device(s), expires %s\n",
					resp.ActionID, statusText(resp.Status), resp.Targets, resp.ExpiresAt.Local().Format(time.DateTime))
			})
		},
	}
	cmd.Flags().StringSliceVarP(&targets, "device", "d", nil, "target device id (repeatable)")
	cmd.Flags().StringVarP(&req.Kind, "kind", "k", "shell", "command kind: shell, script or exec")
	cmd.Flags().StringSliceVar(&req.Args, "arg", nil, "extra argument (repeatable)")
	cmd.Flags().Int64Var(&ttl, "ttl", 0, "seconds before the action expires")
	cmd.Flags().Uint64Var(&timeout, "timeout-secs", 0, "execution timeout on the device")
	_ = cmd.MarkFlagRequired("device")
	return cmd
}

func actionsTable(acts []dto.ActionResponse, now time.Time) string {
	rows := make([][]string, 0, len(acts))
	for _, a := range acts {
		state := "active"
		switch {
		case a.Canceled:
			state = "canceled"
		case !a.ExpiresAt.After(now):
			state = "expired"
		}
		line := strings.TrimSpace(a.Command + " " + strings.Join(a.Args, " "))
		rows = append(rows, []string{strconv.FormatUint(uint64(a.ID), 10), a.Kind, line, a.Author, statusText(state), a.ExpiresAt.Local().Format(time.DateTime)})
	}
	return table([]string{"ID", "KIND", "COMMAND", "AUTHOR", "STATE", "EXPIRES"}, rows)
}

func targetsText(targets []dto.TargetResponse) string {
	rows := make([][]string, 0, len(targets))
	for _, t := range targets {
		exit := "-"
		if t.ExitCode != nil {
			exit = strconv.Itoa(*t.ExitCode)
		}
		result := t.ResultStatus
		if result == "" {
			result = "-"
		}
		rows = append(rows, []string{t.DeviceID, statusText(t.Status), statusText(result), exit, t.FinishedAt})
	}
	out := table([]string{"DEVICE", "STATUS", "RESULT", "EXIT", "FINISHED"}, rows)
	for _, t := range targets {
		if t.Stdout == "" && t.Stderr == "" {
			continue
		}
		out += "\n" + headerStyle.Render(t.DeviceID) + "\n"
		if t.Stdout != "" {
			out += t.Stdout
			if !strings.HasSuffix(t.Stdout, "\n") {
				out += "\n"
			}
		}
		if t.Stderr != "" {
			out += errorStyle.Render(strings.TrimRight(t.Stderr, "\n")) + "\n"
		}
	}
	return out
}
