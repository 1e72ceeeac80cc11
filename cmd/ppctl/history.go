package main

import (
	"fmt"
	"slices"
	"time"

	"patchpilot/backend/app/dto"

	"github.com/spf13/cobra"
)

func historyCommand(opts *options) *cobra.Command {
	var audit bool
	cmd := &cobra.Command{
		Use:     "history",
		Short:   "show the action history (or the audit log with --audit)",
		GroupID: "operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.ctx()
			defer cancel()
			logs, err := opts.session().History(ctx, audit)
			if err != nil {
				return err
			}
			name := "History"
			if audit {
				name = "Audit"
			}
			return emit(cmd.OutOrStdout(), opts.jsonOut, logs, func() string { return title(name) + logsTable(logs) })
		},
	}
	cmd.Flags().BoolVar(&audit, "audit", false, "show the audit log (admin only)")
	return cmd
}

func logsTable(logs []dto.LogResponse) string {
	rows := make([][]string, 0, len(logs))
	for _, l := range logs {
		action := "-"
		if l.ActionID != nil {
			action = fmt.Sprint(*l.ActionID)
		}
		rows = append(rows, []string{l.CreatedAt.Local().Format(time.DateTime), l.Actor, l.Event, action, l.Target, l.Detail})
	}
	return table([]string{"TIME", "ACTOR", "EVENT", "ACTION", "TARGET", "DETAIL"}, rows)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
