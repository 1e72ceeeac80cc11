package main

import (
	"fmt"
	"strconv"
	"strings"

	"patchpilot/backend/config"
	"patchpilot/network"

	"github.com/spf13/cobra"
)

func settingsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "settings",
		Short:   "inspect or change live server settings",
		GroupID: "operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "show live settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.ctx()
			defer cancel()
			st, err := opts.session().Settings(ctx)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.jsonOut, st, func() string { return title("Settings") + settingsText(st) })
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY=VALUE...",
		Short: "change settings, e.g. sweep_interval_seconds=15",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseAssignments(args)
			if err != nil {
				return err
			}
			ctx, cancel := opts.ctx()
			defer cancel()
			st, err := opts.session().UpdateSettings(ctx, patch)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.jsonOut, st, func() string { return title("Settings") + settingsText(st) })
		},
	})
	return cmd
}

// parseAssignments turns key=value pairs into a JSON patch, typing values
// as bool or integer when they parse as such.
func parseAssignments(args []string) (map[string]any, error) {
	patch := make(map[string]any, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected KEY=VALUE, got %q", a)
		}
		if b, err := strconv.ParseBool(v); err == nil {
			patch[k] = b
		} else if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			patch[k] = n
		} else {
			patch[k] = v
		}
	}
	return patch, nil
}

func settingsText(st config.Settings) string {
	var m map[string]any
	b, _ := network.JSON.Marshal(st)
	_ = network.JSON.Unmarshal(b, &m)
	rows := make([][]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		rows = append(rows, []string{k, fmt.Sprint(m[k])})
	}
	return table([]string{"KEY", "VALUE"}, rows)
}
