package main

import (
	"fmt"
	"time"

	"patchpilot/backend/app/dto"

	"github.com/spf13/cobra"
)

func devicesCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "devices",
		Short:   "manage devices",
		GroupID: "operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list registered devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.ctx()
			defer cancel()
			devs, err := opts.session().Devices(ctx)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.jsonOut, devs, func() string {
				return title("Devices") + devicesTable(devs)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "approve DEVICE_ID",
		Short: "approve a pending device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.ctx()
			defer cancel()
			if err := opts.session().Approve(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("approved "+args[0]))
			return nil
		},
	})
	return cmd
}

func devicesTable(devs []dto.DeviceResponse) string {
	rows := make([][]string, 0, len(devs))
	for _, d := range devs {
		approval := "pending"
		if d.Approved {
			approval = "approved"
		}
		online := "offline"
		if d.Online {
			online = "online"
		}
		seen := "-"
		if d.LastCheckin != nil {
			seen = d.LastCheckin.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{d.DeviceID, d.Hostname, d.OSName + " " + d.OSVersion, d.AgentVersion, statusText(approval), statusText(online), seen})
	}
	return table([]string{"DEVICE", "HOST", "OS", "AGENT", "APPROVAL", "STATE", "LAST CHECK-IN"}, rows)
}
