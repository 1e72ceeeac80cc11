package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func loginCommand(opts *options) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "authenticate and store an access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Username: ")
				line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				username = strings.TrimSpace(line)
			}
			if password == "" {
				password = os.Getenv("PATCHPILOT_PASSWORD")
			}
			s := NewSession(opts.server, opts.tokenPath)
			ctx, cancel := opts.ctx()
			defer cancel()
			if err := s.Login(ctx, username, password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("logged in as "+username))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "admin username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (or env PATCHPILOT_PASSWORD)")
	return cmd
}
