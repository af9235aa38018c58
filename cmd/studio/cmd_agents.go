package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bizmatters/agent-builder/studio-client/internal/auth"
)

func newAgentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Work with the studio agents",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.opContext(cmd)
			defer cancel()

			list, err := a.studio.Agents.List(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTITLE")
			for _, agent := range list {
				fmt.Fprintf(w, "%s\t%s\n", agent.Name, agent.DisplayTitle())
			}
			return w.Flush()
		},
	})
	return cmd
}

func newTokenCmd(a *app) *cobra.Command {
	var (
		username string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a token accepted by a dev server sharing DEVSERVER_JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.DevServer.JWTSecret == "" {
				return errors.New("DEVSERVER_JWT_SECRET is not set")
			}
			jm, err := auth.NewJWTManager(a.cfg.DevServer.JWTSecret)
			if err != nil {
				return err
			}
			token, err := jm.GenerateToken(cmd.Context(), username, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "user", "dev", "username carried by the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			if !a.studio.Healthy(ctx) {
				return fmt.Errorf("backend at %s is not healthy", a.studio.Gateway.BaseURL())
			}
			fmt.Fprintln(cmd.OutOrStdout(), "healthy")
			return nil
		},
	}
}
