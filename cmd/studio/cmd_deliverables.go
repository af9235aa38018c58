package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newDeliverablesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deliverables",
		Aliases: []string{"deliverable"},
		Short:   "Read deliverables and send feedback on them",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "view <project-id> <name>",
			Short: "Print the content of a deliverable",
			Args:  cobra.ExactArgs(2),
			RunE:  a.runDeliverablesView,
		},
		&cobra.Command{
			Use:   "feedback <project-id> <name> <text...>",
			Short: "Send feedback on a deliverable",
			Args:  cobra.MinimumNArgs(3),
			RunE:  a.runDeliverablesFeedback,
		},
	)
	return cmd
}

func (a *app) runDeliverablesView(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := a.opContext(cmd)
	defer cancel()

	if err := a.studio.OpenProject(ctx, id); err != nil {
		return err
	}
	if err := a.studio.Deliverables.Toggle(ctx, args[1]); err != nil {
		return err
	}

	snap := a.studio.Deliverables.Snapshot()
	if snap.Err != "" {
		return errors.New(snap.Err)
	}
	out := cmd.OutOrStdout()
	if snap.Producer != "" {
		fmt.Fprintf(out, "%s (by %s)\n\n", snap.Selected, snap.Producer)
	}
	fmt.Fprintln(out, snap.Content)
	return nil
}

func (a *app) runDeliverablesFeedback(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := a.opContext(cmd)
	defer cancel()

	a.studio.Deliverables.Open(id)
	if err := a.studio.Deliverables.SubmitFeedback(ctx, args[1], strings.Join(args[2:], " ")); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Feedback on %s sent.\n", args[1])
	return nil
}
