package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/studio-client/internal/knowledge"
)

func newKnowledgeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Browse and search the knowledge base",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "categories",
			Short: "List knowledge categories",
			Args:  cobra.NoArgs,
			RunE:  a.runKnowledgeCategories,
		},
		&cobra.Command{
			Use:   "browse [category]",
			Short: "List the items of a category (default: the first one)",
			Args:  cobra.MaximumNArgs(1),
			RunE:  a.runKnowledgeBrowse,
		},
		&cobra.Command{
			Use:   "search <term...>",
			Short: "Search knowledge items",
			Args:  cobra.MinimumNArgs(1),
			RunE:  a.runKnowledgeSearch,
		},
	)
	return cmd
}

func (a *app) runKnowledgeCategories(cmd *cobra.Command, args []string) error {
	ctx, cancel := a.opContext(cmd)
	defer cancel()

	if err := a.studio.Knowledge.Bootstrap(ctx); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	snap := a.studio.Knowledge.Snapshot()
	if len(snap.Categories) == 0 {
		fmt.Fprintln(out, "No categories yet.")
		return nil
	}
	for _, category := range snap.Categories {
		fmt.Fprintln(out, category)
	}
	return nil
}

func (a *app) runKnowledgeBrowse(cmd *cobra.Command, args []string) error {
	ctx, cancel := a.opContext(cmd)
	defer cancel()

	engine := a.studio.Knowledge
	if err := engine.Bootstrap(ctx); err != nil {
		return err
	}
	if len(args) == 1 {
		if err := engine.SelectCategory(ctx, args[0]); err != nil {
			return err
		}
	}
	return printResults(cmd.OutOrStdout(), engine)
}

func (a *app) runKnowledgeSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := a.opContext(cmd)
	defer cancel()

	engine := a.studio.Knowledge
	// attribution only; results do not depend on it
	if err := engine.Bootstrap(ctx); err != nil {
		a.logger.Debug("knowledge bootstrap failed before search", zap.Error(err))
	}
	if err := engine.Search(ctx, strings.Join(args, " ")); err != nil {
		return err
	}
	return printResults(cmd.OutOrStdout(), engine)
}

func printResults(out io.Writer, engine *knowledge.Engine) error {
	snap := engine.Snapshot()
	if snap.Err != "" {
		return errors.New(snap.Err)
	}

	switch snap.Mode {
	case knowledge.ModeSearch:
		fmt.Fprintf(out, "Results for %q\n", snap.Selector)
	default:
		fmt.Fprintf(out, "%s\n", snap.ActiveCategory)
	}
	if len(snap.Results) == 0 {
		fmt.Fprintln(out, "  nothing here")
		return nil
	}
	for _, item := range snap.Results {
		agent := engine.AgentFor(item.Agent)
		fmt.Fprintf(out, "\n[%s] %s\n", agent.DisplayTitle(), item.CreatedAt)
		if item.Query != "" {
			fmt.Fprintf(out, "Q: %s\n", item.Query)
		}
		fmt.Fprintln(out, item.Content)
	}
	return nil
}
