package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bizmatters/agent-builder/studio-client/internal/models"
)

func newProjectsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List, create and drive projects",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List projects",
			Args:  cobra.NoArgs,
			RunE:  a.runProjectsList,
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a project and its deliverables",
			Args:  cobra.ExactArgs(1),
			RunE:  a.runProjectsShow,
		},
		newProjectsCreateCmd(a),
		&cobra.Command{
			Use:   "start <id>",
			Short: "Start the agent workflow of a project",
			Args:  cobra.ExactArgs(1),
			RunE:  a.runProjectsStart,
		},
		&cobra.Command{
			Use:   "archive <id>",
			Short: "Archive a project",
			Args:  cobra.ExactArgs(1),
			RunE:  a.runProjectsArchive,
		},
		&cobra.Command{
			Use:   "workflow <id>",
			Short: "Print the workflow state of a project",
			Args:  cobra.ExactArgs(1),
			RunE:  a.runProjectsWorkflow,
		},
	)
	return cmd
}

func (a *app) runProjectsList(cmd *cobra.Command, args []string) error {
	ctx, cancel := a.opContext(cmd)
	defer cancel()

	if err := a.studio.Projects.LoadAll(ctx); err != nil {
		return err
	}
	printProjects(cmd.OutOrStdout(), a.studio.Projects.Projects())
	return nil
}

func printProjects(out io.Writer, list []*models.Project) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No projects found.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tCREATED")
	for _, p := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Status.Label(), p.CreatedAt)
	}
	w.Flush()
}

func (a *app) runProjectsShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := a.opContext(cmd)
	defer cancel()

	if err := a.studio.OpenProject(ctx, id); err != nil {
		return err
	}
	printProject(cmd.OutOrStdout(), a.studio.Projects.Current())
	return nil
}

func printProject(out io.Writer, p *models.Project) {
	fmt.Fprintf(out, "%s (#%d)\n", p.Name, p.ID)
	fmt.Fprintf(out, "Status: %s\n", p.Status.Label())
	if p.Description != "" {
		fmt.Fprintf(out, "\n%s\n", p.Description)
	}

	if len(p.Deliverables) == 0 {
		if p.CanStartWorkflow() {
			fmt.Fprintf(out, "\nNo deliverables yet. Run: studio projects start %d\n", p.ID)
		} else {
			fmt.Fprintln(out, "\nNo deliverables yet.")
		}
		return
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DELIVERABLE\tFILE\tAGENT\tFEEDBACK")
	for _, d := range p.Deliverables {
		feedback := ""
		if d.HasFeedback {
			feedback = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.DisplayName(), d.Name, d.Type, feedback)
	}
	w.Flush()
}

func newProjectsCreateCmd(a *app) *cobra.Command {
	var form models.ProjectForm
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.opContext(cmd)
			defer cancel()

			p, err := a.studio.Projects.Create(ctx, form)
			if err != nil {
				printValidation(cmd.ErrOrStderr(), err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %d: %s\n", p.ID, p.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Name, "name", "", "project name (required)")
	cmd.Flags().StringVar(&form.Description, "description", "", "project description (required)")
	cmd.Flags().StringVar(&form.Objectives, "objectives", "", "project objectives (required)")
	cmd.Flags().StringVar(&form.TargetAudience, "audience", "", "target audience")
	cmd.Flags().StringVar(&form.Constraints, "constraints", "", "constraints")
	cmd.Flags().StringVar(&form.Deadline, "deadline", "", "deadline")
	return cmd
}

func printValidation(out io.Writer, err error) {
	var verr *models.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) == 0 {
		return
	}
	fields := make([]string, 0, len(verr.Fields))
	for field := range verr.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		fmt.Fprintf(out, "  --%s: %s\n", field, verr.Fields[field])
	}
}

func (a *app) runProjectsStart(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := a.opContext(cmd)
	defer cancel()

	if err := a.studio.OpenProject(ctx, id); err != nil {
		return err
	}
	if err := a.studio.Deliverables.StartWorkflow(ctx, id); err != nil {
		return err
	}

	p := a.studio.Projects.Current()
	if p == nil {
		return errors.New(a.studio.Projects.Err())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Workflow started for %s. Status: %s, %d deliverable(s).\n",
		p.Name, p.Status.Label(), len(p.Deliverables))
	return nil
}

func (a *app) runProjectsArchive(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := a.opContext(cmd)
	defer cancel()

	if err := a.studio.Projects.Archive(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Archived project %d.\n", id)
	printProjects(cmd.OutOrStdout(), a.studio.Projects.Projects())
	return nil
}

func (a *app) runProjectsWorkflow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := a.opContext(cmd)
	defer cancel()

	status, err := a.studio.Projects.WorkflowStatus(ctx, id)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(map[string]interface{}(status)); err != nil {
		return fmt.Errorf("failed to print workflow status: %w", err)
	}
	return enc.Close()
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid project id %q", arg)
	}
	return id, nil
}
