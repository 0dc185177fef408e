package app

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openplanning/dupaudit/pkg/constants"
)

// NewReconcileCommand creates the reconcile command, the pipeline's main
// entry point.
func (a *App) NewReconcileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Fetch, join, and write the duplicate entity expectation table",
		Long: `Reconcile runs the full audit: it downloads the expectation table, extracts
the duplicate-geometry match pairs, enriches both sides of every pair from
the entity, organisation, lookup, and provision tables, and writes the
reconciled table as a CSV artifact.

By default unreachable enrichment sources are logged and treated as empty,
so the artifact is always produced; --strict aborts instead on the first
transport failure.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runReconcile(cmd)
		},
	}

	cmd.Flags().StringP("output-dir", "d", "", "directory for the output artifact (default \""+constants.DefaultOutputDir+"\")")
	cmd.Flags().String("sources", "", "YAML sources file overriding the built-in register sources")
	cmd.Flags().String("base-url", "", "data service base URL")
	cmd.Flags().StringSlice("dataset", nil, "dataset to audit (repeatable, overrides the source set)")
	cmd.Flags().String("programme", "", "programme checked for membership (default \""+constants.DefaultProgramme+"\")")
	cmd.Flags().Bool("strict", false, "abort on the first unreachable source instead of degrading")

	return cmd
}

func (a *App) runReconcile(cmd *cobra.Command) error {
	if v := mustGetString(cmd, "sources"); v != "" {
		a.config.SourcesFile = v
	}
	if v := mustGetString(cmd, "base-url"); v != "" {
		a.config.BaseURL = v
	}
	if v, _ := cmd.Flags().GetStringSlice("dataset"); len(v) > 0 {
		a.config.Datasets = v
	}
	if v := mustGetString(cmd, "programme"); v != "" {
		a.config.Programme = v
	}
	if mustGetBool(cmd, "strict") {
		a.config.Strict = true
	}

	outputDir := mustGetString(cmd, "output-dir")
	if outputDir == "" {
		outputDir = a.config.OutputDir
	}

	pipeline, err := a.Pipeline()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), constants.CommandTimeout)
	defer cancel()

	report, err := pipeline.Run(ctx, outputDir)
	if err != nil {
		return err
	}

	cmd.Printf("wrote %s (%d rows", report.ArtifactPath, report.Matches)
	if len(report.DatasetsSkipped) > 0 {
		cmd.Printf(", %d datasets skipped", len(report.DatasetsSkipped))
	}
	cmd.Println(")")
	return nil
}

// NewDatasetsCommand creates the datasets command, which prints the
// source set a run would use.
func (a *App) NewDatasetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List the datasets the audit would cover",
		RunE: func(cmd *cobra.Command, args []string) error {
			if v := mustGetString(cmd, "sources"); v != "" {
				a.config.SourcesFile = v
			}
			sources, err := a.Sources()
			if err != nil {
				return err
			}
			for _, dataset := range sources.Datasets {
				cmd.Println(dataset)
			}
			return nil
		},
	}

	cmd.Flags().String("sources", "", "YAML sources file overriding the built-in register sources")

	return cmd
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("dupaudit %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}
