package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"afisz/internal/config"
	"afisz/internal/pipeline"
	"afisz/internal/source"
	"afisz/internal/store"
)

func newRunCommand(configFlag *string) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one fetch-reconcile-categorize pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}

			rep, err := executeRun(cmd.Context(), cfg, dryRun)
			if err != nil {
				return err
			}

			printSummary(rep)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Fetch and report without persisting or rendering")
	return cmd
}

func executeRun(ctx context.Context, cfg *config.Config, dryRun bool) (*pipeline.Report, error) {
	st, err := store.Open(filepath.Join(cfg.DataDir, "store"))
	if err != nil {
		return nil, err
	}
	defer st.Close()

	adapters, err := source.Build(cfg.Sources, source.Options{
		CacheDir:    filepath.Join(cfg.DataDir, "cache"),
		Location:    cfg.Location(),
		HorizonDays: cfg.HorizonDays,
	})
	if err != nil {
		return nil, err
	}

	return pipeline.Run(ctx, pipeline.Deps{
		Cfg:      cfg,
		Store:    st,
		Adapters: adapters,
		DryRun:   dryRun,
	})
}

func printSummary(rep *pipeline.Report) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Run", rep.RunID})
	tw.AppendRows([]table.Row{
		{"Raw records", rep.RawCount},
		{"Skipped", rep.SkippedCount},
		{"Canonical", rep.CanonicalCount},
		{"Archived", rep.ArchivedCount},
		{"New", rep.NewTotal()},
	})
	tw.Render()

	for bucket, items := range rep.NewItems {
		if len(items) == 0 {
			continue
		}
		fmt.Printf("\nNew in %s:\n", bucket)
		for _, ev := range items {
			fmt.Printf("  %s (%s)\n", ev.Title, ev.DateStart.Format("02.01.2006"))
		}
	}

	for id, msg := range rep.AdapterErrors {
		fmt.Fprintf(os.Stderr, "source %s failed: %s\n", id, msg)
	}
}
