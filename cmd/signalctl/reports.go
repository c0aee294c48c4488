package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"callsignal/internal/adapter/telemetry"
	"callsignal/internal/domain"
	"callsignal/internal/infra/config"
	"callsignal/internal/infra/logger"
)

func runReports(args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath(flags))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.Telemetry.JournalPath == "" {
		return fmt.Errorf("telemetry.journal_path is not set")
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	journal, err := telemetry.OpenJournal(cfg.Telemetry.JournalPath, log)
	if err != nil {
		return err
	}
	defer journal.Close()

	reports, err := journal.List(context.Background(), flags.Limit)
	if err != nil {
		return err
	}
	return printReports(os.Stdout, reports)
}

func printReports(w io.Writer, reports []domain.Report) error {
	if len(reports) == 0 {
		_, err := fmt.Fprintln(w, "no reports")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSEVERITY\tCODE\tMESSAGE\tMETADATA")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Local().Format(time.DateTime),
			r.Severity,
			r.Code,
			r.Message,
			formatMetadata(r.Metadata),
		)
	}
	return tw.Flush()
}

func formatMetadata(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, " ")
}
