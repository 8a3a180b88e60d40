package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/skillwatch/skillwatch/internal/astextract"
	"github.com/skillwatch/skillwatch/internal/docsmonitor"
	"github.com/skillwatch/skillwatch/internal/ratelimit"
	"github.com/skillwatch/skillwatch/internal/sourcemonitor"
	"github.com/skillwatch/skillwatch/internal/store"
)

var checkSourceName string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the CDC pipeline against one or every watched source",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkSourceName, "source", "", "only check the named source (default: every configured source)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var sources []store.Source
	if checkSourceName != "" {
		src, err := a.st.GetSource(checkSourceName)
		if err != nil {
			return operationalFailure(fmt.Errorf("unknown source %q: %w", checkSourceName, err))
		}
		sources = []store.Source{*src}
	} else {
		sources, err = a.st.ListSources()
		if err != nil {
			return operationalFailure(fmt.Errorf("list sources: %w", err))
		}
	}

	sessionID := uuid.NewString()
	limiter := ratelimit.New(a.cfg.RateLimit.RequestsPerSecond, a.cfg.RateLimit.Burst)
	docsMon := docsmonitor.NewMonitor(a.st, limiter, filepath.Join(".skillwatch", "cache")).WithSession(sessionID)
	srcMon := sourcemonitor.NewMonitor(a.st, astextract.NewRegistry(astextract.NewPythonExtractor())).WithSession(sessionID)

	window, err := a.cfg.SourceMonitorWindowDuration()
	if err != nil {
		return operationalFailure(fmt.Errorf("source monitor window: %w", err))
	}

	anyChanged := false
	for _, src := range sources {
		switch src.Type {
		case store.SourceTypeGit:
			report, err := srcMon.CheckSource(ctx, src, window)
			if err != nil {
				return operationalFailure(fmt.Errorf("check source %q: %w", src.Name, err))
			}
			printSourceReport(src.Name, report.Classification, len(report.Commits), len(report.Signatures))
			anyChanged = anyChanged || report.Classification != store.ClassificationNone
		default:
			report, err := docsMon.CheckSource(ctx, src)
			if err != nil {
				return operationalFailure(fmt.Errorf("check source %q: %w", src.Name, err))
			}
			printDocsReport(src.Name, report)
			anyChanged = anyChanged || report.Changed
		}
	}

	if !anyChanged {
		fmt.Println("no changes detected")
	}
	return nil
}

func printDocsReport(name string, report *docsmonitor.Report) {
	if !report.Changed {
		fmt.Printf("%s: unchanged\n", name)
		return
	}
	grouped := report.ByClassification()
	fmt.Printf("%s: changed (%d breaking, %d additive, %d cosmetic)\n",
		name, len(grouped[store.ClassificationBreaking]), len(grouped[store.ClassificationAdditive]), len(grouped[store.ClassificationCosmetic]))
}

func printSourceReport(name string, classification store.Classification, commitCount, signatureCount int) {
	fmt.Printf("%s: %s (%d commits, %d public signatures touched)\n", name, classification, commitCount, signatureCount)
}
