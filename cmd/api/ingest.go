package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/Procura/internal/app"
)

var ingestForce bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [protocol]",
	Short: "Scrape a process and index all of its documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "re-ingest documents already indexed")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	application, err := app.NewApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	report, err := application.Services.Documents.Ingest(cmd.Context(), args[0], ingestForce)
	if err != nil {
		return err
	}

	cmd.Printf("process %s: %d indexed, %d skipped, %d failed, %d chunks in %s\n",
		report.ProcessID, report.Indexed, report.Skipped, report.Failed, report.Chunks, report.Elapsed.Round(time.Millisecond))
	for _, d := range report.Documents {
		line := fmt.Sprintf("  %s %s", d.DocumentID, d.Outcome)
		if d.Error != "" {
			line += fmt.Sprintf(" [%s] %s", d.Code, d.Error)
		}
		cmd.Println(line)
	}
	return nil
}
