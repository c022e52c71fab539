package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/Procura/internal/app"
	"github.com/markdave123-py/Procura/internal/core/scraper"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [protocol]",
	Short: "Scrape one process and print its record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	p, err := scraper.ParseProtocol(args[0])
	if err != nil {
		return err
	}

	rec := app.NewScraper(cfg).Scrape(cmd.Context(), p.String())
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))

	if rec.ScrapeError != nil {
		return errors.New(rec.ScrapeError.Category + ": " + rec.ScrapeError.Message)
	}
	return nil
}
