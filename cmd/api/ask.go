package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/Procura/internal/app"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask [protocol] [question]",
	Short: "Answer a question from the indexed documents of a process",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer and its sources as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	application, err := app.NewApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	ans, err := application.Services.Chat.Ask(cmd.Context(), args[0], strings.Join(args[1:], " "), nil)
	if err != nil {
		return err
	}

	if askJSON {
		data, err := json.MarshalIndent(ans, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(ans.Answer)
	for _, s := range ans.Sources {
		cmd.Printf("  - %s, trecho %d (distância %.3f)\n", s.DocumentID, s.ChunkIndex, s.Distance)
	}
	return nil
}
