package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginasoft/BotGastos/pkg/classifier"
	"github.com/ginasoft/BotGastos/pkg/extract"
	"github.com/ginasoft/BotGastos/pkg/rules"
)

// classifyOutput is what the classify command prints.
type classifyOutput struct {
	classifier.Classification
	Items []classifiedItem `json:"items,omitempty"`
}

type classifiedItem struct {
	Product string `json:"product"`
	Price   string `json:"price"`
}

func classifyCmd() *cobra.Command {
	var rulesFile string

	cmd := &cobra.Command{
		Use:   "classify [text]",
		Short: "Print how a message would be interpreted, without staging it",
		Long: `Classify a message and print the result as JSON. The text is taken from the
arguments, or from stdin when none are given.

Examples:
  botgastos classify "Pagué con débito 15.30 usd en farmacia"
  printf 'Leche 120\nPan 80\nTotal 200' | botgastos classify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("rules") {
				rulesFile = os.Getenv("RULES_FILE")
			}
			set, err := rules.Load(rulesFile)
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			if len(args) == 0 {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				text = string(b)
			}

			return writeClassification(cmd.OutOrStdout(), classifier.New(set), text)
		},
	}

	cmd.Flags().StringVar(&rulesFile, "rules", "", "rules JSON file (default: built-in rules, or RULES_FILE)")

	return cmd
}

func writeClassification(w io.Writer, c *classifier.Classifier, text string) error {
	out := classifyOutput{Classification: c.Classify(text)}
	for _, item := range extract.ExtractItems(text, time.Time{}, "") {
		out.Items = append(out.Items, classifiedItem{Product: item.Product, Price: item.Price.String()})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding classification: %w", err)
	}
	return nil
}
