package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/santemetrics/recordkit/document"
	"github.com/santemetrics/recordkit/importer"
	"github.com/santemetrics/recordkit/store"
)

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parses a clinical document into a patient record",
	Long: `
Parses a single C32 or CCR document and prints the resulting patient record
as JSON. The document standard is detected from the root element unless
--standard is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry()
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		doc, err := document.Parse(f)
		if err != nil {
			return fmt.Errorf("malformed document %s: %w", args[0], err)
		}

		standard := viper.GetString("standard")
		if standard == "" {
			if standard, err = detectStandard(doc); err != nil {
				return err
			}
		}
		var builder *importer.Builder
		switch standard {
		case "c32":
			builder = importer.NewC32Builder(registry)
		case "ccr":
			builder = importer.NewCCRBuilder(registry)
		default:
			return fmt.Errorf("unknown document standard %q", standard)
		}
		builder.CheckUsable(!viper.GetBool("no-filter"))

		pt, err := builder.Parse(cmd.Context(), doc)
		if err != nil {
			return err
		}
		if dbPath := viper.GetString("save"); dbPath != "" {
			st, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Save(cmd.Context(), pt); err != nil {
				return err
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pt)
	},
}

// detectStandard identifies the document standard by its root element.
func detectStandard(doc *document.Node) (string, error) {
	switch doc.Name {
	case "ClinicalDocument":
		return "c32", nil
	case "ContinuityOfCareRecord":
		return "ccr", nil
	}
	return "", fmt.Errorf("unrecognized document root element %q", doc.Name)
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.PersistentFlags().String("standard", "", "Document standard: c32 or ccr (default is detection by root element)")
	viper.BindPFlag("standard", parseCmd.PersistentFlags().Lookup("standard"))
	parseCmd.PersistentFlags().Bool("no-filter", false, "Keep entries that lack a code or a time")
	viper.BindPFlag("no-filter", parseCmd.PersistentFlags().Lookup("no-filter"))
	parseCmd.PersistentFlags().String("save", "", "SQLite database to save the parsed record into")
	viper.BindPFlag("save", parseCmd.PersistentFlags().Lookup("save"))
}
