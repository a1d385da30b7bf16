package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/antoniostano/papertutor/internal/pdfdoc"
)

var (
	extractOutputFile string
	extractMaxBytes   int64
)

var extractCmd = &cobra.Command{
	Use:   "extract <paper.pdf>",
	Short: "Print the text the tutor would see for a PDF",
	Long: `Run the document loader on a PDF and print the extracted text.

Useful to check whether a paper has a usable text layer before uploading it.

Examples:
  papertutor extract attention.pdf
  papertutor extract attention.pdf -o attention.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractOutputFile, "output", "o", "", "write text to file")
	extractCmd.Flags().Int64Var(&extractMaxBytes, "max-bytes", pdfdoc.DefaultMaxBytes, "reject larger files (0 disables the limit)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := newExtractor(extractMaxBytes, logger).Extract(cmd.Context(), filepath.Base(path), data)
	if err != nil {
		return fmt.Errorf("extract %s: %w", path, err)
	}

	if extractOutputFile != "" {
		if err := os.WriteFile(extractOutputFile, []byte(doc.Text), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", extractOutputFile)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), doc.Text)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d/%d pages with text, %d characters\n", doc.ExtractedPages, doc.Pages, len([]rune(doc.Text)))
	return nil
}
