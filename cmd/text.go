package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/brensch/flatpack/internal/textextract"

	"github.com/spf13/cobra"
)

var (
	textClean         bool
	textLowercase     bool
	textStopwords     bool
	textStopwordsFile string
	textListFormats   bool
)

// textCmd prints the plain text of documents or whole folders.
var textCmd = &cobra.Command{
	Use:   "text [paths...]",
	Short: "Extract plain text from documents or folders",
	Long: `Prints the text of each file, or of every supported file under each folder
in lexical order. Unsupported or unreadable files produce no text.

--clean collapses whitespace and strips diacritics; --lowercase and --stopwords
further normalize the cleaned text.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		registry := textextract.New(logger)
		if textListFormats {
			fmt.Println(strings.Join(registry.Extensions(), " "))
			return nil
		}
		if len(args) == 0 {
			return fmt.Errorf("no paths given")
		}

		var cleaner *textextract.Cleaner
		if textClean || textLowercase || textStopwords {
			words, err := loadStopwords(textStopwordsFile)
			if err != nil {
				return err
			}
			cleaner = textextract.NewCleaner(words)
		}

		ctx := cmd.Context()
		for _, p := range args {
			info, err := os.Stat(p)
			if err != nil {
				logger.Warn("Skipping path.", "path", p, "error", err)
				continue
			}
			var text string
			if info.IsDir() {
				text = registry.ExtractFolder(ctx, p)
			} else {
				text = registry.Extract(ctx, p)
			}
			if cleaner != nil {
				text = cleaner.Clean(text, textextract.CleanOptions{Lowercase: textLowercase, RemoveStopwords: textStopwords})
			}
			if len(args) > 1 {
				fmt.Printf("==> %s <==\n", p)
			}
			fmt.Println(text)
		}
		return nil
	},
}

func init() {
	textCmd.Flags().BoolVar(&textClean, "clean", false, "Collapse whitespace and strip diacritics")
	textCmd.Flags().BoolVar(&textLowercase, "lowercase", false, "Lower-case the cleaned text")
	textCmd.Flags().BoolVar(&textStopwords, "stopwords", false, "Remove stopwords from the cleaned text")
	textCmd.Flags().StringVar(&textStopwordsFile, "stopwords-file", "", "File with one stopword per line (default list when empty)")
	textCmd.Flags().BoolVar(&textListFormats, "list-formats", false, "Print the supported extensions and exit")
}

// loadStopwords reads one word per line. An empty path yields nil, the default list.
func loadStopwords(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stopwords %s: %w", path, err)
	}
	defer f.Close()
	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if w := strings.TrimSpace(scanner.Text()); w != "" && !strings.HasPrefix(w, "#") {
			words = append(words, w)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stopwords %s: %w", path, err)
	}
	return words, nil
}
