// package formatter provides functions to export book lists to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/bookx/internal/models"
	"github.com/desertthunder/bookx/internal/shared"
)

// Format is an export file format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// ParseFormat validates a format name. "md" and "text" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (json, csv, markdown, txt)", shared.ErrInvalidArgument, s)
	}
}

// ListExport is one list with whatever bibliographic detail is cached for its books.
type ListExport struct {
	ListType       models.ListType                `json:"list_type"`
	Books          []models.Book                  `json:"books"`
	Bibliographies map[string]models.Bibliography `json:"bibliographies,omitempty"`
	ExportedAt     time.Time                      `json:"exported_at"`
}

type listMetadata struct {
	ListType   models.ListType `json:"list_type"`
	Label      string          `json:"label"`
	Books      int             `json:"books"`
	Enriched   int             `json:"enriched"`
	ExportedAt time.Time       `json:"exported_at"`
}

func (e *ListExport) issued(b models.Book) string {
	if bib, ok := e.Bibliographies[b.ISBN]; ok {
		return bib.Issued
	}
	return ""
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// ExportToCSV converts a ListExport to CSV format with columns: Position, ISBN, Title, Author, Publisher, Issued, Added
func ExportToCSV(export *ListExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ISBN", "Title", "Author", "Publisher", "Issued", "Added"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, book := range export.Books {
		record := []string{
			strconv.Itoa(book.Position),
			book.ISBN,
			book.Title,
			book.Author,
			book.Publisher,
			export.issued(book),
			formatDate(book.AddedAt),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a ListExport to Markdown. covers maps ISBNs to image paths relative to the document.
func ExportToMarkdown(export *ListExport, covers map[string]string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.ListType.Label())
	fmt.Fprintf(&buf, "**Books**: %d\n", len(export.Books))
	if !export.ExportedAt.IsZero() {
		fmt.Fprintf(&buf, "**Exported**: %s\n", export.ExportedAt.Format(time.RFC3339))
	}
	buf.WriteString("\n## Books\n\n")

	for i, book := range export.Books {
		fmt.Fprintf(&buf, "%d. **%s**", i+1, book.Title)
		if book.Author != "" {
			fmt.Fprintf(&buf, " - %s", book.Author)
		}
		if book.Publisher != "" {
			fmt.Fprintf(&buf, " (%s)", book.Publisher)
		}
		if book.ISBN != "" {
			fmt.Fprintf(&buf, " `%s`", book.ISBN)
		}
		buf.WriteString("\n")

		if bib, ok := export.Bibliographies[book.ISBN]; ok {
			if bib.Issued != "" {
				fmt.Fprintf(&buf, "   - Issued: %s\n", bib.Issued)
			}
			if len(bib.Subjects) > 0 {
				fmt.Fprintf(&buf, "   - Subjects: %s\n", strings.Join(bib.Subjects, ", "))
			}
			if bib.Link != "" {
				fmt.Fprintf(&buf, "   - [NDL](%s)\n", bib.Link)
			}
		}
		if cover, ok := covers[book.ISBN]; ok {
			fmt.Fprintf(&buf, "\n   ![%s](%s)\n", book.Title, cover)
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts a ListExport to plain text format
func ExportToText(export *ListExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "List: %s\n", export.ListType.Label())
	fmt.Fprintf(&buf, "Books: %d\n\n", len(export.Books))

	for i, book := range export.Books {
		if book.Author != "" {
			fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, book.Author, book.Title)
		} else {
			fmt.Fprintf(&buf, "%d. %s\n", i+1, book.Title)
		}
	}

	return buf.Bytes(), nil
}

// ToMetadataJSON generates a JSON summary of the export (without books)
func ToMetadataJSON(export *ListExport) ([]byte, error) {
	return shared.MarshalJSON(listMetadata{
		ListType:   export.ListType,
		Label:      export.ListType.Label(),
		Books:      len(export.Books),
		Enriched:   len(export.Bibliographies),
		ExportedAt: export.ExportedAt,
	}, true)
}

// WriteJSONExport writes the whole export as indented JSON.
func WriteJSONExport(export *ListExport, path string) (string, error) {
	if path == "" {
		path = string(export.ListType) + ".json"
	}

	data, err := shared.MarshalJSON(export, true)
	if err != nil {
		return "", fmt.Errorf("failed to generate JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write JSON file: %w", err)
	}
	return path, nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	BooksFile    string
	MetadataFile string
}

// WriteCSVExport exports a list to CSV format with accompanying metadata JSON file.
//
// Defaults to the list type as the base filename & creates {base}_books.csv and {base}_metadata.json
func WriteCSVExport(export *ListExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = string(export.ListType)
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	booksFile := baseFilepath + "_books.csv"
	if err := os.WriteFile(booksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		BooksFile:    booksFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory string
	Files     []string
	Covers    int
}

// WriteMarkdownExport exports a list to Markdown format in a dedicated directory.
//
// Directory name defaults to the list type.
// covers maps ISBNs to cached cover files; each is copied to {dir}/covers/{isbn}.jpg.
// A cover that cannot be copied is left out of the document.
func WriteMarkdownExport(export *ListExport, outputDir string, covers map[string]string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = string(export.ListType)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	linked := make(map[string]string, len(covers))
	if len(covers) > 0 {
		coverDir := filepath.Join(outputDir, "covers")
		if err := os.MkdirAll(coverDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create covers directory: %w", err)
		}
		for isbn, src := range covers {
			dst := filepath.Join(coverDir, isbn+".jpg")
			if err := copyFile(src, dst); err != nil {
				continue
			}
			linked[isbn] = "covers/" + isbn + ".jpg"
			result.Files = append(result.Files, dst)
			result.Covers++
		}
	}

	mdData, err := ExportToMarkdown(export, linked)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports a list to plain text format.
//
// Defaults to {list_type}_books.txt as the filename.
func WriteTextExport(export *ListExport, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_books.txt", export.ListType)
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
