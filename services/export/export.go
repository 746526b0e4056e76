package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"sjsage522/listingworker/internal/cleaner"
	"sjsage522/listingworker/internal/crawler"
	"sjsage522/listingworker/logger"
	"sjsage522/listingworker/pkg/errors"
)

// RawColumns is the CSV header of a raw dataset
var RawColumns = []string{
	"productLabel", "priceText", "priceNumeric", "address",
	"imageUrl", "pageNumber", "scrapedAt", "sourceUrl",
}

// CleanedColumns is the CSV header of a cleaned dataset
var CleanedColumns = append(append([]string(nil), RawColumns...), "city", "priceBucket", "productCategory")

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func rawRow(l crawler.RawListing) []string {
	return []string{
		l.ProductLabel,
		l.PriceText,
		formatPrice(l.PriceNumeric),
		l.Address,
		l.ImageURL,
		strconv.Itoa(l.PageNumber),
		l.ScrapedAt.Format(time.RFC3339),
		l.SourceURL,
	}
}

// WriteRawCSV writes a header row and one row per listing
func WriteRawCSV(w io.Writer, listings []crawler.RawListing) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RawColumns); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, l := range listings {
		if err := cw.Write(rawRow(l)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCleanedCSV writes a header row and one row per cleaned listing
func WriteCleanedCSV(w io.Writer, listings []cleaner.CleanedListing) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CleanedColumns); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, l := range listings {
		row := append(rawRow(l.RawListing), l.City, string(l.PriceBucket), string(l.ProductCategory))
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes v as an indented JSON document
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json: encode: %w", err)
	}
	return nil
}

type exportFile struct {
	name  string
	write func(io.Writer) error
}

// Slug turns a category name into a file name fragment:
// "Vêtements Homme" becomes "vetements-homme"
func Slug(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
		} else if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// FileExporter writes date-stamped dataset files into Dir. Exports are
// serialized so concurrent sessions never write the same file at once.
type FileExporter struct {
	Dir     string
	Formats []string
	now     func() time.Time
	log     *logger.Logger
	mu      sync.Mutex
}

// NewFileExporter creates an exporter for the given formats ("csv", "json")
func NewFileExporter(dir string, formats []string) *FileExporter {
	return &FileExporter{
		Dir:     dir,
		Formats: formats,
		now:     time.Now,
		log:     logger.ForExporter(),
	}
}

// Export writes the raw and cleaned datasets of one category in every
// configured format and returns the paths written. Files are named
// coin_afrique_{raw,clean}_<slug>_<YYYYMMDD>; an empty name drops the slug.
func (e *FileExporter) Export(name string, raw []crawler.RawListing, cleaned []cleaner.CleanedListing) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return nil, errors.NewExport("file", "create output dir", err)
	}

	stamp := e.now().Format("20060102")
	if slug := Slug(name); slug != "" {
		stamp = slug + "_" + stamp
	}
	var written []string

	for _, format := range e.Formats {
		var files []exportFile
		switch format {
		case "csv":
			files = []exportFile{
				{"coin_afrique_raw_" + stamp + ".csv", func(w io.Writer) error { return WriteRawCSV(w, raw) }},
				{"coin_afrique_clean_" + stamp + ".csv", func(w io.Writer) error { return WriteCleanedCSV(w, cleaned) }},
			}
		case "json":
			files = []exportFile{
				{"coin_afrique_raw_" + stamp + ".json", func(w io.Writer) error { return WriteJSON(w, nonNil(raw)) }},
				{"coin_afrique_clean_" + stamp + ".json", func(w io.Writer) error { return WriteJSON(w, nonNilCleaned(cleaned)) }},
			}
		default:
			return written, errors.NewExport("file", "unsupported format "+strconv.Quote(format), nil)
		}

		for _, f := range files {
			path := filepath.Join(e.Dir, f.name)
			if err := writeFile(path, f.write); err != nil {
				return written, errors.NewExport("file", "write "+path, err)
			}
			written = append(written, path)
		}
	}

	e.log.Info().
		Str("category", name).
		Strs("files", written).
		Int("raw", len(raw)).
		Int("cleaned", len(cleaned)).
		Msg("Datasets exported")
	return written, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// JSON arrays instead of null for empty datasets
func nonNil(raw []crawler.RawListing) []crawler.RawListing {
	if raw == nil {
		return []crawler.RawListing{}
	}
	return raw
}

func nonNilCleaned(cleaned []cleaner.CleanedListing) []cleaner.CleanedListing {
	if cleaned == nil {
		return []cleaner.CleanedListing{}
	}
	return cleaned
}
