package shelf

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"
)

// Export formats.
const (
	FormatNDJSON = "ndjson"
	FormatYAML   = "yaml"
)

// ImportStats reports what an import did.
type ImportStats struct {
	Imported int
	Updated  int
}

// detectFormat picks a format from an explicit choice or the path suffix.
func detectFormat(path, format string) string {
	if format != "" {
		return format
	}
	trimmed := strings.TrimSuffix(path, ".zst")
	if strings.HasSuffix(trimmed, ".yaml") || strings.HasSuffix(trimmed, ".yml") {
		return FormatYAML
	}
	return FormatNDJSON
}

// Export writes every book to w, newest first. NDJSON emits one JSON object
// per line; YAML emits a single document holding a book sequence. Returns
// the number of books written.
func (s *Shelf) Export(w io.Writer, format string) (int, error) {
	books, err := s.List(0, 0)
	if err != nil {
		return 0, err
	}

	switch format {
	case FormatYAML:
		data, err := yaml.Marshal(books)
		if err != nil {
			return 0, fmt.Errorf("marshaling books: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return 0, fmt.Errorf("writing export: %w", err)
		}
	case FormatNDJSON, "":
		enc := json.NewEncoder(w)
		for _, book := range books {
			if err := enc.Encode(book); err != nil {
				return 0, fmt.Errorf("encoding book %s: %w", book.ID, err)
			}
		}
	default:
		return 0, fmt.Errorf("unknown export format %q", format)
	}

	return len(books), nil
}

// ExportFile exports to path. A ".zst" suffix adds zstd compression; format
// "" is detected from the remaining suffix.
func (s *Shelf) ExportFile(path, format string) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating export file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warnf("closing export file: %v", err)
		}
	}()

	var w io.Writer = f
	if strings.HasSuffix(path, ".zst") {
		enc, err := zstd.NewWriter(f)
		if err != nil {
			return 0, fmt.Errorf("creating zstd writer: %w", err)
		}
		defer func() {
			if err := enc.Close(); err != nil {
				logger.Warnf("closing zstd writer: %v", err)
			}
		}()
		w = enc
	}

	return s.Export(w, detectFormat(path, format))
}

// Import reads books from r in the given format and upserts them. Books keep
// their exported ids and timestamps, so importing the same file twice only
// updates. The optional bar advances once per book.
func (s *Shelf) Import(r io.Reader, format string, bar *progressbar.ProgressBar) (ImportStats, error) {
	var stats ImportStats

	save := func(book Book) error {
		created, err := s.Save(book)
		if err != nil {
			return err
		}
		if created {
			stats.Imported++
		} else {
			stats.Updated++
		}
		if bar != nil {
			_ = bar.Add(1)
		}
		return nil
	}

	switch format {
	case FormatYAML:
		data, err := io.ReadAll(r)
		if err != nil {
			return stats, fmt.Errorf("reading import: %w", err)
		}
		var books []Book
		if err := yaml.Unmarshal(data, &books); err != nil {
			return stats, fmt.Errorf("unmarshaling books: %w", err)
		}
		for _, book := range books {
			if err := save(book); err != nil {
				return stats, err
			}
		}
	case FormatNDJSON, "":
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			var book Book
			if err := json.Unmarshal([]byte(text), &book); err != nil {
				return stats, fmt.Errorf("parsing line %d: %w", line, err)
			}
			if err := save(book); err != nil {
				return stats, err
			}
		}
		if err := scanner.Err(); err != nil {
			return stats, fmt.Errorf("reading import: %w", err)
		}
	default:
		return stats, fmt.Errorf("unknown import format %q", format)
	}

	return stats, nil
}

// ImportFile imports from path, transparently decompressing ".zst" files.
// showProgress displays a progress spinner on stderr.
func (s *Shelf) ImportFile(path, format string, showProgress bool) (ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportStats{}, fmt.Errorf("opening import file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warnf("closing import file: %v", err)
		}
	}()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return ImportStats{}, fmt.Errorf("creating zstd reader: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("importing books"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
		defer func() { _ = bar.Finish() }()
	}

	return s.Import(r, detectFormat(path, format), bar)
}
