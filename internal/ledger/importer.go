package ledger

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/infra/csvstore"
	"github.com/rs/zerolog"
)

const gcsScheme = "gs://"

// ErrNoSourceFetcher is returned when a gs:// source is imported without a
// configured storage client.
var ErrNoSourceFetcher = errors.New("no cloud storage configured for gs:// sources")

// ImportResult summarises one import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ParseImportRows reads a ledger-format source: the first line is a header,
// every other line is decoded with the ledger codec and validated like an
// add request. Rows that fail either step are counted as skipped.
func ParseImportRows(log zerolog.Logger, r io.Reader) ([]domain.Transaction, int, error) {
	var rows []domain.Transaction
	skipped := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo == 1 || strings.TrimSpace(line) == "" {
			continue
		}

		tx, err := csvstore.Decode(line)
		if err == nil {
			err = tx.Validate()
		}
		if err != nil {
			skipped++
			log.Debug().Err(err).Int("line", lineNo).Msg("Skipping import row")
			continue
		}
		rows = append(rows, tx)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("ParseImportRows: scanning source: %w", err)
	}

	return rows, skipped, nil
}

// openSource opens a local file or downloads a gs:// object.
func (s *Service) openSource(ctx context.Context, sourceURI string) (io.ReadCloser, error) {
	if strings.HasPrefix(sourceURI, gcsScheme) {
		if s.fetcher == nil {
			return nil, ErrNoSourceFetcher
		}
		data, err := s.fetcher.FetchFromGCS(ctx, sourceURI)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	f, err := os.Open(sourceURI)
	if err != nil {
		return nil, err
	}
	return f, nil
}
