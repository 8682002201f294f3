package csvstore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultPath is the ledger file used when no path is configured.
const DefaultPath = "transactions.csv"

const maxLineSize = 1024 * 1024

// Store is the file-backed transaction repository. It is the only writer
// of its file. Access from one process is serialised: readers share the
// lock, Append and RemoveByUserAndTimestamp take it exclusively. Other
// processes writing the same file are not coordinated.
type Store struct {
	mu   sync.RWMutex
	path string
	log  zerolog.Logger
}

// NewStore creates a store backed by the file at path. The file does not
// need to exist yet.
func NewStore(path string, log zerolog.Logger) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{
		path: path,
		log:  log.With().Str("ledger", path).Logger(),
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// ReadAll returns every decodable record in file order. A missing file
// yields an empty result and no error.
func (s *Store) ReadAll(ctx context.Context) ([]domain.Transaction, error) {
	return s.read(ctx, func(domain.Transaction) bool { return true })
}

// ReadByUser returns the records whose owner equals username exactly.
func (s *Store) ReadByUser(ctx context.Context, username string) ([]domain.Transaction, error) {
	return s.read(ctx, func(tx domain.Transaction) bool { return tx.AccountUsername == username })
}

func (s *Store) read(ctx context.Context, keep func(domain.Transaction) bool) ([]domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Warn().Msg("Ledger file does not exist, returning no transactions")
		return []domain.Transaction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ReadAll: open ledger: %w", err)
	}
	defer f.Close()

	txs, err := s.decodeAll(f, keep)
	if err != nil {
		return nil, fmt.Errorf("ReadAll: %w", err)
	}
	return txs, nil
}

// decodeAll skips the header and decodes the remaining lines. Short rows are
// dropped silently; rows with an unparseable amount are dropped and logged.
func (s *Store) decodeAll(r io.Reader, keep func(domain.Transaction) bool) ([]domain.Transaction, error) {
	txs := []domain.Transaction{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo == 1 {
			continue
		}

		tx, err := Decode(scanner.Text())
		if errors.Is(err, ErrTooFewFields) {
			continue
		}
		if err != nil {
			s.log.Warn().Err(err).Int("line", lineNo).Msg("Skipping ledger row")
			continue
		}
		if keep(tx) {
			txs = append(txs, tx)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning ledger: %w", err)
	}

	return txs, nil
}

// Append validates tx and adds it to the end of the file, creating the file
// with a header if needed. Nothing is written when validation fails.
func (s *Store) Append(ctx context.Context, tx domain.Transaction) error {
	return s.AppendAll(ctx, []domain.Transaction{tx})
}

// AppendAll validates every record first and then writes them in one call.
// A single invalid record rejects the whole batch.
func (s *Store) AppendAll(ctx context.Context, txs []domain.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("AppendAll: record %d: %w", i, err)
		}
	}
	if len(txs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("AppendAll: open ledger: %w", err)
	}
	defer f.Close()

	prefix, err := appendPrefix(f)
	if err != nil {
		return fmt.Errorf("AppendAll: %w", err)
	}

	var b strings.Builder
	b.WriteString(prefix)
	for _, tx := range txs {
		b.WriteString(Encode(tx))
		b.WriteByte('\n')
	}

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("AppendAll: write ledger: %w", err)
	}
	return nil
}

// appendPrefix returns what must precede new rows: the header for an empty
// file, a newline when the last row is unterminated, otherwise nothing.
func appendPrefix(f *os.File) (string, error) {
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat ledger: %w", err)
	}
	if info.Size() == 0 {
		return Header + "\n", nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return "", fmt.Errorf("read ledger tail: %w", err)
	}
	if last[0] != '\n' {
		return "\n", nil
	}
	return "", nil
}

// RemoveByUserAndTimestamp drops every record owned by username whose
// timestamp string equals timestamp exactly, and returns how many were
// removed. The file is rewritten (header plus the remaining records in
// order) only when something matched.
func (s *Store) RemoveByUserAndTimestamp(ctx context.Context, username, timestamp string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("RemoveByUserAndTimestamp: open ledger: %w", err)
	}
	all, err := s.decodeAll(f, func(domain.Transaction) bool { return true })
	f.Close()
	if err != nil {
		return 0, fmt.Errorf("RemoveByUserAndTimestamp: %w", err)
	}

	remaining := make([]domain.Transaction, 0, len(all))
	for _, tx := range all {
		if tx.AccountUsername == username && tx.Timestamp == timestamp {
			continue
		}
		remaining = append(remaining, tx)
	}

	removed := len(all) - len(remaining)
	if removed == 0 {
		return 0, nil
	}

	if err := s.rewrite(remaining); err != nil {
		return 0, fmt.Errorf("RemoveByUserAndTimestamp: %w", err)
	}
	return removed, nil
}

// rewrite replaces the ledger with header + txs through a temporary file in
// the same directory, so readers never see a half-written ledger.
func (s *Store) rewrite(txs []domain.Transaction) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	w.WriteString(Header)
	w.WriteByte('\n')
	for _, tx := range txs {
		w.WriteString(Encode(tx))
		w.WriteByte('\n')
	}

	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
