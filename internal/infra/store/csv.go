package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/NepsyCrawler/internal/domain"
)

// CSVStore keeps one CSV file per (entity, category) under a data directory:
// company-wise/<SYMBOL>/<category>.csv, and floorsheet/floorsheet.csv for the
// market-wide floorsheet. Appends to one entity are serialized; different entities
// proceed in parallel.
type CSVStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{dir: dir, locks: make(map[string]*sync.Mutex)}
}

// Path returns the file holding (entity, category).
func (s *CSVStore) Path(entity string, c domain.Category) string {
	if entity == domain.FloorsheetEntity {
		return filepath.Join(s.dir, "floorsheet", string(c)+".csv")
	}
	return filepath.Join(s.dir, "company-wise", strings.ToUpper(entity), string(c)+".csv")
}

func (s *CSVStore) lock(entity string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[entity]
	if !ok {
		l = &sync.Mutex{}
		s.locks[entity] = l
	}
	return l
}

func (s *CSVStore) ExistingKeys(ctx context.Context, entity string, schema domain.Schema) (map[string]struct{}, error) {
	l := s.lock(entity)
	l.Lock()
	defer l.Unlock()
	return s.readKeys(s.Path(entity, schema.Category), schema)
}

func (s *CSVStore) AppendRows(ctx context.Context, entity string, schema domain.Schema, records []domain.Record) ([]domain.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := s.lock(entity)
	l.Lock()
	defer l.Unlock()

	path := s.Path(entity, schema.Category)
	existing, err := s.readKeys(path, schema)
	if err != nil {
		return nil, err
	}

	fresh := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if _, ok := existing[rec.Key()]; ok {
			continue
		}
		existing[rec.Key()] = struct{}{}
		fresh = append(fresh, rec)
	}
	if len(fresh) < len(records) {
		slog.Debug("Dropped records already on disk", "entity", entity, "category", schema.Category, "dropped", len(records)-len(fresh))
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	info, statErr := os.Stat(path)
	isNew := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(schema.Fields); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	for _, rec := range fresh {
		values := rec.Values()
		row := make([]string, len(schema.Fields))
		for i, field := range schema.Fields {
			row[i] = values[field]
		}
		if err := w.Write(row); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close %s: %w", path, err)
	}
	return fresh, nil
}

// Rows reads every stored row of (entity, category) keyed by field name.
func (s *CSVStore) Rows(entity string, c domain.Category) ([]map[string]string, error) {
	l := s.lock(entity)
	l.Lock()
	defer l.Unlock()

	var rows []map[string]string
	err := readFile(s.Path(entity, c), func(header, record []string) {
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		rows = append(rows, row)
	})
	return rows, err
}

func (s *CSVStore) readKeys(path string, schema domain.Schema) (map[string]struct{}, error) {
	keys := make(map[string]struct{})
	var headerErr error
	err := readFile(path, func(header, record []string) {
		if headerErr != nil {
			return
		}
		row := make(map[string]string, len(schema.KeyFields))
		for _, kf := range schema.KeyFields {
			i := slices.Index(header, kf)
			if i < 0 {
				headerErr = fmt.Errorf("%s: key column %q missing from header", path, kf)
				return
			}
			if i < len(record) {
				row[kf] = record[i]
			}
		}
		if key := schema.KeyOf(row); key != "" {
			keys[key] = struct{}{}
		}
	})
	if err == nil {
		err = headerErr
	}
	return keys, err
}

// readFile calls fn for each data row; a missing file has no rows.
func readFile(path string, fn func(header, record []string)) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("Failed to close file", "path", path, "error", err)
		}
	}()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		fn(header, record)
	}
}
