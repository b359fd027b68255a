package memory

import (
	"context"
	"fmt"
	"sync"

	"expenseflow/internal/sheets"
)

var _ sheets.ExportWriter = (*Sheet)(nil)

// Sheet keeps the last export in memory. It stands in for a spreadsheet in
// development and tests.
type Sheet struct {
	mu     sync.Mutex
	name   string
	header []string
	rows   [][]string
	writes int
}

func New(name string) *Sheet {
	if name == "" {
		name = "Export"
	}
	return &Sheet{name: name}
}

// WriteRows replaces the stored export.
func (s *Sheet) WriteRows(_ context.Context, header []string, rows [][]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header = append([]string(nil), header...)
	s.rows = make([][]string, len(rows))
	for i, r := range rows {
		s.rows[i] = append([]string(nil), r...)
	}
	s.writes++
	return fmt.Sprintf("mem:%s!A1:%s%d", s.name, sheets.ColumnName(len(header)), len(rows)+1), nil
}

// Snapshot returns a copy of the last export.
func (s *Sheet) Snapshot() (header []string, rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	header = append([]string(nil), s.header...)
	rows = make([][]string, len(s.rows))
	for i, r := range s.rows {
		rows[i] = append([]string(nil), r...)
	}
	return header, rows
}

func (s *Sheet) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
