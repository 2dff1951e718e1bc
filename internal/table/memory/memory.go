// Package memory implements table.Client over process-local maps. It backs
// tests and the dev mode of cmd/server.
package memory

import (
	"context"
	"sync"

	"scheletro/backend/internal/table"
)

type Store struct {
	mu         sync.RWMutex
	tables     map[string][][]string
	readErrs   map[string]error
	writeErrs  map[string]error
	writeCount map[string]int
}

func New() *Store {
	return &Store{
		tables:     make(map[string][][]string),
		readErrs:   make(map[string]error),
		writeErrs:  make(map[string]error),
		writeCount: make(map[string]int),
	}
}

// Seed replaces the contents of a table without counting as a write.
func (s *Store) Seed(name string, rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[name] = copyRows(rows)
}

// FailReads makes every Read of the named table return err until cleared
// with a nil err.
func (s *Store) FailReads(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.readErrs, name)
		return
	}
	s.readErrs[name] = err
}

// FailWrites makes every Overwrite of the named table return err until
// cleared with a nil err.
func (s *Store) FailWrites(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.writeErrs, name)
		return
	}
	s.writeErrs[name] = err
}

// WriteCount reports how many successful overwrites the table has seen.
func (s *Store) WriteCount(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writeCount[name]
}

func (s *Store) Read(_ context.Context, name string) ([][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readErrs[name]; err != nil {
		return nil, err
	}
	return copyRows(s.tables[name]), nil
}

func (s *Store) Overwrite(_ context.Context, name string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErrs[name]; err != nil {
		return err
	}
	s.tables[name] = copyRows(rows)
	s.writeCount[name]++
	return nil
}

func copyRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}

var _ table.Client = (*Store)(nil)
