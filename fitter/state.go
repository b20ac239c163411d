package fitter

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ResultStore keeps the latest fit result per dataset for HTTP endpoints
type ResultStore struct {
	mu        sync.RWMutex
	results   map[string]*FitResult
	cachePath string // path to the JSON cache file; empty disables persistence
}

// NewResultStore creates an in-memory result store
func NewResultStore() *ResultStore {
	return &ResultStore{
		results: make(map[string]*FitResult),
	}
}

// NewResultStoreWithCache creates a store that persists results to cachePath.
// If the file exists, its results are loaded on creation.
func NewResultStoreWithCache(cachePath string) *ResultStore {
	rs := NewResultStore()
	rs.cachePath = cachePath
	if cachePath != "" {
		if results, err := LoadResults(cachePath); err == nil {
			rs.results = results
		}
	}
	return rs
}

// Put stores res as the latest result of its dataset
func (rs *ResultStore) Put(res *FitResult) {
	rs.mu.Lock()
	rs.results[res.DatasetID] = res
	rs.persistLocked()
	rs.mu.Unlock()
}

// Get returns a copy of the latest result for id
func (rs *ResultStore) Get(id string) (*FitResult, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	res, ok := rs.results[id]
	if !ok {
		return nil, false
	}
	c := *res
	return &c, true
}

// All returns copies of all stored results
func (rs *ResultStore) All() map[string]*FitResult {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.copyLocked()
}

// IDs returns the dataset IDs with a stored result, sorted
func (rs *ResultStore) IDs() []string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	ids := make([]string, 0, len(rs.results))
	for id := range rs.results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Delete removes the result for id
func (rs *ResultStore) Delete(id string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if _, ok := rs.results[id]; !ok {
		return
	}
	delete(rs.results, id)
	rs.persistLocked()
}

// persistLocked rewrites the cache file, if any, from the current results.
// Callers hold rs.mu, so cache writes land in store order.
func (rs *ResultStore) persistLocked() {
	if rs.cachePath == "" {
		return
	}
	if err := SaveResults(rs.copyLocked(), rs.cachePath); err != nil {
		log.Printf("warning: failed to save result cache: %v", err)
	}
}

// Len returns the number of stored results
func (rs *ResultStore) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.results)
}

func (rs *ResultStore) copyLocked() map[string]*FitResult {
	out := make(map[string]*FitResult, len(rs.results))
	for k, v := range rs.results {
		c := *v
		out[k] = &c
	}
	return out
}

// SaveResults writes results to disk as JSON.
func SaveResults(results map[string]*FitResult, path string) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write result cache: %w", err)
	}
	return nil
}

// LoadResults reads results from a JSON file on disk.
func LoadResults(path string) (map[string]*FitResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result cache: %w", err)
	}
	results := make(map[string]*FitResult)
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("unmarshal result cache: %w", err)
	}
	return results, nil
}
