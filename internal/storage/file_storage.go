// internal/storage/file_storage.go
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileStorage reads and writes JSON documents under BaseDir with atomic replaces
// and a short-lived read cache.
type FileStorage struct {
	BaseDir string

	fileLocks sync.Map // path -> *sync.RWMutex

	cache        map[string]*CacheEntry
	cacheMutex   sync.RWMutex
	cacheExpiry  time.Duration
	maxCacheSize int

	stop     chan struct{}
	stopOnce sync.Once
}

// CacheEntry is a cached file body.
type CacheEntry struct {
	Data      []byte
	Timestamp time.Time
}

// NewFileStorage creates baseDir if needed and starts cache cleanup.
func NewFileStorage(baseDir string, cacheExpiry time.Duration) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if cacheExpiry <= 0 {
		cacheExpiry = 30 * time.Second
	}

	fs := &FileStorage{
		BaseDir:      baseDir,
		cache:        make(map[string]*CacheEntry),
		cacheExpiry:  cacheExpiry,
		maxCacheSize: 500,
		stop:         make(chan struct{}),
	}
	go fs.cacheCleanupLoop(2 * time.Minute)

	return fs, nil
}

func (fs *FileStorage) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// SaveFile atomically replaces dirPath/filename with content.
func (fs *FileStorage) SaveFile(dirPath, filename string, content []byte) error {
	fullDirPath := filepath.Join(fs.BaseDir, dirPath)
	fullPath := filepath.Join(fullDirPath, filename)

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(fullDirPath, 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(fullDirPath, filename+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("replace file: %w", err)
	}

	fs.updateCache(fullPath, content)
	return nil
}

// SaveJSONFile marshals data and saves it atomically.
func (fs *FileStorage) SaveJSONFile(dirPath, filename string, data interface{}) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return fs.SaveFile(dirPath, filename, content)
}

// LoadFile reads dirPath/filename, serving from cache when fresh.
// A missing file returns an error satisfying os.IsNotExist.
func (fs *FileStorage) LoadFile(dirPath, filename string) ([]byte, error) {
	fullPath := filepath.Join(fs.BaseDir, dirPath, filename)

	if data, ok := fs.cached(fullPath); ok {
		return data, nil
	}

	lock := fs.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	if data, ok := fs.cached(fullPath); ok {
		return data, nil
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, err
	}
	fs.updateCache(fullPath, content)
	return content, nil
}

// ReadFile reads dirPath/filename from disk, skipping the cache, and refreshes
// the cached copy.
func (fs *FileStorage) ReadFile(dirPath, filename string) ([]byte, error) {
	fullPath := filepath.Join(fs.BaseDir, dirPath, filename)

	lock := fs.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, err
	}
	fs.updateCache(fullPath, content)
	return content, nil
}

// LoadJSONFile reads and unmarshals dirPath/filename into v.
// When fresh is set the read bypasses the cache.
func (fs *FileStorage) LoadJSONFile(dirPath, filename string, v interface{}, fresh bool) error {
	read := fs.LoadFile
	if fresh {
		read = fs.ReadFile
	}
	content, err := read(dirPath, filename)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(content, v); err != nil {
		return fmt.Errorf("decode %s: %w", filename, err)
	}
	return nil
}

// FileExists reports whether dirPath/filename exists on disk.
func (fs *FileStorage) FileExists(dirPath, filename string) bool {
	_, err := os.Stat(filepath.Join(fs.BaseDir, dirPath, filename))
	return err == nil
}

// ListFiles returns the names of regular files in dirPath ending in suffix, sorted.
func (fs *FileStorage) ListFiles(dirPath, suffix string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(fs.BaseDir, dirPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// InvalidateAll drops every cache entry.
func (fs *FileStorage) InvalidateAll() {
	fs.cacheMutex.Lock()
	fs.cache = make(map[string]*CacheEntry)
	fs.cacheMutex.Unlock()
}

// Close stops the cache cleanup loop.
func (fs *FileStorage) Close() {
	fs.stopOnce.Do(func() { close(fs.stop) })
}

func (fs *FileStorage) cached(path string) ([]byte, bool) {
	fs.cacheMutex.RLock()
	defer fs.cacheMutex.RUnlock()
	if entry, ok := fs.cache[path]; ok && time.Since(entry.Timestamp) < fs.cacheExpiry {
		return entry.Data, true
	}
	return nil, false
}

func (fs *FileStorage) updateCache(path string, data []byte) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	fs.cache[path] = &CacheEntry{Data: data, Timestamp: time.Now()}
	if len(fs.cache) > fs.maxCacheSize {
		fs.evictOldestLocked(len(fs.cache) - fs.maxCacheSize)
	}
}

func (fs *FileStorage) cacheCleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fs.cleanupExpiredCache()
		case <-fs.stop:
			return
		}
	}
}

func (fs *FileStorage) cleanupExpiredCache() {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	now := time.Now()
	for path, entry := range fs.cache {
		if now.Sub(entry.Timestamp) > fs.cacheExpiry {
			delete(fs.cache, path)
		}
	}
}

// evictOldestLocked removes the n oldest entries. Caller holds cacheMutex.
func (fs *FileStorage) evictOldestLocked(n int) {
	type aged struct {
		key string
		ts  time.Time
	}
	entries := make([]aged, 0, len(fs.cache))
	for key, entry := range fs.cache {
		entries = append(entries, aged{key, entry.Timestamp})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ts.Before(entries[j].ts) })
	for i := 0; i < n && i < len(entries); i++ {
		delete(fs.cache, entries[i].key)
	}
}
