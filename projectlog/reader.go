// Package projectlog reads the editor's project.log. Decoded lines are cached
// per file and dropped when the file changes on disk.
package projectlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"
	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cocos-mcp/cocos-mcp-go/logger"
)

// RelativePath is where the editor writes its project log.
const RelativePath = "temp/logs/project.log"

const defaultCacheEntries = 8

// Snapshot is the decoded content of a log file at one point in time.
type Snapshot struct {
	Path    string
	Lines   []string
	Size    int64
	ModTime time.Time
	Info    os.FileInfo
}

// NonBlank returns the lines that contain more than whitespace.
func (s *Snapshot) NonBlank() []string {
	out := make([]string, 0, len(s.Lines))
	for _, line := range s.Lines {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

type cacheKey struct {
	path    string
	size    int64
	modTime int64
}

// Reader loads log files through mmap, falling back to os.ReadFile.
type Reader struct {
	cache *lru.Cache[string, *cachedSnapshot]

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	watched map[string]bool
	done    chan struct{}
	closed  bool
}

type cachedSnapshot struct {
	key      cacheKey
	snapshot *Snapshot
}

// NewReader builds a reader caching up to entries files. A watcher that cannot
// be created only disables invalidation; size and mtime still guard the cache.
func NewReader(entries int) (*Reader, error) {
	if entries <= 0 {
		entries = defaultCacheEntries
	}
	cache, err := lru.New[string, *cachedSnapshot](entries)
	if err != nil {
		return nil, fmt.Errorf("create log cache: %w", err)
	}

	r := &Reader{
		cache:   cache,
		watched: make(map[string]bool),
		done:    make(chan struct{}),
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("Project log watcher unavailable", "error", err)
		return r, nil
	}
	r.watcher = watcher
	go r.watch()
	return r, nil
}

// Read returns the lines of path, reusing the cached copy when the file is
// unchanged.
func (r *Reader) Read(path string) (*Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	key := cacheKey{path: path, size: info.Size(), modTime: info.ModTime().UnixNano()}
	if cached, ok := r.cache.Get(path); ok && cached.key == key {
		return cached.snapshot, nil
	}

	data, err := load(path, info.Size())
	if err != nil {
		return nil, err
	}
	snapshot := &Snapshot{
		Path:    path,
		Lines:   splitLines(data),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Info:    info,
	}
	r.cache.Add(path, &cachedSnapshot{key: key, snapshot: snapshot})
	r.watchDir(filepath.Dir(path))
	return snapshot, nil
}

// Invalidate drops the cached copy of path.
func (r *Reader) Invalidate(path string) {
	r.cache.Remove(path)
}

func (r *Reader) Cached(path string) bool {
	return r.cache.Contains(path)
}

func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	close(r.done)
	r.cache.Purge()
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

func (r *Reader) watchDir(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher == nil || r.closed || r.watched[dir] {
		return
	}
	if err := r.watcher.Add(dir); err != nil {
		logger.Warn("Failed to watch project log directory", "dir", dir, "error", err)
		return
	}
	r.watched[dir] = true
}

func (r *Reader) watch() {
	for {
		select {
		case <-r.done:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				r.Invalidate(event.Name)
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Project log watcher error", "error", err)
		}
	}
}

func load(path string, size int64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	mapped, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		logger.Debug("mmap failed, using fallback", "file", path, "error", err)
		return os.ReadFile(path)
	}
	data := make([]byte, len(mapped))
	copy(data, mapped)
	if err := mapped.Unmap(); err != nil {
		logger.Debug("Failed to unmap project log", "file", path, "error", err)
	}
	return data, nil
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return []string{}
	}
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
