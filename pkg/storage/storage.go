// Package storage is a scoped filesystem facade over the three buckets the
// pipeline writes to: per-codebase working copies, scratch temp space, and
// a compressed cache of reusable parse artifacts. Every path is validated
// against the bucket root, a per-file size limit, and an extension
// allow-list before a write touches disk.
package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/pierrec/lz4/v4"

	"github.com/codegraph-dev/indexer/pkg/errs"
)

const (
	codebasesDir = "codebases"
	tempDir      = "temp"
	cacheDir     = "cache"

	defaultMaxFileSize = 100 * humanize.MiByte
)

// Facade scopes every filesystem operation under root, enforcing a per-file
// size limit and an extension allow-list on ingress.
type Facade struct {
	root        string
	maxFileSize int64
	allowedExt  map[string]bool

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

// Option configures a Facade.
type Option func(*Facade)

// WithMaxFileSize overrides the default 100 MiB per-file ingress limit.
func WithMaxFileSize(maxBytes int64) Option {
	return func(f *Facade) { f.maxFileSize = maxBytes }
}

// WithAllowedExtensions restricts ingress writes to the given extensions
// (each including the leading dot, e.g. ".go"). An empty list disables the
// allow-list check.
func WithAllowedExtensions(exts []string) Option {
	return func(f *Facade) {
		f.allowedExt = make(map[string]bool, len(exts))
		for _, e := range exts {
			f.allowedExt[strings.ToLower(e)] = true
		}
	}
}

// New constructs a Facade rooted at root, creating the three buckets if
// absent.
func New(root string, opts ...Option) (*Facade, error) {
	f := &Facade{root: root, maxFileSize: defaultMaxFileSize}
	for _, opt := range opts {
		opt(f)
	}

	for _, dir := range []string{codebasesDir, tempDir, cacheDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, errs.Wrap(errs.KindConfig, "storage.New", "STORAGE_ROOT_UNWRITABLE", err,
				"create storage bucket %s under %s", dir, root)
		}
	}

	return f, nil
}

// CodebasePath returns the working-copy directory for codebaseID:
// storage/codebases/<codebaseID>/<relative>.
func (f *Facade) CodebasePath(codebaseID string, relative ...string) string {
	parts := append([]string{f.root, codebasesDir, codebaseID}, relative...)

	return filepath.Join(parts...)
}

// TempPath returns a scratch path under storage/temp/.
func (f *Facade) TempPath(relative ...string) string {
	parts := append([]string{f.root, tempDir}, relative...)

	return filepath.Join(parts...)
}

// CachePath returns a path under storage/cache/.
func (f *Facade) CachePath(relative ...string) string {
	parts := append([]string{f.root, cacheDir}, relative...)

	return filepath.Join(parts...)
}

// WriteFile validates path against the size limit and extension allow-list,
// then writes data atomically (write to a temp sibling, rename into place).
// path must fall under one of the three buckets.
func (f *Facade) WriteFile(path string, data []byte) error {
	if err := f.checkScope(path); err != nil {
		return err
	}

	if int64(len(data)) > f.maxFileSize {
		return errs.New(errs.KindValidation, "storage.WriteFile", "FILE_TOO_LARGE",
			fmt.Sprintf("file %s is %s, exceeds limit of %s", path,
				humanize.Bytes(uint64(len(data))), humanize.Bytes(uint64(f.maxFileSize))), nil)
	}

	if len(f.allowedExt) > 0 && !f.allowedExt[strings.ToLower(filepath.Ext(path))] {
		return errs.New(errs.KindValidation, "storage.WriteFile", "EXTENSION_NOT_ALLOWED",
			fmt.Sprintf("extension %s is not in the allow-list", filepath.Ext(path)), nil)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(errs.KindState, "storage.WriteFile", "PARENT_DIR_FAILED", err, "create parent dir for %s", path)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // working-copy content, not secrets.
		return errs.Wrap(errs.KindState, "storage.WriteFile", "WRITE_FAILED", err, "write %s", path)
	}

	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrap(errs.KindState, "storage.WriteFile", "RENAME_FAILED", err, "rename into place %s", path)
	}

	return nil
}

// ReadFile reads path, which must fall under one of the three buckets.
func (f *Facade) ReadFile(path string) ([]byte, error) {
	if err := f.checkScope(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindState, "storage.ReadFile", "READ_FAILED", err, "read %s", path)
	}

	return data, nil
}

// RemoveAll removes path and everything beneath it, reporting bytes freed
// and files removed. path must fall under one of the three buckets.
func (f *Facade) RemoveAll(path string) (filesRemoved int, bytesFreed int64, err error) {
	if scopeErr := f.checkScope(path); scopeErr != nil {
		return 0, 0, scopeErr
	}

	walkErr := filepath.Walk(path, func(_ string, info os.FileInfo, walkFileErr error) error {
		if walkFileErr != nil {
			return nil //nolint:nilerr // best-effort accounting; cleanup proceeds regardless.
		}

		if !info.IsDir() {
			filesRemoved++
			bytesFreed += info.Size()
		}

		return nil
	})
	if walkErr != nil {
		return 0, 0, errs.Wrap(errs.KindState, "storage.RemoveAll", "WALK_FAILED", walkErr, "walk %s", path)
	}

	if err := os.RemoveAll(path); err != nil {
		return filesRemoved, bytesFreed, errs.Wrap(errs.KindState, "storage.RemoveAll", "REMOVE_FAILED", err, "remove %s", path)
	}

	return filesRemoved, bytesFreed, nil
}

// WriteCacheArtifact lz4-compresses data and writes it under storage/cache/
// at the given relative path plus a ".lz4" suffix.
func (f *Facade) WriteCacheArtifact(relative string, data []byte) error {
	path := f.CachePath(relative + ".lz4")

	var buf bytes.Buffer

	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return errs.Wrap(errs.KindState, "storage.WriteCacheArtifact", "COMPRESS_FAILED", err, "compress %s", relative)
	}

	if err := zw.Close(); err != nil {
		return errs.Wrap(errs.KindState, "storage.WriteCacheArtifact", "COMPRESS_FAILED", err, "close compressor for %s", relative)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(errs.KindState, "storage.WriteCacheArtifact", "PARENT_DIR_FAILED", err, "create cache dir for %s", relative)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // cache artifacts are not secrets.
		return errs.Wrap(errs.KindState, "storage.WriteCacheArtifact", "WRITE_FAILED", err, "write cache artifact %s", path)
	}

	return nil
}

// ReadCacheArtifact reads and lz4-decompresses a cache artifact previously
// written by WriteCacheArtifact. Returns a NotFound-flavored StateError when
// the artifact is absent, letting callers treat it as a cache miss.
func (f *Facade) ReadCacheArtifact(relative string) ([]byte, error) {
	path := f.CachePath(relative + ".lz4")

	compressed, err := os.ReadFile(path)
	if err != nil {
		f.cacheMisses.Add(1)

		return nil, errs.Wrap(errs.KindState, "storage.ReadCacheArtifact", "CACHE_MISS", err, "read cache artifact %s", path)
	}

	zr := lz4.NewReader(bytes.NewReader(compressed))

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, errs.Wrap(errs.KindState, "storage.ReadCacheArtifact", "DECOMPRESS_FAILED", err, "decompress %s", path)
	}

	f.cacheHits.Add(1)

	return data, nil
}

// CacheHits returns the number of ReadCacheArtifact calls that found an
// existing artifact, satisfying observability.CacheStatsProvider.
func (f *Facade) CacheHits() int64 {
	return f.cacheHits.Load()
}

// CacheMisses returns the number of ReadCacheArtifact calls that found no
// artifact on disk, satisfying observability.CacheStatsProvider.
func (f *Facade) CacheMisses() int64 {
	return f.cacheMisses.Load()
}

func (f *Facade) checkScope(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errs.Wrap(errs.KindValidation, "storage.checkScope", "INVALID_PATH", err, "resolve %s", path)
	}

	rootAbs, err := filepath.Abs(f.root)
	if err != nil {
		return errs.Wrap(errs.KindValidation, "storage.checkScope", "INVALID_PATH", err, "resolve storage root %s", f.root)
	}

	if !strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) && abs != rootAbs {
		return errs.New(errs.KindValidation, "storage.checkScope", "PATH_ESCAPES_ROOT",
			fmt.Sprintf("%s escapes storage root %s", path, f.root), nil)
	}

	return nil
}

