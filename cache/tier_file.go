package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileTier one JSON record per entry under dir:
//
//	<dir>/<escaped category>/<first two hex of sha256(id)>/<sha256(id)>.json
//
// Writes go to a temp file renamed into place, so readers never see a torn
// record and concurrent writers from other processes are last-writer-wins.
type FileTier struct {
	dir        string
	syncWrites bool
}

// FileOption 文件层选项
type FileOption func(*FileTier)

// WithSyncWrites fsync each record on Store and each touched directory on StoreBatch
func WithSyncWrites(enabled bool) FileOption {
	return func(t *FileTier) {
		t.syncWrites = enabled
	}
}

// NewFileTier creates dir when missing
func NewFileTier(dir string, opts ...FileOption) (*FileTier, error) {
	if dir == "" {
		return nil, ErrInvalidArgument.WithMsg("file tier directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ErrTierIO.Wrapf(err, "create cache directory %s", dir)
	}
	t := &FileTier{dir: dir, syncWrites: true}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *FileTier) Name() string {
	return "file"
}

// Dir 根目录
func (t *FileTier) Dir() string {
	return t.dir
}

func (t *FileTier) categoryDir(category Category) string {
	return filepath.Join(t.dir, url.PathEscape(string(category)))
}

func (t *FileTier) path(key Key) string {
	sum := sha256.Sum256([]byte(key.ID))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(t.categoryDir(key.Category), name[:2], name+".json")
}

func (t *FileTier) Lookup(_ context.Context, key Key) (*Entry, error) {
	data, err := os.ReadFile(t.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		return nil, ErrTierIO.Wrapf(err, "read record %s", key)
	}
	e, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	if e.Key != key {
		// another identifier hashed to this path
		return nil, ErrCacheMiss
	}
	return e, nil
}

func (t *FileTier) Store(_ context.Context, e *Entry) error {
	dir, err := t.write(e, t.syncWrites)
	if err != nil {
		return err
	}
	if t.syncWrites {
		return syncDir(dir)
	}
	return nil
}

// StoreBatch writes every record, then syncs each touched directory once
func (t *FileTier) StoreBatch(ctx context.Context, entries []*Entry) error {
	dirs := make(map[string]struct{})
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir, err := t.write(e, false)
		if err != nil {
			return err
		}
		dirs[dir] = struct{}{}
	}
	if !t.syncWrites {
		return nil
	}
	for dir := range dirs {
		if err := syncDir(dir); err != nil {
			return err
		}
	}
	return nil
}

// write temp file + rename; returns the record's directory
func (t *FileTier) write(e *Entry, syncFile bool) (string, error) {
	data, err := encodeRecord(e)
	if err != nil {
		return "", err
	}

	target := t.path(e.Key)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", ErrTierIO.Wrapf(err, "create directory for %s", e.Key)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", ErrTierIO.Wrapf(err, "create temp file for %s", e.Key)
	}
	tmpName := tmp.Name()
	cleanup := func(cause error) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", ErrTierIO.Wrapf(cause, "write record %s", e.Key)
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if syncFile {
		if err := tmp.Sync(); err != nil {
			return cleanup(err)
		}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", ErrTierIO.Wrapf(err, "close record %s", e.Key)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", ErrTierIO.Wrapf(err, "rename record %s", e.Key)
	}
	return dir, nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return ErrTierIO.Wrapf(err, "open directory %s", dir)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return ErrTierIO.Wrapf(err, "sync directory %s", dir)
	}
	return nil
}

func (t *FileTier) Remove(_ context.Context, key Key) error {
	if err := os.Remove(t.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ErrTierIO.Wrapf(err, "remove record %s", key)
	}
	return nil
}

// RemoveCategory deletes the category directory
func (t *FileTier) RemoveCategory(_ context.Context, category Category) (int, error) {
	dir := t.categoryDir(category)
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if isRecordFile(d) {
			removed++
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, ErrTierIO.Wrapf(err, "walk category %s", category)
	}
	if err := os.RemoveAll(dir); err != nil {
		return 0, ErrTierIO.Wrapf(err, "remove category %s", category)
	}
	return removed, nil
}

// Scan skips records that cannot be decoded; Lookup reports those
func (t *FileTier) Scan(ctx context.Context, fn func(*Entry) bool) error {
	errStop := errors.New("stop")
	err := filepath.WalkDir(t.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !isRecordFile(d) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		e, err := decodeRecord(data)
		if err != nil {
			return nil
		}
		if !fn(e) {
			return errStop
		}
		return nil
	})
	switch {
	case err == nil, errors.Is(err, errStop):
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return ErrTierIO.Wrapf(err, "scan %s", t.dir)
	}
}

func isRecordFile(d fs.DirEntry) bool {
	return !d.IsDir() && strings.HasSuffix(d.Name(), ".json") && !strings.HasPrefix(d.Name(), ".tmp-")
}

// Ping the root directory must still exist and be a directory
func (t *FileTier) Ping(context.Context) error {
	info, err := os.Stat(t.dir)
	if err != nil {
		return ErrTierIO.Wrap(err)
	}
	if !info.IsDir() {
		return ErrTierIO.WithMsgf("%s is not a directory", t.dir)
	}
	return nil
}

// Close 无需释放资源
func (t *FileTier) Close() error {
	return nil
}
