package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	errs "smdl/pkg/errors"
	"smdl/pkg/logger"
)

// DefaultBufferSize is the chunk size used when streaming to disk
const DefaultBufferSize = 32 * 1024

const partialSuffix = ".part"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.\- ]`)

// Sanitize replaces every character outside [A-Za-z0-9_.- ] with '_'.
// Each rune maps to exactly one '_'.
func Sanitize(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// Manager maps albums and media entries onto the local mirror. The
// presence of a file is the only record that an entry was downloaded.
type Manager struct {
	baseDir    string
	bufferSize int
	logger     logger.Logger
}

// NewManager creates the output directory if needed. Trailing separators
// on baseDir are dropped, so "output", "output/" and "output//" name the
// same mirror.
func NewManager(baseDir string, bufferSize int, log logger.Logger) (*Manager, error) {
	if baseDir == "" {
		return nil, errs.New(errs.ErrorTypeConfig, "output directory is required")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Manager{
		baseDir:    filepath.Clean(baseDir),
		bufferSize: bufferSize,
		logger:     logger.OrDefault(log).WithField("component", "storage"),
	}, nil
}

// BaseDir returns the root of the mirror
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// AlbumDir returns the directory for an album's URL path. Paths that would
// resolve outside the output directory are rejected.
func (m *Manager) AlbumDir(urlPath string) (string, error) {
	rel := strings.TrimPrefix(urlPath, "/")
	dir := filepath.Join(m.baseDir, filepath.FromSlash(rel))

	within, err := filepath.Rel(m.baseDir, dir)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", errs.New(errs.ErrorTypeDownload, "album path escapes output directory").WithPath(urlPath)
	}
	return dir, nil
}

// PrepareAlbum creates the album directory and removes partial files left
// behind by an interrupted run.
func (m *Manager) PrepareAlbum(urlPath string) (string, error) {
	dir, err := m.AlbumDir(urlPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errs.Wrap(errs.ErrorTypeDownload, err, "create album directory").WithPath(dir)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".*"+partialSuffix))
	for _, p := range leftovers {
		if err := os.Remove(p); err == nil {
			m.logger.DebugWithFields("Removed stale partial file", map[string]interface{}{"path": p})
		}
	}
	return dir, nil
}

// Destination returns the local path of a media file inside albumDir
func (m *Manager) Destination(albumDir, fileName string) (string, error) {
	name := Sanitize(fileName)
	if name == "" || name == "." || name == ".." {
		return "", errs.New(errs.ErrorTypeDownload, "invalid file name %q", fileName)
	}
	return filepath.Join(albumDir, name), nil
}

// Exists reports whether a regular file is already present at path. A
// directory of the same name does not count.
func (m *Manager) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Save streams r into path through a uniquely named temporary file in the
// same directory, renamed into place only once fully written. Failures
// reading r are transport errors so callers may retry them; local I/O
// failures are download errors.
func (m *Manager) Save(ctx context.Context, path string, r io.Reader) (int64, error) {
	dir, base := filepath.Split(path)
	tmpPath := filepath.Join(dir, "."+base+"."+uuid.NewString()+partialSuffix)

	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeDownload, err, "create temporary file").WithPath(path)
	}

	src := &trackingReader{ctx: ctx, r: r}
	// Hide ReadFrom so the fixed-size buffer is actually used
	n, copyErr := io.CopyBuffer(struct{ io.Writer }{out}, src, make([]byte, m.bufferSize))
	if copyErr == nil {
		copyErr = out.Sync()
	}
	closeErr := out.Close()

	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpPath)
		switch {
		case src.err != nil && !errors.Is(src.err, io.EOF):
			return n, errs.Wrap(errs.ErrorTypeTransport, src.err, "read download stream").WithPath(path)
		case copyErr != nil:
			return n, errs.Wrap(errs.ErrorTypeDownload, copyErr, "write file").WithPath(path)
		default:
			return n, errs.Wrap(errs.ErrorTypeDownload, closeErr, "close file").WithPath(path)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return n, errs.Wrap(errs.ErrorTypeDownload, err, "rename temporary file").WithPath(path)
	}
	return n, nil
}

// trackingReader stops on cancellation and remembers read-side failures
type trackingReader struct {
	ctx context.Context
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	if err := t.ctx.Err(); err != nil {
		t.err = err
		return 0, err
	}
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}
