package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/matgreaves/tracequeryd/internal/wire"
)

const (
	manifestFile = "trace.json"
	eventsFile   = "events.bin"
)

// Store resolves one session directory. It is a small, immutable value
// after Open succeeds and is cheap to copy and share across goroutines;
// the event file is read only when EventStream is called.
type Store struct {
	dir      string
	manifest Manifest
}

// Open resolves a trace session: verify the session directory exists,
// read and parse trace.json, validate it, and construct a Store.
// events.bin is not touched here.
func Open(sessionDir string) (Store, error) {
	info, err := os.Stat(sessionDir)
	if err != nil || !info.IsDir() {
		return Store{}, notFound(ErrTraceNotFound, sessionDir)
	}

	manifestPath := filepath.Join(sessionDir, manifestFile)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Store{}, notFound(ErrManifestNotFound, manifestPath)
		}
		return Store{}, ioErr(manifestPath, err)
	}

	manifest, err := parseManifest(data)
	if err != nil {
		return Store{}, err
	}

	return Store{dir: sessionDir, manifest: manifest}, nil
}

// Manifest returns the validated manifest.
func (s Store) Manifest() Manifest { return s.manifest }

// ManifestPath returns the path to trace.json within the session.
func (s Store) ManifestPath() string { return filepath.Join(s.dir, manifestFile) }

// EventsPath returns the path to events.bin within the session.
func (s Store) EventsPath() string { return filepath.Join(s.dir, eventsFile) }

// Paths returns the manifest and events file paths for a session
// directory without requiring the session to have been opened.
func Paths(sessionDir string) (manifestPath, eventsPath string) {
	return filepath.Join(sessionDir, manifestFile), filepath.Join(sessionDir, eventsFile)
}

// ReadEventStream reads an events.bin file directly by path, for callers
// that only need the event stream and not a full opened Store.
func ReadEventStream(eventsPath string) (*wire.EventStream, error) {
	data, err := os.ReadFile(eventsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(ErrEventsNotFound, eventsPath)
		}
		return nil, ioErr(eventsPath, err)
	}
	return wire.NewEventStream(data), nil
}

// EventStream reads events.bin fully and returns a lazy cursor over it.
// A missing file yields ErrEventsNotFound; any other read failure yields
// ErrIO. An empty file yields an empty, immediately-exhausted stream.
func (s Store) EventStream() (*wire.EventStream, error) {
	path := s.EventsPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(ErrEventsNotFound, path)
		}
		return nil, ioErr(path, err)
	}
	return wire.NewEventStream(data), nil
}

// FileMeta is the (mtime, size) pair used to build the trace-info cache
// key. It is cheap to obtain via os.Stat without reading file contents.
type FileMeta struct {
	ModTime time.Time
	Size    int64
}

// Stat returns the manifest and events file metadata needed for the
// trace-info cache key. TraceNotFound/ManifestNotFound/EventsNotFound and
// other I/O failures are reported using the same taxonomy as Open.
func Stat(sessionDir string) (manifestMeta, eventsMeta FileMeta, err error) {
	info, statErr := os.Stat(sessionDir)
	if statErr != nil || !info.IsDir() {
		return FileMeta{}, FileMeta{}, notFound(ErrTraceNotFound, sessionDir)
	}

	manifestPath := filepath.Join(sessionDir, manifestFile)
	mInfo, mErr := os.Stat(manifestPath)
	if mErr != nil {
		if os.IsNotExist(mErr) {
			return FileMeta{}, FileMeta{}, notFound(ErrManifestNotFound, manifestPath)
		}
		return FileMeta{}, FileMeta{}, ioErr(manifestPath, mErr)
	}

	eventsPath := filepath.Join(sessionDir, eventsFile)
	eInfo, eErr := os.Stat(eventsPath)
	if eErr != nil {
		if os.IsNotExist(eErr) {
			return FileMeta{}, FileMeta{}, notFound(ErrEventsNotFound, eventsPath)
		}
		return FileMeta{}, FileMeta{}, ioErr(eventsPath, eErr)
	}

	return FileMeta{ModTime: mInfo.ModTime(), Size: mInfo.Size()},
		FileMeta{ModTime: eInfo.ModTime(), Size: eInfo.Size()},
		nil
}

// WrapIOError classifies a plain os error encountered outside Open/Stat
// (e.g. while re-reading a file for checksumming) as an ErrIO store error.
func WrapIOError(path string, err error) error {
	if err == nil {
		return nil
	}
	return ioErr(path, err)
}

// WrapDecodeError classifies an error returned while decoding events.bin
// as an ErrDecode store error, so handlers can apply the same mapping
// used for every other store failure.
func WrapDecodeError(err error) error {
	if err == nil {
		return nil
	}
	return decodeErr(err)
}
