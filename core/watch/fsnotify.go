package watch

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"
)

// FSNotify is a Source backed by fsnotify. Sub-directories are watched as
// they appear so the whole tree stays covered.
type FSNotify struct {
	logger  zerolog.Logger
	shallow bool
}

// NewFSNotify creates an fsnotify-backed source.
func NewFSNotify(logger zerolog.Logger) *FSNotify {
	return &FSNotify{logger: logger}
}

// NewShallowFSNotify creates a source that watches only the root directory
// itself, not the directories below it.
func NewShallowFSNotify(logger zerolog.Logger) *FSNotify {
	return &FSNotify{logger: logger, shallow: true}
}

// Attach starts watching root and every directory below it.
func (s *FSNotify) Attach(root string, handler Handler) (Subscription, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrUnavailable, root)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: create watcher: %v", ErrUnavailable, err)
	}

	sub := &subscription{
		watcher: watcher,
		handler: handler,
		logger:  s.logger.With().Str("root", root).Logger(),
		digests: make(map[string][]byte),
		pending: make(map[string]bool),
		shallow: s.shallow,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}

	if err := watcher.Add(root); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("%w: watch %s: %v", ErrUnavailable, root, err)
	}
	if !s.shallow {
		sub.addTree(root, false)
	}

	go sub.loop()

	sub.logger.Debug().Msg("watching module tree for changes")
	return sub, nil
}

type subscription struct {
	watcher *fsnotify.Watcher
	handler Handler
	logger  zerolog.Logger
	shallow bool

	// last seen content digest per file, used to drop repeated write
	// notifications that did not change the file
	digests map[string][]byte

	// files that were empty when created; their first write is reported
	// as Created since the earlier event carried no content
	pending map[string]bool

	once   sync.Once
	stopCh chan struct{}
	done   chan struct{}
}

// Close stops event delivery and releases the watch descriptors.
func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stopCh)
		err = s.watcher.Close()
		<-s.done
	})
	return err
}

// addTree watches every directory under dir. When announce is set, files
// already present are reported as created (a directory moved into the tree
// brings its contents with it).
func (s *subscription) addTree(dir string, announce bool) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Debug().Err(err).Str("path", path).Msg("skipping unreadable path")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != dir || announce {
				if err := s.watcher.Add(path); err != nil {
					s.logger.Warn().Err(err).Str("path", path).Msg("failed to watch directory")
				}
			}
			return nil
		}
		if announce {
			s.remember(path)
			s.handler(Event{Kind: Created, Path: path})
		}
		return nil
	})
}

func (s *subscription) loop() {
	defer close(s.done)

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.dispatch(event)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Msg("file watcher error")

		case <-s.stopCh:
			return
		}
	}
}

func (s *subscription) dispatch(event fsnotify.Event) {
	s.logger.Debug().
		Str("event", event.Op.String()).
		Str("file", event.Name).
		Msg("file changed")

	switch {
	case event.Op.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			if !s.shallow {
				s.addTree(event.Name, true)
			}
			return
		}
		if err == nil && info.Size() == 0 {
			s.pending[event.Name] = true
		}
		s.remember(event.Name)
		s.handler(Event{Kind: Created, Path: event.Name})

	case event.Op.Has(fsnotify.Write):
		if !s.changed(event.Name) {
			return
		}
		kind := Modified
		if s.pending[event.Name] {
			delete(s.pending, event.Name)
			kind = Created
		}
		s.handler(Event{Kind: kind, Path: event.Name})

	default:
		if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
			delete(s.digests, event.Name)
			delete(s.pending, event.Name)
		}
		s.handler(Event{Kind: Other, Path: event.Name})
	}
}

func (s *subscription) remember(path string) {
	if sum, err := Digest(path); err == nil {
		s.digests[path] = sum
	}
}

// changed reports whether the file content differs from the last digest.
// Unreadable files always count as changed.
func (s *subscription) changed(path string) bool {
	sum, err := Digest(path)
	if err != nil {
		delete(s.digests, path)
		return true
	}
	prev, ok := s.digests[path]
	s.digests[path] = sum
	return !ok || !bytes.Equal(prev, sum)
}

// Digest returns the BLAKE2b-256 sum of the file at path.
func Digest(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sum := blake2b.Sum256(data)
	return sum[:], nil
}
