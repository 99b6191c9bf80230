package present

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// iconExts are the file name extensions recognized as icons, in order of
// preference.
var iconExts = []string{".png", ".jpg", ".jpeg"}

// Icons finds the image resource for a label in a directory, by file name:
// "sad.png" is the icon for label "sad". Files added to or removed from the
// directory are picked up while the Icons is open.
type Icons struct {
	dir     string
	log     logrus.FieldLogger
	watcher *fsnotify.Watcher

	mutex sync.Mutex
	files map[string]string // Label to file name.
}

// OpenIcons indexes dir and starts watching it for changes.
// Callers must call Close.
func OpenIcons(dir string, log logrus.FieldLogger) (icons *Icons, rerr error) {
	ic := &Icons{dir: dir, log: log}

	// Ensure cleanup in case of failure.
	defer func() {
		if rerr != nil {
			ic.Close()
		}
	}()

	if err := ic.reindex(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new file change watcher: %v", err)
	}
	ic.watcher = watcher

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if err := ic.reindex(); err != nil {
					log.WithError(err).Warn("reindexing icons")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("watching icons")
			}
		}
	}()

	if err := watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("registering file change watcher for icons: %v", err)
	}
	return ic, nil
}

func (ic *Icons) reindex() error {
	entries, err := os.ReadDir(ic.dir)
	if err != nil {
		return fmt.Errorf("reading icon dir: %v", err)
	}
	files := map[string]string{}
	rank := map[string]int{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		r := -1
		for i, x := range iconExts {
			if x == ext {
				r = i
			}
		}
		if r < 0 {
			continue
		}
		label := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if prev, ok := rank[label]; ok && prev <= r {
			continue
		}
		rank[label] = r
		files[label] = e.Name()
	}

	ic.mutex.Lock()
	ic.files = files
	ic.mutex.Unlock()
	ic.log.WithField("count", len(files)).Debug("indexed icons")
	return nil
}

// Lookup returns the decoded icon for label.
func (ic *Icons) Lookup(label string) (image.Image, error) {
	ic.mutex.Lock()
	name, ok := ic.files[label]
	ic.mutex.Unlock()
	if !ok {
		return nil, fmt.Errorf("no icon for %q in %s", label, ic.dir)
	}
	img, err := imaging.Open(filepath.Join(ic.dir, name))
	if err != nil {
		return nil, fmt.Errorf("opening icon for %q: %v", label, err)
	}
	return img, nil
}

// Close stops watching the icon directory.
func (ic *Icons) Close() error {
	if ic.watcher != nil {
		return ic.watcher.Close()
	}
	return nil
}
