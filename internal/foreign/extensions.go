package foreign

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"soma/internal/engine"
	"soma/internal/object"
	"soma/internal/parser"
	"soma/internal/util"
	"soma/internal/util/future"
	"strings"
	"sync"
)

// Extension is a named bundle loaded on demand with `(name) >use`. Natives
// are installed under use.<name>.<key>; Setup is source run afterwards on
// the loading thread.
type Extension struct {
	Name    string
	Natives map[string]object.NativeFunc
	Setup   string
}

// Library owns the extension registry and remembers which extensions each
// Store has loaded or is loading.
type Library struct {
	Config util.Configuration

	mu         sync.Mutex
	extensions map[string]*Extension
	loaded     map[*object.Graph]map[string]*loading
}

// loading tracks one extension load into one Store. done completes when the
// loader finishes; owner is the Machine running the load.
type loading struct {
	owner object.Machine
	done  *future.Future[struct{}]
}

func NewLibrary(config util.Configuration) *Library {
	l := &Library{
		Config:     config,
		extensions: make(map[string]*Extension),
		loaded:     make(map[*object.Graph]map[string]*loading),
	}
	l.Extend(mathExtension())
	l.Extend(stringExtension())
	l.Extend(timeExtension())
	l.Extend(sysExtension())
	l.Extend(l.loadExtension())
	return l
}

func mathExtension() *Extension {
	src, err := libFS.ReadFile("lib/math.soma")
	if err != nil {
		panic(err)
	}
	return &Extension{Name: "math", Setup: string(src)}
}

// Extend registers ext, replacing any extension of the same name.
func (l *Library) Extend(ext *Extension) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.extensions[ext.Name] = ext
}

// Extensions lists the registered extension names.
func (l *Library) Extensions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.extensions))
	for name := range l.extensions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Loaded reports whether store has finished loading the named extension.
func (l *Library) Loaded(store *object.Graph, name string) bool {
	l.mu.Lock()
	entry, ok := l.loaded[store][name]
	l.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-entry.done.Done():
		return true
	default:
		return false
	}
}

// claim returns the load already recorded for name in the Store of m, or
// records a new one owned by m. complete is non-nil only for a new load.
func (l *Library) claim(m object.Machine, name string) (*loading, func(struct{}, error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	store := m.Store()
	set, ok := l.loaded[store]
	if !ok {
		set = make(map[string]*loading)
		l.loaded[store] = set
	}
	if entry, ok := set[name]; ok {
		return entry, nil
	}
	done, complete := future.Pending[struct{}]()
	entry := &loading{owner: m, done: done}
	set[name] = entry
	return entry, complete
}

func (l *Library) release(store *object.Graph, name string, entry *loading) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded[store][name] == entry {
		delete(l.loaded[store], name)
	}
}

// resolve finds a registered extension, or a <name>.soma file on the
// configured search path.
func (l *Library) resolve(name string) (*Extension, error) {
	l.mu.Lock()
	ext, ok := l.extensions[name]
	l.mu.Unlock()
	if ok {
		return ext, nil
	}

	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, fmt.Errorf("invalid extension name %q", name)
	}
	rel := filepath.Join(strings.Split(name, ".")...) + ".soma"
	var tried []string
	for _, dir := range l.Config.SearchPath() {
		full := filepath.Join(dir, rel)
		src, err := os.ReadFile(full)
		if err == nil {
			slog.Info("extension loaded from file",
				slog.String("name", name),
				slog.String("path", full))
			return &Extension{Name: name, Setup: string(src)}, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("extension %s: %w", name, err)
		}
		tried = append(tried, full)
	}
	if len(tried) == 0 {
		return nil, fmt.Errorf("extension %s not found (no search path configured)", name)
	}
	return nil, fmt.Errorf("extension %s not found, tried %s", name, strings.Join(tried, ", "))
}

// Use loads the named extension into the Store of m. Loading an extension a
// second time is a no-op. A thread that asks for an extension another thread
// is still loading waits for that load and shares its outcome; a failed load
// is forgotten so a later use retries it.
func (l *Library) Use(m object.Machine, name string) error {
	entry, complete := l.claim(m, name)
	if complete == nil {
		if entry.owner == m {
			// use from inside the extension's own setup
			return nil
		}
		_, err := entry.done.AwaitContext(m.Context())
		return err
	}
	err := l.load(m, name)
	if err != nil {
		l.release(m.Store(), name, entry)
	}
	complete(struct{}{}, err)
	return err
}

func (l *Library) load(m object.Machine, name string) error {
	ext, err := l.resolve(name)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ext.Natives))
	for key := range ext.Natives {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		path := "use." + ext.Name + "." + key
		if err := engine.Register(m.Store(), path, ext.Natives[key]); err != nil {
			return err
		}
	}
	if ext.Setup != "" {
		block, err := parser.Parse(ext.Setup)
		if err != nil {
			return fmt.Errorf("extension %s: %w", name, err)
		}
		if err := m.Exec(block); err != nil {
			return err
		}
	}
	slog.Debug("extension loaded",
		slog.String("name", name),
		slog.Int("natives", len(keys)))
	return nil
}

func (l *Library) fnUse() object.NativeFunc {
	return func(m object.Machine) error {
		name, err := popString(m, "use")
		if err != nil {
			return err
		}
		return l.Use(m, name)
	}
}
