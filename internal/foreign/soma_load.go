package foreign

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"soma/internal/engine"
	"soma/internal/object"
	"soma/internal/parser"
)

// loadExtension provides use.load.file, which runs a source file on the
// calling thread. Relative names are tried in the working directory and
// then on the search path; ".soma" is appended when the name has no
// extension.
func (l *Library) loadExtension() *Extension {
	return &Extension{
		Name: "load",
		Natives: map[string]object.NativeFunc{
			"file":   l.fnLoadFile(),
			"exists": fnLoadExists(),
		},
	}
}

func (l *Library) findSource(name string) (string, []byte, error) {
	if filepath.Ext(name) == "" {
		name += ".soma"
	}
	candidates := []string{name}
	if !filepath.IsAbs(name) {
		for _, dir := range l.Config.SearchPath() {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}
	for _, full := range candidates {
		src, err := os.ReadFile(full)
		if err == nil {
			return full, src, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", nil, err
		}
	}
	return "", nil, fmt.Errorf("%s not found", name)
}

func (l *Library) fnLoadFile() object.NativeFunc {
	return func(m object.Machine) error {
		name, err := popString(m, "use.load.file")
		if err != nil {
			return err
		}
		full, src, err := l.findSource(name)
		if err != nil {
			return engine.Fatal(engine.HostFailure, "use.load.file", "failed to load file: %s", err)
		}
		block, err := parser.Parse(string(src))
		if err != nil {
			return engine.Fatal(engine.HostFailure, "use.load.file", "%s: %s", full, err)
		}
		slog.Debug("file loaded", slog.String("path", full))
		return m.Exec(block)
	}
}

// fnLoadExists pushes True when a readable file exists at path.
func fnLoadExists() object.NativeFunc {
	return func(m object.Machine) error {
		path, err := popString(m, "use.load.exists")
		if err != nil {
			return err
		}
		_, err = os.Stat(path)
		m.Push(object.NativeBoolToBoolean(err == nil))
		return nil
	}
}
