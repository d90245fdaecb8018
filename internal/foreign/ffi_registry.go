package foreign

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"soma/internal/engine"
	"soma/internal/object"
	"soma/internal/parser"
)

//go:embed lib/*.soma
var libFS embed.FS

// GetForeignFunctions returns the host Blocks installed at the Store root,
// keyed by Store path.
func GetForeignFunctions() map[string]object.NativeFunc {
	return map[string]object.NativeFunc{
		"+": fnMathAdd(),
		"-": fnMathSubtract(),
		"*": fnMathMultiply(),
		"/": fnMathDivide(),
		"%": fnMathModulo(),
		"<": fnMathLessThan(),

		"concat":   fnStringConcat(),
		"toString": fnStringToString(),
		"toInt":    fnStringToInt(),

		"isVoid": fnStdIsVoid(),
		"isNil":  fnStdIsNil(),

		"print":    fnIoPrint(),
		"readLine": fnIoReadLine(),

		"debug.al.dump":  fnDebugALDump(),
		"debug.chain":    fnDebugChain(),
		"debug.choose":   fnDebugChoose(),
		"debug.ref.set":  fnDebugRefSet(),
		"debug.children": fnDebugChildren(),
	}
}

// GetConstants returns the values pre-populated at the Store root.
func GetConstants() map[string]object.Value {
	return map[string]object.Value{
		"True":  object.TRUE,
		"False": object.FALSE,
		"Nil":   object.NIL,
		"Void":  object.VOID,
	}
}

// Install populates a fresh Store with the engine primitives, the constants,
// the host Blocks and the extension loader.
func (l *Library) Install(store *object.Graph) error {
	if err := engine.Install(store); err != nil {
		return err
	}
	for name, v := range GetConstants() {
		if err := store.Write(object.MustPath(name), v); err != nil {
			return fmt.Errorf("install constant %s: %w", name, err)
		}
	}
	for name, fn := range GetForeignFunctions() {
		if err := engine.Register(store, name, fn); err != nil {
			return err
		}
	}
	if err := engine.Register(store, "use", l.fnUse()); err != nil {
		return err
	}
	slog.Debug("store populated",
		slog.Int("natives", len(GetForeignFunctions())+4),
		slog.Int("extensions", len(l.Extensions())))
	return nil
}

// Prelude returns the source of the words defined in the language itself.
func Prelude() string {
	src, err := libFS.ReadFile("lib/prelude.soma")
	if err != nil {
		panic(err)
	}
	return string(src)
}

// LoadPrelude defines the prelude words in store.
func LoadPrelude(ctx context.Context, store *object.Graph, opts engine.Options) error {
	block, err := parser.Parse(Prelude())
	if err != nil {
		return fmt.Errorf("prelude: %w", err)
	}
	th := engine.NewThread(ctx, nil, store, opts)
	if err := th.Run(block); err != nil {
		return fmt.Errorf("prelude: %w", err)
	}
	return nil
}
