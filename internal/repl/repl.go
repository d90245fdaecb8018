package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"soma/internal/engine"
	"soma/internal/foreign"
	"soma/internal/parser"
	"soma/internal/runtime"
	"strings"

	"github.com/peterh/liner"
)

const (
	PROMPT      = ">> "
	CONT_PROMPT = ".. "
)

// Session keeps one AL alive across lines. The Store belongs to the runtime
// and persists as well.
type Session struct {
	rt  *runtime.Runtime
	al  *engine.AL
	out io.Writer
}

func NewSession(rt *runtime.Runtime, out io.Writer) *Session {
	return &Session{rt: rt, al: engine.NewAL(), out: out}
}

// AL returns the session's persistent AL.
func (s *Session) AL() *engine.AL { return s.al }

// Eval runs one complete input and prints the AL afterwards. A fatal halt
// is reported and the AL keeps what the input left on it.
func (s *Session) Eval(ctx context.Context, src string) error {
	block, err := s.rt.Parse("repl", src)
	if err != nil {
		Report(s.out, src, err)
		return err
	}
	err = s.rt.Run(ctx, block, s.al)
	if err != nil {
		Report(s.out, src, err)
	}
	fmt.Fprintln(s.out, FormatAL(s.al))
	return err
}

// Command handles a line starting with ':'. It reports whether the session
// should end.
func (s *Session) Command(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case ":quit", ":q":
		return true
	case ":clear":
		s.al.Reset()
		fmt.Fprintln(s.out, FormatAL(s.al))
	case ":al":
		fmt.Fprintln(s.out, FormatAL(s.al))
	case ":ext":
		fmt.Fprintln(s.out, strings.Join(s.rt.Library.Extensions(), " "))
	default:
		fmt.Fprintln(s.out, "unknown command. Type :quit to exit.")
	}
	return false
}

// FormatAL renders the AL bottom to top.
func FormatAL(al *engine.AL) string {
	vals := al.Values()
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = foreign.ToDebug(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Report writes a parse error with its source context, or a fatal error with
// its trace.
func Report(w io.Writer, src string, err error) {
	var pe *parser.Error
	var fe *engine.FatalError
	switch {
	case errors.As(err, &pe):
		io.WriteString(w, pe.Context(src))
		for _, msg := range pe.Messages {
			io.WriteString(w, "\t"+msg+"\n")
		}
	case errors.As(err, &fe):
		fmt.Fprintln(w, fe.Error())
		io.WriteString(w, fe.StackTrace())
	default:
		fmt.Fprintln(w, err.Error())
	}
}

// Start reads inputs from in until EOF or :quit. An input continues over
// several lines while a block or string is left open.
func Start(ctx context.Context, rt *runtime.Runtime, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	s := NewSession(rt, out)
	var buf strings.Builder

	for {
		if buf.Len() == 0 {
			fmt.Fprint(out, PROMPT)
		} else {
			fmt.Fprint(out, CONT_PROMPT)
		}
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		if buf.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), ":") {
			if s.Command(line) {
				return
			}
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)
		src := buf.String()
		if _, err := parser.Parse(src); parser.IsIncomplete(err) {
			continue
		}
		buf.Reset()
		if strings.TrimSpace(src) == "" {
			continue
		}
		_ = s.Eval(ctx, src)
	}
}

// StartInteractive runs the REPL on the terminal with line editing. History
// is read from and written back to historyPath when it is set.
func StartInteractive(ctx context.Context, rt *runtime.Runtime, historyPath string) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if historyPath != "" {
		if f, err := os.Open(historyPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			if f, err := os.Create(historyPath); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			} else {
				slog.Warn("could not write REPL history",
					slog.String("path", historyPath),
					slog.Any("error", err))
			}
		}()
	}

	s := NewSession(rt, os.Stdout)
	for {
		src, ok, err := readInput(ln)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println()
			return nil
		}
		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))
		if strings.HasPrefix(trimmed, ":") {
			if s.Command(trimmed) {
				return nil
			}
			continue
		}
		_ = s.Eval(ctx, src)
	}
}

// readInput prompts until the collected lines no longer leave a block or
// string open. ok is false on EOF.
func readInput(ln *liner.State) (string, bool, error) {
	var b strings.Builder
	for {
		prompt := PROMPT
		if b.Len() > 0 {
			prompt = CONT_PROMPT
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false, nil
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true, nil
		}
		if err != nil {
			return "", false, err
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		src := b.String()
		if _, perr := parser.Parse(src); !parser.IsIncomplete(perr) {
			return src, true, nil
		}
	}
}
