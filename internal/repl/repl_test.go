package repl

import (
	"bytes"
	"context"
	"errors"
	"soma/internal/engine"
	"soma/internal/runtime"
	"soma/internal/util"
	"strings"
	"testing"
)

func newRuntime(t *testing.T, out *bytes.Buffer) *runtime.Runtime {
	t.Helper()
	rt, err := runtime.NewRuntime(util.Configuration{}, engine.Options{Stdout: out, Stdin: strings.NewReader("")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestStartKeepsStateAcrossLines(t *testing.T) {
	out := &bytes.Buffer{}
	rt := newRuntime(t, out)

	input := strings.Join([]string{
		`1 2`,
		`>+ !total`,
		`total (x)`,
		`:quit`,
		`99`,
	}, "\n")
	Start(context.Background(), rt, strings.NewReader(input), out)

	got := out.String()
	for _, want := range []string{"[1 2]", "[]", "[3 (x)]"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in output:\n%s", want, got)
		}
	}
	if strings.Contains(got, "99") {
		t.Fatalf(":quit must stop reading, got:\n%s", got)
	}
}

func TestStartMultiLineBlock(t *testing.T) {
	out := &bytes.Buffer{}
	rt := newRuntime(t, out)

	Start(context.Background(), rt, strings.NewReader("{ 1\n2 }\n>block >drop >{ 3 }\n"), out)

	got := out.String()
	if !strings.Contains(got, CONT_PROMPT) {
		t.Fatalf("expected continuation prompt, got:\n%s", got)
	}
	if !strings.Contains(got, "[Block]") || !strings.Contains(got, "[Block 3]") {
		t.Fatalf("unexpected output:\n%s", got)
	}
}

func TestSessionReportsErrors(t *testing.T) {
	out := &bytes.Buffer{}
	rt := newRuntime(t, out)
	s := NewSession(rt, out)

	err := s.Eval(context.Background(), "7 >nothing.here")
	var fe *engine.FatalError
	if !errors.As(err, &fe) || fe.Kind != engine.UndefinedPath {
		t.Fatalf("expected UndefinedPath, got %v", err)
	}
	if !strings.Contains(out.String(), "UndefinedPath") || !strings.Contains(out.String(), "at Block#") {
		t.Fatalf("expected error and trace, got:\n%s", out.String())
	}
	if got := FormatAL(s.AL()); got != "[7]" {
		t.Fatalf("AL must survive a halt, got %s", got)
	}

	out.Reset()
	if err := s.Eval(context.Background(), "1 }"); err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(out.String(), "unexpected '}'") {
		t.Fatalf("expected parse message, got:\n%s", out.String())
	}
}

func TestSessionCommands(t *testing.T) {
	out := &bytes.Buffer{}
	rt := newRuntime(t, out)
	s := NewSession(rt, out)

	_ = s.Eval(context.Background(), "1 2 3")
	out.Reset()
	if s.Command(":clear") {
		t.Fatal(":clear must not end the session")
	}
	if s.AL().Len() != 0 || !strings.Contains(out.String(), "[]") {
		t.Fatalf(":clear must empty the AL, got %s", out.String())
	}

	out.Reset()
	s.Command(":ext")
	if !strings.Contains(out.String(), "math") || !strings.Contains(out.String(), "thread") {
		t.Fatalf("expected extension list, got %q", out.String())
	}

	out.Reset()
	s.Command(":bogus")
	if !strings.Contains(out.String(), "unknown command") {
		t.Fatalf("unexpected output %q", out.String())
	}
	if !s.Command(":QUIT") {
		t.Fatal(":quit must end the session")
	}
}
