package foreign

import (
	"errors"
	"fmt"
	"io"
	"soma/internal/engine"
	"soma/internal/object"
	"strings"
)

func fnIoPrint() object.NativeFunc {
	return func(m object.Machine) error {
		v, err := m.Pop("print")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(m.Stdout(), ToDisplay(v))
		return err
	}
}

// fnIoReadLine pushes the next input line without its line terminator.
func fnIoReadLine() object.NativeFunc {
	return func(m object.Machine) error {
		line, err := m.Stdin().ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				return engine.Fatal(engine.HostFailure, "readLine", "readLine: EOF encountered")
			}
			return err
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		m.Push(&object.String{Value: line})
		return nil
	}
}
