package foreign

import (
	"soma/internal/engine"
	"soma/internal/object"
	"time"
)

func timeExtension() *Extension {
	return &Extension{
		Name: "time",
		Natives: map[string]object.NativeFunc{
			"clock":  fnTimeClock(),
			"sleep":  fnTimeSleep(),
			"format": fnTimeFmtClock(),
		},
	}
}

// fnTimeClock pushes the wall clock in milliseconds since the epoch.
func fnTimeClock() object.NativeFunc {
	return func(m object.Machine) error {
		m.Push(&object.Integer{Value: time.Now().UnixMilli()})
		return nil
	}
}

// fnTimeSleep pauses the calling thread. Cancelling the thread's context
// ends the sleep early with an error.
func fnTimeSleep() object.NativeFunc {
	return func(m object.Machine) error {
		v, err := m.Pop("use.time.sleep")
		if err != nil {
			return err
		}
		millis, ok := v.(*object.Integer)
		if !ok {
			return engine.Fatal(engine.TypeMismatch, "use.time.sleep",
				"argument to `sleep` must be an Integer, got %s", v.Type())
		}
		if millis.Value < 0 {
			return engine.Fatal(engine.HostFailure, "use.time.sleep",
				"argument to `sleep` must be non-negative, got %d", millis.Value)
		}
		timer := time.NewTimer(time.Duration(millis.Value) * time.Millisecond)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-m.Context().Done():
			return m.Context().Err()
		}
	}
}

// fnTimeFmtClock formats milliseconds with a Go time layout: ms layout -> String.
func fnTimeFmtClock() object.NativeFunc {
	return func(m object.Machine) error {
		args, err := m.PopN("use.time.format", 2)
		if err != nil {
			return err
		}
		millis, ok1 := args[0].(*object.Integer)
		layout, ok2 := args[1].(*object.String)
		if !ok1 || !ok2 {
			return engine.Fatal(engine.TypeMismatch, "use.time.format",
				"format expects an Integer and a String, got %s and %s", args[0].Type(), args[1].Type())
		}
		t := time.UnixMilli(millis.Value).UTC()
		m.Push(&object.String{Value: t.Format(layout.Value)})
		return nil
	}
}
