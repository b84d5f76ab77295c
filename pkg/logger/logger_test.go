package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given an initialized logger", t, func() {
		So(Init(), ShouldBeNil)
		defer func() { So(Sync(), ShouldBeNil) }()

		Convey("Then Get returns a usable logger", func() {
			l := Get()
			So(l, ShouldNotBeNil)
			l.Info(context.Background(), "test message", String("k", "v"))
		})

		Convey("Then Named returns a child logger", func() {
			So(Named("test"), ShouldNotBeNil)
		})
	})
}

func TestLoggerJSONOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf), WithJSON(true)), ShouldBeNil)

		Convey("When logging with typed fields", func() {
			Get().With(String("run", "r1")).Info(context.Background(), "round observed",
				Int("round", 3),
				Float64("progress", 0.5),
				Bool("stop", false),
				Ints("skipped", []int{1, 2}),
				Error(errors.New("boom")),
			)

			Convey("Then every field is encoded", func() {
				var line map[string]any
				So(json.Unmarshal(buf.Bytes(), &line), ShouldBeNil)
				So(line["msg"], ShouldEqual, "round observed")
				So(line["run"], ShouldEqual, "r1")
				So(line["round"], ShouldEqual, 3.0)
				So(line["progress"], ShouldEqual, 0.5)
				So(line["stop"], ShouldEqual, false)
				So(line["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When the level filters a message out", func() {
			So(SetLevelString("warn"), ShouldBeNil)
			defer func() { _ = SetLevelString("info") }()
			Get().Debug(context.Background(), "hidden")

			Convey("Then nothing is written", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		for _, lvl := range []string{"debug", "info", "", "warn", "warning", "error", " DEBUG "} {
			So(SetLevelString(lvl), ShouldBeNil)
		}
		So(SetLevelString("verbose"), ShouldNotBeNil)
		_ = SetLevelString("info")
	})
}

func TestNop(t *testing.T) {
	Convey("Given a nop logger", t, func() {
		l := Nop()
		So(func() { l.Error(context.Background(), "dropped") }, ShouldNotPanic)
		So(l.Named("x"), ShouldNotBeNil)
	})
}
