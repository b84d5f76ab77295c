package objective_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/okian/fedbench/internal/domain/objective"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRecordOrdering(t *testing.T) {
	Convey("Given a record with several keys", t, func() {
		r := objective.NewRecord(map[string]float64{
			"train_loss_client_1": 0.4,
			"average_train_loss":  0.5,
			"value":               0.5,
			"client_test_0":       0.9,
		})

		Convey("Then value comes first and the rest are sorted", func() {
			So(r.Keys(), ShouldResemble, []string{"value", "average_train_loss", "client_test_0", "train_loss_client_1"})
		})

		Convey("Then JSON follows the same order", func() {
			b, err := json.Marshal(r)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"value":0.5,"average_train_loss":0.5,"client_test_0":0.9,"train_loss_client_1":0.4}`)
		})

		Convey("Then JSON round-trips", func() {
			b, _ := json.Marshal(r)
			var back objective.Record
			So(json.Unmarshal(b, &back), ShouldBeNil)
			So(back.Map(), ShouldResemble, r.Map())
		})
	})

	Convey("Given a record without the value key", t, func() {
		r := objective.NewRecord(map[string]float64{"b": 1, "a": 2})
		So(r.Keys(), ShouldResemble, []string{"a", "b"})
	})
}

func TestRecordValidate(t *testing.T) {
	Convey("Given records to validate", t, func() {
		Convey("When the monitored key is missing", func() {
			err := objective.NewRecord(map[string]float64{"loss": 1}).Validate("value")
			So(errors.Is(err, objective.ErrMissingKey), ShouldBeTrue)
		})

		Convey("When a value is NaN", func() {
			var r objective.Record
			r.Set("value", 1)
			r.Set("client_test_0", math.NaN())
			So(errors.Is(r.Validate("value"), objective.ErrNonFinite), ShouldBeTrue)

			_, err := json.Marshal(r)
			So(err, ShouldNotBeNil)
		})

		Convey("When the record is well formed", func() {
			So(objective.NewRecord(map[string]float64{"value": 0.1}).Validate("value"), ShouldBeNil)
		})

		Convey("When decoding a non numeric payload", func() {
			var r objective.Record
			err := json.Unmarshal([]byte(`{"value":"x"}`), &r)
			So(errors.Is(err, objective.ErrInvalidRecord), ShouldBeTrue)
		})
	})
}

func TestHistory(t *testing.T) {
	Convey("Given an empty history", t, func() {
		var h objective.History

		_, err := h.First()
		So(errors.Is(err, objective.ErrEmptyHistory), ShouldBeTrue)
		_, err = h.Last()
		So(errors.Is(err, objective.ErrEmptyHistory), ShouldBeTrue)

		Convey("When records are appended", func() {
			h = h.Append(objective.NewRecord(map[string]float64{"value": 1}))
			h = h.Append(objective.NewRecord(map[string]float64{"value": 0.5}))

			Convey("Then first and last are returned", func() {
				first, _ := h.First()
				last, _ := h.Last()
				v0, _ := first.Get("value")
				v1, _ := last.Get("value")
				So(v0, ShouldEqual, 1.0)
				So(v1, ShouldEqual, 0.5)

				vals, err := h.Values("value")
				So(err, ShouldBeNil)
				So(vals, ShouldResemble, []float64{1, 0.5})
			})
		})
	})
}
