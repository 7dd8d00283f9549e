package model_test

import (
	"encoding/json"
	"testing"
	"time"

	model "github.com/okian/rollcall/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestLogEventKey(t *testing.T) {
	convey.Convey("Given two log events", t, func() {
		ts := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

		convey.Convey("When they share identity and instant in different zones", func() {
			a := model.LogEvent{IdentityID: "S1", Timestamp: ts}
			b := model.LogEvent{IdentityID: "S1", Timestamp: ts.In(time.FixedZone("x", 3600)), EngagementScore: 40}

			convey.Convey("Then their keys are equal", func() {
				convey.So(a.Key(), convey.ShouldEqual, b.Key())
			})
		})

		convey.Convey("When identities differ", func() {
			a := model.LogEvent{IdentityID: "S1", Timestamp: ts}
			b := model.LogEvent{IdentityID: "S2", Timestamp: ts}

			convey.Convey("Then their keys differ", func() {
				convey.So(a.Key(), convey.ShouldNotEqual, b.Key())
			})
		})
	})
}

func TestScanStatus(t *testing.T) {
	convey.Convey("Given the scan statuses", t, func() {
		convey.Convey("Then they render by name", func() {
			convey.So(model.ScanIdle.String(), convey.ShouldEqual, "idle")
			convey.So(model.ScanScanning.String(), convey.ShouldEqual, "scanning")
			convey.So(model.ScanMatched.String(), convey.ShouldEqual, "matched")
			convey.So(model.ScanStatus(9).String(), convey.ShouldEqual, "unknown")
		})

		convey.Convey("Then they marshal to JSON strings", func() {
			b, err := json.Marshal(map[string]model.ScanStatus{"status": model.ScanMatched})
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(b), convey.ShouldEqual, `{"status":"matched"}`)
		})
	})
}

func TestUpdateConstructors(t *testing.T) {
	convey.Convey("Given update constructors", t, func() {
		convey.Convey("Then each sets its kind", func() {
			convey.So(model.RecognitionUpdate(model.RecognitionResult{}).Kind, convey.ShouldEqual, model.UpdateRecognition)
			convey.So(model.SnapshotUpdate(nil).Kind, convey.ShouldEqual, model.UpdateSnapshot)
			convey.So(model.PushUpdate(model.LogEvent{IdentityID: "S1"}).Push.IdentityID, convey.ShouldEqual, "S1")
			convey.So(model.UpdatePush.String(), convey.ShouldEqual, "push")
		})
	})
}
