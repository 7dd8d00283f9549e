package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

// value reads the current value of a single counter or gauge.
func value(c prometheus.Collector) float64 {
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var pb dto.Metric
	if err := (<-ch).Write(&pb); err != nil {
		return -1
	}
	if pb.Counter != nil {
		return pb.Counter.GetValue()
	}
	return pb.Gauge.GetValue()
}

func TestNewManager(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		reg := prometheus.NewRegistry()

		Convey("When a manager is created with custom options", func() {
			m := NewManager(
				WithPrometheusRegistry(reg),
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 2, 3}),
			)

			Convey("Then the options are applied", func() {
				So(m.namespace, ShouldEqual, "test")
				So(m.subsystem, ShouldEqual, "unit")
				So(m.histogramBuckets, ShouldResemble, []float64{1, 2, 3})
			})

			Convey("Then collectors are registered under the namespace", func() {
				m.ticks.WithLabelValues("applied").Inc()
				families, err := reg.Gather()
				So(err, ShouldBeNil)

				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_sampler_ticks_total")
			})
		})

		Convey("When empty options are passed", func() {
			m := NewManager(WithPrometheusRegistry(reg), WithNamespace(""), WithHistogramBuckets(nil))

			Convey("Then defaults are kept", func() {
				So(m.namespace, ShouldEqual, "rollcall")
				So(len(m.histogramBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When tick outcomes are recorded", func() {
			before := value(globalManager.ticks.WithLabelValues("skipped_in_flight"))
			RecordTick("skipped_in_flight")
			RecordTick("skipped_in_flight")

			Convey("Then the counter advances", func() {
				after := value(globalManager.ticks.WithLabelValues("skipped_in_flight"))
				So(after-before, ShouldEqual, 2.0)
			})
		})

		Convey("When gauges are updated", func() {
			UpdateInFlight(true)
			UpdateScanStatus(2)
			UpdateViewSize(3, 30)
			UpdateDeviceActive(false)

			Convey("Then they hold the latest value", func() {
				So(value(globalManager.inFlight), ShouldEqual, 1.0)
				So(value(globalManager.scanStatus), ShouldEqual, 2.0)
				So(value(globalManager.liveIdentities), ShouldEqual, 3.0)
				So(value(globalManager.recentEvents), ShouldEqual, 30.0)
				So(value(globalManager.deviceActive), ShouldEqual, 0.0)
			})
		})

		Convey("When the remaining helpers are called", func() {
			Convey("Then none of them panic", func() {
				So(func() {
					UpdateArmedGeneration(4)
					RecordRecognitionLatency(120)
					RecordRecognition("matched")
					RecordActivationFailure("permission_denied")
					RecordFrameCaptured(64 << 10)
					RecordScanTransition("idle", "scanning")
					RecordFeedPoll("ok")
					RecordFeedPushMessage("malformed")
					UpdateFeedPushConnected(true)
					RecordFeedReconnect()
					RecordStoreApply("push")
					UpdateQueueSize(1)
					UpdateQueueCapacity(64)
					RecordQueueEnqueue()
					RecordQueueDequeue()
					RecordQueueDrop("full")
					RecordApplierLatency(0.2)
					RecordApplierFailure()
					RecordHTTPRequest("/view", "GET", "200")
					RecordHTTPRequestDuration("/view", "GET", "200", 3)
					RecordErrorByComponent("sampler", "capture")
					UpdateSystemMemoryUsage(1 << 20)
					UpdateSystemGoroutineCount(12)
				}, ShouldNotPanic)
			})
		})

		Convey("Then GetRegistry exposes the custom registry", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
			_, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
		})
	})
}
