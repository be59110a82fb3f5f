package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it uses the default naming", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "cigame")
				So(manager.subsystem, ShouldEqual, "scoring")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("ledger"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithConstLabels(map[string]string{"instance": "a"}),
				WithPrometheusRegistry(registry),
			)
			manager.buildsReceived.Inc()

			Convey("Then collectors carry the configured names and labels", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var found bool
				for _, f := range families {
					if f.GetName() == "test_ledger_builds_received_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "a")
					}
				}
				So(found, ShouldBeTrue)
				So(manager.histogramBuckets, ShouldResemble, []float64{1, 5, 10})
			})
		})

		Convey("When empty options are given", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "cigame")
				So(manager.subsystem, ShouldEqual, "scoring")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given the global manager configured with a namespace and an instance label", t, func() {
		Configure(
			WithNamespace("ci"),
			WithConstLabels(map[string]string{"instance": "runner-1"}),
		)
		defer Configure()

		RecordBuildReceived()

		Convey("Then the served registry exposes the renamed, labelled collectors", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)

			var found bool
			for _, f := range families {
				if f.GetName() == "ci_scoring_builds_received_total" {
					found = true
					So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "instance")
					So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "runner-1")
				}
				So(strings.HasPrefix(f.GetName(), "cigame_"), ShouldBeFalse)
			}
			So(found, ShouldBeTrue)
		})
	})
}

func TestRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When scoring metrics are recorded", func() {
			before := testutil.ToFloat64(globalManager.buildsScored)
			RecordBuildScored(15)
			RecordBuildReceived()
			RecordBuildDuplicate()
			RecordBuildRejected("invalid")
			RecordRuleEvaluationLatency(2)
			RecordOptedOutSkip()

			Convey("Then the counters move", func() {
				So(testutil.ToFloat64(globalManager.buildsScored), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.buildsRejected.WithLabelValues("invalid")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When labelled counters are recorded", func() {
			RecordRuleFailure("pmd")
			RecordScoreAdjustment("custom")
			RecordUserSaveError("prune")
			RecordReset("default")
			RecordStreamMessage("acked")
			RecordErrorByComponent("worker", "rule_failed")

			Convey("Then each label value has its own series", func() {
				So(testutil.ToFloat64(globalManager.ruleFailures.WithLabelValues("pmd")), ShouldBeGreaterThanOrEqualTo, 1)
				So(testutil.ToFloat64(globalManager.scoreAdjustments.WithLabelValues("custom")), ShouldBeGreaterThanOrEqualTo, 1)
				So(testutil.ToFloat64(globalManager.userSaveErrors.WithLabelValues("prune")), ShouldBeGreaterThanOrEqualTo, 1)
				So(testutil.ToFloat64(globalManager.resets.WithLabelValues("default")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When gauges are updated", func() {
			UpdateTotalUsers(12)
			UpdateCustomGames(3)
			UpdateQueueSize(7)
			UpdateQueueCapacity(100)
			UpdateQueueUtilization(0.07)
			UpdateWorkerCount(4)
			UpdateWorkerActiveCount(2)
			UpdateSystemGoroutineCount(30)
			UpdateSystemMemoryUsage(1024)

			Convey("Then they hold the last value", func() {
				So(testutil.ToFloat64(globalManager.totalUsers), ShouldEqual, 12)
				So(testutil.ToFloat64(globalManager.customGames), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.workerActiveCount), ShouldEqual, 2)
			})
		})

		Convey("When the remaining recorders are called", func() {
			So(func() {
				RecordPrunedUsers(2)
				RecordLeaderboardLatency(1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(0.5)
				RecordWorkerProcessingLatency(3)
				RecordWorkerError()
				RecordHTTPRequest("/builds", "POST", "202")
				RecordHTTPRequestDuration("/builds", "POST", "202", 4)
			}, ShouldNotPanic)
		})

		Convey("When the registry is gathered", func() {
			families, err := GetRegistry().Gather()

			Convey("Then only our namespace is exported", func() {
				So(err, ShouldBeNil)
				So(families, ShouldNotBeEmpty)
				for _, f := range families {
					So(strings.HasPrefix(f.GetName(), "cigame_scoring_"), ShouldBeTrue)
				}
			})
		})
	})
}
