package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-parallel/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "op_parallel"
)

var (
	Debug                bool = true
	validOutcomes             = []types.OutcomeKind{types.OutcomeSuccess, types.OutcomeProcessError, types.OutcomeUndefinedStep}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "attempts_total",
		Help:      "Count of finished scenario executions by outcome",
	}, []string{
		"run_id",
		"outcome",
	})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "retries_total",
		Help:      "Count of scenario retries queued",
	}, []string{
		"run_id",
	})

	activeWorkers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "active_workers",
		Help:      "Number of scenario executions currently in flight",
	}, []string{
		"run_id",
	})

	attemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "attempt_duration_seconds",
		Help:      "Wall-clock duration of single scenario executions",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{
		"run_id",
		"outcome",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of parallel scenario runs",
	}, []string{
		"run_id",
		"result",
	})

	runAttempted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_attempted",
		Help:      "Number of scenario attempts in a run",
	}, []string{
		"run_id",
	})

	runPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_passed",
		Help:      "Number of passed scenario attempts in a run",
	}, []string{
		"run_id",
	})

	runFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_failed",
		Help:      "Number of failed scenario attempts in a run",
	}, []string{
		"run_id",
	})

	runFailedAfterRetry = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_failed_after_retry",
		Help:      "Number of scenarios whose last attempt failed",
	}, []string{
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration",
		Help:      "Duration of parallel scenario runs",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordAttempt counts one finished execution and observes its duration.
func RecordAttempt(runID string, outcome types.OutcomeKind, duration time.Duration) {
	if !isValidOutcome(outcome) {
		log.Error("RecordAttempt - invalid outcome", "outcome", outcome)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "attempts_total",
			"run_id", runID,
			"outcome", outcome,
			"duration", duration)
	}
	attemptsTotal.WithLabelValues(runID, string(outcome)).Inc()
	attemptDuration.WithLabelValues(runID, string(outcome)).Observe(duration.Seconds())
}

func RecordRetry(runID string) {
	retriesTotal.WithLabelValues(runID).Inc()
}

func SetActiveWorkers(runID string, active int) {
	activeWorkers.WithLabelValues(runID).Set(float64(active))
}

func RecordRun(
	runID string,
	result string,
	attempted int,
	passed int,
	failed int,
	failedAfterRetry int,
	duration time.Duration,
) {
	runResults.WithLabelValues(runID, result).Set(1)
	runAttempted.WithLabelValues(runID).Add(float64(attempted))
	runPassed.WithLabelValues(runID).Add(float64(passed))
	runFailed.WithLabelValues(runID).Add(float64(failed))
	runFailedAfterRetry.WithLabelValues(runID).Add(float64(failedAfterRetry))
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}

func isValidOutcome(outcome types.OutcomeKind) bool {
	return slices.Contains(validOutcomes, outcome)
}
