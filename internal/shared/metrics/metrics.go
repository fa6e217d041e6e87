package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	submissionStartedTotal   atomic.Uint64
	submissionCompletedTotal atomic.Uint64
	submissionFailedTotal    atomic.Uint64
	annotationFailedTotal    atomic.Uint64

	inferenceDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncSubmissionStarted increments the started counter.
func IncSubmissionStarted() {
	submissionStartedTotal.Add(1)
}

// IncSubmissionCompleted increments the completed counter.
func IncSubmissionCompleted() {
	submissionCompletedTotal.Add(1)
}

// IncSubmissionFailed increments the failed counter.
func IncSubmissionFailed() {
	submissionFailedTotal.Add(1)
}

// IncAnnotationFailed increments the annotation failure counter.
func IncAnnotationFailed() {
	annotationFailedTotal.Add(1)
}

// ObserveInferenceDurationMs records a detection round trip in milliseconds.
func ObserveInferenceDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	inferenceDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "submission_started_total", "Total image submissions started", submissionStartedTotal.Load())
	writeCounter(&buf, "submission_completed_total", "Total image submissions completed", submissionCompletedTotal.Load())
	writeCounter(&buf, "submission_failed_total", "Total image submissions failed", submissionFailedTotal.Load())
	writeCounter(&buf, "annotation_failed_total", "Total annotated-view render failures", annotationFailedTotal.Load())
	writeHistogram(&buf, "inference_duration_ms", "Detection service round trip in milliseconds", inferenceDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
