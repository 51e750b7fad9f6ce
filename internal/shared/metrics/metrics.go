package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	uploadsNegotiatedTotal       atomic.Uint64
	processingStartedTotal       atomic.Uint64
	processingCompletedTotal     atomic.Uint64
	processingNeedsReviewTotal   atomic.Uint64
	processingFailedTotal        atomic.Uint64
	correctionsSubmittedTotal    atomic.Uint64
	aiRequestsTotal              atomic.Uint64
	aiRequestFailuresTotal       atomic.Uint64
	policyJobsCompletedTotal     atomic.Uint64
	policyJobsFailedTotal        atomic.Uint64
	queueJobsReceivedTotal       atomic.Uint64
	queueJobsCompletedTotal      atomic.Uint64
	queueJobsFailedTotal         atomic.Uint64
	queueJobsDroppedTotal        atomic.Uint64

	processingDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncUploadsNegotiated increments the upload negotiation counter.
func IncUploadsNegotiated() { uploadsNegotiatedTotal.Add(1) }

// IncProcessingStarted increments the processing started counter.
func IncProcessingStarted() { processingStartedTotal.Add(1) }

// IncProcessingCompleted increments the processing completed counter.
func IncProcessingCompleted() { processingCompletedTotal.Add(1) }

// IncProcessingNeedsReview increments the needs-verification counter.
func IncProcessingNeedsReview() { processingNeedsReviewTotal.Add(1) }

// IncProcessingFailed increments the processing failed counter.
func IncProcessingFailed() { processingFailedTotal.Add(1) }

// IncCorrectionsSubmitted increments the corrections counter.
func IncCorrectionsSubmitted() { correctionsSubmittedTotal.Add(1) }

// IncAIRequests increments the AI request counter.
func IncAIRequests() { aiRequestsTotal.Add(1) }

// IncAIRequestFailures increments the AI request failure counter.
func IncAIRequestFailures() { aiRequestFailuresTotal.Add(1) }

// IncPolicyJobsCompleted increments the policy refresh success counter.
func IncPolicyJobsCompleted() { policyJobsCompletedTotal.Add(1) }

// IncPolicyJobsFailed increments the policy refresh failure counter.
func IncPolicyJobsFailed() { policyJobsFailedTotal.Add(1) }

// IncQueueJobsReceived increments the queue received counter.
func IncQueueJobsReceived() { queueJobsReceivedTotal.Add(1) }

// IncQueueJobsCompleted increments the queue completed counter.
func IncQueueJobsCompleted() { queueJobsCompletedTotal.Add(1) }

// IncQueueJobsFailed increments the queue failed counter.
func IncQueueJobsFailed() { queueJobsFailedTotal.Add(1) }

// IncQueueJobsDropped increments the counter for unrecoverable queue payloads.
func IncQueueJobsDropped() { queueJobsDroppedTotal.Add(1) }

// ObserveProcessingDurationMs records a document processing duration in milliseconds.
func ObserveProcessingDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	processingDuration.Observe(value)
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
	writeCounter(&buf, "uploads_negotiated_total", "Total upload negotiations granted", uploadsNegotiatedTotal.Load())
	writeCounter(&buf, "processing_started_total", "Total document processing runs started", processingStartedTotal.Load())
	writeCounter(&buf, "processing_completed_total", "Total documents that processed cleanly", processingCompletedTotal.Load())
	writeCounter(&buf, "processing_needs_review_total", "Total documents routed to verification", processingNeedsReviewTotal.Load())
	writeCounter(&buf, "processing_failed_total", "Total document processing failures", processingFailedTotal.Load())
	writeCounter(&buf, "corrections_submitted_total", "Total verified-data submissions", correctionsSubmittedTotal.Load())
	writeCounter(&buf, "ai_requests_total", "Total AI generation requests", aiRequestsTotal.Load())
	writeCounter(&buf, "ai_request_failures_total", "Total AI generation failures", aiRequestFailuresTotal.Load())
	writeCounter(&buf, "policy_jobs_completed_total", "Total policy refresh runs completed", policyJobsCompletedTotal.Load())
	writeCounter(&buf, "policy_jobs_failed_total", "Total policy refresh runs failed", policyJobsFailedTotal.Load())
	writeCounter(&buf, "queue_jobs_received_total", "Total queue messages received", queueJobsReceivedTotal.Load())
	writeCounter(&buf, "queue_jobs_completed_total", "Total queue messages processed", queueJobsCompletedTotal.Load())
	writeCounter(&buf, "queue_jobs_failed_total", "Total queue messages failed", queueJobsFailedTotal.Load())
	writeCounter(&buf, "queue_jobs_dropped_total", "Total queue messages dropped as unrecoverable", queueJobsDroppedTotal.Load())
	writeHistogram(&buf, "processing_duration_ms", "Document processing duration in milliseconds", processingDuration.Snapshot())
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
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
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

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
