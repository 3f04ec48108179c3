package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/eduzen/cascadesign"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Process lifecycle metrics
	ProcessesCreatedTotal   metric.Int64Counter
	ProcessesCompletedTotal metric.Int64Counter
	ProcessesCancelledTotal metric.Int64Counter
	ProcessesExpiredTotal   metric.Int64Counter

	// Signature metrics
	SignaturesAcceptedTotal metric.Int64Counter
	SignatureConflictsTotal metric.Int64Counter
	SignatureRejectedTotal  metric.Int64Counter
	SealDuration            metric.Float64Histogram

	// Notification metrics
	NotificationsSentTotal   metric.Int64Counter
	NotificationsFailedTotal metric.Int64Counter
	OutboxClaimedTotal       metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.ProcessesCreatedTotal, _ = meter.Int64Counter(
		"cascadesign.processes.created.total",
		metric.WithDescription("Total number of signing processes created"),
		metric.WithUnit("{process}"),
	)

	m.ProcessesCompletedTotal, _ = meter.Int64Counter(
		"cascadesign.processes.completed.total",
		metric.WithDescription("Total number of signing processes completed"),
		metric.WithUnit("{process}"),
	)

	m.ProcessesCancelledTotal, _ = meter.Int64Counter(
		"cascadesign.processes.cancelled.total",
		metric.WithDescription("Total number of signing processes cancelled"),
		metric.WithUnit("{process}"),
	)

	m.ProcessesExpiredTotal, _ = meter.Int64Counter(
		"cascadesign.processes.expired.total",
		metric.WithDescription("Total number of signing processes expired"),
		metric.WithUnit("{process}"),
	)

	m.SignaturesAcceptedTotal, _ = meter.Int64Counter(
		"cascadesign.signatures.accepted.total",
		metric.WithDescription("Total number of signatures accepted"),
		metric.WithUnit("{signature}"),
	)

	m.SignatureConflictsTotal, _ = meter.Int64Counter(
		"cascadesign.signatures.conflicts.total",
		metric.WithDescription("Total number of submissions that lost the position race"),
		metric.WithUnit("{signature}"),
	)

	m.SignatureRejectedTotal, _ = meter.Int64Counter(
		"cascadesign.signatures.rejected.total",
		metric.WithDescription("Total number of submissions rejected before sealing"),
		metric.WithUnit("{signature}"),
	)

	m.SealDuration, _ = meter.Float64Histogram(
		"cascadesign.seal.duration",
		metric.WithDescription("Duration of PDF sealing"),
		metric.WithUnit("ms"),
	)

	m.NotificationsSentTotal, _ = meter.Int64Counter(
		"cascadesign.notifications.sent.total",
		metric.WithDescription("Total number of emails delivered"),
		metric.WithUnit("{email}"),
	)

	m.NotificationsFailedTotal, _ = meter.Int64Counter(
		"cascadesign.notifications.failed.total",
		metric.WithDescription("Total number of emails that failed to deliver"),
		metric.WithUnit("{email}"),
	)

	m.OutboxClaimedTotal, _ = meter.Int64Counter(
		"cascadesign.outbox.claimed.total",
		metric.WithDescription("Total number of outbox intents claimed for delivery"),
		metric.WithUnit("{intent}"),
	)

	return m
}
