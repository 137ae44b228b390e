package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/erp/storefront/internal/domain/shared"
)

// MeterName is the meter used for storefront metrics
const MeterName = "storefront"

// Outcome attribute values
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// ErrMeterNil is returned when no meter is supplied
var ErrMeterNil = errors.New("telemetry: meter is nil")

// StorefrontMetrics records order, login and backend activity.
// A nil *StorefrontMetrics is valid and records nothing.
type StorefrontMetrics struct {
	submissions     *Counter
	orderAmount     *Counter
	logins          *Counter
	backendDuration *Histogram
	workspaces      *Gauge
}

// NewStorefrontMetrics creates the storefront instruments on meter
func NewStorefrontMetrics(meter metric.Meter) (*StorefrontMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		m   StorefrontMetrics
		err error
	)
	if m.submissions, err = NewCounter(meter,
		"storefront_order_submission_total",
		"Order submission attempts by outcome",
		"{submissions}",
	); err != nil {
		return nil, err
	}
	if m.orderAmount, err = NewCounter(meter,
		"storefront_order_amount_total",
		"Total amount of submitted orders in cents",
		"{cents}",
	); err != nil {
		return nil, err
	}
	if m.logins, err = NewCounter(meter,
		"storefront_login_total",
		"Identity resolutions by strategy and outcome",
		"{logins}",
	); err != nil {
		return nil, err
	}
	if m.backendDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "storefront_backend_request_duration_seconds",
		Description: "Latency of calls to the order backend",
		Unit:        "s",
		Boundaries:  BackendDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.workspaces, err = NewGauge(meter,
		"storefront_workspaces_active",
		"Workspaces currently held in memory",
		"{workspaces}",
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordSubmission records one submit attempt. amount is only counted on success.
func (m *StorefrontMetrics) RecordSubmission(ctx context.Context, err error, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.submissions.Inc(ctx, outcomeAttrs(err)...)
	if err == nil {
		m.orderAmount.Add(ctx, amount.Shift(2).Round(0).IntPart())
	}
}

// RecordLogin records one identity resolution through a strategy
func (m *StorefrontMetrics) RecordLogin(ctx context.Context, strategy string, err error) {
	if m == nil {
		return
	}
	m.logins.Inc(ctx, append(outcomeAttrs(err), AttrStrategy.String(strategy))...)
}

// RecordBackendCall records the latency of one backend action
func (m *StorefrontMetrics) RecordBackendCall(ctx context.Context, action string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.backendDuration.RecordDuration(ctx, d, append(outcomeAttrs(err), AttrBackendAction.String(action))...)
}

// RecordWorkspaces records how many workspaces are live
func (m *StorefrontMetrics) RecordWorkspaces(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.workspaces.Record(ctx, int64(n))
}

func outcomeAttrs(err error) []attribute.KeyValue {
	if err == nil {
		return []attribute.KeyValue{AttrOutcome.String(OutcomeSuccess)}
	}
	code := "INTERNAL_ERROR"
	var de *shared.DomainError
	if errors.As(err, &de) {
		code = de.Code
	}
	return []attribute.KeyValue{AttrOutcome.String(OutcomeError), AttrErrorCode.String(code)}
}
