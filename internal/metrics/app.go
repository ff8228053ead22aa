package metrics

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// AppMetrics holds all the application metrics
type AppMetrics struct {
	metric.Meter

	RegisteredIdentities metric.Int64UpDownCounter
	ConnectCalls         metric.Int64Counter
	RejectedConnections  metric.Int64Counter
	MatchRequests        metric.Int64Counter
	MatchesFound         metric.Int64Counter
	RelayedMessages      metric.Int64Counter
	UndeliveredMessages  metric.Int64Counter
	MalformedMessages    metric.Int64Counter
	PresenceBroadcasts   metric.Int64Counter
	DroppedFrames        metric.Int64Counter
	SessionDuration      metric.Float64Histogram
}

func NewAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	registeredIdentities, err := meter.Int64UpDownCounter("registered_identities_total")
	if err != nil {
		return nil, err
	}

	connectCalls, err := meter.Int64Counter("connect_calls_total")
	if err != nil {
		return nil, err
	}

	rejectedConnections, err := meter.Int64Counter("rejected_connections_total")
	if err != nil {
		return nil, err
	}

	matchRequests, err := meter.Int64Counter("match_requests_total")
	if err != nil {
		return nil, err
	}

	matchesFound, err := meter.Int64Counter("matches_found_total")
	if err != nil {
		return nil, err
	}

	relayedMessages, err := meter.Int64Counter("relayed_messages_total")
	if err != nil {
		return nil, err
	}

	undeliveredMessages, err := meter.Int64Counter("undelivered_messages_total")
	if err != nil {
		return nil, err
	}

	malformedMessages, err := meter.Int64Counter("malformed_messages_total")
	if err != nil {
		return nil, err
	}

	presenceBroadcasts, err := meter.Int64Counter("presence_broadcasts_total")
	if err != nil {
		return nil, err
	}

	droppedFrames, err := meter.Int64Counter("dropped_frames_total")
	if err != nil {
		return nil, err
	}

	sessionDuration, err := meter.Float64Histogram("connection_duration_seconds",
		metric.WithExplicitBucketBoundaries(getConnectionBucketBoundaries()...))
	if err != nil {
		return nil, err
	}

	return &AppMetrics{
		Meter:                meter,
		RegisteredIdentities: registeredIdentities,
		ConnectCalls:         connectCalls,
		RejectedConnections:  rejectedConnections,
		MatchRequests:        matchRequests,
		MatchesFound:         matchesFound,
		RelayedMessages:      relayedMessages,
		UndeliveredMessages:  undeliveredMessages,
		MalformedMessages:    malformedMessages,
		PresenceBroadcasts:   presenceBroadcasts,
		DroppedFrames:        droppedFrames,
		SessionDuration:      sessionDuration,
	}, nil
}

// NewNoopAppMetrics records nothing. Used when metrics are disabled.
func NewNoopAppMetrics() (*AppMetrics, error) {
	return NewAppMetrics(noop.NewMeterProvider().Meter("noop"))
}

func getConnectionBucketBoundaries() []float64 {
	return []float64{
		1,
		5,
		15,
		30,
		60,
		300,
		900,
		1800,
		3600,
	}
}
