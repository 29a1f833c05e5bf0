package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/ride-progress/internal/core/domain"
	"github.com/kirillkom/ride-progress/internal/infrastructure/resilience"
)

const publishOperation = "publish snapshot event"

var (
	// Errors a retry cannot fix: the event or the bus setup is wrong.
	permanentPublishErrors = []error{
		nats.ErrMaxPayload,
		nats.ErrBadSubject,
		nats.ErrInvalidConnection,
	}
	// Errors the client recovers from once the server is reachable again.
	transientPublishErrors = []error{
		nats.ErrNoServers,
		nats.ErrTimeout,
		nats.ErrDisconnected,
		nats.ErrConnectionClosed,
		nats.ErrConnectionDraining,
	}
)

// classifyPublishError decides whether a failed snapshot event publish is
// retried and whether it counts against the breaker.
func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case matchesAny(err, permanentPublishErrors):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case resilience.IsCircuitOpen(err), matchesAny(err, transientPublishErrors):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
}

// publishError maps a publish failure to a domain error kind. Saves never fail
// because of it; callers log the result.
func publishError(event domain.SnapshotEvent, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrInvalidInput) {
		return err
	}
	if matchesAny(err, permanentPublishErrors) {
		return domain.WrapError(domain.ErrInvalidInput, publishOperation+" "+event.SnapshotID, err)
	}
	if class := classifyPublishError(err); class.Retryable {
		return domain.WrapError(domain.ErrTemporary, publishOperation+" "+event.SnapshotID, err)
	}
	return err
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
