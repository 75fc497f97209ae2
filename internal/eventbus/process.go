package eventbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ghgadelivery/internal/logging"
	"github.com/sethvargo/go-retry"
)

// RetryPolicy controls what happens when a handler fails.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64
	// InitialBackoff is the first wait; each further wait doubles.
	InitialBackoff time.Duration
	// DeadLetterEnabled routes exhausted events to DeadLetterTopic.
	// When false, exhaustion is fatal to the consumer.
	DeadLetterEnabled bool
	DeadLetterTopic   string
}

// DeadLetter is the payload published to the dead-letter topic.
type DeadLetter struct {
	OriginalTopic string `json:"original_topic"`
	OriginalID    string `json:"original_id"`
	Type          string `json:"type"`
	Key           string `json:"key"`
	Payload       string `json:"payload"`
	Error         string `json:"error"`
}

// Processor runs handlers under a RetryPolicy.
type Processor struct {
	policy    RetryPolicy
	publisher Publisher
	logger    logging.Logger
}

func NewProcessor(policy RetryPolicy, publisher Publisher, logger logging.Logger) *Processor {
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = time.Second
	}
	return &Processor{policy: policy, publisher: publisher, logger: logger.With("module", "event_processor")}
}

// Process applies h to ev, retrying with doubling backoff. It returns nil
// when the event can be acknowledged: handled, or parked in the dead-letter
// topic. A non-nil error means the event must stay unacknowledged.
func (p *Processor) Process(ctx context.Context, ev Event, h Handler) error {
	b := retry.WithMaxRetries(p.policy.MaxRetries, retry.NewExponential(p.policy.InitialBackoff))

	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := h(ctx, ev); err != nil {
			p.logger.Warn(ctx, "event handler failed", "topic", ev.Topic, "type", ev.Type, "key", ev.Key, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if !p.policy.DeadLetterEnabled {
		p.logger.Error(ctx, "event retries exhausted, dead-lettering disabled", "topic", ev.Topic, "id", ev.ID, "error", err)
		return fmt.Errorf("%w: %s %s: %v", ErrRetriesExhausted, ev.Topic, ev.ID, err)
	}

	dl := DeadLetter{
		OriginalTopic: ev.Topic,
		OriginalID:    ev.ID,
		Type:          ev.Type,
		Key:           ev.Key,
		Payload:       string(ev.Payload),
		Error:         err.Error(),
	}
	if pubErr := p.publisher.Publish(ctx, p.policy.DeadLetterTopic, ev.Type, ev.Key, dl); pubErr != nil {
		return errors.Join(err, fmt.Errorf("dead-letter publish: %w", pubErr))
	}
	p.logger.Warn(ctx, "event dead-lettered", "topic", ev.Topic, "id", ev.ID, "dlq", p.policy.DeadLetterTopic)
	return nil
}
