package deliver

import (
	"context"
	"fmt"
	"net/http"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// defaultKeyPrefix namespaces broker lists in Redis.
const defaultKeyPrefix = "taskqueue:push:"

// Envelope is the msgpack record a Broker pushes for each delivery. It
// carries everything an out-of-process worker needs to perform the
// webhook call.
type Envelope struct {
	Queue      string              `msgpack:"queue"`
	Name       string              `msgpack:"name"`
	Method     string              `msgpack:"method"`
	URL        string              `msgpack:"url"`
	Header     map[string][]string `msgpack:"header"`
	Body       []byte              `msgpack:"body"`
	RetryCount int                 `msgpack:"retry_count"`
	FirstTryMs int64               `msgpack:"first_try_ms"`
	ETAUsec    int64               `msgpack:"eta_usec"`
}

// Broker hands push tasks off to per-queue Redis lists instead of calling
// the webhook itself. A delivery succeeds once the envelope is stored.
type Broker struct {
	client goredis.UniversalClient
	prefix string
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithKeyPrefix sets the prefix of the per-queue list keys.
func WithKeyPrefix(prefix string) BrokerOption {
	return func(b *Broker) { b.prefix = prefix }
}

// NewBroker creates a Broker on an existing Redis client.
func NewBroker(client goredis.UniversalClient, opts ...BrokerOption) *Broker {
	b := &Broker{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Key returns the Redis list holding hand-offs for a queue.
func (b *Broker) Key(queue string) string { return b.prefix + queue }

// Deliver encodes req and appends it to the queue's list.
func (b *Broker) Deliver(ctx context.Context, req *Request) error {
	env := Envelope{
		Queue:      req.Queue,
		Name:       req.Task,
		Method:     req.Method,
		URL:        req.URL,
		Header:     req.Header,
		Body:       req.Body,
		RetryCount: req.RetryCount,
		ETAUsec:    req.ETA.UnixMicro(),
	}
	if !req.FirstTriedAt.IsZero() {
		env.FirstTryMs = req.FirstTriedAt.UnixMilli()
	}
	data, err := msgpack.Marshal(&env)
	if err != nil {
		return fmt.Errorf("deliver/broker: encode task %s: %w", req.Task, err)
	}
	if err := b.client.LPush(ctx, b.Key(req.Queue), data).Err(); err != nil {
		return fmt.Errorf("deliver/broker: push task %s: %w", req.Task, err)
	}
	return nil
}

// DecodeEnvelope decodes an envelope read from a broker list.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("deliver/broker: decode envelope: %w", err)
	}
	return &env, nil
}

// HTTPHeader returns the envelope headers as an http.Header.
func (e *Envelope) HTTPHeader() http.Header { return http.Header(e.Header) }
