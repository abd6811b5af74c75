// Package queue is the durable at-least-once transport for trigger events
// and step work. Delivery counting, redelivery backoff, and dead-letter
// forwarding are carried in Kafka message headers so any number of
// consumer processes can share a group.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	headerReceiveCount = "bb-receive-count"
	headerRetryAt      = "bb-retry-at"
	headerOriginTopic  = "bb-origin-topic"
	headerLastError    = "bb-last-error"
	headerFirstReceive = "bb-first-receive"

	defaultMaxReceive = 3
)

// Delivery is one received message plus its transport metadata.
type Delivery struct {
	Key                   []byte
	Value                 []byte
	Topic                 string
	OriginTopic           string
	ReceiveCount          int
	SentTimestamp         time.Time
	FirstReceiveTimestamp time.Time
	LastError             string
}

type Handler func(context.Context, Delivery) error

type Queue struct {
	writer       *kafka.Writer
	retryWriter  *kafka.Writer
	dlqWriter    *kafka.Writer
	reader       *kafka.Reader
	retryReader  *kafka.Reader
	topic        string
	retryTopic   string
	dlqTopic     string
	maxReceive   int
	messageGroup sync.WaitGroup
}

func newWriter(brokers []string, clientID string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
		Transport: &kafka.Transport{
			ClientID: clientID,
		},
		RequiredAcks: kafka.RequireAll,
	}
}

// NewProducer builds a publish-only queue handle.
func NewProducer(brokers []string, clientID, topic string) *Queue {
	return &Queue{
		writer: newWriter(brokers, clientID),
		topic:  topic,
	}
}

// NewConsumer builds a consuming queue handle. retryTopic and dlqTopic may
// be empty, in which case handler failures surface to the caller.
func NewConsumer(brokers []string, clientID, groupID, topic, retryTopic, dlqTopic string, maxReceive int) *Queue {
	if maxReceive <= 0 {
		maxReceive = defaultMaxReceive
	}

	var retryReader *kafka.Reader
	if retryTopic != "" {
		retryReader = kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   retryTopic,
			Dialer: &kafka.Dialer{
				ClientID: clientID,
			},
		})
	}

	return &Queue{
		writer:      newWriter(brokers, clientID),
		retryWriter: newWriter(brokers, clientID),
		dlqWriter:   newWriter(brokers, clientID),
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
			Dialer: &kafka.Dialer{
				ClientID: clientID,
			},
		}),
		retryReader: retryReader,
		topic:       topic,
		retryTopic:  retryTopic,
		dlqTopic:    dlqTopic,
		maxReceive:  maxReceive,
	}
}

// Publish marshals payload as JSON and writes it to the queue's topic.
func (q *Queue) Publish(ctx context.Context, key string, payload interface{}) error {
	if q.writer == nil {
		return errors.New("queue writer is not configured")
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	message := kafka.Message{
		Topic: q.topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}
	return q.writer.WriteMessages(ctx, message)
}

// Consume pulls messages from the main and retry topics until ctx is
// cancelled. Handler failures redeliver via the retry topic with
// exponential backoff; once the receive count exceeds maxReceive the
// message is forwarded to the dead-letter topic instead.
func (q *Queue) Consume(ctx context.Context, handler Handler) error {
	if q.reader == nil {
		return errors.New("queue reader is not configured")
	}
	if handler == nil {
		return errors.New("queue handler is required")
	}

	messageCh := make(chan queuedMessage, 2)
	errCh := make(chan error, 2)

	q.messageGroup.Add(1)
	go q.consumeReader(ctx, q.reader, messageCh, errCh)

	if q.retryReader != nil && q.retryTopic != "" {
		q.messageGroup.Add(1)
		go q.consumeReader(ctx, q.retryReader, messageCh, errCh)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case msg := <-messageCh:
			if err := q.handleMessage(ctx, msg, handler); err != nil {
				return err
			}
		}
	}
}

type queuedMessage struct {
	reader  *kafka.Reader
	message kafka.Message
}

func (q *Queue) consumeReader(ctx context.Context, reader *kafka.Reader, messageCh chan<- queuedMessage, errCh chan<- error) {
	defer q.messageGroup.Done()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			select {
			case errCh <- err:
			case <-ctx.Done():
			}
			return
		}
		select {
		case messageCh <- queuedMessage{reader: reader, message: msg}:
		case <-ctx.Done():
			return
		}
	}
}

func (q *Queue) handleMessage(ctx context.Context, msg queuedMessage, handler Handler) error {
	if msg.message.Topic == q.retryTopic {
		if retryAt := headerTime(msg.message, headerRetryAt); !retryAt.IsZero() {
			delay := time.Until(retryAt)
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
		}
	}

	delivery := newDelivery(msg.message)
	if err := handler(ctx, delivery); err != nil {
		if handleErr := q.handleFailure(ctx, msg, delivery, err); handleErr != nil {
			return handleErr
		}
	} else if err := msg.reader.CommitMessages(ctx, msg.message); err != nil {
		return fmt.Errorf("commit offset: %w", err)
	}

	return nil
}

func newDelivery(message kafka.Message) Delivery {
	firstReceive := headerTime(message, headerFirstReceive)
	if firstReceive.IsZero() {
		firstReceive = message.Time
	}
	return Delivery{
		Key:                   message.Key,
		Value:                 message.Value,
		Topic:                 message.Topic,
		OriginTopic:           headerString(message, headerOriginTopic),
		ReceiveCount:          headerInt(message, headerReceiveCount) + 1,
		SentTimestamp:         message.Time,
		FirstReceiveTimestamp: firstReceive,
		LastError:             headerString(message, headerLastError),
	}
}

func (q *Queue) handleFailure(ctx context.Context, msg queuedMessage, delivery Delivery, handlerErr error) error {
	origin := delivery.OriginTopic
	if origin == "" {
		origin = msg.message.Topic
	}
	value := annotateRetry(msg.message.Value, handlerErr.Error(), delivery.ReceiveCount)

	if delivery.ReceiveCount < q.maxReceive && q.retryTopic != "" {
		retryAt := time.Now().Add(backoff(delivery.ReceiveCount))
		headers := replaceHeaders(msg.message.Headers,
			kafka.Header{Key: headerReceiveCount, Value: []byte(strconv.Itoa(delivery.ReceiveCount))},
			kafka.Header{Key: headerRetryAt, Value: []byte(retryAt.Format(time.RFC3339Nano))},
			kafka.Header{Key: headerOriginTopic, Value: []byte(origin)},
			kafka.Header{Key: headerLastError, Value: []byte(handlerErr.Error())},
			kafka.Header{Key: headerFirstReceive, Value: []byte(delivery.FirstReceiveTimestamp.Format(time.RFC3339Nano))},
		)
		if err := q.publishRaw(ctx, q.retryWriter, q.retryTopic, msg.message.Key, value, headers); err != nil {
			return err
		}
		if err := msg.reader.CommitMessages(ctx, msg.message); err != nil {
			return fmt.Errorf("commit offset: %w", err)
		}
		return nil
	}

	if q.dlqTopic != "" {
		headers := replaceHeaders(msg.message.Headers,
			kafka.Header{Key: headerReceiveCount, Value: []byte(strconv.Itoa(delivery.ReceiveCount))},
			kafka.Header{Key: headerOriginTopic, Value: []byte(origin)},
			kafka.Header{Key: headerLastError, Value: []byte(handlerErr.Error())},
			kafka.Header{Key: headerFirstReceive, Value: []byte(delivery.FirstReceiveTimestamp.Format(time.RFC3339Nano))},
		)
		if err := q.publishRaw(ctx, q.dlqWriter, q.dlqTopic, msg.message.Key, value, headers); err != nil {
			return err
		}
		if err := msg.reader.CommitMessages(ctx, msg.message); err != nil {
			return fmt.Errorf("commit offset: %w", err)
		}
		return nil
	}

	return handlerErr
}

func backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := 10 * math.Pow(2, float64(attempt-1))
	return time.Duration(delay) * time.Second
}

func headerString(message kafka.Message, key string) string {
	for _, header := range message.Headers {
		if header.Key == key {
			return string(header.Value)
		}
	}
	return ""
}

func headerInt(message kafka.Message, key string) int {
	value := headerString(message, key)
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}

func headerTime(message kafka.Message, key string) time.Time {
	value := headerString(message, key)
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// replaceHeaders overwrites any existing header with the same key so
// redelivery metadata does not accumulate duplicates.
func replaceHeaders(existing []kafka.Header, headers ...kafka.Header) []kafka.Header {
	replaced := make(map[string]struct{}, len(headers))
	for _, header := range headers {
		replaced[header.Key] = struct{}{}
	}

	merged := make([]kafka.Header, 0, len(existing)+len(headers))
	for _, header := range existing {
		if _, ok := replaced[header.Key]; ok {
			continue
		}
		merged = append(merged, header)
	}
	return append(merged, headers...)
}

func (q *Queue) publishRaw(ctx context.Context, writer *kafka.Writer, topic string, key, value []byte, headers []kafka.Header) error {
	if writer == nil {
		return errors.New("queue writer is not configured")
	}
	if topic == "" {
		return errors.New("queue topic is not configured")
	}

	message := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: headers,
		Time:    time.Now(),
	}
	return writer.WriteMessages(ctx, message)
}

func (q *Queue) Close() error {
	q.messageGroup.Wait()
	for _, writer := range []*kafka.Writer{q.writer, q.retryWriter, q.dlqWriter} {
		if writer != nil {
			if err := writer.Close(); err != nil {
				return err
			}
		}
	}
	for _, reader := range []*kafka.Reader{q.reader, q.retryReader} {
		if reader != nil {
			if err := reader.Close(); err != nil {
				return err
			}
		}
	}
	return nil
}
