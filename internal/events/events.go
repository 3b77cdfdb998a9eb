// Package events publishes audit events to NATS JetStream. Publishing is
// best-effort: the pipeline never fails because the event stream is down,
// and a nil Publisher silently drops everything.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

const (
	// StreamName is the audit stream.
	StreamName = "DOCREADER"

	// SubjectPrefix is the prefix for all audit subjects.
	SubjectPrefix = "docreader"
)

// Config holds NATS connection configuration.
type Config struct {
	URL   string
	Token string
}

// DocumentIngested records a completed or failed ingest.
type DocumentIngested struct {
	DocumentID string    `json:"documentId"`
	Filename   string    `json:"filename"`
	Chunks     int       `json:"chunks"`
	Status     string    `json:"status"`
	At         time.Time `json:"at"`
}

// AnswerGenerated records one answered question.
type AnswerGenerated struct {
	ConversationID string    `json:"conversationId"`
	QuestionType   string    `json:"questionType"`
	OutOfContext   bool      `json:"outOfContext"`
	At             time.Time `json:"at"`
}

// Publisher writes audit events to JetStream.
type Publisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *zap.Logger
}

// Connect establishes the NATS connection and ensures the audit stream
// exists.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &Publisher{conn: nc, js: js, logger: logger}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

func (p *Publisher) ensureStream(ctx context.Context) error {
	if _, err := p.js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Document ingest and question answering audit events",
	})
	if err != nil {
		return fmt.Errorf("create stream: %w", err)
	}
	return nil
}

// DocumentIngested publishes an ingest event.
func (p *Publisher) DocumentIngested(ctx context.Context, event DocumentIngested) {
	p.publish(ctx, fmt.Sprintf("%s.ingest.%s", SubjectPrefix, event.Status), event)
}

// AnswerGenerated publishes an answer event.
func (p *Publisher) AnswerGenerated(ctx context.Context, event AnswerGenerated) {
	p.publish(ctx, fmt.Sprintf("%s.answer.%s", SubjectPrefix, event.QuestionType), event)
}

func (p *Publisher) publish(ctx context.Context, subject string, event any) {
	if p == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("marshal audit event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		p.logger.Warn("publish audit event", zap.String("subject", subject), zap.Error(err))
	}
}

// Close drains the NATS connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}
