// Package mailer hands account emails to a delivery worker.
//
// The application never talks to an SMTP server itself. Messages are queued
// on a Redis list that an external worker drains; without Redis the log
// mailer records that a message would have been sent.
package mailer

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"sample_app/internal/feature/auth/domain/entity"
	"sample_app/internal/feature/auth/usecase"
)

const (
	KindActivation    = "account_activation"
	KindPasswordReset = "password_reset"
)

// Message is the JSON document pushed onto the outbox.
type Message struct {
	Kind     string    `json:"kind"`
	To       string    `json:"to"`
	Name     string    `json:"name"`
	Link     string    `json:"link"`
	QueuedAt time.Time `json:"queued_at"`
}

// Links builds the URLs embedded in account emails.
type Links struct {
	base string
}

func NewLinks(baseURL string) Links {
	return Links{base: strings.TrimRight(baseURL, "/")}
}

// Activation returns /account_activations/<token>/edit?email=<email>.
func (l Links) Activation(token, email string) string {
	return l.build("account_activations", token, email)
}

// PasswordReset returns /password_resets/<token>/edit?email=<email>.
func (l Links) PasswordReset(token, email string) string {
	return l.build("password_resets", token, email)
}

func (l Links) build(resource, token, email string) string {
	q := url.Values{"email": {email}}
	return l.base + "/" + resource + "/" + url.PathEscape(token) + "/edit?" + q.Encode()
}

// RedisOutbox queues messages with LPUSH; workers consume with BRPOP.
type RedisOutbox struct {
	client redis.Cmdable
	key    string
	links  Links
	now    func() time.Time
}

var _ usecase.Mailer = (*RedisOutbox)(nil)

func NewRedisOutbox(client redis.Cmdable, key string, links Links) *RedisOutbox {
	return &RedisOutbox{client: client, key: key, links: links, now: time.Now}
}

func (m *RedisOutbox) SendActivation(ctx context.Context, user *entity.User, token string) error {
	return m.push(ctx, Message{
		Kind: KindActivation,
		To:   user.Email,
		Name: user.Name,
		Link: m.links.Activation(token, user.Email),
	})
}

func (m *RedisOutbox) SendPasswordReset(ctx context.Context, user *entity.User, token string) error {
	return m.push(ctx, Message{
		Kind: KindPasswordReset,
		To:   user.Email,
		Name: user.Name,
		Link: m.links.PasswordReset(token, user.Email),
	})
}

func (m *RedisOutbox) push(ctx context.Context, msg Message) error {
	msg.QueuedAt = m.now().UTC()
	payload, err := json.Marshal(msg)
	if err != nil {
		return oops.Code("MAIL_ENQUEUE_FAILED").With("kind", msg.Kind).Wrapf(err, "marshal message")
	}
	if err := m.client.LPush(ctx, m.key, payload).Err(); err != nil {
		return oops.Code("MAIL_ENQUEUE_FAILED").With("kind", msg.Kind).With("key", m.key).Wrapf(err, "enqueue message")
	}
	return nil
}

// LogMailer only logs who would have been mailed. Tokens are never written.
type LogMailer struct {
	logger *slog.Logger
}

var _ usecase.Mailer = (*LogMailer)(nil)

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendActivation(ctx context.Context, user *entity.User, _ string) error {
	m.logger.InfoContext(ctx, "mail not delivered: no outbox configured",
		"kind", KindActivation, "user_id", user.ID, "to", user.Email)
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, user *entity.User, _ string) error {
	m.logger.InfoContext(ctx, "mail not delivered: no outbox configured",
		"kind", KindPasswordReset, "user_id", user.ID, "to", user.Email)
	return nil
}
