// Package gmail turns emails matching a search query into expense inputs. Each
// message's subject and body are submitted as one text input for a fixed user;
// messages are marked read once they have been handled. The user holds at most one
// staged expense, so a scan stops at the first message that leaves one pending and
// the rest stay unread until it is confirmed or cancelled.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/ginasoft/BotGastos/pkg/api"
	"github.com/ginasoft/BotGastos/pkg/engine"
)

// DefaultInterval is the time between two mailbox scans.
const DefaultInterval = time.Minute

// Submitter receives the inputs read from the mailbox.
type Submitter interface {
	Submit(ctx context.Context, in api.RawInput) (engine.Reply, error)
	Pending(user api.UserID) (api.PendingTransaction, bool)
}

// Config holds configuration for the Gmail input.
type Config struct {
	// Query selects the messages to read, e.g. "label:gastos is:unread".
	Query string
	// User and UserName identify who the mailbox belongs to.
	User     api.UserID
	UserName string
	// Interval between mailbox scans. Defaults to DefaultInterval.
	Interval time.Duration
	// ClientOptions are appended after the HTTP client option.
	ClientOptions []option.ClientOption
}

// Reader polls Gmail and submits every matching message.
type Reader struct {
	client    *gmail.Service
	submitter Submitter
	cfg       Config
	logger    *slog.Logger
}

// New creates a new Gmail reader.
func New(ctx context.Context, httpClient *http.Client, submitter Submitter, cfg Config, logger *slog.Logger) (*Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Query == "" {
		return nil, fmt.Errorf("%w: gmail query is required", api.ErrInvalidConfig)
	}
	if cfg.User == 0 {
		return nil, fmt.Errorf("%w: gmail user id is required", api.ErrInvalidConfig)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, cfg.ClientOptions...)
	client, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}

	return &Reader{
		client:    client,
		submitter: submitter,
		cfg:       cfg,
		logger:    logger.With("component", "gmail_input"),
	}, nil
}

// Run scans the mailbox immediately and then every interval until ctx is canceled.
func (r *Reader) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info("gmail input started", "query", r.cfg.Query, "interval", r.cfg.Interval)
	r.Poll(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("gmail input stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			r.Poll(ctx)
		}
	}
}

// Poll handles the messages currently matching the query, in listing order, until
// one of them is staged. It returns how many were submitted.
func (r *Reader) Poll(ctx context.Context) int {
	resp, err := r.client.Users.Messages.List("me").Q(r.cfg.Query).Context(ctx).Do()
	if err != nil {
		r.logger.Error("failed to list messages", "error", err)
		return 0
	}

	r.logger.Debug("found messages", "count", len(resp.Messages))

	submitted := 0
	for i, msg := range resp.Messages {
		if _, busy := r.submitter.Pending(r.cfg.User); busy {
			r.logger.Info("expense awaiting confirmation, deferring messages",
				"user", r.cfg.User, "deferred", len(resp.Messages)-i)
			break
		}
		if err := r.processMessage(ctx, msg.Id); err != nil {
			r.logger.Error("failed to process message", "message_id", msg.Id, "error", err)
			continue
		}
		submitted++
	}
	return submitted
}

func (r *Reader) processMessage(ctx context.Context, msgID string) error {
	msg, err := r.client.Users.Messages.Get("me", msgID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("getting message: %w", err)
	}

	text := MessageText(msg)
	if text == "" {
		r.logger.Warn("empty message", "message_id", msgID)
		r.markAsRead(ctx, msgID)
		return nil
	}

	reply, err := r.submitter.Submit(ctx, api.RawInput{
		Text:      text,
		Channel:   api.ChannelText,
		User:      r.cfg.User,
		UserName:  r.cfg.UserName,
		Timestamp: time.UnixMilli(msg.InternalDate),
	})
	if err != nil {
		// Left unread so the next scan retries it.
		return fmt.Errorf("submitting message: %w", err)
	}

	r.logger.Info("email submitted", "message_id", msgID, "reply", reply.Kind)
	r.markAsRead(ctx, msgID)
	return nil
}

// markAsRead marks a message as read in Gmail.
func (r *Reader) markAsRead(ctx context.Context, msgID string) {
	_, err := r.client.Users.Messages.Modify("me", msgID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		r.logger.Warn("failed to mark message as read", "message_id", msgID, "error", err)
	} else {
		r.logger.Debug("marked message as read", "message_id", msgID)
	}
}

var (
	tagPattern   = regexp.MustCompile(`(?s)<[^>]*>`)
	blockPattern = regexp.MustCompile(`(?is)<(br|/p|/div|/tr|/li)[^>]*>`)
	blankLines   = regexp.MustCompile(`\n\s*\n+`)
)

// MessageText returns the subject followed by the message body. A plain-text part
// is preferred; HTML is reduced to its text with one line per block element.
func MessageText(msg *gmail.Message) string {
	if msg.Payload == nil {
		return ""
	}

	var subject string
	for _, header := range msg.Payload.Headers {
		if strings.EqualFold(header.Name, "Subject") {
			subject = strings.TrimSpace(header.Value)
			break
		}
	}

	body := findBody(msg.Payload, "text/plain")
	if body == "" {
		if h := findBody(msg.Payload, "text/html"); h != "" {
			body = htmlToText(h)
		}
	}
	if body == "" && msg.Payload.Body != nil {
		body = decode(msg.Payload.Body.Data)
	}

	return strings.TrimSpace(strings.Join([]string{subject, strings.TrimSpace(body)}, "\n"))
}

func findBody(part *gmail.MessagePart, mimeType string) string {
	if part.MimeType == mimeType && part.Body != nil {
		if s := decode(part.Body.Data); s != "" {
			return s
		}
	}
	for _, child := range part.Parts {
		if s := findBody(child, mimeType); s != "" {
			return s
		}
	}
	return ""
}

func decode(data string) string {
	if data == "" {
		return ""
	}
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return strings.ReplaceAll(string(b), "\r\n", "\n")
}

func htmlToText(s string) string {
	s = blockPattern.ReplaceAllString(s, "\n")
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n"))
}
