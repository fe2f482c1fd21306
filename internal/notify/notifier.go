// Package notify sends the one-per-new-order WhatsApp message and keeps the
// per-day dedup marker plus the append-only attempt log.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultAPIBase is the Graph API root for the WhatsApp Cloud API.
const DefaultAPIBase = "https://graph.facebook.com/v17.0"

// Outcome classifies one NotifyIfNew call.
type Outcome string

const (
	OutcomeSent    Outcome = "SENT"
	OutcomeSkipped Outcome = "SKIPPED"
	OutcomeFailed  Outcome = "FAILED"
)

// Attempt is one audit-log entry.
type Attempt struct {
	At        time.Time
	AttemptID string
	OrderID   string
	Message   string
	Sent      bool
}

// DedupStore is the slice of the lifecycle store the notifier needs.
type DedupStore interface {
	WasNotifiedToday(ctx context.Context, orderID string, today time.Time) (bool, error)
	RecordNotification(ctx context.Context, orderID string, at time.Time) error
}

// Config holds the messaging-provider credentials and targets.
type Config struct {
	APIBase     string // defaults to DefaultAPIBase
	Token       string // bearer credential
	PhoneID     string // sending phone number id
	Recipient   string // fixed destination
	SendTimeout time.Duration
}

// Notifier sends new-order alerts at most once per order per day.
type Notifier struct {
	cfg     Config
	client  *http.Client
	records DedupStore
	log     *AttemptLog
	logger  *zap.Logger
	nowFunc func() time.Time
}

// New returns a Notifier. attemptLog may not be nil; every attempt is logged
// whether or not the send succeeds.
func New(cfg Config, records DedupStore, attemptLog *AttemptLog, logger *zap.Logger) *Notifier {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Notifier{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.SendTimeout},
		records: records,
		log:     attemptLog,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// NotifyIfNew sends the new-order message for orderID unless one already
// went out today. The dedup marker is only written after a confirmed send,
// so a failed attempt stays eligible for retry.
func (n *Notifier) NotifyIfNew(ctx context.Context, orderID string) (Outcome, error) {
	now := n.nowFunc()

	already, err := n.records.WasNotifiedToday(ctx, orderID, now)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("dedup check: %w", err)
	}
	if already {
		n.logger.Debug("notification already sent today", zap.String("order_id", orderID))
		return OutcomeSkipped, nil
	}

	attemptID := NewAttemptID()
	message := fmt.Sprintf("Nuevo pedido detectado: *%s*\nPor favor imprimir la factura correspondiente.", orderID)

	sendErr := n.send(ctx, message)
	if logErr := n.log.Append(Attempt{
		At:        now,
		AttemptID: attemptID,
		OrderID:   orderID,
		Message:   message,
		Sent:      sendErr == nil,
	}); logErr != nil {
		n.logger.Error("attempt log write failed", zap.String("order_id", orderID), zap.Error(logErr))
	}

	if sendErr != nil {
		n.logger.Warn("notification send failed",
			zap.String("order_id", orderID),
			zap.String("attempt_id", attemptID),
			zap.Error(sendErr))
		return OutcomeFailed, sendErr
	}

	if err := n.records.RecordNotification(ctx, orderID, now); err != nil {
		// The message went out; a lost marker only risks a duplicate, which
		// beats silently dropping the audit trail of the send.
		n.logger.Error("dedup marker write failed", zap.String("order_id", orderID), zap.Error(err))
		return OutcomeSent, fmt.Errorf("record notification: %w", err)
	}

	n.logger.Info("notification sent",
		zap.String("order_id", orderID),
		zap.String("attempt_id", attemptID))
	return OutcomeSent, nil
}

type textMessage struct {
	MessagingProduct string      `json:"messaging_product"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             messageBody `json:"text"`
}

type messageBody struct {
	Body string `json:"body"`
}

func (n *Notifier) send(ctx context.Context, body string) error {
	payload, err := json.Marshal(textMessage{
		MessagingProduct: "whatsapp",
		To:               n.cfg.Recipient,
		Type:             "text",
		Text:             messageBody{Body: body},
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", n.cfg.APIBase, n.cfg.PhoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send message: status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
