/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package webhooks notifies external endpoints of scheduling outcomes.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/events"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/models"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/telemetry"
)

// Delivered events.
var deliveredEvents = []events.EventType{
	events.EventCampaignScheduled,
	events.EventScheduleFailed,
	events.EventExportPublished,
}

// EventTest is sent by TestWebhook.
const EventTest = "webhook.test"

// ErrDeliveryFailed wraps non-2xx responses and transport errors.
var ErrDeliveryFailed = errors.New("webhook delivery failed")

// WebhookPayload is the body POSTed to webhook endpoints.
type WebhookPayload struct {
	Event      string         `json:"event"`
	Timestamp  time.Time      `json:"timestamp"`
	CampaignID string         `json:"campaign_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Service handles webhook delivery.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
	client *http.Client
	wg     sync.WaitGroup
}

// NewService creates a new webhook service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "webhooks").Logger(),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type received struct {
	event   events.EventType
	payload events.Payload
}

// Start listens for scheduling outcomes and fires matching webhooks. It blocks
// until ctx is done, then waits for in-flight deliveries.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().Msg("webhook service starting")

	merged := make(chan received, 64)
	subs := make(map[events.EventType]events.Subscriber, len(deliveredEvents))
	for _, eventType := range deliveredEvents {
		sub := s.bus.Subscribe(eventType)
		subs[eventType] = sub
		go func(eventType events.EventType, sub events.Subscriber) {
			for {
				select {
				case <-ctx.Done():
					return
				case payload := <-sub:
					select {
					case merged <- received{event: eventType, payload: payload}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(eventType, sub)
	}
	defer func() {
		for eventType, sub := range subs {
			s.bus.Unsubscribe(eventType, sub)
		}
		s.wg.Wait()
	}()

	s.logger.Info().Msg("webhook service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("webhook service stopping")
			return
		case r := <-merged:
			// Only the node that produced the event delivers it.
			if r.payload.Relayed() {
				continue
			}
			s.fireWebhooks(ctx, string(r.event), r.payload)
		}
	}
}

// fireWebhooks sends the event to every active target subscribed to it.
func (s *Service) fireWebhooks(ctx context.Context, eventType string, payload events.Payload) {
	campaignID, _ := payload["campaign_id"].(string)

	query := s.db.WithContext(ctx).Where("active = ?", true)
	if campaignID != "" {
		query = query.Where("(campaign_id IS NULL OR campaign_id = ?)", campaignID)
	} else {
		query = query.Where("campaign_id IS NULL")
	}

	var targets []models.WebhookTarget
	if err := query.Find(&targets).Error; err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to fetch webhooks")
		return
	}

	body := WebhookPayload{
		Event:      eventType,
		Timestamp:  time.Now().UTC(),
		CampaignID: campaignID,
		Data:       make(map[string]any, len(payload)),
	}
	for k, v := range payload {
		if k == "campaign_id" || k == events.RelayedFromKey {
			continue
		}
		body.Data[k] = v
	}

	for _, target := range targets {
		if !target.Handles(eventType) {
			continue
		}
		s.wg.Add(1)
		go func(target models.WebhookTarget) {
			defer s.wg.Done()
			_ = s.deliver(context.WithoutCancel(ctx), target, body)
		}(target)
	}
}

// deliver POSTs body to the target and records the attempt.
func (s *Service) deliver(ctx context.Context, target models.WebhookTarget, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("webhook", target.ID).Msg("failed to marshal webhook payload")
		return err
	}

	started := time.Now()
	status, err := s.post(ctx, target, payload.Event, body)
	elapsed := time.Since(started)

	errMsg := ""
	result := "ok"
	if err != nil {
		errMsg = err.Error()
		result = "error"
		s.logger.Warn().Err(err).
			Str("webhook", target.ID).
			Str("url", target.URL).
			Str("event", payload.Event).
			Int("status", status).
			Msg("webhook delivery failed")
	} else {
		s.logger.Debug().Str("webhook", target.ID).Str("event", payload.Event).Int("status", status).Msg("webhook delivered")
	}
	telemetry.WebhookDeliveriesTotal.WithLabelValues(payload.Event, result).Inc()
	s.logWebhookDelivery(target, payload.Event, string(body), status, errMsg, elapsed)
	return err
}

func (s *Service) post(ctx context.Context, target models.WebhookTarget, eventType string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "BOB-Inbox-Webhook/1.0")
	req.Header.Set("X-Bob-Event", eventType)
	req.Header.Set("X-Bob-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	if target.Secret != "" {
		req.Header.Set("X-Bob-Signature", Sign(body, target.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%w: status %d", ErrDeliveryFailed, resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// Sign returns the HMAC-SHA256 signature header value for payload.
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// logWebhookDelivery logs a webhook delivery attempt.
func (s *Service) logWebhookDelivery(target models.WebhookTarget, eventType, payload string, statusCode int, errorMsg string, elapsed time.Duration) {
	log := &models.WebhookLog{
		ID:         uuid.NewString(),
		TargetID:   target.ID,
		Event:      eventType,
		Payload:    payload,
		StatusCode: statusCode,
		Error:      errorMsg,
		Duration:   int(elapsed.Milliseconds()),
	}

	if err := s.db.Create(log).Error; err != nil {
		s.logger.Error().Err(err).Msg("failed to log webhook delivery")
	}
}

// TestWebhook sends a synthetic payload to target and returns the outcome.
func (s *Service) TestWebhook(ctx context.Context, target *models.WebhookTarget) error {
	payload := WebhookPayload{
		Event:     EventTest,
		Timestamp: time.Now().UTC(),
		Data:      map[string]any{"message": "This is a test webhook delivery"},
	}
	if target.CampaignID != nil {
		payload.CampaignID = *target.CampaignID
	}
	return s.deliver(ctx, *target, payload)
}
