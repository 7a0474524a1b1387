package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mollie_bridge_echo/internal/models"
)

// WahaConfig holds the WhatsApp HTTP API settings.
type WahaConfig struct {
	BaseURL     string
	APIKey      string
	Session     string
	CountryCode string
}

type WahaService struct {
	cfg    WahaConfig
	client *http.Client
	pause  func(ctx context.Context, d time.Duration) error
}

func NewWahaService(cfg WahaConfig) *WahaService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://waha:3000"
	}
	if cfg.Session == "" {
		cfg.Session = "default"
	}
	return &WahaService{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		pause:  sleepCtx,
	}
}

// Notify sends the message to the order's customer phone.
func (s *WahaService) Notify(ctx context.Context, order *models.Order, subject, body string) error {
	if order.CustomerPhone == "" {
		return fmt.Errorf("order %d has no customer phone", order.ID)
	}
	text := body
	if subject != "" {
		text = "*" + subject + "*\n\n" + body
	}
	return s.SendMessage(ctx, order.CustomerPhone, text)
}

func (s *WahaService) makeRequest(ctx context.Context, method, endpoint string, payload interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func (s *WahaService) chatAction(ctx context.Context, endpoint, chatID string) error {
	return s.makeRequest(ctx, http.MethodPost, endpoint, map[string]string{
		"chatId":  chatID,
		"session": s.cfg.Session,
	})
}

// NormalizeChatID adds the WhatsApp suffix and replaces a leading trunk
// prefix 0 with countryCode. Group ids are returned unchanged.
func NormalizeChatID(chatID, countryCode string) string {
	chatID = strings.TrimSpace(chatID)

	if strings.HasSuffix(chatID, "@g.us") {
		return chatID
	}

	chatID = strings.TrimSuffix(chatID, "@c.us")
	chatID = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(chatID)
	chatID = strings.TrimPrefix(chatID, "+")

	switch {
	case strings.HasPrefix(chatID, "00"):
		chatID = strings.TrimPrefix(chatID, "00")
	case strings.HasPrefix(chatID, "0") && countryCode != "":
		chatID = countryCode + strings.TrimPrefix(chatID, "0")
	}

	return chatID + "@c.us"
}

// SendMessage marks the chat as seen, types briefly and sends text.
func (s *WahaService) SendMessage(ctx context.Context, chatID, text string) error {
	chatID = NormalizeChatID(chatID, s.cfg.CountryCode)

	if err := s.chatAction(ctx, "/api/sendSeen", chatID); err != nil {
		return fmt.Errorf("failed to send seen: %w", err)
	}
	if err := s.pause(ctx, 100*time.Millisecond); err != nil {
		return err
	}

	if err := s.chatAction(ctx, "/api/startTyping", chatID); err != nil {
		return fmt.Errorf("failed to start typing: %w", err)
	}
	if err := s.pause(ctx, 150*time.Millisecond); err != nil {
		return err
	}

	if err := s.chatAction(ctx, "/api/stopTyping", chatID); err != nil {
		return fmt.Errorf("failed to stop typing: %w", err)
	}

	err := s.makeRequest(ctx, http.MethodPost, "/api/sendText", map[string]string{
		"chatId":  chatID,
		"text":    text,
		"session": s.cfg.Session,
	})
	if err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
