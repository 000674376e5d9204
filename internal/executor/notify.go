package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"strings"
	"time"
)

const (
	// KindNotify — тип узла уведомлений.
	KindNotify = "notify"

	notifyHTTPTimeout = 15 * time.Second
)

// Ключи конфигурации notify узла.
const (
	notifyConfigChannel = "channel"
	notifyConfigURL     = "url"
	notifyConfigPayload = "payload"
	notifyConfigMessage = "message"
	notifyConfigTo      = "to"
	notifyConfigSubject = "subject"
	notifyConfigBody    = "body"
)

// Каналы notify узла.
const (
	notifyChannelWebhook  = "webhook"
	notifyChannelChathook = "chathook"
	notifyChannelEmail    = "email"
)

// NotifyExecutor — узел отправки уведомлений.
//
// Каналы и их обязательные поля:
//
//	webhook  — url; произвольный payload отправляется POST'ом как JSON
//	chathook — url, message; отправляется как {"text": message}
//	email    — to, subject, body; через SMTP relay
//
// Конфигурация:
//
//	{"channel": "chathook", "url": "https://hooks...", "message": "done"}
type NotifyExecutor struct {
	smtpAddr string
	smtpFrom string
	client   *http.Client
}

// NewNotifyExecutor создаёт NotifyExecutor.
// smtpAddr и smtpFrom нужны только каналу email.
func NewNotifyExecutor(smtpAddr, smtpFrom string) *NotifyExecutor {
	return &NotifyExecutor{
		smtpAddr: smtpAddr,
		smtpFrom: smtpFrom,
		client:   &http.Client{Timeout: notifyHTTPTimeout},
	}
}

// Kind возвращает тип узла.
func (e *NotifyExecutor) Kind() string { return KindNotify }

// Category возвращает категорию брокера.
func (e *NotifyExecutor) Category() string { return CategoryNotify }

// Execute отправляет уведомление.
func (e *NotifyExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	channel := GetConfigString(req.Config, notifyConfigChannel)

	switch channel {
	case notifyChannelWebhook:
		return e.sendWebhook(ctx, req.Config)
	case notifyChannelChathook:
		return e.sendChathook(ctx, req.Config)
	case notifyChannelEmail:
		return e.sendEmail(req.Config)
	case "":
		return nil, fmt.Errorf("%w: %s: channel is required", ErrInvalidConfig, KindNotify)
	default:
		return nil, fmt.Errorf("%w: %s: unknown channel %q", ErrInvalidConfig, KindNotify, channel)
	}
}

// sendWebhook отправляет произвольный payload POST'ом.
func (e *NotifyExecutor) sendWebhook(ctx context.Context, config map[string]any) (*Response, error) {
	url := GetConfigString(config, notifyConfigURL)
	if url == "" {
		return nil, fmt.Errorf("%w: %s: url is required for webhook", ErrInvalidConfig, KindNotify)
	}

	payload := config[notifyConfigPayload]
	if payload == nil {
		payload = map[string]any{}
	}
	return e.postJSON(ctx, url, payload)
}

// sendChathook отправляет сообщение в чат-вебхук.
func (e *NotifyExecutor) sendChathook(ctx context.Context, config map[string]any) (*Response, error) {
	url := GetConfigString(config, notifyConfigURL)
	message := GetConfigString(config, notifyConfigMessage)
	if url == "" || message == "" {
		return nil, fmt.Errorf("%w: %s: url and message are required for chathook", ErrInvalidConfig, KindNotify)
	}
	return e.postJSON(ctx, url, map[string]any{"text": message})
}

func (e *NotifyExecutor) postJSON(ctx context.Context, url string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: marshal payload: %v", ErrExecutionFailed, KindNotify, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: build request: %v", ErrExecutionFailed, KindNotify, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s: send: %v", ErrExecutionFailed, KindNotify, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: endpoint returned %d", ErrExecutionFailed, KindNotify, resp.StatusCode)
	}
	return NewResponse(map[string]any{
		"delivered":   true,
		"status_code": resp.StatusCode,
	}), nil
}

// sendEmail отправляет письмо через настроенный SMTP relay.
func (e *NotifyExecutor) sendEmail(config map[string]any) (*Response, error) {
	to := GetConfigString(config, notifyConfigTo)
	subject := GetConfigString(config, notifyConfigSubject)
	body := GetConfigString(config, notifyConfigBody)
	if to == "" || subject == "" || body == "" {
		return nil, fmt.Errorf("%w: %s: to, subject and body are required for email", ErrInvalidConfig, KindNotify)
	}
	if e.smtpAddr == "" || e.smtpFrom == "" {
		return nil, fmt.Errorf("%w: %s: smtp relay is not configured", ErrExecutionFailed, KindNotify)
	}

	recipients := strings.Split(to, ",")
	for i := range recipients {
		recipients[i] = strings.TrimSpace(recipients[i])
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		e.smtpFrom, to, subject, body)

	if err := smtp.SendMail(e.smtpAddr, nil, e.smtpFrom, recipients, []byte(msg)); err != nil {
		return nil, fmt.Errorf("%w: %s: send mail: %v", ErrExecutionFailed, KindNotify, err)
	}
	return NewResponse(map[string]any{
		"delivered":  true,
		"recipients": len(recipients),
	}), nil
}
