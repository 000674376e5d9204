package executor

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// KindHTTP — тип HTTP узла.
	KindHTTP = "http"

	// Значения по умолчанию.
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// Ключи конфигурации HTTP узла.
const (
	httpConfigMethod          = "method"
	httpConfigURL             = "url"
	httpConfigHeaders         = "headers"
	httpConfigBody            = "body"
	httpConfigFollowRedirects = "follow_redirects"
	httpConfigValidateSSL     = "validate_ssl"
	httpConfigTimeoutSec      = "timeout_sec"
	httpConfigMockResponse    = "mock_response"
)

// HTTPExecutor — узел исходящего HTTP запроса.
//
// Конфигурация:
//
//	{
//	    "method": "POST",
//	    "url": "https://api.example.com/data",
//	    "headers": {"Authorization": "Bearer {fetch.token}"},
//	    "body": {"data": "{fetch.items}"},
//	    "timeout_sec": 30,
//	    "mock_response": {"x": 1}
//	}
//
// mock_response включает детерминированный режим: узел не делает
// сетевой вызов и возвращает заданное значение как body. Используется
// для воспроизводимого replay выполнения.
//
// Output:
//
//	{
//	    "status_code": 200,
//	    "headers": {...},
//	    "body": {...}  // распарсенный JSON или строка
//	}
type HTTPExecutor struct{}

// NewHTTPExecutor создаёт HTTPExecutor.
func NewHTTPExecutor() *HTTPExecutor {
	return &HTTPExecutor{}
}

// Kind возвращает тип узла.
func (e *HTTPExecutor) Kind() string { return KindHTTP }

// Category возвращает категорию брокера.
func (e *HTTPExecutor) Category() string { return CategoryHTTP }

// Execute выполняет HTTP запрос (или возвращает mock).
func (e *HTTPExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	cfg, err := e.parseConfig(req.Config)
	if err != nil {
		return nil, err
	}

	// Детерминированный mock-режим: никакой сети
	if cfg.MockResponse != nil {
		return NewResponse(map[string]any{
			"status_code": 200,
			"headers":     map[string]any{},
			"body":        cfg.MockResponse,
		}), nil
	}

	client := e.buildClient(cfg, req.Timeout)

	httpReq, err := e.buildRequest(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: http request: %v", ErrExecutionFailed, err)
	}
	defer resp.Body.Close()

	return e.parseResponse(resp)
}

// httpConfig — распарсенная конфигурация HTTP узла.
type httpConfig struct {
	Method          string
	URL             string
	Headers         map[string]string
	Body            any
	FollowRedirects bool
	ValidateSSL     bool
	TimeoutSec      int
	MockResponse    any
}

// parseConfig парсит и валидирует конфигурацию HTTP узла.
// URL и method обязательны.
func (e *HTTPExecutor) parseConfig(config map[string]any) (*httpConfig, error) {
	cfg := &httpConfig{
		Method:          GetConfigString(config, httpConfigMethod),
		URL:             GetConfigString(config, httpConfigURL),
		Headers:         GetConfigMapString(config, httpConfigHeaders),
		Body:            config[httpConfigBody],
		FollowRedirects: GetConfigBool(config, httpConfigFollowRedirects, true),
		ValidateSSL:     GetConfigBool(config, httpConfigValidateSSL, true),
		TimeoutSec:      GetConfigInt(config, httpConfigTimeoutSec),
		MockResponse:    config[httpConfigMockResponse],
	}

	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: %s: url is required", ErrInvalidConfig, KindHTTP)
	}
	if cfg.Method == "" {
		return nil, fmt.Errorf("%w: %s: method is required", ErrInvalidConfig, KindHTTP)
	}
	cfg.Method = strings.ToUpper(cfg.Method)

	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}

	return cfg, nil
}

// buildClient создаёт HTTP клиент с нужными настройками.
func (e *HTTPExecutor) buildClient(cfg *httpConfig, reqTimeout time.Duration) *http.Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}
	if reqTimeout > 0 {
		timeout = reqTimeout
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: !cfg.ValidateSSL,
	}

	var checkRedirect func(*http.Request, []*http.Request) error
	if !cfg.FollowRedirects {
		checkRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &http.Client{
		Timeout:       timeout,
		CheckRedirect: checkRedirect,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}
}

// buildRequest создаёт HTTP запрос.
func (e *HTTPExecutor) buildRequest(ctx context.Context, cfg *httpConfig) (*http.Request, error) {
	var bodyReader io.Reader

	if cfg.Body != nil {
		bodyBytes, err := e.serializeBody(cfg.Body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)

		if _, hasContentType := cfg.Headers["Content-Type"]; !hasContentType {
			cfg.Headers["Content-Type"] = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, bodyReader)
	if err != nil {
		return nil, err
	}

	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// serializeBody сериализует body в bytes.
func (e *HTTPExecutor) serializeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// parseResponse парсит HTTP ответ в Response.
func (e *HTTPExecutor) parseResponse(resp *http.Response) (*Response, error) {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var body any
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		if err := json.Unmarshal(bodyBytes, &body); err != nil {
			// Невалидный JSON возвращаем строкой
			body = string(bodyBytes)
		}
	} else {
		body = string(bodyBytes)
	}

	headers := make(map[string]any)
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	return NewResponse(map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        body,
	}), nil
}
