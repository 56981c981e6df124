// Package metasync 对接外部的文件元数据同步服务。
package metasync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/qs3c/driveunity_server/config"
)

// ErrNotSupported 该平台没有配置同步接口
var ErrNotSupported = errors.New("metadata sync not supported for provider")

// Client 同步服务客户端
type Client struct {
	baseURL    string
	paths      map[string]string
	httpClient *http.Client
}

func NewClient(cfg *config.SyncConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		paths: map[string]string{
			"google":   cfg.GooglePath,
			"onedrive": cfg.OneDrivePath,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Supports 是否配置了该平台的同步接口
func (c *Client) Supports(provider string) bool {
	return c.baseURL != "" && c.paths[provider] != ""
}

// Trigger 请求同步服务拉取指定账号的元数据，返回同步服务的原始响应
func (c *Client) Trigger(ctx context.Context, provider, userID, accountID string) (json.RawMessage, error) {
	if !c.Supports(provider) {
		return nil, fmt.Errorf("%w: %s", ErrNotSupported, provider)
	}
	endpoint := c.baseURL + fmt.Sprintf(c.paths[provider], url.PathEscape(userID), url.PathEscape(accountID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read sync response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if len(body) == 0 || !json.Valid(body) {
		return json.RawMessage(`{}`), nil
	}
	return json.RawMessage(body), nil
}

// StatusError 同步服务返回非 2xx
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sync service returned status %d", e.StatusCode)
}
