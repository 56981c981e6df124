// Package oauth 封装各云盘平台的 OAuth 授权、换取与刷新令牌、获取账号信息。
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/qs3c/driveunity_server/internal/pkg/apperr"
)

// Provider 云盘平台
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderOneDrive Provider = "onedrive"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrInvalidState    = errors.New("invalid state parameter")
	ErrStateExpired    = errors.New("state parameter expired")
)

// defaultExpiresIn 平台未返回 expires_in 时的有效期（秒）
const defaultExpiresIn = 3600

func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderGoogle, ProviderOneDrive:
		return Provider(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

// DisplayName 面向用户的平台名称
func (p Provider) DisplayName() string {
	switch p {
	case ProviderGoogle:
		return "Google Drive"
	case ProviderOneDrive:
		return "OneDrive"
	default:
		return string(p)
	}
}

// Token 平台令牌，ExpiresAt 为绝对过期时间
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	ExpiresAt    time.Time
	Scope        string
}

// Identity 平台账号身份
type Identity struct {
	ID    string
	Email string
	Name  string
}

// DriveInfo 云盘空间（字节）
type DriveInfo struct {
	Total     int64
	Used      int64
	Remaining int64
}

// Broker 各平台统一的授权能力
type Broker interface {
	Provider() Provider
	NewState(ctx context.Context, userID string) (string, error)
	ParseState(ctx context.Context, raw string) (userID string, err error)
	AuthURL(state string) (string, error)
	ExchangeCode(ctx context.Context, code string) (*Token, error)
	RefreshToken(ctx context.Context, refreshToken string) (*Token, error)
	FetchIdentity(ctx context.Context, accessToken string) (*Identity, error)
	FetchDriveInfo(ctx context.Context, accessToken string) (*DriveInfo, error)
}

// Registry 按平台查找 Broker
type Registry struct {
	brokers map[Provider]Broker
}

func NewRegistry(brokers ...Broker) *Registry {
	r := &Registry{brokers: make(map[Provider]Broker, len(brokers))}
	for _, b := range brokers {
		r.brokers[b.Provider()] = b
	}
	return r
}

func (r *Registry) Get(p Provider) (Broker, error) {
	b, ok := r.brokers[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	return b, nil
}

// Providers 已注册的平台
func (r *Registry) Providers() []Provider {
	out := make([]Provider, 0, len(r.brokers))
	for _, p := range []Provider{ProviderGoogle, ProviderOneDrive} {
		if _, ok := r.brokers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// IsPermanent 刷新令牌已失效，只能让用户重新授权
func IsPermanent(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	switch re.ErrorCode {
	case "invalid_grant", "invalid_client", "unauthorized_client":
		return true
	}
	return false
}

// fromOAuth2 转换令牌，计算绝对过期时间
func fromOAuth2(tok *oauth2.Token, now time.Time) *Token {
	t := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		t.Scope = scope
	}
	if tok.Expiry.IsZero() {
		t.ExpiresIn = defaultExpiresIn
		t.ExpiresAt = now.Add(defaultExpiresIn * time.Second)
	} else {
		t.ExpiresAt = tok.Expiry
		t.ExpiresIn = int(tok.Expiry.Sub(now).Round(time.Second).Seconds())
	}
	return t
}

// upstreamError 平台错误只保留错误码，不把响应体带给调用方
func upstreamError(p Provider, op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		code := re.ErrorCode
		if code == "" && re.Response != nil {
			code = fmt.Sprintf("http_%d", re.Response.StatusCode)
		}
		return apperr.Upstream(string(p), fmt.Errorf("%s: %s: %w", op, code, err))
	}
	return apperr.Upstream(string(p), fmt.Errorf("%s: %w", op, err))
}

// getJSON 携带 Bearer 令牌请求平台 API
func getJSON(ctx context.Context, client *http.Client, p Provider, url, accessToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return apperr.Upstream(string(p), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Upstream(string(p), fmt.Errorf("GET %s: status %d: %s", url, resp.StatusCode, body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Upstream(string(p), fmt.Errorf("decode %s: %w", url, err))
	}
	return nil
}

func httpContext(ctx context.Context, client *http.Client) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

// requireConfig 按 key/value 成对检查，返回第一个缺失的配置项
func requireConfig(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return apperr.Configuration(pairs[i])
		}
	}
	return nil
}
