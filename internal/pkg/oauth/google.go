package oauth

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/qs3c/driveunity_server/config"
)

var googleScopes = []string{
	"https://www.googleapis.com/auth/drive",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// GoogleEndpoints Google 的各个地址，测试时可替换为本地服务
type GoogleEndpoints struct {
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	AboutURL    string
}

func defaultGoogleEndpoints() GoogleEndpoints {
	return GoogleEndpoints{
		AuthURL:     google.Endpoint.AuthURL,
		TokenURL:    google.Endpoint.TokenURL,
		UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		AboutURL:    "https://www.googleapis.com/drive/v3/about?fields=user,storageQuota",
	}
}

// GoogleBroker Google Drive 授权
type GoogleBroker struct {
	cfg        config.ProviderOAuthConfig
	oauth      *oauth2.Config
	endpoints  GoogleEndpoints
	httpClient *http.Client
	now        func() time.Time
}

type GoogleOption func(*GoogleBroker)

func WithGoogleEndpoints(e GoogleEndpoints) GoogleOption {
	return func(b *GoogleBroker) { b.endpoints = e }
}

func NewGoogleBroker(cfg config.ProviderOAuthConfig, httpClient *http.Client, opts ...GoogleOption) *GoogleBroker {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	b := &GoogleBroker{
		cfg:        cfg,
		endpoints:  defaultGoogleEndpoints(),
		httpClient: httpClient,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.oauth = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       googleScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  b.endpoints.AuthURL,
			TokenURL: b.endpoints.TokenURL,
		},
	}
	return b
}

func (b *GoogleBroker) Provider() Provider { return ProviderGoogle }

func (b *GoogleBroker) NewState(_ context.Context, userID string) (string, error) {
	return encodeGoogleState(userID)
}

func (b *GoogleBroker) ParseState(_ context.Context, raw string) (string, error) {
	return decodeGoogleState(raw)
}

// AuthURL 离线授权并强制显示同意页，保证拿到 refresh_token
func (b *GoogleBroker) AuthURL(state string) (string, error) {
	if err := requireConfig(
		"oauth.google.client_id", b.cfg.ClientID,
		"oauth.google.redirect_uri", b.cfg.RedirectURI,
	); err != nil {
		return "", err
	}
	return b.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

func (b *GoogleBroker) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	if err := b.requireCredentials(); err != nil {
		return nil, err
	}
	tok, err := b.oauth.Exchange(httpContext(ctx, b.httpClient), code)
	if err != nil {
		return nil, upstreamError(ProviderGoogle, "token exchange", err)
	}
	return fromOAuth2(tok, b.now()), nil
}

// RefreshToken 平台没有返回新的 refresh_token 时沿用旧的
func (b *GoogleBroker) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	if err := b.requireCredentials(); err != nil {
		return nil, err
	}
	src := b.oauth.TokenSource(httpContext(ctx, b.httpClient), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, upstreamError(ProviderGoogle, "token refresh", err)
	}
	t := fromOAuth2(tok, b.now())
	if t.RefreshToken == "" {
		t.RefreshToken = refreshToken
	}
	return t, nil
}

type googleUserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (b *GoogleBroker) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	var info googleUserInfo
	if err := getJSON(ctx, b.httpClient, ProviderGoogle, b.endpoints.UserInfoURL, accessToken, &info); err != nil {
		return nil, err
	}
	return &Identity{ID: info.ID, Email: info.Email, Name: info.Name}, nil
}

// Drive API 中配额是字符串形式的整数，limit 缺失表示不限量
type googleAbout struct {
	StorageQuota struct {
		Limit string `json:"limit"`
		Usage string `json:"usage"`
	} `json:"storageQuota"`
}

func (b *GoogleBroker) FetchDriveInfo(ctx context.Context, accessToken string) (*DriveInfo, error) {
	var about googleAbout
	if err := getJSON(ctx, b.httpClient, ProviderGoogle, b.endpoints.AboutURL, accessToken, &about); err != nil {
		return nil, err
	}
	limit, _ := strconv.ParseInt(about.StorageQuota.Limit, 10, 64)
	used, _ := strconv.ParseInt(about.StorageQuota.Usage, 10, 64)
	info := &DriveInfo{Total: limit, Used: used}
	if limit > 0 {
		info.Remaining = limit - used
	}
	return info, nil
}

func (b *GoogleBroker) requireCredentials() error {
	return requireConfig(
		"oauth.google.client_id", b.cfg.ClientID,
		"oauth.google.client_secret", b.cfg.ClientSecret,
		"oauth.google.redirect_uri", b.cfg.RedirectURI,
	)
}
