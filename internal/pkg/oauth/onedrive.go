package oauth

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/xid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/qs3c/driveunity_server/config"
)

var oneDriveScopes = []string{
	"User.Read",
	"Files.Read.All",
	"Files.ReadWrite.All",
	"offline_access",
}

const defaultTenant = "common"

// OneDriveEndpoints 微软的各个地址，测试时可替换为本地服务
type OneDriveEndpoints struct {
	AuthURL  string
	TokenURL string
	MeURL    string
	DriveURL string
}

func defaultOneDriveEndpoints(tenant string) OneDriveEndpoints {
	ep := microsoft.AzureADEndpoint(tenant)
	return OneDriveEndpoints{
		AuthURL:  ep.AuthURL,
		TokenURL: ep.TokenURL,
		MeURL:    "https://graph.microsoft.com/v1.0/me",
		DriveURL: "https://graph.microsoft.com/v1.0/me/drive",
	}
}

// OneDriveBroker OneDrive 授权，state 中带时间戳和随机串
type OneDriveBroker struct {
	cfg        config.ProviderOAuthConfig
	oauth      *oauth2.Config
	endpoints  OneDriveEndpoints
	httpClient *http.Client
	nonces     *NonceStore
	now        func() time.Time
}

type OneDriveOption func(*OneDriveBroker)

func WithOneDriveEndpoints(e OneDriveEndpoints) OneDriveOption {
	return func(b *OneDriveBroker) { b.endpoints = e }
}

// WithNonceStore 启用 state 一次性校验
func WithNonceStore(s *NonceStore) OneDriveOption {
	return func(b *OneDriveBroker) { b.nonces = s }
}

func withOneDriveClock(now func() time.Time) OneDriveOption {
	return func(b *OneDriveBroker) { b.now = now }
}

func NewOneDriveBroker(cfg config.ProviderOAuthConfig, httpClient *http.Client, opts ...OneDriveOption) *OneDriveBroker {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	tenant := cfg.Tenant
	if tenant == "" {
		tenant = defaultTenant
	}
	b := &OneDriveBroker{
		cfg:        cfg,
		endpoints:  defaultOneDriveEndpoints(tenant),
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
		Scopes:       oneDriveScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   b.endpoints.AuthURL,
			TokenURL:  b.endpoints.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return b
}

func (b *OneDriveBroker) Provider() Provider { return ProviderOneDrive }

func (b *OneDriveBroker) NewState(ctx context.Context, userID string) (string, error) {
	st := OneDriveState{
		UserID:    userID,
		Timestamp: b.now().UnixMilli(),
		Random:    xid.New().String(),
	}
	raw, err := encodeOneDriveState(st)
	if err != nil {
		return "", err
	}
	if b.nonces != nil {
		if err := b.nonces.Register(ctx, st.Random, userID); err != nil {
			return "", err
		}
	}
	return raw, nil
}

// ParseState 超过 10 分钟的 state 视为过期
func (b *OneDriveBroker) ParseState(ctx context.Context, raw string) (string, error) {
	st, err := decodeOneDriveState(raw, b.now())
	if err != nil {
		return "", err
	}
	if b.nonces != nil {
		owner, err := b.nonces.Consume(ctx, st.Random)
		if err != nil {
			return "", err
		}
		if owner != st.UserID {
			return "", ErrInvalidState
		}
	}
	return st.UserID, nil
}

func (b *OneDriveBroker) AuthURL(state string) (string, error) {
	if err := requireConfig(
		"oauth.onedrive.client_id", b.cfg.ClientID,
		"oauth.onedrive.redirect_uri", b.cfg.RedirectURI,
	); err != nil {
		return "", err
	}
	return b.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_mode", "query"),
		oauth2.ApprovalForce,
	), nil
}

func (b *OneDriveBroker) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	if err := b.requireCredentials(); err != nil {
		return nil, err
	}
	tok, err := b.oauth.Exchange(httpContext(ctx, b.httpClient), code)
	if err != nil {
		return nil, upstreamError(ProviderOneDrive, "token exchange", err)
	}
	return fromOAuth2(tok, b.now()), nil
}

func (b *OneDriveBroker) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	if err := b.requireCredentials(); err != nil {
		return nil, err
	}
	src := b.oauth.TokenSource(httpContext(ctx, b.httpClient), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, upstreamError(ProviderOneDrive, "token refresh", err)
	}
	t := fromOAuth2(tok, b.now())
	if t.RefreshToken == "" {
		t.RefreshToken = refreshToken
	}
	return t, nil
}

type graphUser struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// FetchIdentity 个人账号的 mail 可能为空，此时使用 userPrincipalName
func (b *OneDriveBroker) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	var u graphUser
	if err := getJSON(ctx, b.httpClient, ProviderOneDrive, b.endpoints.MeURL, accessToken, &u); err != nil {
		return nil, err
	}
	email := u.Mail
	if email == "" {
		email = u.UserPrincipalName
	}
	return &Identity{ID: u.ID, Email: email, Name: u.DisplayName}, nil
}

type graphDrive struct {
	Quota struct {
		Total     int64 `json:"total"`
		Used      int64 `json:"used"`
		Remaining int64 `json:"remaining"`
	} `json:"quota"`
}

func (b *OneDriveBroker) FetchDriveInfo(ctx context.Context, accessToken string) (*DriveInfo, error) {
	var d graphDrive
	if err := getJSON(ctx, b.httpClient, ProviderOneDrive, b.endpoints.DriveURL, accessToken, &d); err != nil {
		return nil, err
	}
	return &DriveInfo{Total: d.Quota.Total, Used: d.Quota.Used, Remaining: d.Quota.Remaining}, nil
}

func (b *OneDriveBroker) requireCredentials() error {
	return requireConfig(
		"oauth.onedrive.client_id", b.cfg.ClientID,
		"oauth.onedrive.client_secret", b.cfg.ClientSecret,
		"oauth.onedrive.redirect_uri", b.cfg.RedirectURI,
	)
}
