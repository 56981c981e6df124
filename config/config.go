package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Log          LogConfig          `mapstructure:"log"`
	Session      SessionConfig      `mapstructure:"session"`
	OTP          OTPConfig          `mapstructure:"otp"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	OAuth        OAuthConfig        `mapstructure:"oauth"`
	Email        EmailConfig        `mapstructure:"email"`
	Webhook      WebhookConfig      `mapstructure:"webhook"`
	Sync         SyncConfig         `mapstructure:"sync"`
	Queue        QueueConfig        `mapstructure:"queue"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Cron         CronConfig         `mapstructure:"cron"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	Mode   string `mapstructure:"mode"`
	AppURL string `mapstructure:"app_url"` // 前端地址，OAuth 回调完成后重定向到这里
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Enabled 未配置 host 时视为不启用 Redis
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

type SessionConfig struct {
	CookieName       string `mapstructure:"cookie_name"`
	MaxAgeHours      int    `mapstructure:"max_age_hours"`
	AdminMaxAgeHours int    `mapstructure:"admin_max_age_hours"`
	Secure           bool   `mapstructure:"secure"`
	SigningSecret    string `mapstructure:"signing_secret"` // 为空时使用未签名的 JSON cookie
}

func (c SessionConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

func (c SessionConfig) AdminMaxAge() time.Duration {
	return time.Duration(c.AdminMaxAgeHours) * time.Hour
}

type OTPConfig struct {
	TTLMinutes  int `mapstructure:"ttl_minutes"`
	MaxAttempts int `mapstructure:"max_attempts"`
}

type RateLimitConfig struct {
	Backend   string         `mapstructure:"backend"` // memory | redis
	Auth      LimiterClass   `mapstructure:"auth"`
	API       LimiterClass   `mapstructure:"api"`
	Read      LimiterClass   `mapstructure:"read"`
	Expensive LimiterClass   `mapstructure:"expensive"`
	Routes    RouteLimitsCfg `mapstructure:"routes"`
}

// LimiterClass 一类限流器：窗口长度、缓存容量、默认请求上限
type LimiterClass struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	Capacity        int `mapstructure:"capacity"`
	Limit           int `mapstructure:"limit"`
}

func (c LimiterClass) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// RouteLimitsCfg 认证接口的单独上限
type RouteLimitsCfg struct {
	SendOTP    int `mapstructure:"send_otp"`
	VerifyOTP  int `mapstructure:"verify_otp"`
	CheckEmail int `mapstructure:"check_email"`
	Signin     int `mapstructure:"signin"`
}

type OAuthConfig struct {
	Google             ProviderOAuthConfig `mapstructure:"google"`
	OneDrive           ProviderOAuthConfig `mapstructure:"onedrive"`
	HTTPTimeoutSeconds int                 `mapstructure:"http_timeout_seconds"`
}

type ProviderOAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
	Tenant       string `mapstructure:"tenant"` // 仅 OneDrive 使用
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
	Strict bool   `mapstructure:"strict"` // true 时缺少签名或密钥直接拒绝
}

type SyncConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Mode           string `mapstructure:"mode"` // direct | queue
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	GooglePath     string `mapstructure:"google_path"`
	OneDrivePath   string `mapstructure:"onedrive_path"`
}

type QueueConfig struct {
	SyncQueue     string `mapstructure:"sync_queue"`
	StatusChannel string `mapstructure:"status_channel"`
	MaxWorkers    int    `mapstructure:"max_workers"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type SubscriptionConfig struct {
	DefaultPlan      string     `mapstructure:"default_plan"`
	DefaultMaxDrives int        `mapstructure:"default_max_drives"`
	Plans            []PlanSeed `mapstructure:"plans"`
}

type PlanSeed struct {
	PackageName        string  `mapstructure:"package_name"`
	Tier               string  `mapstructure:"tier"`
	MaxConnectedDrives int     `mapstructure:"max_connected_drives"`
	MonthlyPrice       float64 `mapstructure:"monthly_price"`
	YearlyPrice        float64 `mapstructure:"yearly_price"`
	Description        string  `mapstructure:"description"`
}

type CronConfig struct {
	OTPCleanupMinutes   int `mapstructure:"otp_cleanup_minutes"`
	TokenRefreshMinutes int `mapstructure:"token_refresh_minutes"`
}

// 兼容旧部署使用的环境变量名
var legacyEnv = map[string][]string{
	"session.cookie_name":          {"SESSION_COOKIE_NAME", "TOKEN"},
	"webhook.secret":               {"WEBHOOK_SECRET", "PADDLE_WEBHOOK_SECRET_TOKEN"},
	"sync.base_url":                {"SYNC_BASE_URL", "PYTHON_API_URL"},
	"oauth.google.client_id":       {"OAUTH_GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_ID"},
	"oauth.google.client_secret":   {"OAUTH_GOOGLE_CLIENT_SECRET", "GOOGLE_CLIENT_SECRET"},
	"oauth.google.redirect_uri":    {"OAUTH_GOOGLE_REDIRECT_URI", "GOOGLE_REDIRECT_URI"},
	"oauth.onedrive.client_id":     {"OAUTH_ONEDRIVE_CLIENT_ID", "MICROSOFT_CLIENT_ID"},
	"oauth.onedrive.client_secret": {"OAUTH_ONEDRIVE_CLIENT_SECRET", "MICROSOFT_CLIENT_SECRET"},
	"oauth.onedrive.redirect_uri":  {"OAUTH_ONEDRIVE_REDIRECT_URI", "MICROSOFT_REDIRECT_URI"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.app_url", "http://localhost:3000")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("session.cookie_name", "USER_INFO")
	v.SetDefault("session.max_age_hours", 7*24)
	v.SetDefault("session.admin_max_age_hours", 24)
	v.SetDefault("session.secure", false)
	v.SetDefault("session.signing_secret", "")

	v.SetDefault("otp.ttl_minutes", 10)
	v.SetDefault("otp.max_attempts", 5)

	v.SetDefault("rate_limit.backend", "memory")
	for class, capacity := range map[string]int{"auth": 1000, "api": 2000, "read": 5000, "expensive": 500} {
		v.SetDefault("rate_limit."+class+".interval_seconds", 60)
		v.SetDefault("rate_limit."+class+".capacity", capacity)
	}
	v.SetDefault("rate_limit.auth.limit", 10)
	v.SetDefault("rate_limit.api.limit", 60)
	v.SetDefault("rate_limit.read.limit", 120)
	v.SetDefault("rate_limit.expensive.limit", 10)
	v.SetDefault("rate_limit.routes.send_otp", 5)
	v.SetDefault("rate_limit.routes.verify_otp", 5)
	v.SetDefault("rate_limit.routes.check_email", 10)
	v.SetDefault("rate_limit.routes.signin", 5)

	v.SetDefault("oauth.http_timeout_seconds", 15)
	v.SetDefault("oauth.onedrive.tenant", "common")

	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.from_name", "DriveUnity")

	v.SetDefault("webhook.strict", false)

	v.SetDefault("sync.mode", "direct")
	v.SetDefault("sync.timeout_seconds", 30)
	v.SetDefault("sync.google_path", "/authenticated/google/drive/metadata/%s/%s")
	v.SetDefault("sync.onedrive_path", "")

	v.SetDefault("queue.sync_queue", "driveunity:sync:jobs")
	v.SetDefault("queue.status_channel", "driveunity:sync:status")
	v.SetDefault("queue.max_workers", 4)

	v.SetDefault("subscription.default_plan", "Free")
	v.SetDefault("subscription.default_max_drives", 2)

	v.SetDefault("cron.otp_cleanup_minutes", 60)
	v.SetDefault("cron.token_refresh_minutes", 30)
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, envs := range legacyEnv {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if len(cfg.Subscription.Plans) == 0 {
		cfg.Subscription.Plans = DefaultPlans()
	}

	return &cfg, nil
}

// DefaultPlans 内置套餐，配置文件未声明 plans 时使用
func DefaultPlans() []PlanSeed {
	return []PlanSeed{
		{PackageName: "Free", Tier: "FREE", MaxConnectedDrives: 2, Description: "Connect up to 2 drives"},
		{PackageName: "Base", Tier: "BASE", MaxConnectedDrives: 3, MonthlyPrice: 9.99, YearlyPrice: 99.99, Description: "Connect up to 3 drives"},
		{PackageName: "Pro", Tier: "PRO", MaxConnectedDrives: 5, MonthlyPrice: 19.99, YearlyPrice: 199.99, Description: "Connect up to 5 drives"},
	}
}
