package conf

import (
	"fmt"
	"time"
)

// Bootstrap 服务启动配置
type Bootstrap struct {
	Server  *Server  `yaml:"server" json:"server"`
	Data    *Data    `yaml:"data" json:"data"`
	Auth    *Auth    `yaml:"auth" json:"auth"`
	Payment *Payment `yaml:"payment" json:"payment"`
	Notify  *Notify  `yaml:"notify" json:"notify"`
	Sweep   *Sweep   `yaml:"sweep" json:"sweep"`
	Log     *Log     `yaml:"log" json:"log"`
}

type Server struct {
	Http struct {
		Network string `yaml:"network" json:"network"`
		Addr    string `yaml:"addr" json:"addr"`
		Timeout string `yaml:"timeout" json:"timeout"`
		// MaxBodyBytes 请求体上限，<= 0 时使用 DefaultMaxBodyBytes
		MaxBodyBytes int64 `yaml:"max_body_bytes" json:"max_body_bytes"`
	} `yaml:"http" json:"http"`
}

// DefaultMaxBodyBytes 默认请求体上限 1 MiB
const DefaultMaxBodyBytes int64 = 1 << 20

// BodyLimit 请求体上限
func (s *Server) BodyLimit() int64 {
	if s == nil || s.Http.MaxBodyBytes <= 0 {
		return DefaultMaxBodyBytes
	}
	return s.Http.MaxBodyBytes
}

type Data struct {
	Database *Database `yaml:"database" json:"database"`
	Redis    *Redis    `yaml:"redis" json:"redis"`
	Rocketmq *Rocketmq `yaml:"rocketmq" json:"rocketmq"`
}

type Database struct {
	Driver          string `yaml:"driver" json:"driver"` // mysql | postgres | sqlite
	Source          string `yaml:"source" json:"source"`
	MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	AutoMigrate     bool   `yaml:"auto_migrate" json:"auto_migrate"`
}

// Redis 为空时不启用订单分布式锁
type Redis struct {
	Addr         string `yaml:"addr" json:"addr"`
	Password     string `yaml:"password" json:"password"`
	Db           int32  `yaml:"db" json:"db"`
	ReadTimeout  string `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
	LockExpiry   string `yaml:"lock_expiry" json:"lock_expiry"`
}

// Rocketmq 通知事件队列配置，未启用时通知在进程内异步发送
type Rocketmq struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	NameServers []string `yaml:"name_servers" json:"name_servers"`
	GroupName   string   `yaml:"group_name" json:"group_name"`
	Topic       string   `yaml:"topic" json:"topic"`
	RetryTimes  int32    `yaml:"retry_times" json:"retry_times"`
}

type Auth struct {
	JwtSecret string `yaml:"jwt_secret" json:"jwt_secret"`
}

// Payment 支付通道配置
type Payment struct {
	Currency             string   `yaml:"currency" json:"currency"`
	AmountTolerance      string   `yaml:"amount_tolerance" json:"amount_tolerance"`
	MerchantVpa          string   `yaml:"merchant_vpa" json:"merchant_vpa"`
	UpiWebhookSecret     string   `yaml:"upi_webhook_secret" json:"upi_webhook_secret"`
	AllowAmountOnlyMatch bool     `yaml:"allow_amount_only_match" json:"allow_amount_only_match"`
	DemoEnabled          bool     `yaml:"demo_enabled" json:"demo_enabled"`
	Gateway              *Gateway `yaml:"gateway" json:"gateway"`
}

// Gateway 跳转式支付网关配置
type Gateway struct {
	Endpoint      string `yaml:"endpoint" json:"endpoint"`
	KeyId         string `yaml:"key_id" json:"key_id"`
	KeySecret     string `yaml:"key_secret" json:"key_secret"`
	WebhookSecret string `yaml:"webhook_secret" json:"webhook_secret"`
	Timeout       string `yaml:"timeout" json:"timeout"`
}

type Notify struct {
	Async      bool   `yaml:"async" json:"async"`
	StoreName  string `yaml:"store_name" json:"store_name"`
	AdminEmail string `yaml:"admin_email" json:"admin_email"`
	Timeout    string `yaml:"timeout" json:"timeout"`
	Smtp       *Smtp  `yaml:"smtp" json:"smtp"`
}

type Smtp struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	From     string `yaml:"from" json:"from"`
}

// Sweep 过期订单扫描配置
type Sweep struct {
	Spec                string `yaml:"spec" json:"spec"`
	PendingTtl          string `yaml:"pending_ttl" json:"pending_ttl"`
	VerifyingAlertAfter string `yaml:"verifying_alert_after" json:"verifying_alert_after"`
	BatchSize           int    `yaml:"batch_size" json:"batch_size"`
}

type Log struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	Output     string `yaml:"output" json:"output"`
	FilePath   string `yaml:"file_path" json:"file_path"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Validate 校验配置
func (b *Bootstrap) Validate() error {
	if b.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if b.Server.Http.Addr == "" {
		return fmt.Errorf("server.http.addr is required")
	}
	if b.Data == nil || b.Data.Database == nil {
		return fmt.Errorf("data.database configuration is required")
	}
	if b.Data.Database.Source == "" {
		return fmt.Errorf("data.database.source is required")
	}
	switch b.Data.Database.Driver {
	case "", "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("data.database.driver %q is not supported", b.Data.Database.Driver)
	}
	if b.Data.Rocketmq != nil && b.Data.Rocketmq.Enabled {
		if len(b.Data.Rocketmq.NameServers) == 0 || b.Data.Rocketmq.Topic == "" {
			return fmt.Errorf("data.rocketmq.name_servers and data.rocketmq.topic are required when enabled")
		}
	}
	if b.Auth == nil || b.Auth.JwtSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if b.Log == nil {
		return fmt.Errorf("log configuration is required")
	}
	for name, v := range map[string]string{
		"server.http.timeout":             b.Server.Http.Timeout,
		"data.database.conn_max_lifetime": b.Data.Database.ConnMaxLifetime,
	} {
		if _, err := ParseDuration(v, 0); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// ParseDuration 解析时长字符串，空字符串返回默认值
func ParseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

// MustDuration 同 ParseDuration，解析失败时返回默认值
func MustDuration(s string, def time.Duration) time.Duration {
	d, err := ParseDuration(s, def)
	if err != nil {
		return def
	}
	return d
}
