package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// TemplateColumnCount 目标模板表固定列数
const TemplateColumnCount = 24

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Mail     MailConfig     `mapstructure:"mail"`
	Log      LogConfig      `mapstructure:"log"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Intake   IntakeConfig   `mapstructure:"intake"`
	Links    LinksConfig    `mapstructure:"links"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	BaseURL string     `mapstructure:"base_url"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置（留空 addr 则使用进程内锁）
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// AuthConfig 管理端 JWT 认证配置
type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`
	AccessTokenTTL    time.Duration `mapstructure:"access_token_ttl"`
	AdminUsername     string        `mapstructure:"admin_username"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"` // bcrypt
}

// MailConfig SMTP 邮件配置（smtp_host 为空时仅记录日志）
type MailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Enabled 是否配置了 SMTP
func (c *MailConfig) Enabled() bool { return c.SMTPHost != "" }

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ScheduleConfig 观测排班配置
type ScheduleConfig struct {
	Timezone      string `mapstructure:"timezone"`
	MaxJunior     int    `mapstructure:"max_junior"`
	CalendarTitle string `mapstructure:"calendar_title"`
	CalendarName  string `mapstructure:"calendar_name"`
}

// Location 解析观测站时区
func (c *ScheduleConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// IntakeConfig 目标提交表解析配置（列号、行号均从 1 开始）
type IntakeConfig struct {
	TemplateColumns []string      `mapstructure:"template_columns"`
	NameColumn      int           `mapstructure:"name_column"`
	OpenColumn      int           `mapstructure:"open_column"`
	CloseColumn     int           `mapstructure:"close_column"`
	HeaderRow       int           `mapstructure:"header_row"`
	DataStartRow    int           `mapstructure:"data_start_row"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	MaxWorkbookSize int64         `mapstructure:"max_workbook_size"`
	AllowedHosts    []string      `mapstructure:"allowed_hosts"` // "." 开头按后缀匹配
}

// DefaultAllowedHosts 允许下载提交表格的主机，导出地址会重定向到 googleusercontent
var DefaultAllowedHosts = []string{"docs.google.com", "drive.google.com", ".googleusercontent.com"}

// LinksConfig 通知邮件中引用的外部链接
type LinksConfig struct {
	TemplateSheet string `mapstructure:"template_sheet"`
	SubmitForm    string `mapstructure:"submit_form"`
	SignupForm    string `mapstructure:"signup_form"`
	FollowupForm  string `mapstructure:"followup_form"`
	SignupSheet   string `mapstructure:"signup_sheet"`
	ProgramName   string `mapstructure:"program_name"`
}

// JobsConfig 定时任务配置
type JobsConfig struct {
	ExpirySweepEnabled  bool          `mapstructure:"expiry_sweep_enabled"`
	ExpirySweepInterval time.Duration `mapstructure:"expiry_sweep_interval"`
	ExpirySweepTimeout  time.Duration `mapstructure:"expiry_sweep_timeout"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultTemplateColumns 目标模板表默认列头
var DefaultTemplateColumns = []string{
	"Property",
	"Primary Identifier**",
	"Other Identifiers",
	"RA**",
	"Dec**",
	"Epoch",
	"Magnitude V",
	"Obs Window Open**",
	"Obs Window Close**",
	"Priority",
	"Exposure Time (s)",
	"Number of Exposures",
	"Filters",
	"Binning",
	"Cadence",
	"Min Altitude (deg)",
	"Max Airmass",
	"Moon Constraint",
	"Finder Chart",
	"Science Goal",
	"Instrument",
	"Observing Mode",
	"Contact Preference",
	"Notes",
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "retrho")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "America/New_York")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "30s")

	// 空默认值用于让 AutomaticEnv 在 Unmarshal 时识别这些键
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_token_ttl", "2h")
	v.SetDefault("auth.admin_username", "admin")
	v.SetDefault("auth.admin_password_hash", "")

	v.SetDefault("mail.smtp_host", "")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "retrho@localhost")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("schedule.timezone", "America/New_York")
	v.SetDefault("schedule.max_junior", 5)
	v.SetDefault("schedule.calendar_title", "Observing")
	v.SetDefault("schedule.calendar_name", "RETRHO Observing")

	v.SetDefault("intake.template_columns", DefaultTemplateColumns)
	v.SetDefault("intake.name_column", 2)
	v.SetDefault("intake.open_column", 8)
	v.SetDefault("intake.close_column", 9)
	v.SetDefault("intake.header_row", 1)
	v.SetDefault("intake.data_start_row", 4) // 列头、格式说明、示例各占一行
	v.SetDefault("intake.fetch_timeout", "30s")
	v.SetDefault("intake.max_workbook_size", 10*1024*1024)
	v.SetDefault("intake.allowed_hosts", DefaultAllowedHosts)

	v.SetDefault("links.template_sheet", "")
	v.SetDefault("links.submit_form", "")
	v.SetDefault("links.signup_form", "")
	v.SetDefault("links.followup_form", "")
	v.SetDefault("links.signup_sheet", "")
	v.SetDefault("links.program_name", "RETRHO")

	v.SetDefault("jobs.expiry_sweep_enabled", true)
	v.SetDefault("jobs.expiry_sweep_interval", "24h")
	v.SetDefault("jobs.expiry_sweep_timeout", "2m")

	v.SetDefault("metrics.enabled", true)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("RETRHO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if _, err := c.Schedule.Location(); err != nil {
		return fmt.Errorf("配置校验失败: schedule.timezone 无效: %w", err)
	}
	if c.Schedule.MaxJunior <= 0 {
		return fmt.Errorf("配置校验失败: schedule.max_junior 必须大于 0")
	}
	if len(c.Intake.TemplateColumns) != TemplateColumnCount {
		return fmt.Errorf("配置校验失败: intake.template_columns 必须为 %d 列，实际 %d 列",
			TemplateColumnCount, len(c.Intake.TemplateColumns))
	}
	for name, col := range map[string]int{
		"intake.name_column":  c.Intake.NameColumn,
		"intake.open_column":  c.Intake.OpenColumn,
		"intake.close_column": c.Intake.CloseColumn,
	} {
		if col < 1 || col > TemplateColumnCount {
			return fmt.Errorf("配置校验失败: %s 必须在 1-%d 之间", name, TemplateColumnCount)
		}
	}
	if c.Intake.DataStartRow <= c.Intake.HeaderRow {
		return fmt.Errorf("配置校验失败: intake.data_start_row 必须大于 intake.header_row")
	}
	return nil
}
