package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 应用配置结构体，对应docker-compose中的环境变量
type Config struct {
	AppEnv   string // 环境（如production）
	HTTPAddr string // 监听地址

	DBDriver   string // sqlite / mysql / postgres
	DBHost     string // 数据库主机
	DBPort     int    // 数据库端口
	DBUser     string // 数据库用户名
	DBPassword string // 数据库密码
	DBName     string // 数据库名
	DBPath     string // sqlite 文件路径

	RedisAddr     string // Redis地址（格式：host:port），为空时不投递事件队列
	RedisPassword string

	LogPath  string // 日志文件路径，为空时输出到stdout
	LogLevel string
	KeyPath  string // 密钥文件路径
	CertPath string // 证书文件路径

	JWTKey        string // 为空时不校验token
	JWTExpire     time.Duration
	WebhookSecret string // 为空时关闭webhook触发
	CORSOrigins   []string

	PolicyPath       string // stage 模板与审批策略
	StageDelay       time.Duration
	StageTimeout     time.Duration
	StageFailureRate float64

	ReminderSpec  string // cron 表达式，为空时关闭审批提醒
	ReminderAfter time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	DashboardURL string // 通知邮件中的链接前缀
}

var config Config

func GetConfig() Config {
	return config
}

func InitConf() {
	config = LoadConfig()
}

// LoadConfig reads the configuration from the process environment.
func LoadConfig() Config {
	return Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBHost:     getEnv("DB_HOST", "localhost"), // 容器内实际用服务名
		DBPort:     getEnvInt("DB_PORT", 3306),
		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "shipyard"),
		DBPath:     getEnv("DB_PATH", "./shipyard.db"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		LogPath:  getEnv("LOG_PATH", ""),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		KeyPath:  getEnv("KEY_PATH", ""),
		CertPath: getEnv("CERT_PATH", ""),

		JWTKey:        getEnv("JWT_KEY", ""),
		JWTExpire:     getEnvDuration("JWT_EXPIRE", 24*time.Hour),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "*")),

		PolicyPath:       getEnv("POLICY_PATH", ""),
		StageDelay:       getEnvDuration("STAGE_DELAY", 500*time.Millisecond),
		StageTimeout:     getEnvDuration("STAGE_TIMEOUT", 0),
		StageFailureRate: getEnvFloat("STAGE_FAILURE_RATE", 0),

		ReminderSpec:  getEnv("REMINDER_SPEC", "@every 30m"),
		ReminderAfter: getEnvDuration("REMINDER_AFTER", time.Hour),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "shipyard@localhost"),
		DashboardURL: getEnv("DASHBOARD_URL", ""),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
