package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process and ledgerctl.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Webhook WebhookConfig
	Billing BillingConfig
	Notify  NotifyConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig verifies access tokens minted by the managed auth provider.
type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
}

type WebhookConfig struct {
	// CallSecret is the shared secret the voice vendor sends with call-ended webhooks.
	CallSecret string
}

type BillingConfig struct {
	ReconcileInterval time.Duration
	ReconcileWorkers  int
	ReconcileLockTTL  time.Duration
	ReconcileBatch    int
}

const (
	SinkPostgres = "postgres"
	SinkKafka    = "kafka"
	SinkRabbitMQ = "rabbitmq"
	SinkLog      = "log"
)

type NotifyConfig struct {
	Sinks []string

	KafkaBrokers []string
	KafkaTopic   string

	RabbitMQURL   string
	RabbitMQQueue string
}

func (n NotifyConfig) Has(sink string) bool {
	for _, s := range n.Sinks {
		if s == sink {
			return true
		}
	}
	return false
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	{
		n, err := optionalInt("REDIS_DB")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.DB = n
	}

	c.Auth.JWTSecret = os.Getenv("AUTH_JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("AUTH_JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("AUTH_JWT_AUDIENCE"))

	c.Webhook.CallSecret = os.Getenv("CALL_WEBHOOK_SECRET")

	// Billing knobs are optional; defaults applied in Validate().
	{
		d, err := optionalDuration("RECONCILE_INTERVAL")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Billing.ReconcileInterval = d
	}
	{
		d, err := optionalDuration("RECONCILE_LOCK_TTL")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Billing.ReconcileLockTTL = d
	}
	{
		n, err := optionalInt("RECONCILE_WORKERS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Billing.ReconcileWorkers = n
	}
	{
		n, err := optionalInt("RECONCILE_BATCH_ACCOUNTS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Billing.ReconcileBatch = n
	}

	c.Notify.Sinks = splitList(os.Getenv("NOTIFY_SINKS"))
	c.Notify.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))
	c.Notify.KafkaTopic = strings.TrimSpace(os.Getenv("KAFKA_TOPIC"))
	c.Notify.RabbitMQURL = os.Getenv("RABBITMQ_URL")
	c.Notify.RabbitMQQueue = strings.TrimSpace(os.Getenv("RABBITMQ_QUEUE"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks every field and applies defaults for optional ones.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("REDIS_DB must be >= 0, got %d", c.Redis.DB))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	}
	if c.Auth.JWTAudience == "" {
		c.Auth.JWTAudience = "authenticated"
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("AUTH_JWT_ISSUER is required in production"))
		}
		if c.Webhook.CallSecret == "" {
			errs = append(errs, errors.New("CALL_WEBHOOK_SECRET is required in production"))
		}
	}

	if c.Billing.ReconcileInterval <= 0 {
		c.Billing.ReconcileInterval = 5 * time.Minute
	}
	if c.Billing.ReconcileWorkers <= 0 {
		c.Billing.ReconcileWorkers = 1
	}
	if c.Billing.ReconcileLockTTL <= 0 {
		c.Billing.ReconcileLockTTL = 2 * time.Minute
	}
	if c.Billing.ReconcileBatch <= 0 {
		c.Billing.ReconcileBatch = 100
	}

	if len(c.Notify.Sinks) == 0 {
		c.Notify.Sinks = []string{SinkPostgres, SinkLog}
	}
	for _, s := range c.Notify.Sinks {
		if !isValidSink(s) {
			errs = append(errs, fmt.Errorf("NOTIFY_SINKS entries must be postgres, kafka, rabbitmq or log, got %q", s))
		}
	}
	if c.Notify.Has(SinkKafka) {
		if len(c.Notify.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required when the kafka sink is enabled"))
		}
		if c.Notify.KafkaTopic == "" {
			errs = append(errs, errors.New("KAFKA_TOPIC is required when the kafka sink is enabled"))
		}
	}
	if c.Notify.Has(SinkRabbitMQ) {
		if c.Notify.RabbitMQURL == "" {
			errs = append(errs, errors.New("RABBITMQ_URL is required when the rabbitmq sink is enabled"))
		}
		if c.Notify.RabbitMQQueue == "" {
			errs = append(errs, errors.New("RABBITMQ_QUEUE is required when the rabbitmq sink is enabled"))
		}
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
}

func optionalDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 90s or 5m, got %q", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func isValidSink(v string) bool {
	switch v {
	case SinkPostgres, SinkKafka, SinkRabbitMQ, SinkLog:
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
