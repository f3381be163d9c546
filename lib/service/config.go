package service

type Config struct {
	DatabaseUri             string  `envconfig:"DATABASE_URI" required:"true"`
	DatabaseMaxConns        int     `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMaxIdleConns    int     `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	DatabaseConnMaxLifetime int     `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"1800"` // 30 minutes
	DatabaseTimeout         int     `envconfig:"DATABASE_TIMEOUT" default:"60"`             // 60 seconds
	SentryDSN               string  `envconfig:"SENTRY_DSN"`
	DatadogAgentUrl         string  `envconfig:"DATADOG_AGENT_URL"`
	SentryTracesSampleRate  float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE"`
	LogFilePath             string  `envconfig:"LOG_FILE_PATH"`
	LogLevel                string  `envconfig:"LOG_LEVEL" default:"info"`
	JWTSecret               []byte  `envconfig:"JWT_SECRET" required:"true"`
	JWTExpiry               int     `envconfig:"JWT_EXPIRY" default:"604800"` // in seconds, default 7 days
	AdminToken              string  `envconfig:"ADMIN_TOKEN"`
	AuthMessage             string  `envconfig:"AUTH_MESSAGE" default:"Sign in to InvoiceFlow"`
	AuthMaxSkew             int     `envconfig:"AUTH_MAX_SKEW" default:"300"` // in seconds
	Host                    string  `envconfig:"HOST" default:"localhost:3001"`
	Port                    int     `envconfig:"PORT" default:"3001"`
	DefaultRateLimit        int     `envconfig:"DEFAULT_RATE_LIMIT" default:"10"`
	StrictRateLimit         int     `envconfig:"STRICT_RATE_LIMIT" default:"10"`
	BurstRateLimit          int     `envconfig:"BURST_RATE_LIMIT" default:"1"`
	EnablePrometheus        bool    `envconfig:"ENABLE_PROMETHEUS" default:"false"`
	PrometheusPort          int     `envconfig:"PROMETHEUS_PORT" default:"9092"`
	EnableListener          bool    `envconfig:"ENABLE_LISTENER" default:"true"`
	WebhookUrl              string  `envconfig:"WEBHOOK_URL"`
	RabbitMQUri             string  `envconfig:"RABBITMQ_URI"`
	RabbitMQExchange        string  `envconfig:"RABBITMQ_NOTIFICATION_EXCHANGE" default:"invoiceflow_notifications"`
	RabbitMQSyncExchange    string  `envconfig:"RABBITMQ_SYNC_EXCHANGE" default:"invoiceflow_sync"`
	RabbitMQSyncQueueName   string  `envconfig:"RABBITMQ_SYNC_QUEUE_NAME" default:"invoiceflow_sync_consumer"`
	DefaultPageSize         int     `envconfig:"DEFAULT_PAGE_SIZE" default:"20"`
	MaxPageSize             int     `envconfig:"MAX_PAGE_SIZE" default:"100"`
}
