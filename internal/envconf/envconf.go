package envconf

type DBConf struct {
	SQLLite     bool   `env:"SQL_LITE,default=true"`
	SQLLitePath string `env:"SQL_LITE_PATH,default=./wpmend.db"`

	PostgresHost     string `env:"POSTGRES_HOST,default=postgres"`
	PostgresPort     uint   `env:"POSTGRES_PORT,default=5432"`
	PostgresUsername string `env:"POSTGRES_USER,default=postgres"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresDB       string `env:"POSTGRES_DB,default=wpmend"`
}

type SSHConf struct {
	ConnectTimeoutSeconds uint `env:"SSH_CONNECT_TIMEOUT,default=30"`
	CommandTimeoutSeconds uint `env:"SSH_COMMAND_TIMEOUT,default=120"`

	MaxPoolSizePerServer uint `env:"SSH_MAX_POOL_SIZE,default=4"`
	PoolIdleEvictSeconds uint `env:"SSH_POOL_IDLE_EVICT,default=300"`
	PoolSweepSeconds     uint `env:"SSH_POOL_SWEEP_INTERVAL,default=60"`

	// CredentialKey is the hex-encoded 32-byte AES key used to decrypt
	// stored server credentials.
	CredentialKey string `env:"CREDENTIAL_ENCRYPTION_KEY"`
}

type RemediationConf struct {
	DefaultMaxFixAttempts uint `env:"DEFAULT_MAX_FIX_ATTEMPTS,default=15"`
	PhaseRetryBudget      uint `env:"PHASE_RETRY_BUDGET,default=3"`
}

type RetentionConf struct {
	RetentionDays        uint `env:"RETENTION_DAYS,default=90"`
	SweepCap             uint `env:"RETENTION_SWEEP_CAP,default=100"`
	SweepIntervalMinutes uint `env:"RETENTION_SWEEP_INTERVAL,default=60"`
}

type RedisConf struct {
	Enabled       bool   `env:"REDIS_ENABLED,default=false"`
	RedisHost     string `env:"REDIS_HOST,default=redis"`
	RedisPort     string `env:"REDIS_PORT,default=6379"`
	RedisUsername string `env:"REDIS_USER"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`
}

type NotifyConf struct {
	WebhookHost  string `env:"NOTIFY_WEBHOOK_HOST"`
	WebhookToken string `env:"NOTIFY_WEBHOOK_TOKEN"`
}

type EnvDecoderConf struct {
	Debug      bool `env:"DEBUG,default=true"`
	ServerPort uint `env:"SERVER_PORT,default=10001"`
	OpsPort    uint `env:"OPS_PORT,default=10002"`

	DBConf          DBConf
	SSHConf         SSHConf
	RemediationConf RemediationConf
	RetentionConf   RetentionConf
	RedisConf       RedisConf
	NotifyConf      NotifyConf
}
