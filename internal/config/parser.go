// Package config provides configuration file parsing.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
	"github.com/sutaaa0/cashier-app-sub000/internal/services/scheduler"
)

const envPrefix = "CASHIER"

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Default table classification of the cashier schema.
var (
	DefaultTransactionalTables = []string{
		"sale_items",
		"sales",
		"return_items",
		"returns",
		"stock_movements",
		"member_point_histories",
		"activity_logs",
	}
	// User accounts are not master data for a reset: the administrator
	// running it must still be able to log in afterwards.
	DefaultMasterTables = []string{
		"promotions",
		"customers",
		"products",
		"categories",
	}
)

// Parser handles configuration file parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser. Every key can be overridden
// by an environment variable, e.g. CASHIER_DATABASE_PASSWORD.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Parser{v: v}
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.AppConfig, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a reader (useful for testing).
func (p *Parser) LoadReader(content string) (*models.AppConfig, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

//nolint:gocognit,gocyclo // parsing config requires checking many fields
func (p *Parser) parse() (*models.AppConfig, error) {
	cfg := &models.AppConfig{}

	// Server.
	cfg.Server = models.ServerConfig{
		ListenAddr:   p.v.GetString("server.listen_addr"),
		AdminToken:   p.expandEnv(p.v.GetString("server.admin_token")),
		ReadTimeout:  p.v.GetDuration("server.read_timeout"),
		WriteTimeout: p.v.GetDuration("server.write_timeout"),
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 35 * time.Minute
	}

	// Database (required).
	cfg.Database = models.PostgresConfig{
		Host:     p.v.GetString("database.host"),
		Port:     p.v.GetInt("database.port"),
		Database: p.v.GetString("database.name"),
		Username: p.expandEnv(p.v.GetString("database.username")),
		Password: p.expandEnv(p.v.GetString("database.password")),
		SSLMode:  p.v.GetString("database.sslmode"),
	}
	if cfg.Database.Database == "" {
		return nil, fmt.Errorf("database.name is required")
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.Username == "" {
		cfg.Database.Username = "postgres"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	// Backup.
	cfg.Backup = models.BackupConfig{
		Dir:           p.expandEnv(p.v.GetString("backup.dir")),
		PgDumpPath:    p.v.GetString("backup.pg_dump_path"),
		Timeout:       p.v.GetDuration("backup.timeout"),
		PollInterval:  p.v.GetDuration("backup.poll_interval"),
		SweepInterval: p.v.GetDuration("backup.sweep_interval"),
		Defaults: models.BackupSettings{
			AutoBackupEnabled: p.v.GetBool("backup.defaults.auto_backup_enabled"),
			Schedule:          p.v.GetString("backup.defaults.schedule"),
			RetentionDays:     p.v.GetInt("backup.defaults.retention_days"),
			Destination:       models.DestinationLocal,
		},
	}
	if cfg.Backup.Dir == "" {
		return nil, fmt.Errorf("backup.dir is required")
	}
	if cfg.Backup.PgDumpPath == "" {
		cfg.Backup.PgDumpPath = "pg_dump"
	}
	if cfg.Backup.Timeout == 0 {
		cfg.Backup.Timeout = 30 * time.Minute
	}
	if cfg.Backup.PollInterval == 0 {
		cfg.Backup.PollInterval = 30 * time.Second
	}
	if cfg.Backup.PollInterval > time.Minute {
		return nil, fmt.Errorf("backup.poll_interval must not exceed 1m, got %s", cfg.Backup.PollInterval)
	}
	if cfg.Backup.SweepInterval == 0 {
		cfg.Backup.SweepInterval = time.Hour
	}
	if cfg.Backup.SweepInterval > 24*time.Hour {
		return nil, fmt.Errorf("backup.sweep_interval must not exceed 24h, got %s", cfg.Backup.SweepInterval)
	}

	cfg.Backup.Location = time.Local
	if tz := p.v.GetString("backup.timezone"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("backup.timezone: %w", err)
		}
		cfg.Backup.Location = loc
	}

	if cfg.Backup.Defaults.Schedule == "" {
		cfg.Backup.Defaults.Schedule = "0 0 * * *"
	}
	if _, err := scheduler.ParseSchedule(cfg.Backup.Defaults.Schedule); err != nil {
		return nil, fmt.Errorf("backup.defaults.schedule: %w", err)
	}
	if cfg.Backup.Defaults.RetentionDays == 0 {
		cfg.Backup.Defaults.RetentionDays = 30
	}
	if cfg.Backup.Defaults.RetentionDays < 1 || cfg.Backup.Defaults.RetentionDays > 365 {
		return nil, fmt.Errorf("backup.defaults.retention_days must be between 1 and 365")
	}

	// Reset.
	cfg.Reset = models.ResetConfig{
		DefaultConfirmationCode: p.expandEnv(p.v.GetString("reset.defaults.confirmation_code")),
		DefaultPreserveMaster:   true,
		TransactionalTables:     p.v.GetStringSlice("reset.transactional_tables"),
		MasterTables:            p.v.GetStringSlice("reset.master_tables"),
		BaselineSQLPath:         p.expandEnv(p.v.GetString("reset.baseline_sql")),
	}
	if p.v.IsSet("reset.defaults.preserve_master_data") {
		cfg.Reset.DefaultPreserveMaster = p.v.GetBool("reset.defaults.preserve_master_data")
	}
	if cfg.Reset.DefaultConfirmationCode == "" {
		cfg.Reset.DefaultConfirmationCode = "RESET"
	}
	if len(cfg.Reset.TransactionalTables) == 0 {
		cfg.Reset.TransactionalTables = DefaultTransactionalTables
	}
	if len(cfg.Reset.MasterTables) == 0 {
		cfg.Reset.MasterTables = DefaultMasterTables
	}
	for _, table := range append(append([]string{}, cfg.Reset.TransactionalTables...), cfg.Reset.MasterTables...) {
		if !tableNameRegex.MatchString(table) {
			return nil, fmt.Errorf("reset: invalid table name %q", table)
		}
	}

	// Parse optional offsite mirror config.
	if p.v.IsSet("offsite") { //nolint:nestif // config parsing with defaults
		cfg.Offsite = &models.OffsiteConfig{
			Host:      p.v.GetString("offsite.host"),
			Port:      p.v.GetInt("offsite.port"),
			Username:  p.v.GetString("offsite.username"),
			KeyPath:   p.expandEnv(p.v.GetString("offsite.key_path")),
			RemoteDir: p.v.GetString("offsite.remote_dir"),
			Timeout:   p.v.GetDuration("offsite.timeout"),
		}
		cfg.Offsite.KnownHostsPath = p.expandEnv(p.v.GetString("offsite.known_hosts"))

		if cfg.Offsite.Host == "" {
			return nil, fmt.Errorf("offsite.host is required when offsite is configured")
		}
		if cfg.Offsite.KeyPath == "" {
			return nil, fmt.Errorf("offsite.key_path is required when offsite is configured")
		}
		if cfg.Offsite.RemoteDir == "" {
			return nil, fmt.Errorf("offsite.remote_dir is required when offsite is configured")
		}
		if cfg.Offsite.Port == 0 {
			cfg.Offsite.Port = 22
		}
		if cfg.Offsite.Username == "" {
			cfg.Offsite.Username = "backup"
		}
		if cfg.Offsite.Timeout == 0 {
			cfg.Offsite.Timeout = 30 * time.Minute
		}

		if p.v.IsSet("offsite.wol") {
			cfg.Offsite.WOL = &models.WOLConfig{
				MACAddress:   p.v.GetString("offsite.wol.mac_address"),
				BroadcastIP:  p.v.GetString("offsite.wol.broadcast_ip"),
				Timeout:      p.v.GetDuration("offsite.wol.timeout"),
				PollInterval: p.v.GetDuration("offsite.wol.poll_interval"),
			}
			if cfg.Offsite.WOL.MACAddress == "" {
				return nil, fmt.Errorf("offsite.wol.mac_address is required when offsite.wol is configured")
			}
			if cfg.Offsite.WOL.BroadcastIP == "" {
				cfg.Offsite.WOL.BroadcastIP = "255.255.255.255"
			}
			if cfg.Offsite.WOL.Timeout == 0 {
				cfg.Offsite.WOL.Timeout = 5 * time.Minute
			}
			if cfg.Offsite.WOL.PollInterval == 0 {
				cfg.Offsite.WOL.PollInterval = 10 * time.Second
			}
		}
	}

	// Parse optional Telegram config.
	if p.v.IsSet("telegram") {
		cfg.Telegram = &models.TelegramConfig{
			BotToken:      p.expandEnv(p.v.GetString("telegram.bot_token")),
			ChatID:        p.expandEnv(p.v.GetString("telegram.chat_id")),
			NotifySuccess: p.v.GetBool("telegram.notify_success"),
		}

		if cfg.Telegram.BotToken == "" {
			return nil, fmt.Errorf("telegram.bot_token is required when telegram is configured")
		}
		if cfg.Telegram.ChatID == "" {
			return nil, fmt.Errorf("telegram.chat_id is required when telegram is configured")
		}
	}

	return cfg, nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.Database.Database == "" {
		return fmt.Errorf("database.name is required")
	}

	if cfg.Backup.Dir == "" {
		return fmt.Errorf("backup.dir is required")
	}

	if len(cfg.Reset.TransactionalTables) == 0 {
		return fmt.Errorf("reset.transactional_tables must not be empty")
	}

	seen := make(map[string]bool)
	for _, table := range cfg.Reset.TransactionalTables {
		seen[table] = true
	}
	for _, table := range cfg.Reset.MasterTables {
		if seen[table] {
			return fmt.Errorf("reset: table %q is listed as both transactional and master data", table)
		}
	}

	if cfg.Reset.BaselineSQLPath != "" {
		if _, err := os.Stat(cfg.Reset.BaselineSQLPath); err != nil {
			return fmt.Errorf("reset.baseline_sql: %w", err)
		}
	}

	return nil
}
