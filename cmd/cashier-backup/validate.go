package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/sutaaa0/cashier-app-sub000/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file without connecting to the database or taking a backup.`,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		log.Error().Msg("config file is required")
		return cmd.Help()
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		log.Error().Str("file", configFile).Msg("config file not found")
		return fmt.Errorf("config file not found: %s", configFile)
	}

	cfg, err := config.NewParser().LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to parse config")
		return err
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Server:")
	fmt.Printf("  Listen: %s\n", cfg.Server.ListenAddr)
	fmt.Printf("  Admin token: %v\n", cfg.Server.AdminToken != "")
	fmt.Println()
	fmt.Println("Database:")
	fmt.Printf("  Host: %s\n", cfg.Database.Host)
	fmt.Printf("  Port: %d\n", cfg.Database.Port)
	fmt.Printf("  Database: %s\n", cfg.Database.Database)
	fmt.Println()
	fmt.Println("Backup:")
	fmt.Printf("  Directory: %s\n", cfg.Backup.Dir)
	fmt.Printf("  Timeout: %s\n", cfg.Backup.Timeout)
	fmt.Printf("  Time zone: %s\n", cfg.Backup.Location)
	fmt.Printf("  Default schedule: %s\n", cfg.Backup.Defaults.Schedule)
	fmt.Printf("  Default retention: %d day(s)\n", cfg.Backup.Defaults.RetentionDays)
	fmt.Printf("  Auto backup by default: %v\n", cfg.Backup.Defaults.AutoBackupEnabled)
	fmt.Println()
	fmt.Println("Reset:")
	fmt.Printf("  Transactional tables: %v\n", cfg.Reset.TransactionalTables)
	fmt.Printf("  Master tables: %v\n", cfg.Reset.MasterTables)
	fmt.Printf("  Preserve master data by default: %v\n", cfg.Reset.DefaultPreserveMaster)
	if cfg.Reset.BaselineSQLPath != "" {
		fmt.Printf("  Baseline SQL: %s\n", cfg.Reset.BaselineSQLPath)
	}
	fmt.Println()
	fmt.Println("Optional Features:")
	fmt.Printf("  Offsite mirror: %v\n", cfg.Offsite != nil)
	fmt.Printf("  Telegram: %v\n", cfg.Telegram != nil)

	if cfg.Offsite != nil {
		fmt.Println()
		fmt.Println("Offsite Configuration:")
		fmt.Printf("  Host: %s\n", cfg.Offsite.Host)
		fmt.Printf("  Port: %d\n", cfg.Offsite.Port)
		fmt.Printf("  Username: %s\n", cfg.Offsite.Username)
		fmt.Printf("  Remote dir: %s\n", cfg.Offsite.RemoteDir)
		if cfg.Offsite.WOL != nil {
			fmt.Printf("  Wake-on-LAN MAC: %s\n", cfg.Offsite.WOL.MACAddress)
		}
	}

	if cfg.Telegram != nil {
		fmt.Println()
		fmt.Println("Telegram Configuration:")
		fmt.Printf("  Chat ID: %s\n", cfg.Telegram.ChatID)
		fmt.Printf("  Bot Token: (configured)\n")
		fmt.Printf("  Notify on success: %v\n", cfg.Telegram.NotifySuccess)
	}

	return nil
}
