package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Env holds the bootstrap settings loaded from the process environment.
// Everything that identifies the operator installation lives here; mutable
// runtime settings live in Config and override these after LoadConfig.
type Env struct {
	BotToken        string `env:"TELEGRAM_BOT_TOKEN,required"`
	APIToken        string `env:"WB_TOKEN,required"`
	GroupChatID     int64  `env:"GROUP_CHAT_ID,required"`
	AdminUserID     int64  `env:"ADMIN_USER_ID,required"`
	TokenIssued     string `env:"WB_TOKEN_CREATION_DATE" envDefault:"2026-08-07"`
	TokenValidDays  int    `env:"WB_TOKEN_EXPIRY_DAYS" envDefault:"182"`
	PrinterName     string `env:"DEFAULT_PRINTER" envDefault:"Xprinter XP-365B"`
	AutoPrint       bool   `env:"AUTO_PRINT_ENABLED" envDefault:"true"`
	AutoStart       bool   `env:"AUTO_START_ENABLED" envDefault:"false"`
	DownloadDir     string `env:"DOWNLOAD_DIR" envDefault:""`
	MarketplaceURL  string `env:"MARKETPLACE_BASE_URL" envDefault:""`
	TelegramBaseURL string `env:"TELEGRAM_BASE_URL" envDefault:""`
}

// LoadEnv reads an optional .env file into the process environment and then
// parses the bootstrap settings. A missing .env file is not an error; missing
// required variables are.
func LoadEnv(envFile string) (Env, error) {
	if envFile != "" {
		if err := LoadEnvFile(envFile); err != nil && !os.IsNotExist(err) {
			return Env{}, err
		}
	}
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("error parsing environment: %w", err)
	}
	return e, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a file into the process environment.
// Blank lines and lines starting with # are skipped. Quotes around values are
// stripped.
func LoadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		slog.Error("error opening env file", "error", err)
		return fmt.Errorf("error opening env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid env line format: %s", line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("error setting env variable %s: %w", key, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading env file: %w", err)
	}

	return nil
}
