package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fieldpost/fieldpost/internal/output"
	"github.com/fieldpost/fieldpost/internal/syncconfig"
)

// validConfigKeys lists the supported config keys for set/get.
var validConfigKeys = []string{
	"sync.enabled",
	"sync.api_key",
	"sync.api_secret",
	"sync.url",
	"sync.auto",
	"sync.interval",
}

func isValidConfigKey(key string) bool {
	for _, k := range validConfigKeys {
		if k == key {
			return true
		}
	}
	return false
}

func parseBool(val string) (bool, error) {
	switch strings.ToLower(val) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q (use true/false/1/0)", val)
	}
}

// setConfigValue applies one key=value to the config.
func setConfigValue(cfg *syncconfig.Config, key, val string) error {
	switch key {
	case "sync.enabled":
		b, err := parseBool(val)
		if err != nil {
			return err
		}
		cfg.SyncEnabled = b
	case "sync.api_key":
		cfg.APIKey = val
	case "sync.api_secret":
		cfg.APISecret = val
	case "sync.url":
		cfg.BaseURL = val
	case "sync.auto":
		b, err := parseBool(val)
		if err != nil {
			return err
		}
		cfg.AutoSync = b
	case "sync.interval":
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid interval %q (seconds, must be positive)", val)
		}
		cfg.SyncIntervalSeconds = n
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// getConfigValue reads one key from the config.
func getConfigValue(cfg *syncconfig.Config, key string) (string, error) {
	switch key {
	case "sync.enabled":
		return strconv.FormatBool(cfg.SyncEnabled), nil
	case "sync.api_key":
		return cfg.APIKey, nil
	case "sync.api_secret":
		return cfg.APISecret, nil
	case "sync.url":
		return cfg.BaseURL, nil
	case "sync.auto":
		return strconv.FormatBool(cfg.AutoSync), nil
	case "sync.interval":
		return strconv.Itoa(cfg.SyncIntervalSeconds), nil
	}
	return "", fmt.Errorf("unknown config key: %s", key)
}

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage sync configuration",
	GroupID: "system",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]

		if !isValidConfigKey(key) {
			output.Error("unknown config key: %s", key)
			fmt.Println("Valid keys:", strings.Join(validConfigKeys, ", "))
			return fmt.Errorf("unknown config key: %s", key)
		}

		dir := dataDir()
		cfg := syncconfig.Load(dir)

		if err := setConfigValue(cfg, key, val); err != nil {
			output.Error("%v", err)
			return err
		}

		if err := syncconfig.Save(dir, cfg); err != nil {
			output.Error("save config: %v", err)
			return err
		}

		output.Success("set %s = %s", key, val)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a config value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		if !isValidConfigKey(key) {
			output.Error("unknown config key: %s", key)
			fmt.Println("Valid keys:", strings.Join(validConfigKeys, ", "))
			return fmt.Errorf("unknown config key: %s", key)
		}

		cfg := syncconfig.Load(dataDir())
		val, err := getConfigValue(cfg, key)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		fmt.Println(val)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all config values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := syncconfig.Load(dataDir())
		return output.JSON(cfg)
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
}
