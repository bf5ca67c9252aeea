/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config provides configuration management for the SOTA agent.
// config 包提供 SOTA agent 的配置管理功能。
//
// Configuration loading priority (highest to lowest):
// 配置加载优先级（从高到低）：
// 1. Command line arguments / 命令行参数
// 2. Environment variables / 环境变量
// 3. Configuration file / 配置文件
// 4. Default values / 默认值
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values
// 默认配置值
const (
	DefaultConfigPath     = "/etc/sota-agent/config.yaml"
	DefaultTimeoutSeconds = 300
	DefaultVINMatch       = `sota/vin/([a-zA-Z0-9]+)`
	DefaultBusEdge        = ":9080"
	DefaultLogLevel       = "info"
	DefaultLogFile        = "/var/log/sota-agent/agent.log"
	DefaultLogMaxSize     = 100 // MB
	DefaultLogMaxBackups  = 3
	DefaultLogMaxAge      = 7 // days
)

// Config represents the Agent configuration
// Config 表示 Agent 配置
type Config struct {
	// StorageDir is the root directory under which downloads/ and
	// packages/ are created. Required.
	// StorageDir 是 downloads/ 和 packages/ 所在的根目录，必填。
	StorageDir string `mapstructure:"storage_dir"`

	// TimeoutSeconds is the transfer eviction timeout; zero disables the
	// sweeper entirely.
	// TimeoutSeconds 是传输淘汰超时时间；为零时完全禁用清扫器。
	TimeoutSeconds int `mapstructure:"timeout_seconds"`

	// VINMatch is the regex run over the bus's registered service list
	// to extract the device identifier. Compiled at Validate time; an
	// empty value compiles DefaultVINMatch instead.
	// VINMatch 是在总线注册的服务列表上运行以提取设备标识符的正则表达式。
	VINMatch string `mapstructure:"vin_match"`

	// Bus configuration / 总线配置
	Bus BusConfig `mapstructure:"bus"`

	// Log configuration / 日志配置
	Log LogConfig `mapstructure:"log"`

	vinMatch *regexp.Regexp
}

// BusConfig contains the vehicle-interaction bus addresses.
// BusConfig 包含车载交互总线的地址
type BusConfig struct {
	// Edge is the listen address for the inbound JSON-RPC HTTP edge.
	// Edge 是入站 JSON-RPC HTTP 边缘的监听地址
	Edge string `mapstructure:"edge"`

	// RVI is the base URL the register handshake dials at startup.
	// RVI 是启动时注册握手拨打的基础 URL
	RVI string `mapstructure:"rvi"`
}

// LogConfig contains logging settings
// LogConfig 包含日志设置
type LogConfig struct {
	// Level is the log level (debug, info, warn, error)
	// Level 是日志级别（debug, info, warn, error）
	Level string `mapstructure:"level"`

	// File is the log file path
	// File 是日志文件路径
	File string `mapstructure:"file"`

	// MaxSize is the maximum size of log file in MB before rotation
	// MaxSize 是日志文件轮转前的最大大小（MB）
	MaxSize int `mapstructure:"max_size"`

	// MaxBackups is the maximum number of old log files to retain
	// MaxBackups 是保留的旧日志文件的最大数量
	MaxBackups int `mapstructure:"max_backups"`

	// MaxAge is the maximum number of days to retain old log files
	// MaxAge 是保留旧日志文件的最大天数
	MaxAge int `mapstructure:"max_age"`
}

// Timeout returns TimeoutSeconds as a time.Duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// VINMatchRegexp returns the compiled VINMatch pattern. Validate must be
// called first.
func (c *Config) VINMatchRegexp() *regexp.Regexp {
	return c.vinMatch
}

// Load loads configuration from file and environment variables
// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if envPath := os.Getenv("SOTA_AGENT_CONFIG_PATH"); envPath != "" {
		v.SetConfigFile(envPath)
	} else {
		v.SetConfigFile(DefaultConfigPath)
	}

	v.SetEnvPrefix("SOTA_AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("timeout_seconds", DefaultTimeoutSeconds)
	v.SetDefault("vin_match", DefaultVINMatch)

	v.SetDefault("bus.edge", DefaultBusEdge)
	v.SetDefault("bus.rvi", "")

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.file", DefaultLogFile)
	v.SetDefault("log.max_size", DefaultLogMaxSize)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age", DefaultLogMaxAge)
}

// Validate validates the configuration and compiles VINMatch. A regex
// compile failure is a fatal startup error, never a runtime one.
// Validate 验证配置并编译 VINMatch。正则表达式编译失败是致命的启动错误，而非运行时错误。
func (c *Config) Validate() error {
	if c.StorageDir == "" {
		return errors.New("storage_dir is required")
	}
	if c.Bus.RVI == "" {
		return errors.New("bus.rvi is required")
	}
	if c.TimeoutSeconds < 0 {
		return errors.New("timeout_seconds must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	pattern := c.VINMatch
	if pattern == "" {
		pattern = DefaultVINMatch
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid vin_match regex: %w", err)
	}
	c.vinMatch = re

	return nil
}

// String returns a string representation of the config (for debugging)
// String 返回配置的字符串表示（用于调试）
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{StorageDir: %s, TimeoutSeconds: %d, Bus.RVI: %s, Log.Level: %s}",
		c.StorageDir, c.TimeoutSeconds, c.Bus.RVI, c.Log.Level,
	)
}

// ToYAML serializes the configuration to YAML format
// ToYAML 将配置序列化为 YAML 格式
func (c *Config) ToYAML() ([]byte, error) {
	yamlContent := fmt.Sprintf(`storage_dir: "%s"
timeout_seconds: %d
vin_match: "%s"

bus:
  edge: "%s"
  rvi: "%s"

log:
  level: "%s"
  file: "%s"
  max_size: %d
  max_backups: %d
  max_age: %d
`,
		c.StorageDir,
		c.TimeoutSeconds,
		c.VINMatch,
		c.Bus.Edge,
		c.Bus.RVI,
		c.Log.Level,
		c.Log.File,
		c.Log.MaxSize,
		c.Log.MaxBackups,
		c.Log.MaxAge,
	)
	return []byte(yamlContent), nil
}

// LoadFromYAML loads configuration from YAML bytes
// LoadFromYAML 从 YAML 字节加载配置
func LoadFromYAML(yamlData []byte) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadConfig(strings.NewReader(string(yamlData))); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Equal compares two configs for equality
// Equal 比较两个配置是否相等
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}

	if c.StorageDir != other.StorageDir {
		return false
	}
	if c.TimeoutSeconds != other.TimeoutSeconds {
		return false
	}
	if c.VINMatch != other.VINMatch {
		return false
	}
	if c.Bus != other.Bus {
		return false
	}
	if c.Log != other.Log {
		return false
	}

	return true
}

// LoadWithPriority loads configuration with explicit priority handling
// LoadWithPriority 使用显式优先级处理加载配置
// Priority: cmdArgs > envVars > configFile > defaults
// 优先级：命令行参数 > 环境变量 > 配置文件 > 默认值
func LoadWithPriority(configPath string, cmdArgs map[string]interface{}) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if envPath := os.Getenv("SOTA_AGENT_CONFIG_PATH"); envPath != "" {
		v.SetConfigFile(envPath)
	} else {
		v.SetConfigFile(DefaultConfigPath)
	}

	v.SetEnvPrefix("SOTA_AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	for key, value := range cmdArgs {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
