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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfig tests configuration loading
// TestLoadConfig 测试配置加载
func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
storage_dir: /var/lib/sota-agent
timeout_seconds: 120
vin_match: "sota/vin/([a-zA-Z0-9]+)"

bus:
  edge: ":9090"
  rvi: "http://127.0.0.1:8901"

log:
  level: debug
  file: /tmp/agent.log
  max_size: 50
  max_backups: 5
  max_age: 14
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "/var/lib/sota-agent", cfg.StorageDir)
	assert.Equal(t, 120, cfg.TimeoutSeconds)
	assert.Equal(t, ":9090", cfg.Bus.Edge)
	assert.Equal(t, "http://127.0.0.1:8901", cfg.Bus.RVI)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/agent.log", cfg.Log.File)
	assert.Equal(t, 50, cfg.Log.MaxSize)
	assert.Equal(t, 5, cfg.Log.MaxBackups)
	assert.Equal(t, 14, cfg.Log.MaxAge)
}

// TestLoadConfigDefaults tests default configuration values
// TestLoadConfigDefaults 测试默认配置值
func TestLoadConfigDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
storage_dir: /var/lib/sota-agent
bus:
  rvi: "http://127.0.0.1:8901"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, DefaultTimeoutSeconds, cfg.TimeoutSeconds)
	assert.Equal(t, DefaultVINMatch, cfg.VINMatch)
	assert.Equal(t, DefaultBusEdge, cfg.Bus.Edge)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultLogFile, cfg.Log.File)
	assert.Equal(t, DefaultLogMaxSize, cfg.Log.MaxSize)
	assert.Equal(t, DefaultLogMaxBackups, cfg.Log.MaxBackups)
	assert.Equal(t, DefaultLogMaxAge, cfg.Log.MaxAge)
}

// TestValidateConfig tests configuration validation
// TestValidateConfig 测试配置验证
func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: &Config{
				StorageDir: "/var/lib/sota-agent",
				Bus:        BusConfig{RVI: "http://127.0.0.1:8901"},
				Log:        LogConfig{Level: "info"},
			},
			wantErr: false,
		},
		{
			name: "missing storage dir",
			config: &Config{
				Bus: BusConfig{RVI: "http://127.0.0.1:8901"},
				Log: LogConfig{Level: "info"},
			},
			wantErr: true,
			errMsg:  "storage_dir is required",
		},
		{
			name: "missing bus rvi",
			config: &Config{
				StorageDir: "/var/lib/sota-agent",
				Log:        LogConfig{Level: "info"},
			},
			wantErr: true,
			errMsg:  "bus.rvi is required",
		},
		{
			name: "negative timeout",
			config: &Config{
				StorageDir:     "/var/lib/sota-agent",
				TimeoutSeconds: -1,
				Bus:            BusConfig{RVI: "http://127.0.0.1:8901"},
				Log:            LogConfig{Level: "info"},
			},
			wantErr: true,
			errMsg:  "timeout_seconds must not be negative",
		},
		{
			name: "invalid log level",
			config: &Config{
				StorageDir: "/var/lib/sota-agent",
				Bus:        BusConfig{RVI: "http://127.0.0.1:8901"},
				Log:        LogConfig{Level: "invalid"},
			},
			wantErr: true,
			errMsg:  "invalid log level",
		},
		{
			name: "invalid vin_match regex",
			config: &Config{
				StorageDir: "/var/lib/sota-agent",
				VINMatch:   "(unterminated",
				Bus:        BusConfig{RVI: "http://127.0.0.1:8901"},
				Log:        LogConfig{Level: "info"},
			},
			wantErr: true,
			errMsg:  "invalid vin_match regex",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestConfigString tests the String method
// TestConfigString 测试 String 方法
func TestConfigString(t *testing.T) {
	cfg := &Config{
		StorageDir:     "/var/lib/sota-agent",
		TimeoutSeconds: 300,
		Bus:            BusConfig{RVI: "http://127.0.0.1:8901"},
		Log:            LogConfig{Level: "info"},
	}

	str := cfg.String()
	assert.Contains(t, str, "/var/lib/sota-agent")
	assert.Contains(t, str, "http://127.0.0.1:8901")
	assert.Contains(t, str, "300")
	assert.Contains(t, str, "info")
}

// TestLoadConfigFromEnv tests loading config from environment variables
// TestLoadConfigFromEnv 测试从环境变量加载配置
func TestLoadConfigFromEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
storage_dir: /var/lib/sota-agent
bus:
  rvi: "http://127.0.0.1:8901"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	os.Setenv("SOTA_AGENT_LOG_LEVEL", "debug")
	defer os.Unsetenv("SOTA_AGENT_LOG_LEVEL")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "debug", cfg.Log.Level)
}
