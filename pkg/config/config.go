// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API          APIConfig          `mapstructure:"api"`
	Providers    ProvidersConfig    `mapstructure:"providers"`
	Embedding    EmbeddingConfig    `mapstructure:"embedding"`
	Turn         TurnConfig         `mapstructure:"turn"`
	Session      SessionConfig      `mapstructure:"session"`
	Memory       MemoryConfig       `mapstructure:"memory"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Capabilities CapabilitiesConfig `mapstructure:"capabilities"`
	RateLimits   RateLimitsConfig   `mapstructure:"rate_limits"`
	Secrets      SecretsConfig      `mapstructure:"secrets"`
	Log          LogConfig          `mapstructure:"log"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int        `mapstructure:"port"`
	Host    string     `mapstructure:"host"`
	Timeout string     `mapstructure:"timeout"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// ProvidersConfig 生成后端配置：cloud 为联网主后端，local 为离线备用/隐私后端
type ProvidersConfig struct {
	Cloud ProviderConfig `mapstructure:"cloud"`
	Local ProviderConfig `mapstructure:"local"`
}

// ProviderConfig 单个生成后端配置
type ProviderConfig struct {
	Provider    string  `mapstructure:"provider"` // openai | qwen | claude | ollama
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"` // 支持 ${ENV_VAR} 占位
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Timeout     string  `mapstructure:"timeout"` // 单次生成调用上限，如 "60s"
}

// EmbeddingConfig Embedding 后端配置
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"` // openai | ollama | none
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Dimension int    `mapstructure:"dimension"`
}

// TurnConfig 单轮处理配置
type TurnConfig struct {
	MaxRounds         int    `mapstructure:"max_rounds"`         // 工具调用循环轮数上限，<=0 默认 3
	SystemPrompt      string `mapstructure:"system_prompt"`      // 默认 system prompt
	CapabilityTimeout string `mapstructure:"capability_timeout"` // 单次能力调用上限，如 "15s"
}

// SessionConfig 会话配置
type SessionConfig struct {
	MaxMessages   int         `mapstructure:"max_messages"`   // 每会话保留消息数上限，<=0 默认 50
	IdleTimeout   string      `mapstructure:"idle_timeout"`   // 空闲回收阈值，如 "30m"
	SweepInterval string      `mapstructure:"sweep_interval"` // 回收扫描间隔，如 "5m"
	Store         StoreConfig `mapstructure:"store"`
}

// MemoryConfig 长期记忆配置
type MemoryConfig struct {
	Store      StoreConfig      `mapstructure:"store"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
}

// RetrievalConfig 混合检索打分配置（缺省值见 memory 包）
type RetrievalConfig struct {
	Limit            int     `mapstructure:"limit"`
	Threshold        float64 `mapstructure:"threshold"`
	SimilarityWeight float64 `mapstructure:"similarity_weight"`
	RecencyWeight    float64 `mapstructure:"recency_weight"`
	GraceDays        int     `mapstructure:"grace_days"`
}

// ExtractionConfig 后台记忆抽取配置
type ExtractionConfig struct {
	Enable bool `mapstructure:"enable"`
}

// CacheConfig 响应缓存配置
type CacheConfig struct {
	TTL                 string      `mapstructure:"ttl"`         // 过期时间，如 "2h"
	MaxEntries          int         `mapstructure:"max_entries"` // 容量上限，<=0 默认 500
	SimilarityThreshold float64     `mapstructure:"similarity_threshold"`
	Store               StoreConfig `mapstructure:"store"` // type: memory | redis
}

// StoreConfig 存储后端配置（memory | postgres | redis）
type StoreConfig struct {
	Type     string `mapstructure:"type"`
	DSN      string `mapstructure:"dsn"`
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// CapabilitiesConfig 内置能力配置
type CapabilitiesConfig struct {
	Currency CurrencyCapabilityConfig `mapstructure:"currency"`
	Jobs     JobsCapabilityConfig     `mapstructure:"jobs"`
}

// CurrencyCapabilityConfig 汇率换算能力配置
type CurrencyCapabilityConfig struct {
	Enable  bool   `mapstructure:"enable"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// JobsCapabilityConfig 职位检索能力配置
type JobsCapabilityConfig struct {
	Enable  bool   `mapstructure:"enable"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// RateLimitsConfig LLM Provider 限流配置
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// SecretsConfig Secret Store 配置（API Key 可来自 env/vault）
type SecretsConfig struct {
	Provider string            `mapstructure:"provider"` // env | memory | vault
	Config   map[string]string `mapstructure:"config"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// replaceEnvVars 替换配置中形如 ${ENV_VAR} 的 API Key 占位
func replaceEnvVars(config *Config) {
	config.Providers.Cloud.APIKey = expandEnv(config.Providers.Cloud.APIKey)
	config.Providers.Local.APIKey = expandEnv(config.Providers.Local.APIKey)
	config.Embedding.APIKey = expandEnv(config.Embedding.APIKey)
	config.Capabilities.Currency.APIKey = expandEnv(config.Capabilities.Currency.APIKey)
	config.Capabilities.Jobs.APIKey = expandEnv(config.Capabilities.Jobs.APIKey)
}

func expandEnv(v string) string {
	if !strings.HasPrefix(v, "$") {
		return v
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(v, "}"), "${")
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return v
}
