package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		TurnDuration, TurnTotal, CacheLookupTotal,
		ProviderCallTotal, ProviderFallbackTotal,
		CapabilityDuration, LLMTokensTotal,
		RateLimitWaitSeconds, MemoryRetrievedTotal,
	)
}

// TurnDuration 单轮对话处理耗时（秒）
var TurnDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "assistant_turn_duration_seconds",
		Help:    "单轮对话处理耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"outcome"}, // ok | cached | failed
)

// TurnTotal 轮次总数（按结果）
var TurnTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "assistant_turn_total",
		Help: "轮次总数（按结果）",
	},
	[]string{"outcome"}, // ok | cached | failed
)

// CacheLookupTotal 响应缓存查询总数
var CacheLookupTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "assistant_cache_lookup_total",
		Help: "响应缓存查询总数",
	},
	[]string{"result"}, // exact | approximate | miss | bypass
)

// ProviderCallTotal 生成后端调用总数
var ProviderCallTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "assistant_provider_call_total",
		Help: "生成后端调用总数",
	},
	[]string{"provider", "status"}, // status: ok | saturated | error
)

// ProviderFallbackTotal 主后端饱和后切换到备用后端的次数
var ProviderFallbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "assistant_provider_fallback_total",
		Help: "主后端饱和后切换到备用后端的次数",
	},
	[]string{"from", "to"},
)

// CapabilityDuration 能力调用耗时（秒）
var CapabilityDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "assistant_capability_duration_seconds",
		Help:    "能力调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"capability"},
)

// LLMTokensTotal LLM 调用 token 数
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "assistant_llm_tokens_total",
		Help: "LLM 调用 token 总数",
	},
	[]string{"direction"}, // input | output
)

// RateLimitWaitSeconds 限流等待耗时（秒）
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "assistant_rate_limit_wait_seconds",
		Help:    "限流等待耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind", "provider"},
)

// MemoryRetrievedTotal 记忆检索返回的记录总数
var MemoryRetrievedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "assistant_memory_retrieved_total",
		Help: "记忆检索返回的记录总数",
	},
	[]string{"mode"}, // semantic | keyword
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
