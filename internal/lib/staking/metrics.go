package staking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promTotalStaked = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "hatm",
		Name:      "staked_total",
	})
	promNumStakers = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "hatm",
		Name:      "staker_count",
	})
	promRewardPool = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "hatm",
		Name:      "reward_pool",
	})
	promDecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "hatm",
		Name:      "decode_failure_count",
	})
	promSubmitRetries = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "hatm",
		Name:      "submit_retry_count",
	})
	promRemoteFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "hatm",
		Name:      "remote_fallback_count",
	})
)
