// Package metrics содержит счётчики Prometheus сервиса. Регистрируются в
// глобальном реестре и отдаются через /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gig_escrow"

var (
	// EscrowBuilds считает сборки неподписанных транзакций по операциям и исходу.
	EscrowBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "escrow_builds_total",
		Help:      "Unsigned transactions built, by action and outcome code.",
	}, []string{"action", "outcome"})

	// EscrowCommits считает попытки коммита, outcome равен коду ошибки или "ok".
	EscrowCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "escrow_commits_total",
		Help:      "Commit attempts, by action and outcome code.",
	}, []string{"action", "outcome"})

	ChainStatusDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "chain_status_seconds",
		Help:      "Latency of signature status lookups against the RPC node.",
		Buckets:   prometheus.DefBuckets,
	})

	// GigsExpired считает переведённые в expired задания, path = lazy | batch.
	GigsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gigs_expired_total",
		Help:      "Gigs moved to expired, by detection path.",
	}, []string{"path"})

	// ExpirySweeps считает запуски пакетной проверки (ran, throttled, failed).
	ExpirySweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expiry_sweeps_total",
		Help:      "Batch expiry sweep attempts, by result.",
	}, []string{"result"})

	// ConfigCacheReads считает чтения настроек платформы по источнику.
	ConfigCacheReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "platform_config_reads_total",
		Help:      "Platform config cache reads, by source.",
	}, []string{"source"})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_clients",
		Help:      "Connected websocket clients.",
	})
)
