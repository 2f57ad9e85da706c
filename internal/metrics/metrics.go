// Package metrics объявляет счётчики Prometheus для леджера, выплат и курса.
// Отдаются на /metrics HTTP-сервером.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Операции леджера по типу и результату (ok|rejected|error)
	LedgerOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fazenda_ledger_operations_total",
			Help: "Ledger operations by kind and result",
		},
		[]string{"kind", "result"},
	)

	// Выплаты по исходу (payout|voucher|reversed|liquidity|reverse_failed)
	Withdrawals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fazenda_withdrawals_total",
			Help: "Withdrawals by outcome",
		},
		[]string{"outcome"},
	)

	StuckWithdrawals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fazenda_withdrawals_stuck",
			Help: "Withdrawals left in processing longer than expected",
		},
	)

	// Депозиты из вебхука (credited|duplicate|ignored|bad_signature)
	Deposits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fazenda_deposits_total",
			Help: "Deposit webhook deliveries by result",
		},
		[]string{"result"},
	)

	PriceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fazenda_price_fetches_total",
			Help: "Price source fetches by source and result",
		},
		[]string{"source", "result"},
	)

	PriceCurrent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fazenda_price_current",
			Help: "Last accepted crypto price in local fiat",
		},
	)

	CallbackTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fazenda_callback_tokens_total",
			Help: "Callback token consumption by result",
		},
		[]string{"result"},
	)

	// Задержка HTTP (вебхук, /healthz) по шаблону маршрута
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fazenda_http_request_duration_seconds",
			Help:    "Latency of HTTP requests by method, route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	Panics = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fazenda_bot_panics_total",
			Help: "Recovered panics in update handlers",
		},
	)

	registerOnce sync.Once
)

// Handler отдаёт метрики для /metrics.
var Handler = promhttp.Handler

// Init регистрирует коллекторы. Повторный вызов безопасен.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			LedgerOps,
			Withdrawals,
			StuckWithdrawals,
			Deposits,
			PriceFetches,
			PriceCurrent,
			CallbackTokens,
			HTTPLatency,
			Panics,
		)
	})
}

// Result переводит ошибку операции в метку result.
func Result(err error, rejected func(error) bool) string {
	switch {
	case err == nil:
		return "ok"
	case rejected != nil && rejected(err):
		return "rejected"
	default:
		return "error"
	}
}
