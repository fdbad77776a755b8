package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/etherwheel/custody-ledger/observability"
)

type serverMetrics struct {
	accountsCreated prometheus.Counter
	swaps           *prometheus.CounterVec
	swapErrors      *prometheus.CounterVec
	transfers       prometheus.Counter
	oraclePrice     prometheus.Gauge
	oracleErrors    prometheus.Counter
	gatherer        prometheus.Gatherer
}

func newServerMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) *serverMetrics {
	if reg == nil {
		registry := prometheus.NewRegistry()
		reg = registry
		gatherer = registry
	}

	accountsCreated := promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "api",
		Name:      observability.MetricAccountsCreatedTotal,
		Help:      "Total number of proxy accounts created.",
	})

	swaps := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "api",
		Name:      observability.MetricSwapsTotal,
		Help:      "Total number of executed swaps.",
	}, []string{"side"})

	swapErrors := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "api",
		Name:      observability.MetricSwapErrorsTotal,
		Help:      "Total number of rejected swaps.",
	}, []string{"reason"})

	transfers := promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "api",
		Name:      observability.MetricTransfersTotal,
		Help:      "Total number of outgoing native transfers.",
	})

	oraclePrice := promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Namespace: "ledger",
		Subsystem: "api",
		Name:      observability.MetricOraclePrice,
		Help:      "Last normalized oracle price served, at the reference scale.",
	})

	oracleErrors := promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "api",
		Name:      observability.MetricOracleReadErrors,
		Help:      "Total number of failed oracle reads.",
	})

	return &serverMetrics{
		accountsCreated: accountsCreated,
		swaps:           swaps,
		swapErrors:      swapErrors,
		transfers:       transfers,
		oraclePrice:     oraclePrice,
		oracleErrors:    oracleErrors,
		gatherer:        gatherer,
	}
}
