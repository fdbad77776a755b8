package observability

const (
	MetricAccountsCreatedTotal = "registry_accounts_created_total"
	MetricSwapsTotal           = "pool_swaps_total"
	MetricSwapErrorsTotal      = "pool_swap_errors_total"
	MetricTransfersTotal       = "wallet_transfers_total"
	MetricOraclePrice          = "oracle_normalized_price"
	MetricOracleReadErrors     = "oracle_read_errors_total"

	MetricPublisherNATSAcksTotal = "publisher_nats_acks_total"
	MetricPublisherNATSErrors    = "publisher_nats_errors_total"

	MetricSinkRowsTotal     = "sink_history_rows_total"
	MetricSinkFlushErrors   = "sink_history_flush_errors_total"
	MetricSinkConsumeLagSec = "sink_history_consume_lag_seconds"
)
