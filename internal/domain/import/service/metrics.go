package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinpurse_import_batches_created_total",
		Help: "Import batches created in PREVIEW status.",
	})
	rowsParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinpurse_import_rows_parsed_total",
		Help: "Statement rows parsed across all uploads.",
	})
	batchesConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinpurse_import_batches_confirmed_total",
		Help: "Confirmed import batches by final status.",
	}, []string{"status"})
	transactionsImported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinpurse_import_transactions_imported_total",
		Help: "Ledger transactions materialized from confirmed batches.",
	})
	stalePreviewsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinpurse_import_stale_previews_deleted_total",
		Help: "PREVIEW batches removed by the cleanup job.",
	})
)
