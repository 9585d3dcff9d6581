package main

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tpow4/CoinPurse/internal/domain/accounts"
	"github.com/tpow4/CoinPurse/internal/domain/categories"
	"github.com/tpow4/CoinPurse/internal/domain/categorization"
	"github.com/tpow4/CoinPurse/internal/domain/import/duplicate"
	importhandler "github.com/tpow4/CoinPurse/internal/domain/import/handler"
	importrepo "github.com/tpow4/CoinPurse/internal/domain/import/repository"
	importservice "github.com/tpow4/CoinPurse/internal/domain/import/service"
	"github.com/tpow4/CoinPurse/internal/domain/institutions"
	"github.com/tpow4/CoinPurse/internal/domain/transactions"
	"github.com/tpow4/CoinPurse/pkg/config"
)

// dependencies wires repositories, services and handlers onto the shared pool.
type dependencies struct {
	importService *importservice.ImportService

	importHandler      *importhandler.Handler
	mappingHandler     *categorization.Handler
	transactionHandler *transactions.Handler
	accountHandler     *accounts.Handler
	categoryHandler    *categories.Handler
	institutionHandler *institutions.Handler
}

func buildDependencies(pool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) *dependencies {
	importRepo := importrepo.NewPostgresImportRepository(pool)
	mappingRepo := categorization.NewRepository(pool)
	transactionRepo := transactions.NewRepository(pool)
	accountRepo := accounts.NewRepository(pool)
	categoryRepo := categories.NewRepository(pool)
	institutionRepo := institutions.NewRepository(pool)

	resolver := categorization.NewResolver(mappingRepo)

	importService := importservice.NewImportService(
		importRepo,
		&categoryLookupAdapter{resolver: resolver},
		&duplicateLookupAdapter{reader: duplicate.NewRepository(pool)},
		logger,
	)

	return &dependencies{
		importService: importService,
		importHandler: importhandler.NewHandler(
			importService, importRepo, cfg.Import.PreviewMaxAge, cfg.Import.MaxUploadBytes, logger),
		mappingHandler: categorization.NewHandler(
			mappingRepo, resolver, categoryRepo.GetIDByName, logger),
		transactionHandler: transactions.NewHandler(
			transactionRepo, cfg.Import.DisplayCurrency, logger),
		accountHandler:     accounts.NewHandler(accountRepo, logger),
		categoryHandler:    categories.NewHandler(categoryRepo, logger),
		institutionHandler: institutions.NewHandler(institutionRepo, logger),
	}
}
