package main

import (
	"context"

	"github.com/google/uuid"

	"github.com/tpow4/CoinPurse/internal/domain/categorization"
	"github.com/tpow4/CoinPurse/internal/domain/import/duplicate"
	"github.com/tpow4/CoinPurse/internal/domain/import/service"
)

// categoryLookupAdapter bridges the categorization resolver to the import
// service's lookup interface.
type categoryLookupAdapter struct {
	resolver *categorization.Resolver
}

func (a *categoryLookupAdapter) ResolveBatch(ctx context.Context, institutionID uuid.UUID, labels []*string) ([]service.CategoryResolution, error) {
	resolutions, err := a.resolver.ResolveBatch(ctx, institutionID, labels)
	if err != nil {
		return nil, err
	}
	out := make([]service.CategoryResolution, len(resolutions))
	for i, res := range resolutions {
		out[i] = service.CategoryResolution{
			CategoryID:   res.CategoryID,
			CandidateIDs: res.CandidateIDs,
		}
	}
	return out, nil
}

// duplicateLookupAdapter bridges duplicate detection to the import service's
// lookup interface. Each call builds a fresh detector so the hash snapshot
// always reflects rows confirmed since the previous preview.
type duplicateLookupAdapter struct {
	reader duplicate.LedgerReader
}

func (a *duplicateLookupAdapter) CheckBatch(ctx context.Context, accountID uuid.UUID, candidates []service.DuplicateCandidate) ([]bool, error) {
	converted := make([]duplicate.Candidate, len(candidates))
	for i, c := range candidates {
		converted[i] = duplicate.Candidate{
			TransactionDate: c.TransactionDate,
			Description:     c.Description,
			TransactionType: c.TransactionType,
			Amount:          c.Amount,
		}
	}
	return duplicate.NewDetector(a.reader).CheckBatch(ctx, accountID, converted)
}
