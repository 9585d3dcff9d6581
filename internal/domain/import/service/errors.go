package service

import "github.com/tpow4/CoinPurse/internal/domain/import/repository"

// The service surfaces the repository's sentinel errors unchanged so handlers
// match on a single set.
var (
	ErrTemplateNotFound = repository.ErrTemplateNotFound
	ErrAccountNotFound  = repository.ErrAccountNotFound
	ErrBatchNotFound    = repository.ErrBatchNotFound
	ErrBatchNotPreview  = repository.ErrBatchNotPreview
)
