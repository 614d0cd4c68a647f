package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/guttosm/isinmap/internal/domain"
	"github.com/guttosm/isinmap/internal/domain/dto"
	"github.com/guttosm/isinmap/internal/storage"
)

// Codes holds the market convention used to derive vendor codes from a ticker.
type Codes struct {
	BBGSuffix string // e.g. ":AU" (Bloomberg web style)
	RICSuffix string // e.g. ".AX"
}

// DefaultCodes is the ASX convention.
var DefaultCodes = Codes{BBGSuffix: ":AU", RICSuffix: ".AX"}

// Derive builds the result mapping for ticker.
func (c Codes) Derive(ticker string) map[string]string {
	return map[string]string{
		dto.KeyBBGCode: ticker + c.BBGSuffix,
		dto.KeyRICCode: ticker + c.RICSuffix,
	}
}

// LookupService resolves an ISIN against the security master.
type LookupService interface {
	// FindTicker returns the ticker of the first row whose ISIN equals isin exactly.
	FindTicker(ctx context.Context, isin string) (string, error)
	// Lookup returns the vendor codes derived from the matching ticker.
	Lookup(ctx context.Context, isin string) (map[string]string, error)
}

type lookupService struct {
	repo  storage.SecurityRepository
	codes Codes
}

func NewLookupService(repo storage.SecurityRepository, codes Codes) LookupService {
	return &lookupService{repo: repo, codes: codes}
}

func (s *lookupService) FindTicker(ctx context.Context, isin string) (string, error) {
	sec, err := s.repo.FindByISIN(ctx, isin)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrReferenceFile, err)
	}
	if sec == nil {
		return "", &domain.NotFoundError{ISIN: isin}
	}
	return sec.Ticker, nil
}

func (s *lookupService) Lookup(ctx context.Context, isin string) (map[string]string, error) {
	ticker, err := s.FindTicker(ctx, isin)
	if err != nil {
		return nil, err
	}
	return s.codes.Derive(ticker), nil
}
