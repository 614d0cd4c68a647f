// Package cli implements the single-shot lookup: one JSON request on stdin,
// one JSON response line on stdout.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/guttosm/isinmap/internal/domain/dto"
	"github.com/guttosm/isinmap/internal/logger"
	"github.com/guttosm/isinmap/internal/service"
)

// Run reads the request from in, resolves it with svc and writes the response
// to out. The response is written for failures too; the returned error is the
// lookup failure (if any) so the caller can pick an exit code. A write failure
// takes precedence.
func Run(ctx context.Context, in io.Reader, out io.Writer, svc service.LookupService) error {
	resp, lookupErr := resolve(ctx, in, svc)
	if err := dto.WriteLookupResponse(out, resp); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return lookupErr
}

// Fail writes a failure response for err, for errors raised before a lookup
// could even start (configuration, source initialization). It returns err.
func Fail(out io.Writer, err error) error {
	if werr := dto.WriteLookupResponse(out, dto.NewLookupFailure(err)); werr != nil {
		return fmt.Errorf("write response: %w", werr)
	}
	return err
}

func resolve(ctx context.Context, in io.Reader, svc service.LookupService) (dto.LookupResponse, error) {
	req, err := dto.ReadLookupRequest(in)
	if err != nil {
		logger.L().Debug().Err(err).Msg("invalid request")
		return dto.NewLookupFailure(err), err
	}

	results, err := svc.Lookup(ctx, req.ISIN)
	if err != nil {
		logger.L().Debug().Str("isin", req.ISIN).Err(err).Msg("lookup failed")
		return dto.NewLookupFailure(err), err
	}

	logger.L().Debug().Str("isin", req.ISIN).Str("bbg_code", results[dto.KeyBBGCode]).Msg("lookup resolved")
	return dto.NewLookupSuccess(results), nil
}

// ExitCode maps the outcome of Run to a process exit status. Failures are
// only reported through the response unless strict is set.
func ExitCode(err error, strict bool) int {
	if err != nil && strict {
		return 1
	}
	return 0
}
