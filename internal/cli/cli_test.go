package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guttosm/isinmap/internal/domain"
	"github.com/guttosm/isinmap/internal/domain/dto"
	"github.com/guttosm/isinmap/internal/domain/models"
	"github.com/guttosm/isinmap/internal/secmaster"
	"github.com/guttosm/isinmap/internal/service"
)

func memoryService() service.LookupService {
	return service.NewLookupService(secmaster.NewMemoryRepository(
		models.Security{Ticker: "BHP", Issuer: "BHP GROUP LIMITED", Issue: "FPO", ISIN: "AU000000BHP4"},
		models.Security{Ticker: "CBA", Issuer: "COMMONWEALTH BANK OF AUSTRALIA.", Issue: "FPO", ISIN: "AU000000CBA7"},
	), service.DefaultCodes)
}

func decode(t *testing.T, out []byte) dto.LookupResponse {
	t.Helper()
	var resp dto.LookupResponse
	require.NoError(t, json.Unmarshal(out, &resp), "output must be valid JSON: %q", out)
	require.NotNil(t, resp.Results, "results must always be present")
	return resp
}

func TestRun_TableDriven(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		wantResults map[string]string
		wantErr     error
	}{
		{
			name:        "known isin",
			in:          `{"isin":"AU000000BHP4"}`,
			wantResults: map[string]string{"bbg_code": "BHP:AU", "ric_code": "BHP.AX"},
		},
		{
			name:    "unknown isin",
			in:      `{"isin":"AU000000XXX0"}`,
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "missing isin",
			in:      `{}`,
			wantErr: domain.ErrInputParse,
		},
		{
			name:    "not json",
			in:      "AU000000BHP4",
			wantErr: domain.ErrInputParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := Run(context.Background(), strings.NewReader(tt.in), &out, memoryService())

			assert.True(t, strings.HasSuffix(out.String(), "\n"))
			assert.Equal(t, 1, strings.Count(out.String(), "\n"), "exactly one line")
			resp := decode(t, out.Bytes())

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.NotEmpty(t, resp.Error)
				assert.Empty(t, resp.Results)
				assert.Equal(t, err.Error(), resp.Error)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, resp.Error)
			assert.Equal(t, tt.wantResults, resp.Results)
		})
	}
}

func TestRun_ExactOutput(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), strings.NewReader(`{"isin":"AU000000BHP4"}`), &out, memoryService()))
	assert.Equal(t, `{"results":{"bbg_code":"BHP:AU","ric_code":"BHP.AX"}}`+"\n", out.String())

	out.Reset()
	_ = Run(context.Background(), strings.NewReader(`{"isin":"AU000000XXX0"}`), &out, memoryService())
	assert.Equal(t, `{"results":{},"error":"couldn't find a ticker corresponding to ISIN AU000000XXX0"}`+"\n", out.String())
}

func TestRun_Idempotent(t *testing.T) {
	for _, in := range []string{`{"isin":"AU000000CBA7"}`, `{"isin":"nope"}`, `{`} {
		var a, b bytes.Buffer
		_ = Run(context.Background(), strings.NewReader(in), &a, memoryService())
		_ = Run(context.Background(), strings.NewReader(in), &b, memoryService())
		assert.Equal(t, a.String(), b.String(), "input %q", in)
	}
}

func TestRun_StdinReadError(t *testing.T) {
	var out bytes.Buffer
	err := Run(context.Background(), iotest.ErrReader(errors.New("stdin closed")), &out, memoryService())
	assert.ErrorIs(t, err, domain.ErrInputRead)
	assert.Contains(t, decode(t, out.Bytes()).Error, "stdin closed")
}

func TestRun_FileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "isins.tsv")
	content := "ticker\tissuer\tissue\tisin\nBHP\tBHP GROUP LIMITED\tFPO\tAU000000BHP4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	svc := service.NewLookupService(secmaster.NewFileRepository(path), service.DefaultCodes)
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), strings.NewReader(`{"isin":"AU000000BHP4"}`), &out, svc))
	resp := decode(t, out.Bytes())
	assert.Equal(t, "BHP:AU", resp.Results["bbg_code"])
	assert.Equal(t, "BHP.AX", resp.Results["ric_code"])
}

func TestRun_MissingReferenceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "isins.tsv")
	svc := service.NewLookupService(secmaster.NewFileRepository(path), service.DefaultCodes)

	var out bytes.Buffer
	err := Run(context.Background(), strings.NewReader(`{"isin":"AU000000BHP4"}`), &out, svc)
	assert.ErrorIs(t, err, domain.ErrReferenceFile)
	resp := decode(t, out.Bytes())
	assert.Contains(t, resp.Error, "isins.tsv")
	assert.Empty(t, resp.Results)
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("stdout closed") }

func TestRun_WriteError(t *testing.T) {
	err := Run(context.Background(), strings.NewReader(`{"isin":"AU000000BHP4"}`), failWriter{}, memoryService())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write response")
}

func TestFail(t *testing.T) {
	var out bytes.Buffer
	cause := errors.New("invalid configuration")
	assert.Equal(t, cause, Fail(&out, cause))
	assert.Equal(t, `{"results":{},"error":"invalid configuration"}`+"\n", out.String())
}

func TestExitCode(t *testing.T) {
	boom := errors.New("boom")
	assert.Equal(t, 0, ExitCode(nil, false))
	assert.Equal(t, 0, ExitCode(nil, true))
	assert.Equal(t, 0, ExitCode(boom, false))
	assert.Equal(t, 1, ExitCode(boom, true))
}
