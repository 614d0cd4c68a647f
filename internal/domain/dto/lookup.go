package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/guttosm/isinmap/internal/domain"
)

// Result keys of a successful lookup.
const (
	KeyBBGCode = "bbg_code"
	KeyRICCode = "ric_code"
)

var (
	errMissingISIN   = errors.New("missing field `isin`")
	errDuplicateISIN = errors.New("duplicate field `isin`")
)

// LookupRequest is the single JSON object read from stdin (or a POST body).
//
// swagger:model LookupRequest
type LookupRequest struct {
	ISIN string `json:"isin" example:"AU000000BHP4"`
}

// LookupResponse is written for every request. Results is always present
// ({} on failure); Error is only present on failure.
//
// swagger:model LookupResponse
type LookupResponse struct {
	Results map[string]string `json:"results"`
	Error   string            `json:"error,omitempty" example:"couldn't find a ticker corresponding to ISIN AU000000XXX0"`
}

// NewLookupSuccess wraps derived codes in a response.
func NewLookupSuccess(results map[string]string) LookupResponse {
	if results == nil {
		results = map[string]string{}
	}
	return LookupResponse{Results: results}
}

// NewLookupFailure reports err with empty results.
func NewLookupFailure(err error) LookupResponse {
	return LookupResponse{Results: map[string]string{}, Error: err.Error()}
}

// DecodeLookupRequest parses raw JSON into a request. The object must carry
// exactly one string "isin" key, matched case-sensitively; an empty string is a
// present value. Other keys are ignored.
func DecodeLookupRequest(data []byte) (LookupRequest, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return LookupRequest{}, fmt.Errorf("%w: %w", domain.ErrInputParse, err)
	}

	raw, err := isinField(data)
	if err != nil {
		return LookupRequest{}, fmt.Errorf("%w: %w", domain.ErrInputParse, err)
	}
	if bytes.Equal(raw, []byte("null")) {
		return LookupRequest{}, fmt.Errorf("%w: %w", domain.ErrInputParse, errMissingISIN)
	}

	var isin string
	if err := json.Unmarshal(raw, &isin); err != nil {
		return LookupRequest{}, fmt.Errorf("%w: %w", domain.ErrInputParse, err)
	}
	return LookupRequest{ISIN: isin}, nil
}

// isinField returns the raw value of the "isin" key of an already validated
// JSON object.
func isinField(data []byte) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, errMissingISIN
	}

	var found json.RawMessage
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		if key, _ := tok.(string); key != "isin" {
			continue
		}
		if found != nil {
			return nil, errDuplicateISIN
		}
		found = v
	}
	if found == nil {
		return nil, errMissingISIN
	}
	return found, nil
}

// ReadLookupRequest reads r to EOF and decodes the request.
func ReadLookupRequest(r io.Reader) (LookupRequest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return LookupRequest{}, fmt.Errorf("%w: %w", domain.ErrInputRead, err)
	}
	return DecodeLookupRequest(data)
}

// WriteLookupResponse serializes resp as a single JSON line. Map keys are
// sorted by encoding/json, so equal responses are byte-identical.
func WriteLookupResponse(w io.Writer, resp LookupResponse) error {
	if resp.Results == nil {
		resp.Results = map[string]string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
