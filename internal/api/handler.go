package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/isinmap/internal/domain"
	"github.com/guttosm/isinmap/internal/domain/dto"
	"github.com/guttosm/isinmap/internal/service"
)

// Handler exposes the lookup over HTTP. Responses use the same body as the
// stdin/stdout mode; the status code mirrors the error kind.
type Handler struct {
	svc service.LookupService
}

// NewHandler constructs a new Handler instance.
func NewHandler(svc service.LookupService) *Handler {
	return &Handler{svc: svc}
}

// GetLookup handles GET /api/v1/lookup.
//
// GetLookup godoc
// @Summary      Look up vendor codes by ISIN
// @Description  Returns the Bloomberg and Reuters codes derived from the security master ticker
// @Tags         lookup
// @Produce      json
// @Param        isin  query     string  true  "ISIN" example(AU000000BHP4)
// @Success      200   {object}  dto.LookupResponse  "Success"
// @Failure      400   {object}  dto.LookupResponse  "Bad Request"
// @Failure      404   {object}  dto.LookupResponse  "Not Found"
// @Failure      500   {object}  dto.LookupResponse  "Security master unavailable"
// @Router       /api/v1/lookup [get]
func (h *Handler) GetLookup(c *gin.Context) {
	isin, ok := c.GetQuery("isin")
	if !ok {
		h.write(c, dto.NewLookupFailure(errors.New("isin is required")), http.StatusBadRequest)
		return
	}
	h.lookup(c, isin)
}

// PostLookup handles POST /api/v1/lookup with the stdin request body.
//
// PostLookup godoc
// @Summary      Look up vendor codes by ISIN
// @Description  Accepts the same JSON request as the command line mode
// @Tags         lookup
// @Accept       json
// @Produce      json
// @Param        request  body      dto.LookupRequest   true  "Lookup request"
// @Success      200      {object}  dto.LookupResponse  "Success"
// @Failure      400      {object}  dto.LookupResponse  "Bad Request"
// @Failure      404      {object}  dto.LookupResponse  "Not Found"
// @Failure      500      {object}  dto.LookupResponse  "Security master unavailable"
// @Router       /api/v1/lookup [post]
func (h *Handler) PostLookup(c *gin.Context) {
	req, err := dto.ReadLookupRequest(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		h.write(c, dto.NewLookupFailure(err), http.StatusBadRequest)
		return
	}
	h.lookup(c, req.ISIN)
}

func (h *Handler) lookup(c *gin.Context, isin string) {
	results, err := h.svc.Lookup(c.Request.Context(), isin)
	if err != nil {
		h.write(c, dto.NewLookupFailure(err), statusFor(err))
		return
	}
	h.write(c, dto.NewLookupSuccess(results), http.StatusOK)
}

func (h *Handler) write(c *gin.Context, resp dto.LookupResponse, status int) {
	c.Status(status)
	c.Header("Content-Type", "application/json; charset=utf-8")
	if err := dto.WriteLookupResponse(c.Writer, resp); err != nil {
		_ = c.Error(err)
	}
}

// statusClientClosedRequest is nginx's code for a request the client abandoned.
const statusClientClosedRequest = 499

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInputParse), errors.Is(err, domain.ErrInputRead):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}
