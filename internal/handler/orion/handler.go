package orion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/lab-portal-api/internal/model"
	orionClient "github.com/jwalitptl/lab-portal-api/internal/orion"
	"github.com/jwalitptl/lab-portal-api/internal/service/results"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
	"github.com/jwalitptl/lab-portal-api/pkg/httputil"
)

// OrderSource is the slice of the Orion client the proxy needs.
type OrderSource interface {
	SearchOrders(ctx context.Context, by orionClient.SearchBy, value string) ([]json.RawMessage, error)
	GetOrder(ctx context.Context, id string, include []string) (json.RawMessage, error)
	FetchResultsPDF(ctx context.Context, id string) (*orionClient.PDF, error)
}

type Handler struct {
	orders OrderSource
}

func NewHandler(orders OrderSource) *Handler {
	return &Handler{orders: orders}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	orders := r.Group("/orion/orders")
	{
		orders.GET("", h.SearchOrders)
		orders.GET("/:id", h.GetOrder)
		orders.GET("/:id/results", h.GetResults)
		orders.GET("/:id/pdf", h.DownloadPDF)
	}
}

type searchResponse struct {
	Found  bool              `json:"found"`
	Orders []json.RawMessage `json:"orders"`
}

type resultsResponse struct {
	Found    bool                    `json:"found"`
	Sections *model.SectionedResults `json:"sections"`
}

// SearchOrders answers found=false rather than 404 when nothing matches.
func (h *Handler) SearchOrders(c *gin.Context) {
	by, ok := orionClient.ParseSearchBy(c.Query("by"))
	if !ok {
		httputil.RespondWithError(c, apperrors.BadRequest(fmt.Sprintf("unsupported search field %q", c.Query("by")), nil))
		return
	}

	orders, err := h.orders.SearchOrders(c.Request.Context(), by, c.Query("value"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, searchResponse{Found: len(orders) > 0, Orders: orders})
}

func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"), parseInclude(c.Query("incluir")))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, order)
}

// GetResults flattens the order into display sections. An order without
// result lines is found=false with empty sections.
func (h *Handler) GetResults(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"), nil)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	sections, err := results.FlattenOrder(order)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, resultsResponse{Found: !sections.IsEmpty(), Sections: sections})
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// DownloadPDF streams the upstream document unchanged as an attachment.
func (h *Handler) DownloadPDF(c *gin.Context) {
	id := c.Param("id")
	pdf, err := h.orders.FetchResultsPDF(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	defer pdf.Body.Close()

	filename := "resultados-" + unsafeFilename.ReplaceAllString(id, "_") + ".pdf"
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, pdf.ContentLength, pdf.ContentType, pdf.Body, nil)
}

func parseInclude(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var include []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			include = append(include, part)
		}
	}
	return include
}
