package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/querynotes/querynotes-api/internal/core/ports"
)

// PublicHandler serves shared queries to anonymous readers.
type PublicHandler struct {
	service ports.QueryService
}

func NewPublicHandler(service ports.QueryService) *PublicHandler {
	return &PublicHandler{service: service}
}

// Get handles GET /api/public/queries/:shareId.
//
// @Summary      Read a shared query
// @Tags         public
// @Produce      json
// @Param        shareId  path      string  true  "Share token"
// @Success      200      {object}  domain.PublicQuery
// @Failure      404      {object}  errorResponse
// @Router       /api/public/queries/{shareId} [get]
func (h *PublicHandler) Get(c echo.Context) error {
	view, err := h.service.GetPublic(c.Request().Context(), c.Param("shareId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}
