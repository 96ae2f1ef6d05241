package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/querynotes/querynotes-api/internal/core/ports"
)

// QueryHandler handles the authenticated query routes. Every call passes the
// caller id to the service, which scopes the operation to that owner.
type QueryHandler struct {
	service ports.QueryService
}

func NewQueryHandler(service ports.QueryService) *QueryHandler {
	return &QueryHandler{service: service}
}

// List handles GET /api/queries.
//
// @Summary      List own queries, newest first
// @Tags         queries
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   queryResponse
// @Failure      401  {object}  errorResponse
// @Router       /api/queries [get]
func (h *QueryHandler) List(c echo.Context) error {
	ownerID, err := callerID(c)
	if err != nil {
		return err
	}

	queries, err := h.service.List(c.Request().Context(), ownerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toQueryResponses(queries))
}

// Get handles GET /api/queries/:id.
//
// @Summary      Get one own query
// @Tags         queries
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Query id"
// @Success      200  {object}  queryResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/queries/{id} [get]
func (h *QueryHandler) Get(c echo.Context) error {
	ownerID, err := callerID(c)
	if err != nil {
		return err
	}

	q, err := h.service.Get(c.Request().Context(), ownerID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toQueryResponse(q))
}

// Tags handles GET /api/tags.
//
// @Summary      List distinct tags across own queries
// @Tags         queries
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   string
// @Failure      401  {object}  errorResponse
// @Router       /api/tags [get]
func (h *QueryHandler) Tags(c echo.Context) error {
	ownerID, err := callerID(c)
	if err != nil {
		return err
	}

	tags, err := h.service.ListTags(c.Request().Context(), ownerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tags)
}

// Create handles POST /api/queries.
//
// @Summary      Create a query
// @Tags         queries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      queryRequest  true  "Query"
// @Success      201   {object}  queryResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /api/queries [post]
func (h *QueryHandler) Create(c echo.Context) error {
	ownerID, err := callerID(c)
	if err != nil {
		return err
	}

	var req queryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	q, err := h.service.Create(c.Request().Context(), ownerID, toQueryInput(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toQueryResponse(q))
}

// Update handles PUT /api/queries/:id.
//
// @Summary      Update title, text and tags of an own query
// @Tags         queries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string        true  "Query id"
// @Param        body  body      queryRequest  true  "Query"
// @Success      200   {object}  queryResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /api/queries/{id} [put]
func (h *QueryHandler) Update(c echo.Context) error {
	ownerID, err := callerID(c)
	if err != nil {
		return err
	}

	var req queryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	q, err := h.service.Update(c.Request().Context(), ownerID, c.Param("id"), toQueryInput(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toQueryResponse(q))
}

// Delete handles DELETE /api/queries/:id.
//
// @Summary      Delete an own query
// @Tags         queries
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Query id"
// @Success      200  {object}  messageResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/queries/{id} [delete]
func (h *QueryHandler) Delete(c echo.Context) error {
	ownerID, err := callerID(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Request().Context(), ownerID, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "query deleted"})
}

// Share handles POST /api/queries/:id/share.
//
// @Summary      Make an own query public
// @Description  Idempotent: an already public query returns its existing share id.
// @Tags         queries
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Query id"
// @Success      200  {object}  shareResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/queries/{id}/share [post]
func (h *QueryHandler) Share(c echo.Context) error {
	ownerID, err := callerID(c)
	if err != nil {
		return err
	}

	token, err := h.service.Share(c.Request().Context(), ownerID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, shareResponse{ShareID: token})
}
