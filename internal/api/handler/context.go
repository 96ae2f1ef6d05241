package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/querynotes/querynotes-api/internal/api/middleware"
)

// callerID returns the user id bound by the Auth middleware. Its absence
// means the route was mounted without the middleware; reject with 401 rather
// than run an unscoped operation.
func callerID(c echo.Context) (string, error) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return identity.UserID, nil
}

// bindAndValidate decodes the JSON body into req and runs the registered
// validator. Both failures are client errors.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
