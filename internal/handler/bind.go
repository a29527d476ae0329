package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// bindRaw decodes the JSON request body into a generic map so the
// validator can report every field problem at once.  An empty body yields
// an empty map.
func bindRaw(c echo.Context) (map[string]any, error) {
	raw := map[string]any{}
	if c.Request().Body == nil || c.Request().ContentLength == 0 {
		return raw, nil
	}
	if err := c.Echo().JSONSerializer.Deserialize(c, &raw); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return nil, he
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "malformed JSON body").SetInternal(err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}
