// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/loginflow/internal/i18n"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// errorJSON writes a translated error response. The code field carries
// the stable message ID so clients can branch without parsing prose.
func errorJSON(c echo.Context, status int, messageID string) error {
	return c.JSON(status, errorBody{
		Error: i18n.T(c.Request().Context(), messageID),
		Code:  messageID,
	})
}

// errorJSONData is errorJSON with template data for the message.
func errorJSONData(c echo.Context, status int, messageID string, data map[string]any) error {
	return c.JSON(status, errorBody{
		Error: i18n.TData(c.Request().Context(), messageID, data),
		Code:  messageID,
	})
}
