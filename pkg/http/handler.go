// Package http carries the HTTP surface: an Echo server with baked-in
// middleware, the response envelope, request validation, and a small
// outbound client for webhook delivery.
package http

import "github.com/labstack/echo/v4"

// Handler registers its routes on the server's Echo instance.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
