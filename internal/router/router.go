// Package router registers the HTTP routes of the occupancy service.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dorm-occupancy/internal/handler"
	"github.com/iliyamo/dorm-occupancy/internal/middleware"
)

// Deps bundles what the routes need.  Cache wraps the read endpoints;
// JWTSecret, when non-empty, puts every mutation behind an ADMIN token.
// RateLimit runs on every route except /healthz, after the token check on
// mutations so the bucket key can carry the caller.
type Deps struct {
	Students  *handler.StudentHandler
	Rooms     *handler.RoomHandler
	Auth      *handler.AuthHandler
	DB        handler.Pinger
	Cache     echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
	JWTSecret string
}

// RegisterRoutes maps every endpoint on e.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))

	var limit []echo.MiddlewareFunc
	if d.RateLimit != nil {
		limit = append(limit, d.RateLimit)
	}
	read := append([]echo.MiddlewareFunc{}, limit...)
	if d.Cache != nil {
		read = append(read, d.Cache)
	}
	write := append(adminGuard(d.JWTSecret), limit...)
	if d.JWTSecret != "" && d.Auth != nil {
		e.POST("/auth/token", d.Auth.Token, limit...)
	}

	z := e.Group("/ziak")
	z.GET("/read", d.Students.Read, read...)
	z.POST("/insert", d.Students.Insert, write...)
	z.DELETE("/delete", d.Students.Delete, write...)
	z.PUT("/update-room", d.Students.UpdateRoom, write...)
	z.PUT("/update", d.Students.Update, write...)

	i := e.Group("/izba")
	i.GET("/read", d.Rooms.Read, read...)
	i.GET("/export", d.Rooms.Export, limit...)
	i.POST("/insert", d.Rooms.Insert, write...)
	i.DELETE("/delete", d.Rooms.Delete, write...)
}

// adminGuard returns the middleware chain protecting mutations.  Without a
// secret the API stays open.
func adminGuard(secret string) []echo.MiddlewareFunc {
	if secret == "" {
		return nil
	}
	return []echo.MiddlewareFunc{
		middleware.JWTAuth(secret),
		middleware.RequireRole(middleware.RoleAdmin),
	}
}
