package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/dorm-occupancy/internal/export"
	"github.com/iliyamo/dorm-occupancy/internal/service"
)

// RoomHandler serves the /izba endpoints.
type RoomHandler struct {
	svc *service.Service
	log *zap.Logger
}

// NewRoomHandler returns a RoomHandler backed by svc.
func NewRoomHandler(svc *service.Service, log *zap.Logger) *RoomHandler {
	if svc == nil {
		panic("nil service passed to NewRoomHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RoomHandler{svc: svc, log: log}
}

// Read handles GET /izba/read.
func (h *RoomHandler) Read(c echo.Context) error {
	rooms, err := h.svc.ListRooms(c.Request().Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, rooms)
}

// Insert handles POST /izba/insert with body {number, capacity}.
func (h *RoomHandler) Insert(c echo.Context) error {
	raw, err := bindRaw(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	res, err := h.svc.InsertRoom(c.Request().Context(), raw)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": res.ID, "id_izba": res.ID})
}

// Delete handles DELETE /izba/delete with body {id}.
func (h *RoomHandler) Delete(c echo.Context) error {
	raw, err := bindRaw(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if err := h.svc.DeleteRoom(c.Request().Context(), raw); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "room deleted"})
}

// Export handles GET /izba/export and returns the occupancy roster as XLSX.
func (h *RoomHandler) Export(c echo.Context) error {
	ctx := c.Request().Context()
	rooms, err := h.svc.ListRooms(ctx)
	if err != nil {
		return respondError(c, h.log, err)
	}
	students, err := h.svc.ListStudents(ctx)
	if err != nil {
		return respondError(c, h.log, err)
	}
	data, err := export.Roster(rooms, students)
	if err != nil {
		return respondError(c, h.log, fmt.Errorf("render roster: %w", err))
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="obsadenost.xlsx"`)
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
