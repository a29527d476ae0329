package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/dorm-occupancy/internal/service"
)

// StudentHandler serves the /ziak endpoints.
type StudentHandler struct {
	svc *service.Service
	log *zap.Logger
}

// NewStudentHandler returns a StudentHandler backed by svc.
func NewStudentHandler(svc *service.Service, log *zap.Logger) *StudentHandler {
	if svc == nil {
		panic("nil service passed to NewStudentHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StudentHandler{svc: svc, log: log}
}

// Read handles GET /ziak/read.
func (h *StudentHandler) Read(c echo.Context) error {
	students, err := h.svc.ListStudents(c.Request().Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, students)
}

// Insert handles POST /ziak/insert.
func (h *StudentHandler) Insert(c echo.Context) error {
	raw, err := bindRaw(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	res, err := h.svc.InsertStudent(c.Request().Context(), raw)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": res.ID, "id_ziak": res.ID, "rooms": res.Rooms})
}

// Delete handles DELETE /ziak/delete with body {id}.
func (h *StudentHandler) Delete(c echo.Context) error {
	raw, err := bindRaw(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	res, err := h.svc.DeleteStudent(c.Request().Context(), raw)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rooms": res.Rooms})
}

// UpdateRoom handles PUT /ziak/update-room with body {studentId, roomId}.
func (h *StudentHandler) UpdateRoom(c echo.Context) error {
	raw, err := bindRaw(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	res, err := h.svc.UpdateStudentRoom(c.Request().Context(), raw)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rooms": res.Rooms})
}

// Update handles PUT /ziak/update.
func (h *StudentHandler) Update(c echo.Context) error {
	raw, err := bindRaw(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	res, err := h.svc.UpdateStudent(c.Request().Context(), raw)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rooms": res.Rooms})
}
