package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sprucehq/cleanops/internal/dto"
	"github.com/sprucehq/cleanops/internal/models"
	"github.com/sprucehq/cleanops/internal/recurrence"
	"github.com/sprucehq/cleanops/internal/service"
)

type BookingHandler struct {
	svc service.BookingService
}

func NewBookingHandler(svc service.BookingService) *BookingHandler {
	return &BookingHandler{svc: svc}
}

func (h *BookingHandler) RegisterRoutes(e *echo.Echo) {
	bookings := e.Group("/api/v1/bookings")
	bookings.POST("", h.CreateBooking)
	bookings.GET("", h.ListBookings)
	bookings.GET("/:id", h.GetBooking)
	bookings.PATCH("/:id/schedule", h.UpdateSchedule)
	bookings.POST("/:id/complete", h.CompleteBooking)
	bookings.DELETE("/:id", h.CancelBooking)
}

func (h *BookingHandler) CreateBooking(c echo.Context) error {
	var req dto.CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ClientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "client_id is required")
	}
	if req.ServiceType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "service_type is required")
	}
	if req.Address == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "address is required")
	}
	date, err := time.Parse("2006-01-02", req.ScheduledDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "scheduled_date must be YYYY-MM-DD")
	}

	out, err := h.svc.CreateBooking(c.Request().Context(), service.CreateBookingInput{
		ClientID:         req.ClientID,
		CleanerID:        req.CleanerID,
		ServiceType:      req.ServiceType,
		ServiceFrequency: req.ServiceFrequency,
		ScheduledDate:    date,
		ScheduledTime:    req.ScheduledTime,
		DurationHours:    req.DurationHours,
		Address:          req.Address,
		Price:            req.Price,
		SquareFootage:    req.SquareFootage,
		Bedrooms:         req.Bedrooms,
		Bathrooms:        req.Bathrooms,
		Extras:           req.Extras,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClientNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidSchedule),
			errors.Is(err, service.ErrInvalidFrequency),
			errors.Is(err, service.ErrInvalidPrice):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusCreated, dto.CreateBookingResponse{
		Booking:      dto.ToBookingResponse(out.Booking),
		Materialized: out.Materialized,
		Hold:         dto.ToHoldResponse(out.Hold),
	})
}

func (h *BookingHandler) UpdateSchedule(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}

	var req dto.UpdateScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	in := service.UpdateScheduleInput{
		ScheduledTime:    req.ScheduledTime,
		ServiceFrequency: req.ServiceFrequency,
	}
	if req.ScheduledDate != nil {
		date, err := time.Parse("2006-01-02", *req.ScheduledDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "scheduled_date must be YYYY-MM-DD")
		}
		d := recurrence.DateOnly(date)
		in.ScheduledDate = &d
	}

	out, err := h.svc.UpdateSchedule(c.Request().Context(), uint(id), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBookingNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrBookingImmutable):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrInvalidSchedule), errors.Is(err, service.ErrInvalidFrequency):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, dto.UpdateScheduleResponse{
		Booking:    dto.ToBookingResponse(out.Booking),
		Reconciled: out.Reconciled,
	})
}

func (h *BookingHandler) CancelBooking(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}

	var req dto.CancelBookingRequest
	if err := c.Bind(&req); err != nil && err != echo.ErrUnsupportedMediaType {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	booking, err := h.svc.CancelBooking(c.Request().Context(), uint(id), req.Reason, req.Cascade)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBookingNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrAlreadyCancelled):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) CompleteBooking(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}

	booking, err := h.svc.CompleteBooking(c.Request().Context(), uint(id))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBookingNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrAlreadyCancelled):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) GetBooking(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}

	booking, err := h.svc.GetBooking(c.Request().Context(), uint(id))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "booking not found")
	}

	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) ListBookings(c echo.Context) error {
	clientID := c.QueryParam("client_id")
	if clientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "client_id is required")
	}

	var status *models.BookingStatus
	if s := c.QueryParam("status"); s != "" {
		bs := models.BookingStatus(s)
		status = &bs
	}

	var from, to *time.Time
	if s := c.QueryParam("date_from"); s != "" {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date_from must be YYYY-MM-DD")
		}
		from = &d
	}
	if s := c.QueryParam("date_to"); s != "" {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date_to must be YYYY-MM-DD")
		}
		to = &d
	}

	bookings, err := h.svc.ListBookings(c.Request().Context(), clientID, status, from, to)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := make([]dto.BookingResponse, len(bookings))
	for i := range bookings {
		resp[i] = dto.ToBookingResponse(&bookings[i])
	}
	return c.JSON(http.StatusOK, resp)
}
