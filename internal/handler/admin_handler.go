package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sprucehq/cleanops/internal/dto"
	"github.com/sprucehq/cleanops/internal/models"
	"github.com/sprucehq/cleanops/internal/service"
)

// AdminHandler exposes the operational surface: the settings singleton
// and the manual sweep trigger.
type AdminHandler struct {
	settings service.SettingsService
	sweeps   service.SweepService
}

func NewAdminHandler(settings service.SettingsService, sweeps service.SweepService) *AdminHandler {
	return &AdminHandler{settings: settings, sweeps: sweeps}
}

func (h *AdminHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/settings", h.GetSettings)
	e.PUT("/api/v1/settings", h.UpdateSettings)
	e.POST("/api/v1/sweeps", h.RunSweep)
}

func (h *AdminHandler) GetSettings(c echo.Context) error {
	settings, err := h.settings.GetSettings(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, settings)
}

func (h *AdminHandler) UpdateSettings(c echo.Context) error {
	var req dto.UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	settings, err := h.settings.UpdateSettings(c.Request().Context(), &models.Settings{
		PaymentHoldDelayHours:   req.PaymentHoldDelayHours,
		CancellationWindowHours: req.CancellationWindowHours,
		CancellationFee:         req.CancellationFee,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, settings)
}

// RunSweep triggers a synchronous sweep, optionally with a one-off delay
// override. The cron-equivalent and the queue consumer call the same
// service contract.
func (h *AdminHandler) RunSweep(c echo.Context) error {
	var req dto.RunSweepRequest
	if err := c.Bind(&req); err != nil && err != echo.ErrUnsupportedMediaType {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := h.sweeps.Sweep(c.Request().Context(), req.OverrideDelayHours)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}
