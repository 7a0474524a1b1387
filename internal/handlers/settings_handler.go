package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"mollie_bridge_echo/internal/gateway"
	"mollie_bridge_echo/internal/models"
	"mollie_bridge_echo/internal/services"
)

// SettingsHandler handles the merchant payment settings endpoints
type SettingsHandler struct {
	settings SettingsService
	factory  gateway.Factory
	methods  []string
}

// NewSettingsHandler creates a SettingsHandler. methods lists every method
// the configured gateway can offer.
func NewSettingsHandler(settings SettingsService, factory gateway.Factory, methods []string) *SettingsHandler {
	return &SettingsHandler{settings: settings, factory: factory, methods: methods}
}

type settingsResponse struct {
	Settings       *models.PaymentSettings `json:"settings"`
	Methods        []string                `json:"methods"`
	AllowedMethods []string                `json:"allowed_methods"`
	Communication  services.GatewayStatus  `json:"communication"`
	InvalidKey     bool                    `json:"invalid_key"`
	OverrideKeys   string                  `json:"override_keys"`
	UserEmail      string                  `json:"user_email,omitempty"`
}

// GetSettings returns the settings together with the gateway connection status
func (h *SettingsHandler) GetSettings(c echo.Context) error {
	settings, err := h.settings.Load(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.describe(c, settings))
}

// SaveSettings validates and stores the settings. Nothing is sent to the
// gateway before validation passes.
func (h *SettingsHandler) SaveSettings(c echo.Context) error {
	var settings models.PaymentSettings
	if err := c.Bind(&settings); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid settings payload")
	}

	for id := range settings.Methods {
		if !h.knownMethod(id) {
			delete(settings.Methods, id)
		}
	}

	err := h.settings.Save(c.Request().Context(), &settings)
	var verr *services.SettingsValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "Please correct the highlighted fields.",
			"fields": verr.Fields,
		})
	}
	if err != nil {
		return err
	}

	log.Info().Str("user", getStringFromContext(c, "userEmail")).Msg("payment settings saved")

	return c.JSON(http.StatusOK, h.describe(c, &settings))
}

func (h *SettingsHandler) describe(c echo.Context, settings *models.PaymentSettings) settingsResponse {
	status := services.CheckGateway(c.Request().Context(), h.factory, settings)
	return settingsResponse{
		Settings:       settings,
		Methods:        h.methods,
		AllowedMethods: status.Methods,
		Communication:  status,
		InvalidKey:     status.InvalidKey,
		OverrideKeys:   settings.OverrideKeyList(),
		UserEmail:      getStringFromContext(c, "userEmail"),
	}
}

func (h *SettingsHandler) knownMethod(id string) bool {
	for _, m := range h.methods {
		if m == id {
			return true
		}
	}
	return false
}
