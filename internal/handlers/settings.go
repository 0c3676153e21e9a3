package handlers

import (
	"gearted/internal/services/settings"
	"gearted/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// SettingsHandler exposes the public platform settings.
type SettingsHandler struct {
	settings *settings.Service
}

func NewSettingsHandler(settingsSvc *settings.Service) *SettingsHandler {
	return &SettingsHandler{settings: settingsSvc}
}

// GetCommissions returns the commission parameters so clients can show
// fees before checkout.
func (h *SettingsHandler) GetCommissions(c *fiber.Ctx) error {
	return response.Success(c, "Commission settings", h.settings.Commissions(c.Context()))
}
