package handlers

import (
	"errors"

	"gearted/internal/models"
	"gearted/internal/services/boost"
	"gearted/internal/services/expert"
	"gearted/internal/services/protection"
	"gearted/internal/services/settings"
	"gearted/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// PremiumHandler exposes the paid add-ons: boosts, purchase protection
// and expert verification, plus the public pricing endpoint.
type PremiumHandler struct {
	boosts      *boost.Service
	protections *protection.Service
	experts     *expert.Service
	settings    *settings.Service
	log         *logrus.Entry
}

func NewPremiumHandler(boosts *boost.Service, protections *protection.Service, experts *expert.Service, settingsSvc *settings.Service) *PremiumHandler {
	return &PremiumHandler{
		boosts:      boosts,
		protections: protections,
		experts:     experts,
		settings:    settingsSvc,
		log:         logrus.WithField("component", "premium_handler"),
	}
}

// GetPricing returns the current add-on price list.
func (h *PremiumHandler) GetPricing(c *fiber.Ctx) error {
	return response.Success(c, "Premium pricing", h.settings.Premium(c.Context()))
}

// --- Boosts ---

// CreateBoost charges a boost fee for one of the caller's listings.
func (h *PremiumHandler) CreateBoost(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	var input struct {
		ProductID uint   `json:"productId"`
		BoostType string `json:"boostType"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.ProductID == 0 || input.BoostType == "" {
		return response.BadRequest(c, "productId and boostType are required")
	}

	result, err := h.boosts.CreatePayment(c.Context(), claims.UserID, input.ProductID, input.BoostType)
	if err != nil {
		return h.boostError(c, err)
	}
	return response.Created(c, "Boost payment created", result)
}

// CancelBoost withdraws a pending boost.
func (h *PremiumHandler) CancelBoost(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid boost id")
	}

	if err := h.boosts.Cancel(c.Context(), claims.UserID, uint(id)); err != nil {
		return h.boostError(c, err)
	}
	return response.Success(c, "Boost cancelled", nil)
}

// MyBoosts lists the caller's boosts.
func (h *PremiumHandler) MyBoosts(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	boosts, err := h.boosts.UserBoosts(c.Context(), claims.UserID)
	if err != nil {
		h.log.WithError(err).Error("listing boosts failed")
		return response.ServerError(c, "Internal error")
	}
	return response.Success(c, "Your boosts", boosts)
}

// ProductBoost returns the active boost for a listing, if any.
func (h *PremiumHandler) ProductBoost(c *fiber.Ctx) error {
	productID, err := c.ParamsInt("productId")
	if err != nil || productID <= 0 {
		return response.BadRequest(c, "Invalid product id")
	}

	b, err := h.boosts.ActiveForProduct(c.Context(), uint(productID))
	if err != nil {
		h.log.WithError(err).Error("boost lookup failed")
		return response.ServerError(c, "Internal error")
	}
	return response.Success(c, "Product boost", fiber.Map{"boosted": b != nil, "boost": b})
}

// BoostedProducts lists currently boosted listings.
func (h *PremiumHandler) BoostedProducts(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)

	boosts, err := h.boosts.BoostedProducts(c.Context(), limit)
	if err != nil {
		h.log.WithError(err).Error("listing boosted products failed")
		return response.ServerError(c, "Internal error")
	}
	return response.Success(c, "Boosted products", boosts)
}

// --- Protection ---

// AddProtection charges a coverage fee on one of the caller's purchases.
func (h *PremiumHandler) AddProtection(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	var input struct {
		TransactionID uint `json:"transactionId"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.TransactionID == 0 {
		return response.BadRequest(c, "transactionId is required")
	}

	result, err := h.protections.Add(c.Context(), claims.UserID, input.TransactionID)
	if err != nil {
		return h.protectionError(c, err)
	}
	return response.Created(c, "Protection payment created", result)
}

// ProtectionStatus returns the coverage on a transaction.
func (h *PremiumHandler) ProtectionStatus(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	transactionID, err := c.ParamsInt("transactionId")
	if err != nil || transactionID <= 0 {
		return response.BadRequest(c, "Invalid transaction id")
	}

	p, err := h.protections.Status(c.Context(), claims.UserID, uint(transactionID))
	if err != nil {
		return h.protectionError(c, err)
	}
	return response.Success(c, "Protection status", fiber.Map{"protected": p != nil, "protection": p})
}

// OpenClaim files a dispute on active coverage.
func (h *PremiumHandler) OpenClaim(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	transactionID, err := c.ParamsInt("transactionId")
	if err != nil || transactionID <= 0 {
		return response.BadRequest(c, "Invalid transaction id")
	}

	var input protection.ClaimInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.Reason == "" {
		return response.BadRequest(c, "reason is required")
	}

	p, err := h.protections.OpenClaim(c.Context(), claims.UserID, uint(transactionID), input)
	if err != nil {
		return h.protectionError(c, err)
	}
	return response.Success(c, "Claim opened", p)
}

// ResolveClaim records the operator verdict. Admin only.
func (h *PremiumHandler) ResolveClaim(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid protection id")
	}

	var input protection.ResolutionInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.Resolution == "" {
		return response.BadRequest(c, "resolution is required")
	}

	p, err := h.protections.ResolveClaim(c.Context(), uint(id), input)
	if err != nil {
		return h.protectionError(c, err)
	}
	return response.Success(c, "Claim resolved", p)
}

// --- Expert verification ---

// RequestExpert charges the verification fee on a pending purchase.
func (h *PremiumHandler) RequestExpert(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	var input struct {
		TransactionID uint `json:"transactionId"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.TransactionID == 0 {
		return response.BadRequest(c, "transactionId is required")
	}

	result, err := h.experts.RequestService(c.Context(), claims.UserID, input.TransactionID)
	if err != nil {
		return h.expertError(c, err)
	}
	return response.Created(c, "Expert verification requested", result)
}

// ExpertStatus returns the party-scoped workflow view.
func (h *PremiumHandler) ExpertStatus(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid expert service id")
	}

	view, err := h.experts.Status(c.Context(), claims.UserID, uint(id))
	if err != nil {
		return h.expertError(c, err)
	}
	return response.Success(c, "Expert service status", view)
}

// SetSellerTracking records the seller's shipment to the platform.
func (h *PremiumHandler) SetSellerTracking(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid expert service id")
	}

	var input struct {
		TrackingNumber string `json:"trackingNumber"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.TrackingNumber == "" {
		return response.BadRequest(c, "trackingNumber is required")
	}

	svc, err := h.experts.SetSellerTracking(c.Context(), claims.UserID, uint(id), input.TrackingNumber)
	if err != nil {
		return h.expertError(c, err)
	}
	return response.Success(c, "Tracking recorded", svc)
}

// ConfirmExpertDelivery is the buyer's final confirmation that releases
// the held funds.
func (h *PremiumHandler) ConfirmExpertDelivery(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid expert service id")
	}

	svc, err := h.experts.ConfirmDelivery(c.Context(), claims.UserID, uint(id))
	if err != nil {
		return h.expertError(c, err)
	}
	return response.Success(c, "Delivery confirmed", svc)
}

// --- Expert admin operations ---

// MarkExpertReceived records platform receipt. Admin only.
func (h *PremiumHandler) MarkExpertReceived(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid expert service id")
	}

	svc, err := h.experts.MarkReceived(c.Context(), uint(id))
	if err != nil {
		return h.expertError(c, err)
	}
	return response.Success(c, "Item received", svc)
}

// StartExpertVerification moves a received item onto the bench. Admin only.
func (h *PremiumHandler) StartExpertVerification(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid expert service id")
	}

	svc, err := h.experts.StartVerification(c.Context(), uint(id))
	if err != nil {
		return h.expertError(c, err)
	}
	return response.Success(c, "Verification started", svc)
}

// SubmitExpertVerification records the inspection result. Admin only.
func (h *PremiumHandler) SubmitExpertVerification(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid expert service id")
	}

	var input expert.VerificationInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	svc, err := h.experts.SubmitVerification(c.Context(), claims.UserID, uint(id), input)
	if err != nil {
		return h.expertError(c, err)
	}
	return response.Success(c, "Verification submitted", svc)
}

// ShipExpertToBuyer records the outbound shipment. Admin only.
func (h *PremiumHandler) ShipExpertToBuyer(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid expert service id")
	}

	var input struct {
		TrackingNumber string `json:"trackingNumber"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.TrackingNumber == "" {
		return response.BadRequest(c, "trackingNumber is required")
	}

	svc, err := h.experts.SetBuyerTracking(c.Context(), uint(id), input.TrackingNumber)
	if err != nil {
		return h.expertError(c, err)
	}
	return response.Success(c, "Shipment recorded", svc)
}

// MarkExpertDelivered records carrier delivery to the buyer. Admin only.
func (h *PremiumHandler) MarkExpertDelivered(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid expert service id")
	}

	svc, err := h.experts.MarkDelivered(c.Context(), uint(id))
	if err != nil {
		return h.expertError(c, err)
	}
	return response.Success(c, "Delivery recorded", svc)
}

// PendingExpertServices lists workflows awaiting operator action. Admin only.
func (h *PremiumHandler) PendingExpertServices(c *fiber.Ctx) error {
	services, err := h.experts.Pending(c.Context())
	if err != nil {
		h.log.WithError(err).Error("listing expert services failed")
		return response.ServerError(c, "Internal error")
	}
	return response.Success(c, "Pending expert services", services)
}

// --- error mapping ---

func (h *PremiumHandler) boostError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, boost.ErrBoostNotFound), errors.Is(err, boost.ErrProductNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, boost.ErrNotOwner):
		return response.Forbidden(c, err.Error())
	case errors.Is(err, boost.ErrProductNotActive),
		errors.Is(err, boost.ErrAlreadyBoosted),
		errors.Is(err, boost.ErrInvalidBoostType),
		errors.Is(err, boost.ErrNotCancellable):
		return response.BadRequest(c, err.Error())
	default:
		h.log.WithError(err).Error("boost request failed")
		return response.ServerError(c, "Internal error")
	}
}

func (h *PremiumHandler) protectionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, protection.ErrProtectionNotFound), errors.Is(err, protection.ErrTransactionNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, protection.ErrNotBuyer), errors.Is(err, protection.ErrNotParty):
		return response.Forbidden(c, err.Error())
	case errors.Is(err, protection.ErrAlreadyProtected),
		errors.Is(err, protection.ErrNotActive),
		errors.Is(err, protection.ErrNoOpenClaim):
		return response.BadRequest(c, err.Error())
	default:
		h.log.WithError(err).Error("protection request failed")
		return response.ServerError(c, "Internal error")
	}
}

func (h *PremiumHandler) expertError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, expert.ErrServiceNotFound), errors.Is(err, expert.ErrTransactionNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, expert.ErrNotBuyer),
		errors.Is(err, expert.ErrNotSeller),
		errors.Is(err, expert.ErrNotParty):
		return response.Forbidden(c, err.Error())
	case errors.Is(err, expert.ErrAlreadyRequested),
		errors.Is(err, expert.ErrNotEligible),
		errors.Is(err, expert.ErrInvalidStatus):
		return response.BadRequest(c, err.Error())
	default:
		h.log.WithError(err).Error("expert request failed")
		return response.ServerError(c, "Internal error")
	}
}
