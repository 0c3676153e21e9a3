package handlers

import (
	"errors"

	"gearted/internal/config"
	"gearted/internal/models"
	"gearted/internal/services/payment"
	"gearted/internal/services/webhook"
	"gearted/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	stripewebhook "github.com/stripe/stripe-go/v72/webhook"
)

// PaymentHandler exposes checkout, confirmation, refunds, the provider
// webhook and seller payout onboarding.
type PaymentHandler struct {
	payments      *payment.Service
	processor     *webhook.Processor
	webhookSecret string
	log           *logrus.Entry
}

func NewPaymentHandler(payments *payment.Service, processor *webhook.Processor, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{
		payments:      payments,
		processor:     processor,
		webhookSecret: webhookSecret,
		log:           logrus.WithField("component", "payment_handler"),
	}
}

// CreateIntent starts a purchase for the authenticated buyer.
func (h *PaymentHandler) CreateIntent(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	var input payment.IntentRequest
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.ProductID == 0 {
		return response.BadRequest(c, "productId is required")
	}

	result, err := h.payments.CreatePurchaseIntent(c.Context(), claims.UserID, input)
	if err != nil {
		return h.paymentError(c, err)
	}
	return response.Created(c, "Payment intent created", result)
}

// ConfirmPayment polls the provider for the intent status. Most clients
// never need it; webhooks settle the transaction on their own.
func (h *PaymentHandler) ConfirmPayment(c *fiber.Ctx) error {
	var input struct {
		PaymentIntentID string `json:"paymentIntentId"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.PaymentIntentID == "" {
		return response.BadRequest(c, "paymentIntentId is required")
	}

	tx, err := h.payments.ConfirmPayment(c.Context(), input.PaymentIntentID)
	if err != nil {
		return h.paymentError(c, err)
	}
	return response.Success(c, "Payment status", tx)
}

// RefundPayment refunds a settled transaction. Admin only.
func (h *PaymentHandler) RefundPayment(c *fiber.Ctx) error {
	var input struct {
		PaymentIntentID string `json:"paymentIntentId"`
		Reason          string `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.PaymentIntentID == "" {
		return response.BadRequest(c, "paymentIntentId is required")
	}

	tx, err := h.payments.RefundPayment(c.Context(), input.PaymentIntentID, input.Reason)
	if err != nil {
		return h.paymentError(c, err)
	}
	return response.Success(c, "Refund processed", tx)
}

// HandleWebhook receives provider events. The signature check is the
// only thing that may reject; once an event verifies, it is always
// acknowledged so the provider does not retry what we chose to skip.
func (h *PaymentHandler) HandleWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	signature := c.Get("Stripe-Signature")

	event, err := stripewebhook.ConstructEvent(payload, signature, h.webhookSecret)
	if err != nil {
		h.log.WithError(err).Warn("webhook signature verification failed")
		return response.BadRequest(c, "Invalid signature")
	}

	ev, err := webhook.ParseEvent(event)
	if err != nil {
		h.log.WithError(err).WithField("type", event.Type).Error("malformed webhook payload")
		return c.JSON(fiber.Map{"received": true})
	}

	if err := h.processor.Process(c.Context(), ev); err != nil {
		h.log.WithError(err).WithField("type", event.Type).Error("webhook processing failed")
	}
	return c.JSON(fiber.Map{"received": true})
}

// GetPublicKey returns the publishable key the client SDK needs.
func (h *PaymentHandler) GetPublicKey(c *fiber.Ctx) error {
	return response.Success(c, "Public key", fiber.Map{
		"publicKey": config.GetEnv("STRIPE_PUBLIC_KEY", ""),
	})
}

// CreateConnectAccount ensures the seller has a payout account.
func (h *PaymentHandler) CreateConnectAccount(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	account, err := h.payments.EnsurePayoutAccount(c.Context(), claims.UserID)
	if err != nil {
		return h.paymentError(c, err)
	}
	return response.Success(c, "Payout account", account)
}

// CreateOnboardingLink returns a hosted onboarding URL for the seller.
func (h *PaymentHandler) CreateOnboardingLink(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	var input struct {
		ReturnURL  string `json:"returnUrl"`
		RefreshURL string `json:"refreshUrl"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.ReturnURL == "" || input.RefreshURL == "" {
		return response.BadRequest(c, "returnUrl and refreshUrl are required")
	}

	url, err := h.payments.PayoutOnboardingLink(c.Context(), claims.UserID, input.ReturnURL, input.RefreshURL)
	if err != nil {
		return h.paymentError(c, err)
	}
	return response.Success(c, "Onboarding link", fiber.Map{"url": url})
}

// GetDashboardLink returns a login link to the seller's provider
// dashboard.
func (h *PaymentHandler) GetDashboardLink(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	url, err := h.payments.PayoutDashboardLink(c.Context(), claims.UserID)
	if err != nil {
		return h.paymentError(c, err)
	}
	return response.Success(c, "Dashboard link", fiber.Map{"url": url})
}

// GetConnectStatus re-reads the payout account's capability flags.
func (h *PaymentHandler) GetConnectStatus(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	account, err := h.payments.PayoutStatus(c.Context(), claims.UserID)
	if err != nil {
		return h.paymentError(c, err)
	}
	return response.Success(c, "Payout status", account)
}

func (h *PaymentHandler) paymentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, payment.ErrProductNotFound), errors.Is(err, payment.ErrIntentNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, payment.ErrProductSold),
		errors.Is(err, payment.ErrSelfPurchase),
		errors.Is(err, payment.ErrAmountMismatch),
		errors.Is(err, payment.ErrNotRefundable),
		errors.Is(err, payment.ErrNoPayoutAccount):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, payment.ErrProviderFailure):
		h.log.WithError(err).Error("provider request failed")
		return response.Error(c, fiber.StatusBadGateway, "Payment provider unavailable")
	default:
		h.log.WithError(err).Error("payment request failed")
		return response.ServerError(c, "Internal error")
	}
}
