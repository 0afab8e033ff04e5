package api

import (
	"portfolio/logger"
	"portfolio/mailer"
	"portfolio/store"
	"portfolio/types"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
)

// ContactFailedMessage is the fixed user-safe reply for delivery or
// storage failures on the contact endpoint.
const ContactFailedMessage = "Failed to send the message. Please be patient — we will fix it soon"

// ContactCollection stores raw submissions.
const ContactCollection = "contact"

type ContactHandler struct {
	records store.RecordStorer
	sender  mailer.Sender
}

func NewContactHandler(records store.RecordStorer, sender mailer.Sender) *ContactHandler {
	return &ContactHandler{
		records: records,
		sender:  sender,
	}
}

// HandleContact validates the form, emails it to the owner and stores the
// submission. Validation failures never reach the sender or the store.
func (h *ContactHandler) HandleContact(c *fiber.Ctx) error {
	var req types.ContactRequest
	if c.BodyParser(&req) != nil {
		return ErrBadRequest()
	}
	if errs := types.Validate(&req); len(errs) > 0 {
		return NewValidationError(errs)
	}

	if err := h.sender.Send(c.Context(), req.Name, req.Email, req.Message); err != nil {
		logger.ErrorAt("HandleContact", err)
		// Existing frontends parse this body as a bare JSON string.
		return c.Status(fiber.StatusBadRequest).JSON(ContactFailedMessage)
	}

	_, err := h.records.InsertOne(c.Context(), ContactCollection, bson.M{
		"name":    req.Name,
		"email":   req.Email,
		"message": req.Message,
	})
	if err != nil {
		logger.ErrorAt("HandleContact", err)
		return c.Status(fiber.StatusBadRequest).JSON(ContactFailedMessage)
	}

	return c.JSON(types.ContactResponse{
		Status:  "success",
		Message: "Message sent successfully!",
	})
}
