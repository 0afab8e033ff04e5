package api

import (
	"strings"
	"time"

	"portfolio/config"
	"portfolio/logger"
	"portfolio/model"
	"portfolio/store"
	"portfolio/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// MaintenanceAnswer is the user-safe payload for any internal failure on
// the chat endpoint. The status stays 200: the frontend renders it like a
// normal bot reply.
const MaintenanceAnswer = "Sorry, bot is under maintenance"

// ConversationCollection keys conversation records by user_id.
const ConversationCollection = "q_n_a"

type ChatHandler struct {
	vectors    store.VectorStorer
	records    store.RecordStorer
	generator  model.AnswerGenerator
	retrieval  config.RetrievalConfig
	collection string
}

func NewChatHandler(vectors store.VectorStorer, records store.RecordStorer, generator model.AnswerGenerator, retrieval config.RetrievalConfig, collection string) *ChatHandler {
	return &ChatHandler{
		vectors:    vectors,
		records:    records,
		generator:  generator,
		retrieval:  retrieval,
		collection: collection,
	}
}

// HandleChat retrieves relevant knowledge-base chunks for the query, asks
// the model for a formatted answer and appends the exchange to the user's
// conversation record.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req types.ChatRequest
	if c.BodyParser(&req) != nil {
		return ErrBadRequest()
	}
	if errs := types.Validate(&req); len(errs) > 0 {
		return NewValidationError(errs)
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		// Anonymous visitor: the conversation still needs a stable key.
		userID = uuid.NewString()
	}
	query := strings.TrimSpace(req.Query)

	chunks, err := h.vectors.QueryBySimilarity(c.Context(), h.collection, query, h.retrieval.TopK, h.retrieval.MaxDistance)
	if err != nil {
		logger.ErrorAt("HandleChat", err)
		return c.JSON(types.ChatResponse{Response: MaintenanceAnswer})
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	answer := h.generator.Answer(c.Context(), query, texts)

	if err := h.saveExchange(c, userID, query, answer); err != nil {
		logger.ErrorAt("HandleChat", err)
		return c.JSON(types.ChatResponse{Response: MaintenanceAnswer})
	}

	return c.JSON(types.ChatResponse{Response: answer})
}

// saveExchange upserts the conversation in one atomic server-side call:
// created_at and user_id are written only when the record is created,
// last_active is refreshed on every message and the exchange is appended
// to messages. Overlapping requests from the same user cannot lose
// updates because there is no client-side read-modify-write.
func (h *ChatHandler) saveExchange(c *fiber.Ctx, userID, query, answer string) error {
	now := time.Now().UTC()
	update := store.NewUpdate().
		SetOnInsert("user_id", userID).
		SetOnInsert("created_at", now).
		Set("last_active", now).
		Push("messages", types.MessageEntry{
			Query:     query,
			Response:  answer,
			Timestamp: now,
		})

	_, err := h.records.FindOneAndUpdate(
		c.Context(),
		ConversationCollection,
		store.NewFilter().Eq("user_id", userID),
		update,
		&store.UpdateOpts{Upsert: true},
	)
	return err
}
