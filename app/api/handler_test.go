package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"portfolio/config"
	"portfolio/store"
	"portfolio/types"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubVectors struct {
	store.VectorStorer

	chunks []types.RetrievedChunk
	err    error
}

func (s *stubVectors) QueryBySimilarity(context.Context, string, string, int, float64) ([]types.RetrievedChunk, error) {
	return s.chunks, s.err
}

type stubRecords struct {
	store.RecordStorer

	insertCalls  int
	insertErr    error
	upsertFilter bson.M
	upsertUpdate bson.M
	upsertErr    error
}

func (s *stubRecords) InsertOne(_ context.Context, _ string, doc bson.M) (primitive.ObjectID, error) {
	s.insertCalls++
	return primitive.NewObjectID(), s.insertErr
}

func (s *stubRecords) FindOneAndUpdate(_ context.Context, _ string, filter *store.Filter, update *store.Update, _ *store.UpdateOpts) (bson.M, error) {
	s.upsertFilter = filter.Build()
	s.upsertUpdate = update.Build(time.Now().UTC())
	return bson.M{}, s.upsertErr
}

type stubGenerator struct {
	answer string
}

func (s *stubGenerator) Answer(context.Context, string, []string) string {
	return s.answer
}

type stubSender struct {
	calls int
	err   error
}

func (s *stubSender) Send(context.Context, string, string, string) error {
	s.calls++
	return s.err
}

func newTestApp(chat *ChatHandler, contact *ContactHandler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/health", NewCheckHandler().HandleHealthy)
	apiv1 := app.Group("/api/v1")
	if chat != nil {
		apiv1.Post("/qns-ans", chat.HandleChat)
	}
	if contact != nil {
		apiv1.Post("/contact", contact.HandleContact)
	}
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestHealthAlwaysHealthy(t *testing.T) {
	app := newTestApp(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, map[string]string{"status": "healthy"}, body)
}

func TestChatReturnsGeneratedAnswer(t *testing.T) {
	records := &stubRecords{}
	chat := NewChatHandler(
		&stubVectors{chunks: []types.RetrievedChunk{{Content: "chunk", Distance: 0.2}}},
		records,
		&stubGenerator{answer: "Hey! Ask me about my projects."},
		config.RetrievalConfig{TopK: 5, MaxDistance: 1.3},
		"profile",
	)
	app := newTestApp(chat, nil)

	resp := postJSON(t, app, "/api/v1/qns-ans", types.ChatRequest{Query: "hi", UserID: "u1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body types.ChatResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Hey! Ask me about my projects.", body.Response)

	assert.Equal(t, bson.M{"user_id": "u1"}, records.upsertFilter)
}

func TestChatFallsBackWhenRetrievalFails(t *testing.T) {
	chat := NewChatHandler(
		&stubVectors{err: errors.New("pg down")},
		&stubRecords{},
		&stubGenerator{answer: "unused"},
		config.RetrievalConfig{TopK: 5, MaxDistance: 1.3},
		"profile",
	)
	app := newTestApp(chat, nil)

	resp := postJSON(t, app, "/api/v1/qns-ans", types.ChatRequest{Query: "hi"})

	// Internal failures still answer 200 with the maintenance payload.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body types.ChatResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, MaintenanceAnswer, body.Response)
}

func TestChatFallsBackWhenPersistenceFails(t *testing.T) {
	chat := NewChatHandler(
		&stubVectors{},
		&stubRecords{upsertErr: errors.New("mongo down")},
		&stubGenerator{answer: "fine answer"},
		config.RetrievalConfig{TopK: 5, MaxDistance: 1.3},
		"profile",
	)
	app := newTestApp(chat, nil)

	resp := postJSON(t, app, "/api/v1/qns-ans", types.ChatRequest{Query: "hi", UserID: "u1"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body types.ChatResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, MaintenanceAnswer, body.Response)
}

func TestChatGeneratesUserIDWhenMissing(t *testing.T) {
	records := &stubRecords{}
	chat := NewChatHandler(
		&stubVectors{},
		records,
		&stubGenerator{answer: "a"},
		config.RetrievalConfig{TopK: 5, MaxDistance: 1.3},
		"profile",
	)
	app := newTestApp(chat, nil)

	resp := postJSON(t, app, "/api/v1/qns-ans", types.ChatRequest{Query: "hi"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.NotEmpty(t, records.upsertFilter["user_id"])
}

func TestChatValidatesQuery(t *testing.T) {
	chat := NewChatHandler(&stubVectors{}, &stubRecords{}, &stubGenerator{}, config.RetrievalConfig{}, "profile")
	app := newTestApp(chat, nil)

	resp := postJSON(t, app, "/api/v1/qns-ans", map[string]string{"userId": "u1"})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestContactSuccess(t *testing.T) {
	records := &stubRecords{}
	sender := &stubSender{}
	app := newTestApp(nil, NewContactHandler(records, sender))

	resp := postJSON(t, app, "/api/v1/contact", types.ContactRequest{
		Name:    "Jane",
		Email:   "jane@example.com",
		Message: "hello",
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body types.ContactResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "Message sent successfully!", body.Message)
	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, 1, records.insertCalls)
}

func TestContactValidationShortCircuits(t *testing.T) {
	records := &stubRecords{}
	sender := &stubSender{}
	app := newTestApp(nil, NewContactHandler(records, sender))

	resp := postJSON(t, app, "/api/v1/contact", types.ContactRequest{
		Email:   "jane@example.com",
		Message: "hello",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body ValidationError
	decodeBody(t, resp, &body)
	assert.Contains(t, body.Errors, "Name")

	// Neither the mailer nor the store is reached on validation failure.
	assert.Zero(t, sender.calls)
	assert.Zero(t, records.insertCalls)
}

func TestContactRejectsBadEmail(t *testing.T) {
	app := newTestApp(nil, NewContactHandler(&stubRecords{}, &stubSender{}))

	resp := postJSON(t, app, "/api/v1/contact", types.ContactRequest{
		Name:    "Jane",
		Email:   "not-an-address",
		Message: "hello",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestContactDeliveryFailureReturnsFixedMessage(t *testing.T) {
	records := &stubRecords{}
	sender := &stubSender{err: errors.New("smtp timeout")}
	app := newTestApp(nil, NewContactHandler(records, sender))

	resp := postJSON(t, app, "/api/v1/contact", types.ContactRequest{
		Name:    "Jane",
		Email:   "jane@example.com",
		Message: "hello",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	// The failure body is a bare JSON string, not an error envelope.
	var body string
	decodeBody(t, resp, &body)
	assert.Equal(t, ContactFailedMessage, body)
	assert.Zero(t, records.insertCalls)
}

func TestContactStorageFailureReturnsFixedMessage(t *testing.T) {
	records := &stubRecords{insertErr: errors.New("mongo down")}
	app := newTestApp(nil, NewContactHandler(records, &stubSender{}))

	resp := postJSON(t, app, "/api/v1/contact", types.ContactRequest{
		Name:    "Jane",
		Email:   "jane@example.com",
		Message: "hello",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body string
	decodeBody(t, resp, &body)
	assert.Equal(t, ContactFailedMessage, body)
}
