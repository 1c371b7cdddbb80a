package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// Validation paths reject before reaching storage, so they are testable with
// nil dependencies
func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	srv := newServer(nil, nil, zap.NewNop())
	srv.registerRoutes(router)
	return router
}

func TestHealthEndpoint(t *testing.T) {
	router := testRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "ok", response["status"])
}

func TestCreateConversation_InvalidType(t *testing.T) {
	router := testRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/conversations", bytes.NewBufferString(`{"type":"diary"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendMessage_MissingFields(t *testing.T) {
	router := testRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/conversations/message", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateMood_IntensityOutOfRange(t *testing.T) {
	router := testRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/moods", bytes.NewBufferString(`{"mood":"good","intensity":11}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateJournal_BadDate(t *testing.T) {
	router := testRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/journals", bytes.NewBufferString(`{"date":"30-08-2026"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfileIDHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request, _ = http.NewRequest("GET", "/api/profile", nil)
	assert.Equal(t, defaultProfileID, profileID(c))

	c.Request.Header.Set("X-Profile-ID", "abc-123")
	assert.Equal(t, "abc-123", profileID(c))
}
