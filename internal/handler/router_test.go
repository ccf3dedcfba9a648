package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/goalprobe/internal/model/goal"
	"github.com/zhouzirui/goalprobe/internal/model/stream"
	aiService "github.com/zhouzirui/goalprobe/internal/service/ai"
)

const (
	testEmail    = "probe@example.com"
	testPassword = "probe-password"
	testAPIKey   = "test-key"
)

type testServer struct {
	*httptest.Server
	svc   Services
	token string
}

func newTestServer(t *testing.T, batch bool, responder aiService.Responder) *testServer {
	t.Helper()
	svc := NewInMemoryServices(testEmail, testPassword, testAPIKey, responder)
	svc.BatchFrames = batch
	svc.Quiet = true

	srv := httptest.NewServer(NewRouter(svc))
	t.Cleanup(srv.Close)

	ts := &testServer{Server: srv, svc: svc}
	ts.token = ts.login(t)
	return ts
}

func (ts *testServer) request(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testAPIKey)
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (ts *testServer) login(t *testing.T) string {
	resp, body := ts.request(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": testEmail, "password": testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	token, _ := data["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func (ts *testServer) createGoal(t *testing.T) string {
	resp, body := ts.request(t, http.MethodPost, "/api/v1/goals", goal.Fixture())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	g := body["data"].(map[string]any)["goal"].(map[string]any)
	return g["id"].(string)
}

func (ts *testServer) createConsultation(t *testing.T, goalID string) string {
	resp, body := ts.request(t, http.MethodPost, "/api/v1/consultations", map[string]string{
		"persona":      "wellness_specialist",
		"context_type": "goal",
		"context_id":   goalID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	c := body["data"].(map[string]any)["consultation"].(map[string]any)
	assert.Equal(t, "active", c["status"])
	return c["id"].(string)
}

func (ts *testServer) dial(t *testing.T, consultationID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/consultations/" + consultationID + "/ws"
	header := http.Header{}
	header.Set("X-API-Key", testAPIKey)
	header.Set("Authorization", "Bearer "+ts.token)

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t, false, &aiService.ScriptedResponder{})
	ts.token = ""

	resp, body := ts.request(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": testEmail, "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestRoutesRequireAPIKeyAndToken(t *testing.T) {
	ts := newTestServer(t, false, &aiService.ScriptedResponder{})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/consultations", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "missing api key")

	ts.token = "forged"
	resp2, _ := ts.request(t, http.MethodGet, "/api/v1/consultations", nil)
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode, "forged token")
}

func TestGoalAndConsultationLifecycle(t *testing.T) {
	ts := newTestServer(t, false, &aiService.ScriptedResponder{})

	goalID := ts.createGoal(t)
	consultationID := ts.createConsultation(t, goalID)

	resp, body := ts.request(t, http.MethodGet, "/api/v1/consultations?status=active", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := body["data"].(map[string]any)["consultations"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, consultationID, items[0].(map[string]any)["id"])

	resp, _ = ts.request(t, http.MethodDelete, "/api/v1/consultations/"+consultationID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = ts.request(t, http.MethodDelete, "/api/v1/consultations/"+consultationID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.request(t, http.MethodDelete, "/api/v1/goals/"+goalID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, ts.svc.Goals.Count())
}

func TestCreateConsultationValidation(t *testing.T) {
	ts := newTestServer(t, false, &aiService.ScriptedResponder{})

	resp, _ := ts.request(t, http.MethodPost, "/api/v1/consultations", map[string]string{"persona": "astrologer"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.request(t, http.MethodPost, "/api/v1/consultations", map[string]string{
		"persona": "wellness_specialist", "context_type": "goal", "context_id": "missing",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPersonaRoutes(t *testing.T) {
	ts := newTestServer(t, false, &aiService.ScriptedResponder{})

	resp, body := ts.request(t, http.MethodGet, "/api/v1/personas", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := body["data"].(map[string]any)["personas"].([]any)
	require.Len(t, items, 3)
	assert.Equal(t, "wellness_specialist", items[0].(map[string]any)["id"])

	resp, body = ts.request(t, http.MethodGet, "/api/v1/personas/nutritionist", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Sage", body["data"].(map[string]any)["persona"].(map[string]any)["name"])

	resp, _ = ts.request(t, http.MethodGet, "/api/v1/personas/astrologer", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateConsultationNormalizesPersona(t *testing.T) {
	ts := newTestServer(t, false, &aiService.ScriptedResponder{})

	resp, body := ts.request(t, http.MethodPost, "/api/v1/consultations", map[string]string{"persona": "Fitness_Coach"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "fitness_coach", body["data"].(map[string]any)["consultation"].(map[string]any)["persona"])

	resp, body = ts.request(t, http.MethodPost, "/api/v1/consultations", map[string]string{"persona": "astrologer"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "wellness_specialist, nutritionist, fitness_coach")
}

func readFrames(t *testing.T, conn *websocket.Conn) []stream.Frame {
	t.Helper()
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	frames, err := stream.ParseBatch(data)
	require.NoError(t, err)
	return frames
}

func TestWebSocketStreamsGoalAwareReply(t *testing.T) {
	ts := newTestServer(t, true, &aiService.ScriptedResponder{})
	conn := ts.dial(t, ts.createConsultation(t, ts.createGoal(t)))

	first := readFrames(t, conn)
	require.Len(t, first, 1)
	assert.Equal(t, stream.TypeConnected, first[0].Type)

	require.NoError(t, conn.WriteJSON(stream.Frame{Type: stream.TypeMessage, Content: "help?"}))

	var (
		reply        strings.Builder
		sawReceived  bool
		sawBatched   bool
		sawCompleted bool
	)
	for !sawCompleted {
		frames := readFrames(t, conn)
		if len(frames) > 1 {
			sawBatched = true
		}
		for _, f := range frames {
			switch f.Type {
			case stream.TypeMessageReceived:
				sawReceived = true
			case stream.TypeStreamChunk:
				reply.WriteString(f.Content)
			case stream.TypeStreamComplete:
				sawCompleted = true
			default:
				t.Fatalf("unexpected frame %+v", f)
			}
		}
	}

	assert.True(t, sawReceived)
	assert.True(t, sawBatched, "last chunk and stream_complete should share one message")
	assert.Contains(t, reply.String(), goal.Fixture().Title)
}

func TestWebSocketRejectsUnknownFrameType(t *testing.T) {
	ts := newTestServer(t, false, &aiService.ScriptedResponder{})
	conn := ts.dial(t, ts.createConsultation(t, ts.createGoal(t)))
	readFrames(t, conn)

	require.NoError(t, conn.WriteJSON(stream.Frame{Type: "typing"}))
	frames := readFrames(t, conn)
	require.Len(t, frames, 1)
	assert.Equal(t, stream.TypeError, frames[0].Type)
	assert.Contains(t, frames[0].Error, "typing")
}

func TestWebSocketUnknownConsultation(t *testing.T) {
	ts := newTestServer(t, false, &aiService.ScriptedResponder{})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/consultations/missing/ws"
	header := http.Header{}
	header.Set("X-API-Key", testAPIKey)
	header.Set("Authorization", "Bearer "+ts.token)
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
