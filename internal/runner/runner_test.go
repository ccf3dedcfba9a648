package runner

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/goalprobe/internal/config"
	"github.com/zhouzirui/goalprobe/internal/handler"
	"github.com/zhouzirui/goalprobe/internal/model/consultation"
	"github.com/zhouzirui/goalprobe/internal/model/goal"
	"github.com/zhouzirui/goalprobe/internal/service/ai"
)

const (
	testEmail    = "probe@example.com"
	testPassword = "probe-password"
	testAPIKey   = "test-key"
)

type staticResponder string

func (s staticResponder) Stream(_ context.Context, _ ai.Request, emit func(string) error) (string, error) {
	if err := emit(string(s)); err != nil {
		return "", err
	}
	return string(s), nil
}

type failingResponder struct{}

func (failingResponder) Stream(context.Context, ai.Request, func(string) error) (string, error) {
	return "", errors.New("model overloaded")
}

func newBackend(t *testing.T, responder ai.Responder) (handler.Services, config.ProbeConfig) {
	t.Helper()
	svc := handler.NewInMemoryServices(testEmail, testPassword, testAPIKey, responder)
	svc.BatchFrames = true
	svc.Quiet = true
	srv := httptest.NewServer(handler.NewRouter(svc))
	t.Cleanup(srv.Close)

	cfg := config.ProbeConfig{
		BaseURL:        srv.URL,
		APIKey:         testAPIKey,
		Email:          testEmail,
		Password:       testPassword,
		Persona:        config.DefaultPersona,
		Message:        config.DefaultMessage,
		ConnectTimeout: time.Second,
		ReceiveTimeout: time.Second,
		HTTPTimeout:    5 * time.Second,
	}
	return svc, cfg
}

func assertTornDown(t *testing.T, svc handler.Services) {
	t.Helper()
	assert.Equal(t, 0, svc.Goals.Count(), "goal must be deleted")
	assert.Empty(t, svc.Consultations.List(context.Background(), ""), "consultation must be deleted")
}

func TestRunPassesWithGoalAwareReply(t *testing.T) {
	svc, cfg := newBackend(t, &ai.ScriptedResponder{})

	var out bytes.Buffer
	code := New(cfg, goal.Fixture(), &out).Run(context.Background())

	assert.Equal(t, ExitPass, code, out.String())
	logs := out.String()
	assert.Contains(t, logs, "[TEST] ✅ Token obtained")
	assert.Contains(t, logs, "[TEST] ✅ Created test goal: 'Lose 15 pounds for summer vacation'")
	assert.Contains(t, logs, "[TEST]    To lose: 15 lbs")
	assert.Contains(t, logs, "[TEST]    Has context: goal")
	assert.Contains(t, logs, "[TEST] ✅ AI explicitly mentioned the goal")
	assert.Contains(t, logs, "🎉 SUCCESS! AI is GOAL-AWARE!")
	assert.Contains(t, logs, "✅ TEST PASSED! Goal context feature working!")
	assertTornDown(t, svc)

	// 先删咨询再删目标。
	assert.Less(t, strings.Index(logs, "Cleaning up consultation"), strings.Index(logs, "Deleting test goal"))
}

func TestRunFailsWhenAssistantAsksForGoal(t *testing.T) {
	svc, cfg := newBackend(t, &ai.ScriptedResponder{Oblivious: true})

	var out bytes.Buffer
	code := New(cfg, goal.Fixture(), &out).Run(context.Background())

	assert.Equal(t, ExitFail, code)
	assert.Contains(t, out.String(), "❌ AI is asking about the goal: 'what goal'")
	assert.Contains(t, out.String(), "❌ FAILURE! AI is NOT goal-aware!")
	assert.Contains(t, out.String(), "❌ TEST FAILED")
	assertTornDown(t, svc)
}

func TestRunMatchesTargetValue(t *testing.T) {
	_, cfg := newBackend(t, staticResponder("Getting down to 165 by July is realistic."))

	var out bytes.Buffer
	code := New(cfg, goal.Fixture(), &out).Run(context.Background())

	assert.Equal(t, ExitPass, code)
	assert.Contains(t, out.String(), "✅ AI mentioned target: 165 lbs")
}

func TestRunUnclearReplyFails(t *testing.T) {
	reply := strings.Repeat("Drink water and sleep well. ", 20)
	svc, cfg := newBackend(t, staticResponder(reply))

	var out bytes.Buffer
	code := New(cfg, goal.Fixture(), &out).Run(context.Background())

	assert.Equal(t, ExitFail, code)
	assert.Contains(t, out.String(), "⚠️ UNCLEAR")
	assert.Contains(t, out.String(), "AI response: '"+reply[:200]+"...'")
	assertTornDown(t, svc)
}

func TestRunErrorFrameStillTearsDown(t *testing.T) {
	svc, cfg := newBackend(t, failingResponder{})

	var out bytes.Buffer
	code := New(cfg, goal.Fixture(), &out).Run(context.Background())

	assert.Equal(t, ExitFail, code)
	assert.Contains(t, out.String(), "❌ Error: ai generation failed: model overloaded")
	assertTornDown(t, svc)
}

func TestRunAuthFailure(t *testing.T) {
	svc, cfg := newBackend(t, &ai.ScriptedResponder{})
	cfg.Password = "wrong"

	var out bytes.Buffer
	code := New(cfg, goal.Fixture(), &out).Run(context.Background())

	assert.Equal(t, ExitFail, code)
	assert.Contains(t, out.String(), "❌ Auth failed with status 401")
	assert.NotContains(t, out.String(), "Creating concrete test goal")
	assert.Equal(t, 0, svc.Goals.Count())
}

func TestRunWrongAPIKeyFails(t *testing.T) {
	_, cfg := newBackend(t, &ai.ScriptedResponder{})
	cfg.APIKey = "other"

	var out bytes.Buffer
	assert.Equal(t, ExitFail, New(cfg, goal.Fixture(), &out).Run(context.Background()))
}

func TestRunRemovesStaleConsultations(t *testing.T) {
	svc, cfg := newBackend(t, &ai.ScriptedResponder{})
	ctx := context.Background()
	stale, err := svc.Consultations.Create(ctx, consultation.CreateRequest{Persona: "nutritionist"})
	require.NoError(t, err)

	var out bytes.Buffer
	code := New(cfg, goal.Fixture(), &out).Run(ctx)

	assert.Equal(t, ExitPass, code)
	assert.Contains(t, out.String(), "✅ Deleted consultation "+stale.ID)
	assert.Contains(t, out.String(), "✅ Cleanup complete (1 of 1 consultations deleted)")
	assertTornDown(t, svc)
}

func TestRunUnknownPersonaFailsAfterGoalCreated(t *testing.T) {
	svc, cfg := newBackend(t, &ai.ScriptedResponder{})
	cfg.Persona = "astrologer"

	var out bytes.Buffer
	code := New(cfg, goal.Fixture(), &out).Run(context.Background())

	assert.Equal(t, ExitFail, code)
	assert.Contains(t, out.String(), "❌ Failed to create consultation: 400")
	assert.Contains(t, out.String(), "✅ Test goal deleted successfully")
	assert.Equal(t, 0, svc.Goals.Count())
}

// panicWriter panics on the first write that contains trigger.
type panicWriter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	trigger string
	fired   bool
}

func (w *panicWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.fired && bytes.Contains(p, []byte(w.trigger)) {
		w.fired = true
		panic("writer exploded")
	}
	return w.buf.Write(p)
}

func TestRunRecoversPanic(t *testing.T) {
	_, cfg := newBackend(t, &ai.ScriptedResponder{})

	w := &panicWriter{trigger: "Token obtained"}
	code := New(cfg, goal.Fixture(), w).Run(context.Background())

	assert.Equal(t, ExitFail, code)
	assert.Contains(t, w.buf.String(), "❌ Error: writer exploded")
	assert.Contains(t, w.buf.String(), "runtime/debug.Stack")
}
