// Package runner executes the goal-awareness probe end to end: login, goal
// creation, consultation setup, the streaming check and teardown.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/debug"

	"github.com/zhouzirui/goalprobe/internal/analysis/goalaware"
	"github.com/zhouzirui/goalprobe/internal/client/backend"
	"github.com/zhouzirui/goalprobe/internal/client/stream"
	"github.com/zhouzirui/goalprobe/internal/config"
	"github.com/zhouzirui/goalprobe/internal/model/consultation"
	"github.com/zhouzirui/goalprobe/internal/model/goal"
)

// Exit codes returned by Run.
const (
	ExitPass = 0
	ExitFail = 1
)

const rule = "============================================================"

// Runner 持有一次探测运行所需的依赖。
type Runner struct {
	cfg     config.ProbeConfig
	fixture goal.Goal
	client  *backend.Client
	probe   *stream.Probe
	logger  *log.Logger
}

// New 创建 Runner，所有诊断信息以 "[TEST] " 前缀写入 out。
func New(cfg config.ProbeConfig, fixture goal.Goal, out io.Writer) *Runner {
	if out == nil {
		out = os.Stdout
	}
	logger := log.New(out, "[TEST] ", 0)

	return &Runner{
		cfg:     cfg,
		fixture: fixture,
		client:  backend.NewClient(cfg.BaseURL, cfg.APIKey, cfg.HTTPTimeout),
		probe: stream.NewProbe(stream.Options{
			ConnectTimeout: cfg.ConnectTimeout,
			ReceiveTimeout: cfg.ReceiveTimeout,
			Echo:           out,
			Logger:         logger,
		}),
		logger: logger,
	}
}

// Run 执行全部步骤并返回退出码。已创建的资源总会按创建的逆序删除。
func (r *Runner) Run(ctx context.Context) (code int) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Printf("❌ Error: %v", rec)
			r.logger.Printf("%s", debug.Stack())
			code = ExitFail
		}
	}()

	r.logger.Println(rule)
	r.logger.Println("Goal-Aware AI Test - WebSocket Consultation")
	r.logger.Println(rule)

	passed, err := r.execute(ctx)
	if err != nil {
		r.logger.Printf("❌ Error: %v", err)
		return ExitFail
	}
	if !passed {
		return ExitFail
	}
	return ExitPass
}

func (r *Runner) execute(ctx context.Context) (bool, error) {
	wsBase, err := config.WebSocketBase(r.cfg.BaseURL)
	if err != nil {
		return false, err
	}

	// 中断后仍需清理，删除操作不继承取消信号。
	teardownCtx := context.WithoutCancel(ctx)

	token, err := r.authenticate(ctx)
	if err != nil {
		return false, err
	}

	created, err := r.createGoal(ctx, token)
	if err != nil {
		return false, err
	}
	defer r.deleteGoal(teardownCtx, token, created.ID)

	r.client.CleanupActiveConsultations(ctx, token, r.logger)

	c, err := r.createConsultation(ctx, token, created.ID)
	if err != nil {
		return false, err
	}
	defer r.deleteConsultation(teardownCtx, token, c.ID)

	passed, err := r.checkGoalAwareness(ctx, wsBase, token, c.ID, created)

	r.logger.Println("")
	r.logger.Println(rule)
	if passed {
		r.logger.Println("✅ TEST PASSED! Goal context feature working!")
	} else {
		r.logger.Println("❌ TEST FAILED")
	}
	r.logger.Println(rule)

	return passed, err
}

func (r *Runner) authenticate(ctx context.Context) (string, error) {
	r.logger.Println("Authenticating...")
	token, err := r.client.Login(ctx, r.cfg.Email, r.cfg.Password)
	if err != nil {
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) {
			r.logger.Printf("❌ Auth failed with status %d", statusErr.Status)
			r.logger.Printf("Response: %s", statusErr.Body)
		}
		return "", fmt.Errorf("authenticate: %w", err)
	}
	r.logger.Println("✅ Token obtained")
	return token, nil
}

func (r *Runner) createGoal(ctx context.Context, token string) (goal.Goal, error) {
	r.logger.Println("Creating concrete test goal...")
	created, err := r.client.CreateGoal(ctx, token, r.fixture)
	if err != nil {
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) {
			r.logger.Printf("❌ Failed to create goal: %d", statusErr.Status)
			r.logger.Printf("Response: %s", statusErr.Body)
		}
		return goal.Goal{}, err
	}

	unit := created.TargetUnit
	r.logger.Printf("✅ Created test goal: '%s'", created.Title)
	r.logger.Printf("   Type: %s", created.GoalType)
	r.logger.Printf("   Current: %s %s", goal.FormatValue(created.CurrentValue), unit)
	r.logger.Printf("   Target: %s %s", goal.FormatValue(created.TargetValue), unit)
	r.logger.Printf("   To lose: %s %s", goal.FormatValue(created.Remaining()), unit)
	return created, nil
}

func (r *Runner) deleteGoal(ctx context.Context, token, id string) {
	r.logger.Printf("Deleting test goal %s...", id)
	if err := r.client.DeleteGoal(ctx, token, id); err != nil {
		r.logger.Printf("⚠️  Failed to delete test goal: %v", err)
		return
	}
	r.logger.Println("✅ Test goal deleted successfully")
}

func (r *Runner) createConsultation(ctx context.Context, token, goalID string) (consultation.Consultation, error) {
	r.logger.Println("Creating consultation with goal context...")
	c, err := r.client.CreateConsultation(ctx, token, consultation.CreateRequest{
		Persona:     r.cfg.Persona,
		ContextType: consultation.ContextGoal,
		ContextID:   goalID,
	})
	if err != nil {
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) {
			r.logger.Printf("❌ Failed to create consultation: %d", statusErr.Status)
			r.logger.Printf("Response: %s", statusErr.Body)
		}
		return consultation.Consultation{}, err
	}

	contextType := c.ContextType
	if contextType == "" {
		contextType = "none"
	}
	r.logger.Printf("✅ Consultation created: %s", c.ID)
	r.logger.Printf("   Persona: %s", c.Persona)
	r.logger.Printf("   Has context: %s", contextType)
	return c, nil
}

func (r *Runner) deleteConsultation(ctx context.Context, token, id string) {
	r.logger.Printf("Cleaning up consultation %s...", id)
	if err := r.client.DeleteConsultation(ctx, token, id); err != nil {
		r.logger.Printf("⚠️  Failed to delete consultation: %v", err)
		return
	}
	r.logger.Println("✅ Consultation deleted successfully")
}

// checkGoalAwareness 发送不提及目标的消息，并判断回复是否引用了目标。
func (r *Runner) checkGoalAwareness(ctx context.Context, wsBase, token, consultationID string, g goal.Goal) (bool, error) {
	result, err := r.probe.Run(ctx, stream.ConsultationURL(wsBase, consultationID), backend.AuthHeader(r.cfg.APIKey, token), r.cfg.Message)
	if err != nil {
		var serverErr *stream.ServerError
		if errors.As(err, &serverErr) {
			// error 帧已经由探测器记录。
			return false, nil
		}
		return false, err
	}

	r.logger.Println("")
	r.logger.Println(rule)
	r.logger.Println("ANALYSIS: Does AI know about the goal?")
	r.logger.Println(rule)

	verdict := goalaware.Analyze(result.Reply, g)
	r.report(verdict, g)
	return verdict.GoalAware, nil
}

func (r *Runner) report(v goalaware.Verdict, g goal.Goal) {
	switch v.Tier {
	case goalaware.TierTitle:
		r.logger.Printf("✅ AI explicitly mentioned the goal: '%s'", g.Title)
	case goalaware.TierKeyword:
		r.logger.Printf("✅ AI mentioned goal keyword: '%s'", v.Match)
	case goalaware.TierTarget:
		r.logger.Printf("✅ AI mentioned target: %s %s", goal.FormatValue(g.TargetValue), g.TargetUnit)
	case goalaware.TierClarification:
		r.logger.Printf("❌ AI is asking about the goal: '%s'", v.Match)
	}

	switch {
	case v.GoalAware:
		r.logger.Println("")
		r.logger.Println("🎉 SUCCESS! AI is GOAL-AWARE!")
		r.logger.Println("The AI acknowledged the specific goal and is ready to help.")
	case v.Tier == goalaware.TierClarification:
		r.logger.Println("")
		r.logger.Println("❌ FAILURE! AI is NOT goal-aware!")
		r.logger.Println("The AI is asking what the goal is instead of knowing it.")
		r.logger.Println("")
		r.logger.Printf("Expected: AI should reference '%s'", g.Title)
		r.logger.Println("Actual: AI asked for more information about the goal")
	default:
		r.logger.Println("")
		r.logger.Println("⚠️ UNCLEAR: AI response doesn't clearly reference the specific goal")
		r.logger.Printf("Goal title: '%s'", g.Title)
		r.logger.Printf("AI response: '%s...'", v.Excerpt)
		r.logger.Println("")
		r.logger.Println("This suggests the goal context may not be passed correctly.")
	}
}
