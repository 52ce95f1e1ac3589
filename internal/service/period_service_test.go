package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"praise/backend/internal/dto"
	"praise/backend/internal/model"
)

// ── 测试辅助 ──

func setupPeriodEnv() (*testEnv, PeriodService) {
	env := newTestEnv()
	logger := zap.NewNop()
	score := NewScoreService(env.repo, logger)
	events := NewEventService(env.repo, logger)
	svc := NewPeriodService(env.repo, score, events, logger)
	return env, svc
}

// ── Create 测试 ──

func TestPeriodService_Create_Success(t *testing.T) {
	env, svc := setupPeriodEnv()

	resp, err := svc.Create(context.Background(), &dto.CreatePeriodRequest{
		Name:    "一月",
		EndDate: "2026-02-01T00:00:00Z",
	}, "admin-001")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if resp.Status != model.PeriodStatusOpen {
		t.Errorf("新周期应为 open，实际 %s", resp.Status)
	}
	// 设置快照随周期创建
	if _, err := env.periodSettings.GetByPeriod(context.Background(), resp.ID); err != nil {
		t.Errorf("周期创建应同时落设置快照: %v", err)
	}
	if !containsKind(env.events.kinds(), model.EventKindPeriodCreated) {
		t.Error("应产生周期创建事件")
	}
}

func TestPeriodService_Create_EndDateNotAfterLatest(t *testing.T) {
	env, svc := setupPeriodEnv()
	ctx := context.Background()

	env.periods.Create(ctx, &model.Period{
		PeriodID: "period-001",
		Name:     "一月",
		EndDate:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Status:   model.PeriodStatusOpen,
	})

	_, err := svc.Create(ctx, &dto.CreatePeriodRequest{
		Name:    "重叠周期",
		EndDate: "2026-01-15T00:00:00Z",
	}, "admin-001")
	if !errors.Is(err, ErrPeriodEndDateInvalid) {
		t.Errorf("期望 ErrPeriodEndDateInvalid，实际: %v", err)
	}
}

// ── Update 测试 ──

func TestPeriodService_Update_OnlyWhileOpen(t *testing.T) {
	env, svc := setupPeriodEnv()
	ctx := context.Background()

	env.periods.Create(ctx, &model.Period{
		PeriodID: "period-001",
		Name:     "一月",
		EndDate:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Status:   model.PeriodStatusQuantify,
	})

	name := "改名"
	_, err := svc.Update(ctx, "period-001", &dto.UpdatePeriodRequest{Name: &name}, "admin-001")
	if !errors.Is(err, ErrPeriodNotOpen) {
		t.Errorf("期望 ErrPeriodNotOpen，实际: %v", err)
	}
}

func TestPeriodService_Update_EndDateCrossesNeighbor(t *testing.T) {
	env, svc := setupPeriodEnv()
	ctx := context.Background()

	env.periods.Create(ctx, &model.Period{
		PeriodID: "period-001", Name: "一月",
		EndDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Status:  model.PeriodStatusClosed,
	})
	env.periods.Create(ctx, &model.Period{
		PeriodID: "period-002", Name: "二月",
		EndDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:  model.PeriodStatusOpen,
	})

	// 二月的结束时间不能移到一月之前
	end := "2026-01-20T00:00:00Z"
	_, err := svc.Update(ctx, "period-002", &dto.UpdatePeriodRequest{EndDate: &end}, "admin-001")
	if !errors.Is(err, ErrPeriodEndDateConflict) {
		t.Errorf("期望 ErrPeriodEndDateConflict，实际: %v", err)
	}
}

func TestPeriodService_Update_ShrinkWouldOrphanPraise(t *testing.T) {
	env, svc := setupPeriodEnv()
	ctx := context.Background()

	env.periods.Create(ctx, &model.Period{
		PeriodID: "period-001", Name: "一月",
		EndDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Status:  model.PeriodStatusOpen,
	})
	env.praises.Create(ctx, &model.PraiseItem{
		PraiseID: "praise-late", GiverID: "giver-1", ReceiverID: "receiver-1",
		Reason: "月底的赞扬", CreatedAt: time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC),
	})

	// 缩到 1 月 25 日会让 praise-late 无周期可归
	end := "2026-01-25T00:00:00Z"
	_, err := svc.Update(ctx, "period-001", &dto.UpdatePeriodRequest{EndDate: &end}, "admin-001")
	if !errors.Is(err, ErrPeriodShrinkOrphans) {
		t.Errorf("期望 ErrPeriodShrinkOrphans，实际: %v", err)
	}
}

// ── StartQuantification 测试 ──

func seedOpenPeriod(env *testEnv, quantifiers, praiseCount int) string {
	periodID, _ := seedQuantifyPeriod(env, quantifiers, praiseCount)
	p, _ := env.periods.GetByID(context.Background(), periodID)
	p.Status = model.PeriodStatusOpen
	return periodID
}

func TestStartQuantification_Success(t *testing.T) {
	env, svc := setupPeriodEnv()
	periodID := seedOpenPeriod(env, 5, 4)

	resp, err := svc.StartQuantification(context.Background(), periodID, "admin-001")
	if err != nil {
		t.Fatalf("StartQuantification 应成功: %v", err)
	}
	if resp.Period.Status != model.PeriodStatusQuantify {
		t.Errorf("期望状态 quantify，实际 %s", resp.Period.Status)
	}
	// 4 条赞扬 × 3 名量化员
	if resp.Assignments != 12 {
		t.Errorf("期望 12 条指派，实际 %d", resp.Assignments)
	}
	if len(resp.Warnings) != 0 {
		t.Errorf("池足够时不应有警告: %v", resp.Warnings)
	}
	if !containsKind(env.events.kinds(), model.EventKindQuantifyStarted) {
		t.Error("应产生量化开始事件")
	}
}

func TestStartQuantification_RerunReplacesAssignments(t *testing.T) {
	env, svc := setupPeriodEnv()
	periodID := seedOpenPeriod(env, 5, 4)
	ctx := context.Background()

	// 残留的旧指派应被从头推导替换
	env.quants.BatchCreate(ctx, []model.Quantification{
		{PraiseID: "praise-001", QuantifierID: "q-01", Score: intPtr(8)},
	})

	resp, err := svc.StartQuantification(ctx, periodID, "admin-001")
	if err != nil {
		t.Fatalf("StartQuantification 应成功: %v", err)
	}
	if resp.Assignments != 12 {
		t.Errorf("期望 12 条指派，实际 %d", resp.Assignments)
	}
	all, _ := env.quants.ListByPraiseIDs(ctx, []string{"praise-001", "praise-002", "praise-003", "praise-004"})
	if len(all) != 12 {
		t.Errorf("旧指派应被清除重建，实际 %d 条", len(all))
	}
	for _, q := range all {
		if q.Finished() {
			t.Error("重建后的指派应为未判断的占位记录")
		}
	}
}

func TestStartQuantification_RejectedWhenNotOpen(t *testing.T) {
	env, svc := setupPeriodEnv()
	periodID, _ := seedQuantifyPeriod(env, 3, 2) // 已处于 quantify

	_, err := svc.StartQuantification(context.Background(), periodID, "admin-001")
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("期望 ErrInvalidStateTransition，实际: %v", err)
	}
}

func TestStartQuantification_EmptyPool(t *testing.T) {
	env, svc := setupPeriodEnv()
	periodID := seedOpenPeriod(env, 0, 2)

	_, err := svc.StartQuantification(context.Background(), periodID, "admin-001")
	if !errors.Is(err, ErrNoQuantifiers) {
		t.Errorf("期望 ErrNoQuantifiers，实际: %v", err)
	}
}

// ── Close 测试 ──

func TestClose_RealizesAndFreezes(t *testing.T) {
	env, svc := setupPeriodEnv()
	periodID, praises := seedQuantifyPeriod(env, 3, 1)
	ctx := context.Background()

	env.quants.BatchCreate(ctx, []model.Quantification{
		{PraiseID: praises[0].PraiseID, QuantifierID: "q-01", Score: intPtr(5)},
		{PraiseID: praises[0].PraiseID, QuantifierID: "q-02", Score: intPtr(8)},
		{PraiseID: praises[0].PraiseID, QuantifierID: "q-03"},
	})

	resp, err := svc.Close(ctx, periodID, "admin-001")
	if err != nil {
		t.Fatalf("Close 应成功: %v", err)
	}
	if resp.Status != model.PeriodStatusClosed {
		t.Errorf("期望状态 closed，实际 %s", resp.Status)
	}

	// 关闭前完成最终结算
	praise, _ := env.praises.GetByID(ctx, praises[0].PraiseID)
	if !almostEqual(praise.ScoreRealized, 13.0/3.0) {
		t.Errorf("期望最终分值 ≈ 4.333，实际 %f", praise.ScoreRealized)
	}
	if !containsKind(env.events.kinds(), model.EventKindPeriodClosed) {
		t.Error("应产生周期关闭事件")
	}
}

func TestClose_RejectedWhenOpen(t *testing.T) {
	env, svc := setupPeriodEnv()
	periodID := seedOpenPeriod(env, 3, 0)

	_, err := svc.Close(context.Background(), periodID, "admin-001")
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("期望 ErrInvalidStateTransition，实际: %v", err)
	}
}

func TestClose_RejectedWhenAlreadyClosed(t *testing.T) {
	env, svc := setupPeriodEnv()
	periodID, _ := seedQuantifyPeriod(env, 3, 0)
	ctx := context.Background()

	if _, err := svc.Close(ctx, periodID, "admin-001"); err != nil {
		t.Fatalf("首次 Close 应成功: %v", err)
	}
	_, err := svc.Close(ctx, periodID, "admin-001")
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("重复 Close 期望 ErrInvalidStateTransition，实际: %v", err)
	}
}
