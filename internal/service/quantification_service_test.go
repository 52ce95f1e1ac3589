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

func setupQuantifyEnv() (*testEnv, QuantificationService) {
	env := newTestEnv()
	logger := zap.NewNop()
	score := NewScoreService(env.repo, logger)
	events := NewEventService(env.repo, logger)
	svc := NewQuantificationService(env.repo, score, events, logger)
	return env, svc
}

// 量化中的周期 + 两条赞扬，praise-A 指派给 q-01/q-02/q-03
func seedQuantifyScene(env *testEnv) (periodID string) {
	ctx := context.Background()
	period := &model.Period{
		PeriodID: "period-001",
		Name:     "一月",
		EndDate:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Status:   model.PeriodStatusQuantify,
	}
	env.periods.Create(ctx, period)

	for _, id := range []string{"praise-A", "praise-B"} {
		day := 10
		if id == "praise-B" {
			day = 11
		}
		env.praises.Create(ctx, &model.PraiseItem{
			PraiseID:   id,
			GiverID:    "giver-1",
			ReceiverID: "receiver-1",
			Reason:     "值得赞扬的贡献",
			CreatedAt:  time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC),
		})
	}
	for _, qid := range []string{"q-01", "q-02", "q-03"} {
		env.quants.BatchCreate(ctx, []model.Quantification{
			{PraiseID: "praise-A", QuantifierID: qid},
			{PraiseID: "praise-B", QuantifierID: qid},
		})
	}
	return period.PeriodID
}

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

// ── Quantify 测试 ──

func TestQuantify_Score(t *testing.T) {
	env, svc := setupQuantifyEnv()
	seedQuantifyScene(env)

	resp, err := svc.Quantify(context.Background(), "praise-A", "q-01", &dto.QuantifyRequest{Score: intPtr(8)})
	if err != nil {
		t.Fatalf("Quantify 应成功: %v", err)
	}
	if resp.Quantification.Score == nil || *resp.Quantification.Score != 8 || !resp.Quantification.Finished {
		t.Errorf("判断未正确写入: %+v", resp.Quantification)
	}
	// 三条指派 {8, 未评, 未评} → 8/3
	if len(resp.Affected) != 1 || !almostEqual(resp.Affected[0].ScoreRealized, 8.0/3.0) {
		t.Errorf("受影响集合不符: %+v", resp.Affected)
	}
}

// 0 在默认白名单内，是合法的已评分值
func TestQuantify_ZeroScore(t *testing.T) {
	env, svc := setupQuantifyEnv()
	seedQuantifyScene(env)
	ctx := context.Background()

	resp, err := svc.Quantify(ctx, "praise-A", "q-01", &dto.QuantifyRequest{Score: intPtr(0)})
	if err != nil {
		t.Fatalf("评 0 分应成功: %v", err)
	}
	if resp.Quantification.Score == nil || *resp.Quantification.Score != 0 || !resp.Quantification.Finished {
		t.Errorf("0 分判断未正确写入: %+v", resp.Quantification)
	}

	quant, _ := env.quants.GetByPraiseAndQuantifier(ctx, "praise-A", "q-01")
	if !quant.Finished() {
		t.Error("评 0 分后判断应视为已完成")
	}

	// 其余两人评分后结算 (0+8+13)/3 = 7
	if _, err := svc.Quantify(ctx, "praise-A", "q-02", &dto.QuantifyRequest{Score: intPtr(8)}); err != nil {
		t.Fatalf("Quantify 应成功: %v", err)
	}
	final, err := svc.Quantify(ctx, "praise-A", "q-03", &dto.QuantifyRequest{Score: intPtr(13)})
	if err != nil {
		t.Fatalf("Quantify 应成功: %v", err)
	}
	if len(final.Affected) != 1 || !almostEqual(final.Affected[0].ScoreRealized, 7.0) {
		t.Errorf("0 分应计入结算: %+v", final.Affected)
	}
}

// 互斥不变式：后写的判断清空先写的
func TestQuantify_MutualExclusivity(t *testing.T) {
	env, svc := setupQuantifyEnv()
	seedQuantifyScene(env)
	ctx := context.Background()

	if _, err := svc.Quantify(ctx, "praise-A", "q-01", &dto.QuantifyRequest{Score: intPtr(8)}); err != nil {
		t.Fatalf("评分应成功: %v", err)
	}
	if _, err := svc.Quantify(ctx, "praise-A", "q-01", &dto.QuantifyRequest{Dismissed: boolPtr(true)}); err != nil {
		t.Fatalf("改判驳回应成功: %v", err)
	}

	quant, _ := env.quants.GetByPraiseAndQuantifier(ctx, "praise-A", "q-01")
	if quant.Score != nil || !quant.Dismissed || quant.DuplicatePraiseID != nil {
		t.Errorf("改判后应只保留驳回标记: %+v", quant)
	}
}

func TestQuantify_AmbiguousJudgement(t *testing.T) {
	env, svc := setupQuantifyEnv()
	seedQuantifyScene(env)

	_, err := svc.Quantify(context.Background(), "praise-A", "q-01", &dto.QuantifyRequest{
		Score:     intPtr(8),
		Dismissed: boolPtr(true),
	})
	if !errors.Is(err, ErrInvalidJudgement) {
		t.Errorf("期望 ErrInvalidJudgement，实际: %v", err)
	}

	_, err = svc.Quantify(context.Background(), "praise-A", "q-01", &dto.QuantifyRequest{})
	if !errors.Is(err, ErrInvalidJudgement) {
		t.Errorf("空判断期望 ErrInvalidJudgement，实际: %v", err)
	}
}

func TestQuantify_ScoreNotInWhitelist(t *testing.T) {
	env, svc := setupQuantifyEnv()
	seedQuantifyScene(env)

	_, err := svc.Quantify(context.Background(), "praise-A", "q-01", &dto.QuantifyRequest{Score: intPtr(7)})
	if !errors.Is(err, ErrScoreNotAllowed) {
		t.Errorf("期望 ErrScoreNotAllowed，实际: %v", err)
	}
}

func TestQuantify_NotAssigned(t *testing.T) {
	env, svc := setupQuantifyEnv()
	seedQuantifyScene(env)

	_, err := svc.Quantify(context.Background(), "praise-A", "q-99", &dto.QuantifyRequest{Score: intPtr(8)})
	if !errors.Is(err, ErrQuantNotAssigned) {
		t.Errorf("期望 ErrQuantNotAssigned，实际: %v", err)
	}
}

func TestQuantify_PeriodNotQuantifying(t *testing.T) {
	env, svc := setupQuantifyEnv()
	periodID := seedQuantifyScene(env)
	ctx := context.Background()

	p, _ := env.periods.GetByID(ctx, periodID)
	p.Status = model.PeriodStatusOpen

	_, err := svc.Quantify(ctx, "praise-A", "q-01", &dto.QuantifyRequest{Score: intPtr(8)})
	if !errors.Is(err, ErrPeriodNotQuantifying) {
		t.Errorf("期望 ErrPeriodNotQuantifying，实际: %v", err)
	}
}

func TestQuantify_SelfDuplicate(t *testing.T) {
	env, svc := setupQuantifyEnv()
	seedQuantifyScene(env)

	_, err := svc.Quantify(context.Background(), "praise-A", "q-01", &dto.QuantifyRequest{
		DuplicatePraiseID: strPtr("praise-A"),
	})
	if !errors.Is(err, ErrSelfDuplicate) {
		t.Errorf("期望 ErrSelfDuplicate，实际: %v", err)
	}
}

// 禁止重复链：目标已是重复
func TestQuantify_DuplicateOfDuplicate(t *testing.T) {
	env, svc := setupQuantifyEnv()
	seedQuantifyScene(env)
	ctx := context.Background()

	// q-01 先将 B 标记为 A 的重复
	if _, err := svc.Quantify(ctx, "praise-B", "q-01", &dto.QuantifyRequest{
		DuplicatePraiseID: strPtr("praise-A"),
	}); err != nil {
		t.Fatalf("首次重复标记应成功: %v", err)
	}

	// 再将 A 标记为 B 的重复会构成环
	_, err := svc.Quantify(ctx, "praise-A", "q-02", &dto.QuantifyRequest{
		DuplicatePraiseID: strPtr("praise-B"),
	})
	if !errors.Is(err, ErrDuplicateOfDuplicate) && !errors.Is(err, ErrTargetOfDuplicates) {
		t.Errorf("期望拒绝重复链，实际: %v", err)
	}
}

// 禁止重复链：自身已是别人的重复原件
func TestQuantify_TargetOfDuplicates(t *testing.T) {
	env, svc := setupQuantifyEnv()
	seedQuantifyScene(env)
	ctx := context.Background()

	// B 已标记为 A 的重复，A 是重复原件
	if _, err := svc.Quantify(ctx, "praise-B", "q-01", &dto.QuantifyRequest{
		DuplicatePraiseID: strPtr("praise-A"),
	}); err != nil {
		t.Fatalf("首次重复标记应成功: %v", err)
	}

	// 为 A 增补第三条赞扬作为目标
	env.praises.Create(ctx, &model.PraiseItem{
		PraiseID:   "praise-C",
		GiverID:    "giver-1",
		ReceiverID: "receiver-1",
		Reason:     "又一条赞扬",
		CreatedAt:  time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
	})

	_, err := svc.Quantify(ctx, "praise-A", "q-02", &dto.QuantifyRequest{
		DuplicatePraiseID: strPtr("praise-C"),
	})
	if !errors.Is(err, ErrTargetOfDuplicates) {
		t.Errorf("期望 ErrTargetOfDuplicates，实际: %v", err)
	}
}

func TestQuantify_DuplicateTargetOtherPeriod(t *testing.T) {
	env, svc := setupQuantifyEnv()
	seedQuantifyScene(env)
	ctx := context.Background()

	// 下一周期的赞扬不能作为本周期的重复目标
	env.periods.Create(ctx, &model.Period{
		PeriodID: "period-002",
		Name:     "二月",
		EndDate:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:   model.PeriodStatusOpen,
	})
	env.praises.Create(ctx, &model.PraiseItem{
		PraiseID:   "praise-next",
		GiverID:    "giver-1",
		ReceiverID: "receiver-1",
		Reason:     "下月赞扬",
		CreatedAt:  time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC),
	})

	_, err := svc.Quantify(ctx, "praise-A", "q-01", &dto.QuantifyRequest{
		DuplicatePraiseID: strPtr("praise-next"),
	})
	if !errors.Is(err, ErrDuplicateTargetMissing) {
		t.Errorf("期望 ErrDuplicateTargetMissing，实际: %v", err)
	}
}

// 乐观锁冲突重试一次后成功
func TestQuantify_ConflictRetried(t *testing.T) {
	env, svc := setupQuantifyEnv()
	seedQuantifyScene(env)
	ctx := context.Background()

	// 模拟并发写：首次 Update 返回乐观锁冲突
	env.quants.conflictOnce = true

	resp, err := svc.Quantify(ctx, "praise-A", "q-01", &dto.QuantifyRequest{Score: intPtr(5)})
	if err != nil {
		t.Fatalf("冲突应在重试后成功: %v", err)
	}
	if resp.Quantification.Score == nil || *resp.Quantification.Score != 5 {
		t.Errorf("重试后判断未写入: %+v", resp.Quantification)
	}
}

// 事件：首次量化与全部完成
func TestQuantify_Events(t *testing.T) {
	env, svc := setupQuantifyEnv()
	seedQuantifyScene(env)
	ctx := context.Background()

	if _, err := svc.Quantify(ctx, "praise-A", "q-01", &dto.QuantifyRequest{Score: intPtr(5)}); err != nil {
		t.Fatalf("Quantify 应成功: %v", err)
	}

	kinds := env.events.kinds()
	if !containsKind(kinds, model.EventKindFirstQuantification) {
		t.Errorf("首次判断应产生事件 %s，实际 %v", model.EventKindFirstQuantification, kinds)
	}
	if containsKind(kinds, model.EventKindQuantifyComplete) {
		t.Error("尚有未完成判断，不应产生完成事件")
	}

	if _, err := svc.Quantify(ctx, "praise-A", "q-02", &dto.QuantifyRequest{Dismissed: boolPtr(true)}); err != nil {
		t.Fatalf("Quantify 应成功: %v", err)
	}
	if _, err := svc.Quantify(ctx, "praise-A", "q-03", &dto.QuantifyRequest{Score: intPtr(13)}); err != nil {
		t.Fatalf("Quantify 应成功: %v", err)
	}

	if !containsKind(env.events.kinds(), model.EventKindQuantifyComplete) {
		t.Error("全部判断完成后应产生完成事件")
	}
}

// 改判自己唯一的一条判断不应再次产生首次量化事件
func TestQuantify_ReviseDoesNotReemitFirstEvent(t *testing.T) {
	env, svc := setupQuantifyEnv()
	seedQuantifyScene(env)
	ctx := context.Background()

	if _, err := svc.Quantify(ctx, "praise-A", "q-01", &dto.QuantifyRequest{Score: intPtr(8)}); err != nil {
		t.Fatalf("首次判断应成功: %v", err)
	}
	if _, err := svc.Quantify(ctx, "praise-A", "q-01", &dto.QuantifyRequest{Score: intPtr(13)}); err != nil {
		t.Fatalf("改判应成功: %v", err)
	}

	count := 0
	for _, k := range env.events.kinds() {
		if k == model.EventKindFirstQuantification {
			count++
		}
	}
	if count != 1 {
		t.Errorf("首次量化事件应只产生一次，实际 %d 次", count)
	}
}

func containsKind(kinds []string, kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ── ListTasks 测试 ──

func TestListTasks(t *testing.T) {
	env, svc := setupQuantifyEnv()
	periodID := seedQuantifyScene(env)

	tasks, err := svc.ListTasks(context.Background(), periodID, "q-01")
	if err != nil {
		t.Fatalf("ListTasks 应成功: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("q-01 应有 2 条任务，实际 %d", len(tasks))
	}
}
