package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"praise/backend/internal/model"
	"praise/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportPeriodNotClosed = errors.New("周期未关闭，分值尚未冻结，不可导出")
	ErrExportNoPraise        = errors.New("周期内无赞扬可导出")
	ErrExportGenerateFail    = errors.New("生成导出文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - Excel 导出仅对已关闭周期开放，保证导出的是冻结后的最终分值
//   - 日历导出不限状态，作为周期窗口与量化截止时间的订阅源
//   - 均以 bytes.Buffer 返回，由 Handler 层设置响应头后写入
type ExportService interface {
	// ExportPeriod 导出周期结算榜单为 Excel
	ExportPeriod(ctx context.Context, periodID string) (*bytes.Buffer, string, error)
	// ExportPeriodCalendar 导出全部周期窗口为 ICS 日历
	ExportPeriodCalendar(ctx context.Context) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportPeriod — 周期结算榜单 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 单 Sheet，按结算分值降序
//   - 列：排名 / 接收者 / 给予者 / 理由 / 来源 / 结算分值

func (s *exportService) ExportPeriod(ctx context.Context, periodID string) (*bytes.Buffer, string, error) {
	period, err := s.repo.Period.GetByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrPeriodNotFound
		}
		s.logger.Error("查询周期失败", zap.String("id", periodID), zap.Error(err))
		return nil, "", err
	}
	if period.Status != model.PeriodStatusClosed {
		return nil, "", ErrExportPeriodNotClosed
	}

	start, end, err := periodWindow(ctx, s.repo, period)
	if err != nil {
		s.logger.Error("计算周期窗口失败", zap.Error(err))
		return nil, "", err
	}
	praises, err := s.repo.Praise.ListByCreatedRange(ctx, start, end)
	if err != nil {
		s.logger.Error("查询周期内赞扬失败", zap.Error(err))
		return nil, "", err
	}
	if len(praises) == 0 {
		return nil, "", ErrExportNoPraise
	}

	ids := make([]string, 0, len(praises))
	for i := range praises {
		ids = append(ids, praises[i].PraiseID)
	}
	detailed, err := s.repo.Praise.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询赞扬详情失败", zap.Error(err))
		return nil, "", err
	}
	// 按冻结分值降序，平分按创建顺序
	sort.SliceStable(detailed, func(i, j int) bool {
		return detailed[i].ScoreRealized > detailed[j].ScoreRealized
	})

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "结算榜单"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		s.logger.Error("创建工作表失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	headers := []string{"排名", "接收者", "给予者", "理由", "来源", "结算分值"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, "", ErrExportGenerateFail
		}
	}

	for row := range detailed {
		p := &detailed[row]
		giver, receiver := p.GiverID, p.ReceiverID
		if p.Giver != nil {
			giver = p.Giver.Name
		}
		if p.Receiver != nil {
			receiver = p.Receiver.Name
		}
		values := []interface{}{row + 1, receiver, giver, p.Reason, p.SourceID, p.ScoreRealized}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, "", ErrExportGenerateFail
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.logger.Error("写出 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("praise_%s.xlsx", period.Name)
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportPeriodCalendar — 周期窗口 ICS 日历
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportPeriodCalendar(ctx context.Context) (*bytes.Buffer, string, error) {
	periods, err := s.repo.Period.List(ctx)
	if err != nil {
		s.logger.Error("列出周期失败", zap.Error(err))
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//praise//period-calendar//CN")

	for i := range periods {
		p := &periods[i]
		start, end, err := periodWindow(ctx, s.repo, p)
		if err != nil {
			s.logger.Error("计算周期窗口失败", zap.Error(err))
			return nil, "", err
		}
		if start.IsZero() {
			// 首个周期无显式起点，以结束时间单点呈现
			start = end
		}

		evt := cal.AddEvent(fmt.Sprintf("%s@praise", p.PeriodID))
		evt.SetCreatedTime(p.CreatedAt)
		evt.SetStartAt(start)
		evt.SetEndAt(end)
		evt.SetSummary(fmt.Sprintf("量化周期：%s", p.Name))
		evt.SetDescription(fmt.Sprintf("状态：%s，量化截止：%s", p.Status, end.Format(timeLayout)))
	}

	buf := bytes.NewBufferString(cal.Serialize())
	return buf, "praise_periods.ics", nil
}
