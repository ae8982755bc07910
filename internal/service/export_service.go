package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"github.com/donyariesta/prerequisite/internal/repository"
)

// ── 导出模块业务错误 ──

var ErrExportGenerateFail = errors.New("生成导出文件失败")

const (
	sheetRequiredCourses = "先修课程"
	sheetEnrolments      = "选课记录"
)

// ExportService 导出业务接口
//
// 导出内容以内存缓冲返回，由 Handler 层设置响应头后写出
type ExportService interface {
	// ExportInstance 导出实例的先修课程与选课记录为 Excel
	ExportInstance(ctx context.Context, instanceID int64) (*bytes.Buffer, string, error)
	// EnrolmentCalendar 导出用户在该实例的选课有效期为 iCalendar
	EnrolmentCalendar(ctx context.Context, instanceID, userID int64) ([]byte, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger, now: time.Now}
}

// ═══════════════════════════════════════════════════════════
// ExportInstance 导出实例配置与选课记录
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "先修课程"：课程ID | 简称 | 全称
//   - Sheet "选课记录"：用户ID | 角色ID | 开始时间 | 结束时间

func (s *exportService) ExportInstance(ctx context.Context, instanceID int64) (*bytes.Buffer, string, error) {
	inst, err := loadPrerequisiteInstance(ctx, s.repo, s.logger, instanceID)
	if err != nil {
		return nil, "", err
	}

	rows, err := s.repo.Prerequisite.ListByInstance(ctx, inst.ID)
	if err != nil {
		s.logger.Error("查询先修课程映射失败", zap.Int64("instance_id", inst.ID), zap.Error(err))
		return nil, "", err
	}
	enrolments, err := s.repo.UserEnrolment.ListByInstance(ctx, inst.ID)
	if err != nil {
		s.logger.Error("查询选课记录失败", zap.Int64("instance_id", inst.ID), zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 先修课程
	idx, _ := f.NewSheet(sheetRequiredCourses)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetRequiredCourses, "A", "A", 10)
	f.SetColWidth(sheetRequiredCourses, "B", "B", 18)
	f.SetColWidth(sheetRequiredCourses, "C", "C", 36)
	writeHeader(f, sheetRequiredCourses, headerStyle, "课程ID", "简称", "全称")
	for i, row := range rows {
		r := i + 2
		f.SetCellValue(sheetRequiredCourses, cell("A", r), row.RequiredCourseID)
		if row.RequiredCourse != nil {
			f.SetCellValue(sheetRequiredCourses, cell("B", r), row.RequiredCourse.ShortName)
			f.SetCellValue(sheetRequiredCourses, cell("C", r), row.RequiredCourse.FullName)
		}
	}

	// 选课记录
	f.NewSheet(sheetEnrolments)
	f.SetColWidth(sheetEnrolments, "A", "B", 10)
	f.SetColWidth(sheetEnrolments, "C", "D", 22)
	writeHeader(f, sheetEnrolments, headerStyle, "用户ID", "角色ID", "开始时间", "结束时间")
	for i, ue := range enrolments {
		r := i + 2
		f.SetCellValue(sheetEnrolments, cell("A", r), ue.UserID)
		f.SetCellValue(sheetEnrolments, cell("B", r), ue.RoleID)
		f.SetCellValue(sheetEnrolments, cell("C", r), ue.TimeStart.UTC().Format(time.RFC3339))
		end := "不限期"
		if ue.TimeEnd != nil {
			end = ue.TimeEnd.UTC().Format(time.RFC3339)
		}
		f.SetCellValue(sheetEnrolments, cell("D", r), end)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	return buf, fmt.Sprintf("先修选课_%d.xlsx", inst.ID), nil
}

// ═══════════════════════════════════════════════════════════
// EnrolmentCalendar 选课有效期日历
// ═══════════════════════════════════════════════════════════

func (s *exportService) EnrolmentCalendar(ctx context.Context, instanceID, userID int64) ([]byte, string, error) {
	inst, err := loadPrerequisiteInstance(ctx, s.repo, s.logger, instanceID)
	if err != nil {
		return nil, "", err
	}

	ue, err := s.repo.UserEnrolment.GetByInstanceAndUser(ctx, inst.ID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrEnrolmentNotFound
		}
		s.logger.Error("查询选课记录失败", zap.Int64("instance_id", inst.ID), zap.Error(err))
		return nil, "", err
	}

	summary := inst.Name
	if inst.Course != nil && inst.Course.FullName != "" {
		summary = inst.Course.FullName
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//enrol_prerequisite//CN")

	event := cal.AddEvent(fmt.Sprintf("enrolment-%d@enrol-prerequisite", ue.ID))
	event.SetDtStampTime(s.now())
	event.SetCreatedTime(ue.CreatedAt)
	event.SetSummary(summary)
	event.SetStartAt(ue.TimeStart)
	if ue.TimeEnd != nil {
		event.SetEndAt(*ue.TimeEnd)
		event.SetDescription("选课有效期至 " + ue.TimeEnd.UTC().Format("2006-01-02 15:04"))
	} else {
		event.SetEndAt(ue.TimeStart)
		event.SetDescription("选课长期有效")
	}

	return []byte(cal.Serialize()), fmt.Sprintf("enrolment_%d.ics", inst.ID), nil
}

// ── 辅助函数 ──

func writeHeader(f *excelize.File, sheet string, style int, titles ...string) {
	for i, title := range titles {
		c := cell(colName(i), 1)
		f.SetCellValue(sheet, c, title)
		f.SetCellStyle(sheet, c, c, style)
	}
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
