package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/donyariesta/prerequisite/internal/dto"
	"github.com/donyariesta/prerequisite/internal/model"
	"github.com/donyariesta/prerequisite/internal/plugin"
	"github.com/donyariesta/prerequisite/internal/repository"
)

// ── 选课模块业务错误 ──

var (
	ErrAlreadyEnrolled   = errors.New("用户已选修该课程")
	ErrEnrolmentNotFound = errors.New("选课记录不存在")
)

// EnrolmentService 选课业务接口
type EnrolmentService interface {
	// CheckEligibility 评估 identity 能否通过该实例选课
	CheckEligibility(ctx context.Context, instanceID int64, identity plugin.Identity, checkUserEnrolment bool) (*dto.EligibilityResponse, error)
	// RequiredCourses 按映射顺序返回用户对各先修课程的完成情况
	RequiredCourses(ctx context.Context, instanceID, userID int64) ([]model.RequiredCourseStatus, error)
	// SelfEnrol 自助选课，不满足条件或密码错误时不创建任何记录
	SelfEnrol(ctx context.Context, instanceID int64, identity plugin.Identity, req *dto.SelfEnrolRequest) (*dto.EnrolmentResponse, error)
	// EnrolUser 管理员手动选课，不检查先修条件
	EnrolUser(ctx context.Context, instanceID, userID, callerID int64) (*dto.UserEnrolmentResponse, error)
	Unenrol(ctx context.Context, instanceID, userID int64) error
	ListEnrolments(ctx context.Context, instanceID int64) ([]dto.UserEnrolmentResponse, error)
}

type enrolmentService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewEnrolmentService 创建 EnrolmentService 实例
func NewEnrolmentService(repo *repository.Repository, logger *zap.Logger) EnrolmentService {
	return &enrolmentService{repo: repo, logger: logger, now: time.Now}
}

// ────────────────────── CheckEligibility ──────────────────────

func (s *enrolmentService) CheckEligibility(ctx context.Context, instanceID int64, identity plugin.Identity, checkUserEnrolment bool) (*dto.EligibilityResponse, error) {
	inst, err := loadPrerequisiteInstance(ctx, s.repo, s.logger, instanceID)
	if err != nil {
		return nil, err
	}
	resp, _, err := s.evaluate(ctx, inst, identity, checkUserEnrolment)
	return resp, err
}

// evaluate 收集评估输入并调用 EvaluateEligibility
func (s *enrolmentService) evaluate(ctx context.Context, inst *model.EnrolInstance, identity plugin.Identity, checkUserEnrolment bool) (*dto.EligibilityResponse, Eligibility, error) {
	userID := identity.CurrentUserID()
	guest := identity.IsGuest()

	enrolled := false
	if checkUserEnrolment && !guest {
		var err error
		enrolled, err = s.repo.UserEnrolment.Exists(ctx, inst.ID, userID)
		if err != nil {
			s.logger.Error("查询选课记录失败",
				zap.Int64("instance_id", inst.ID),
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			return nil, Eligibility{}, err
		}
	}

	required, err := s.RequiredCourses(ctx, inst.ID, userID)
	if err != nil {
		return nil, Eligibility{}, err
	}

	result := EvaluateEligibility(EligibilityInput{
		Status:              inst.Status,
		Aggregation:         inst.Aggregation,
		UserAlreadyEnrolled: enrolled,
		IsGuest:             guest,
		CheckUserEnrolment:  checkUserEnrolment,
		Required:            required,
	})

	resp := &dto.EligibilityResponse{
		InstanceID:       inst.ID,
		InstanceName:     inst.Name,
		Eligible:         result.Eligible,
		Reason:           string(result.Reason),
		Message:          result.Reason.Message(),
		LoginRequired:    result.Reason == ReasonGuestNotAllowed,
		PasswordRequired: inst.HasPassword(),
		RequiredCourses:  make([]dto.RequiredCourseStatusResponse, 0, len(required)),
	}
	for _, rc := range required {
		resp.RequiredCourses = append(resp.RequiredCourses, dto.RequiredCourseStatusResponse{
			CourseID:  rc.RequiredCourseID,
			ShortName: rc.ShortName,
			FullName:  rc.FullName,
			Completed: rc.Completed,
		})
	}
	return resp, result, nil
}

// ────────────────────── RequiredCourses ──────────────────────

func (s *enrolmentService) RequiredCourses(ctx context.Context, instanceID, userID int64) ([]model.RequiredCourseStatus, error) {
	rows, err := s.repo.Prerequisite.ListByInstance(ctx, instanceID)
	if err != nil {
		s.logger.Error("查询先修课程映射失败", zap.Int64("instance_id", instanceID), zap.Error(err))
		return nil, err
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.RequiredCourseID)
	}
	completedIDs, err := s.repo.Completion.ListCompletedCourseIDs(ctx, userID, ids)
	if err != nil {
		s.logger.Error("查询课程完成记录失败", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	completed := make(map[int64]bool, len(completedIDs))
	for _, id := range completedIDs {
		completed[id] = true
	}

	statuses := make([]model.RequiredCourseStatus, 0, len(rows))
	for _, row := range rows {
		st := model.RequiredCourseStatus{
			RequiredCourseID: row.RequiredCourseID,
			Completed:        completed[row.RequiredCourseID],
		}
		if row.RequiredCourse != nil {
			st.ShortName = row.RequiredCourse.ShortName
			st.FullName = row.RequiredCourse.FullName
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// ────────────────────── SelfEnrol ──────────────────────

func (s *enrolmentService) SelfEnrol(ctx context.Context, instanceID int64, identity plugin.Identity, req *dto.SelfEnrolRequest) (*dto.EnrolmentResponse, error) {
	inst, err := loadPrerequisiteInstance(ctx, s.repo, s.logger, instanceID)
	if err != nil {
		return nil, err
	}

	eligibility, result, err := s.evaluate(ctx, inst, identity, true)
	if err != nil {
		return nil, err
	}
	if !result.Eligible {
		return &dto.EnrolmentResponse{
			Reason:      string(result.Reason),
			Message:     result.Reason.Message(),
			Eligibility: eligibility,
		}, nil
	}

	password := ""
	if req != nil {
		password = req.Password
	}
	if !MatchEnrolmentKey(inst.Password, password) {
		s.logger.Info("选课密码错误",
			zap.Int64("instance_id", inst.ID),
			zap.Int64("user_id", identity.CurrentUserID()),
		)
		return &dto.EnrolmentResponse{
			Reason:      string(ReasonPasswordInvalid),
			Message:     ReasonPasswordInvalid.Message(),
			Eligibility: eligibility,
		}, nil
	}

	userID := identity.CurrentUserID()
	ue, err := s.completeEnrolment(ctx, inst, userID, userID)
	if err != nil {
		// 并发重复提交：唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &dto.EnrolmentResponse{
				Reason:  string(ReasonAlreadyEnrolled),
				Message: ReasonAlreadyEnrolled.Message(),
			}, nil
		}
		return nil, err
	}

	resp := toUserEnrolmentResponse(ue)
	return &dto.EnrolmentResponse{Enrolled: true, Enrolment: &resp}, nil
}

// completeEnrolment 以实例配置的角色与有效期创建选课记录
func (s *enrolmentService) completeEnrolment(ctx context.Context, inst *model.EnrolInstance, userID, callerID int64) (*model.UserEnrolment, error) {
	timeStart := s.now()
	ue := &model.UserEnrolment{
		EnrolID:   inst.ID,
		UserID:    userID,
		RoleID:    inst.RoleID,
		TimeStart: timeStart,
	}
	if inst.EnrolPeriod > 0 {
		timeEnd := timeStart.Add(inst.EnrolPeriodDuration())
		ue.TimeEnd = &timeEnd
	}
	ue.CreatedBy = &callerID
	ue.UpdatedBy = &callerID

	if err := s.repo.UserEnrolment.Create(ctx, ue); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			s.logger.Error("创建选课记录失败",
				zap.Int64("instance_id", inst.ID),
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.logger.Info("用户选课成功",
		zap.Int64("instance_id", inst.ID),
		zap.Int64("user_id", userID),
		zap.Int64("role_id", inst.RoleID),
	)
	return ue, nil
}

// ────────────────────── EnrolUser ──────────────────────

func (s *enrolmentService) EnrolUser(ctx context.Context, instanceID, userID, callerID int64) (*dto.UserEnrolmentResponse, error) {
	inst, err := loadPrerequisiteInstance(ctx, s.repo, s.logger, instanceID)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.UserEnrolment.Exists(ctx, inst.ID, userID)
	if err != nil {
		s.logger.Error("查询选课记录失败", zap.Int64("instance_id", inst.ID), zap.Error(err))
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyEnrolled
	}

	ue, err := s.completeEnrolment(ctx, inst, userID, callerID)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyEnrolled
		}
		return nil, err
	}
	resp := toUserEnrolmentResponse(ue)
	return &resp, nil
}

// ────────────────────── Unenrol ──────────────────────

func (s *enrolmentService) Unenrol(ctx context.Context, instanceID, userID int64) error {
	if _, err := loadPrerequisiteInstance(ctx, s.repo, s.logger, instanceID); err != nil {
		return err
	}

	affected, err := s.repo.UserEnrolment.Delete(ctx, instanceID, userID)
	if err != nil {
		s.logger.Error("删除选课记录失败",
			zap.Int64("instance_id", instanceID),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return err
	}
	if affected == 0 {
		return ErrEnrolmentNotFound
	}

	s.logger.Info("用户退课", zap.Int64("instance_id", instanceID), zap.Int64("user_id", userID))
	return nil
}

// ────────────────────── ListEnrolments ──────────────────────

func (s *enrolmentService) ListEnrolments(ctx context.Context, instanceID int64) ([]dto.UserEnrolmentResponse, error) {
	if _, err := loadPrerequisiteInstance(ctx, s.repo, s.logger, instanceID); err != nil {
		return nil, err
	}

	list, err := s.repo.UserEnrolment.ListByInstance(ctx, instanceID)
	if err != nil {
		s.logger.Error("列出选课记录失败", zap.Int64("instance_id", instanceID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.UserEnrolmentResponse, 0, len(list))
	for i := range list {
		result = append(result, toUserEnrolmentResponse(&list[i]))
	}
	return result, nil
}

func toUserEnrolmentResponse(ue *model.UserEnrolment) dto.UserEnrolmentResponse {
	resp := dto.UserEnrolmentResponse{
		ID:         ue.ID,
		InstanceID: ue.EnrolID,
		UserID:     ue.UserID,
		RoleID:     ue.RoleID,
		TimeStart:  ue.TimeStart.UTC().Format(time.RFC3339),
	}
	if ue.TimeEnd != nil {
		end := ue.TimeEnd.UTC().Format(time.RFC3339)
		resp.TimeEnd = &end
	}
	return resp
}
