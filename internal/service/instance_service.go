package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/donyariesta/prerequisite/config"
	"github.com/donyariesta/prerequisite/internal/dto"
	"github.com/donyariesta/prerequisite/internal/model"
	"github.com/donyariesta/prerequisite/internal/repository"
	pkgerrors "github.com/donyariesta/prerequisite/pkg/errors"
)

// ── 选课实例模块业务错误 ──

var (
	ErrInstanceNotFound   = errors.New("选课实例不存在")
	ErrCourseNotFound     = errors.New("课程不存在")
	ErrNoCandidateCourses = errors.New("没有可作为先修课程的课程，请先为其他课程启用完成跟踪")
)

const (
	maxInstanceNameLength = 255
	maxPasswordLength     = 50
)

// InstanceService 选课实例配置业务接口
type InstanceService interface {
	// CandidateCourses 实例配置表单的候选先修课程；instanceID 为 0 表示新建
	CandidateCourses(ctx context.Context, courseID, instanceID int64) (*dto.CandidateCoursesResponse, error)
	Add(ctx context.Context, courseID int64, req *dto.InstanceRequest, callerID int64) (*dto.InstanceResponse, error)
	Update(ctx context.Context, instanceID int64, req *dto.InstanceRequest, callerID int64) (*dto.InstanceResponse, error)
	Get(ctx context.Context, instanceID int64) (*dto.InstanceResponse, error)
	List(ctx context.Context, courseID int64) ([]dto.InstanceResponse, error)
	SetStatus(ctx context.Context, instanceID int64, enabled bool, callerID int64) (*dto.InstanceResponse, error)
	Delete(ctx context.Context, instanceID int64) error
	// ReplaceRequiredCourses 全量替换实例的先修课程映射，返回 instanceID
	ReplaceRequiredCourses(ctx context.Context, instanceID, courseID int64, requiredCourseIDs []int64) (int64, error)
}

type instanceService struct {
	cfg    *config.EnrolConfig
	repo   *repository.Repository
	policy PasswordPolicy
	logger *zap.Logger
}

// NewInstanceService 创建 InstanceService 实例
func NewInstanceService(cfg *config.EnrolConfig, repo *repository.Repository, policy PasswordPolicy, logger *zap.Logger) InstanceService {
	return &instanceService{cfg: cfg, repo: repo, policy: policy, logger: logger}
}

// ────────────────────── CandidateCourses ──────────────────────

func (s *instanceService) CandidateCourses(ctx context.Context, courseID, instanceID int64) (*dto.CandidateCoursesResponse, error) {
	if _, err := s.getCourse(ctx, courseID); err != nil {
		return nil, err
	}

	defaultAggr, err := s.repo.Course.GetAggregationMethod(ctx, courseID, model.CriteriaTypeCourse)
	if err != nil {
		s.logger.Error("查询课程聚合方式失败", zap.Int64("course_id", courseID), zap.Error(err))
		return nil, err
	}
	if instanceID > 0 {
		inst, err := s.loadInstance(ctx, instanceID)
		if err != nil {
			return nil, err
		}
		if inst.CourseID != courseID {
			return nil, ErrInstanceNotFound
		}
		defaultAggr = inst.Aggregation
	}

	candidates, err := s.listCandidates(ctx, courseID, instanceID)
	if err != nil {
		return nil, err
	}

	courses := make([]dto.CandidateCourseResponse, 0, len(candidates))
	for _, c := range candidates {
		courses = append(courses, dto.CandidateCourseResponse{
			ID:        c.ID,
			Label:     candidateLabel(c),
			ShortName: c.ShortName,
			FullName:  c.FullName,
			Selected:  c.Selected,
		})
	}

	return &dto.CandidateCoursesResponse{
		Courses:               courses,
		AggregationSelectable: len(courses) > 1,
		DefaultAggregation:    defaultAggr.String(),
	}, nil
}

// ────────────────────── Add ──────────────────────

func (s *instanceService) Add(ctx context.Context, courseID int64, req *dto.InstanceRequest, callerID int64) (*dto.InstanceResponse, error) {
	if _, err := s.getCourse(ctx, courseID); err != nil {
		return nil, err
	}
	candidates, err := s.listCandidates(ctx, courseID, 0)
	if err != nil {
		return nil, err
	}

	requiredIDs := normalizeCourseIDs(req.RequiredCourseIDs)
	if verr := s.validate(req, requiredIDs, candidates, true); verr.HasErrors() {
		return nil, verr
	}

	inst := &model.EnrolInstance{
		Enrol:       model.PluginName,
		CourseID:    courseID,
		Name:        strings.TrimSpace(req.Name),
		Status:      model.InstanceEnabled,
		RoleID:      s.cfg.DefaultRoleID,
		EnrolPeriod: int64(s.cfg.DefaultEnrolPeriod.Seconds()),
	}
	inst.CreatedBy = &callerID
	inst.UpdatedBy = &callerID

	if req.RoleID > 0 {
		inst.RoleID = req.RoleID
	}
	if req.EnrolPeriod != nil {
		inst.EnrolPeriod = *req.EnrolPeriod
	}

	// 未指定聚合方式时沿用课程自身的完成条件聚合方式
	if mode, ok := model.ParseAggregationMode(req.Aggregation); ok {
		inst.Aggregation = mode
	} else {
		inst.Aggregation, err = s.repo.Course.GetAggregationMethod(ctx, courseID, model.CriteriaTypeCourse)
		if err != nil {
			s.logger.Error("查询课程聚合方式失败", zap.Int64("course_id", courseID), zap.Error(err))
			return nil, err
		}
	}

	if req.Password != nil {
		if inst.Password, err = s.storeKey(*req.Password); err != nil {
			return nil, err
		}
	}

	if err := s.repo.EnrolInstance.CreateWithPrerequisites(ctx, inst, requiredIDs); err != nil {
		s.logger.Error("创建选课实例失败", zap.Int64("course_id", courseID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("创建先修选课实例",
		zap.Int64("instance_id", inst.ID),
		zap.Int64("course_id", courseID),
		zap.Int64s("required_course_ids", requiredIDs),
	)
	return s.toInstanceResponse(ctx, inst)
}

// ────────────────────── Update ──────────────────────

func (s *instanceService) Update(ctx context.Context, instanceID int64, req *dto.InstanceRequest, callerID int64) (*dto.InstanceResponse, error) {
	inst, err := s.loadInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if req.Version > 0 && req.Version != inst.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	candidates, err := s.listCandidates(ctx, inst.CourseID, inst.ID)
	if err != nil {
		return nil, err
	}

	requiredIDs := normalizeCourseIDs(req.RequiredCourseIDs)
	if verr := s.validate(req, requiredIDs, candidates, false); verr.HasErrors() {
		return nil, verr
	}

	inst.Name = strings.TrimSpace(req.Name)
	if mode, ok := model.ParseAggregationMode(req.Aggregation); ok {
		inst.Aggregation = mode
	}
	if req.RoleID > 0 {
		inst.RoleID = req.RoleID
	}
	if req.EnrolPeriod != nil {
		inst.EnrolPeriod = *req.EnrolPeriod
	}
	if req.Password != nil {
		if inst.Password, err = s.storeKey(*req.Password); err != nil {
			return nil, err
		}
	}
	inst.UpdatedBy = &callerID

	if err := s.repo.EnrolInstance.UpdateWithPrerequisites(ctx, inst, requiredIDs); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, err
		}
		s.logger.Error("更新选课实例失败", zap.Int64("instance_id", instanceID), zap.Error(err))
		return nil, err
	}

	return s.toInstanceResponse(ctx, inst)
}

// ────────────────────── Get / List ──────────────────────

func (s *instanceService) Get(ctx context.Context, instanceID int64) (*dto.InstanceResponse, error) {
	inst, err := s.loadInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return s.toInstanceResponse(ctx, inst)
}

func (s *instanceService) List(ctx context.Context, courseID int64) ([]dto.InstanceResponse, error) {
	if _, err := s.getCourse(ctx, courseID); err != nil {
		return nil, err
	}

	instances, err := s.repo.EnrolInstance.ListByCourse(ctx, courseID, model.PluginName)
	if err != nil {
		s.logger.Error("列出选课实例失败", zap.Int64("course_id", courseID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.InstanceResponse, 0, len(instances))
	for i := range instances {
		resp, err := s.toInstanceResponse(ctx, &instances[i])
		if err != nil {
			return nil, err
		}
		result = append(result, *resp)
	}
	return result, nil
}

// ────────────────────── SetStatus ──────────────────────

func (s *instanceService) SetStatus(ctx context.Context, instanceID int64, enabled bool, callerID int64) (*dto.InstanceResponse, error) {
	inst, err := s.loadInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	inst.Status = model.InstanceDisabled
	if enabled {
		inst.Status = model.InstanceEnabled
	}
	inst.UpdatedBy = &callerID

	if err := s.repo.EnrolInstance.UpdateStatus(ctx, inst); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("更新选课实例状态失败", zap.Int64("instance_id", instanceID), zap.Error(err))
		}
		return nil, err
	}
	return s.toInstanceResponse(ctx, inst)
}

// ────────────────────── Delete ──────────────────────

func (s *instanceService) Delete(ctx context.Context, instanceID int64) error {
	if _, err := s.loadInstance(ctx, instanceID); err != nil {
		return err
	}
	if err := s.repo.EnrolInstance.Delete(ctx, instanceID); err != nil {
		s.logger.Error("删除选课实例失败", zap.Int64("instance_id", instanceID), zap.Error(err))
		return err
	}
	s.logger.Info("删除先修选课实例", zap.Int64("instance_id", instanceID))
	return nil
}

// ────────────────────── ReplaceRequiredCourses ──────────────────────

func (s *instanceService) ReplaceRequiredCourses(ctx context.Context, instanceID, courseID int64, requiredCourseIDs []int64) (int64, error) {
	ids := normalizeCourseIDs(requiredCourseIDs)
	if err := s.repo.Prerequisite.Replace(ctx, instanceID, courseID, ids); err != nil {
		s.logger.Error("替换先修课程映射失败",
			zap.Int64("instance_id", instanceID),
			zap.Int64("course_id", courseID),
			zap.Error(err),
		)
		return 0, err
	}
	return instanceID, nil
}

// ── 内部方法 ──

func (s *instanceService) getCourse(ctx context.Context, courseID int64) (*model.Course, error) {
	course, err := s.repo.Course.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.Int64("course_id", courseID), zap.Error(err))
		return nil, err
	}
	return course, nil
}

func (s *instanceService) loadInstance(ctx context.Context, instanceID int64) (*model.EnrolInstance, error) {
	return loadPrerequisiteInstance(ctx, s.repo, s.logger, instanceID)
}

func (s *instanceService) listCandidates(ctx context.Context, courseID, instanceID int64) ([]model.CandidateCourse, error) {
	candidates, err := s.repo.Course.ListCandidates(ctx, courseID, instanceID)
	if err != nil {
		s.logger.Error("查询候选先修课程失败", zap.Int64("course_id", courseID), zap.Error(err))
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidateCourses
	}
	return candidates, nil
}

// validate 逐字段校验，返回的 ValidationErrors 可能为空
func (s *instanceService) validate(req *dto.InstanceRequest, requiredIDs []int64, candidates []model.CandidateCourse, isNew bool) pkgerrors.ValidationErrors {
	verr := pkgerrors.ValidationErrors{}

	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		verr.Add("name", "名称不能为空")
	case utf8.RuneCountInString(name) > maxInstanceNameLength:
		verr.Add("name", fmt.Sprintf("名称不能超过 %d 个字符", maxInstanceNameLength))
	}

	if len(requiredIDs) == 0 {
		verr.Add("required_course_ids", "请至少选择一门先修课程")
	} else {
		allowed := make(map[int64]bool, len(candidates))
		for _, c := range candidates {
			allowed[c.ID] = true
		}
		for _, id := range requiredIDs {
			if !allowed[id] {
				verr.Add("required_course_ids", fmt.Sprintf("课程 %d 不能作为先修课程", id))
				break
			}
		}
	}

	if req.Aggregation != "" {
		if _, ok := model.ParseAggregationMode(req.Aggregation); !ok {
			verr.Add("aggregation", "聚合方式只能为 all 或 any")
		}
	}
	if req.EnrolPeriod != nil && *req.EnrolPeriod < 0 {
		verr.Add("enrol_period", "选课有效期不能为负")
	}

	// 密码：只在新建或本次提交了密码时校验
	if req.Password == nil {
		if isNew && s.cfg.RequirePassword {
			verr.Add("password", "必须设置选课密码")
		}
		return verr
	}
	password := *req.Password
	switch {
	case utf8.RuneCountInString(password) > maxPasswordLength:
		verr.Add("password", fmt.Sprintf("选课密码不能超过 %d 个字符", maxPasswordLength))
	case s.cfg.RequirePassword && strings.TrimSpace(password) == "":
		verr.Add("password", "必须设置选课密码")
	case s.cfg.UsePasswordPolicy && password != "" && s.policy != nil:
		if err := s.policy.Check(password); err != nil {
			verr.Add("password", err.Error())
		}
	}
	return verr
}

// storeKey 按配置决定选课密码的存储形式
func (s *instanceService) storeKey(password string) (string, error) {
	if !s.cfg.HashEnrolmentKeys {
		return password, nil
	}
	hash, err := HashEnrolmentKey(password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", pkgerrors.ValidationErrors{"password": "选课密码过长，无法加密存储"}
		}
		s.logger.Error("选课密码加密失败", zap.Error(err))
		return "", err
	}
	return hash, nil
}

func (s *instanceService) toInstanceResponse(ctx context.Context, inst *model.EnrolInstance) (*dto.InstanceResponse, error) {
	rows, err := s.repo.Prerequisite.ListByInstance(ctx, inst.ID)
	if err != nil {
		s.logger.Error("查询先修课程映射失败", zap.Int64("instance_id", inst.ID), zap.Error(err))
		return nil, err
	}

	required := make([]dto.RequiredCourseResponse, 0, len(rows))
	for _, row := range rows {
		rc := dto.RequiredCourseResponse{ID: row.RequiredCourseID}
		if row.RequiredCourse != nil {
			rc.ShortName = row.RequiredCourse.ShortName
			rc.FullName = row.RequiredCourse.FullName
		}
		required = append(required, rc)
	}

	status := "enabled"
	if !inst.IsEnabled() {
		status = "disabled"
	}

	return &dto.InstanceResponse{
		ID:              inst.ID,
		CourseID:        inst.CourseID,
		Name:            inst.Name,
		Status:          status,
		HasPassword:     inst.HasPassword(),
		RoleID:          inst.RoleID,
		EnrolPeriod:     inst.EnrolPeriod,
		Aggregation:     inst.Aggregation.String(),
		RequiredCourses: required,
		Version:         inst.Version,
		CreatedAt:       inst.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       inst.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

// ── 辅助函数 ──

// loadPrerequisiteInstance 按 ID 加载本选课方式的实例，其他选课方式的实例视为不存在
func loadPrerequisiteInstance(ctx context.Context, repo *repository.Repository, logger *zap.Logger, instanceID int64) (*model.EnrolInstance, error) {
	inst, err := repo.EnrolInstance.GetByID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstanceNotFound
		}
		logger.Error("查询选课实例失败", zap.Int64("instance_id", instanceID), zap.Error(err))
		return nil, err
	}
	if inst.Enrol != model.PluginName {
		return nil, ErrInstanceNotFound
	}
	return inst, nil
}

// normalizeCourseIDs 去重并丢弃非正数 ID，保留首次出现的顺序
func normalizeCourseIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func candidateLabel(c model.CandidateCourse) string {
	if c.CategoryName == "" {
		return c.FullName
	}
	return c.CategoryName + " / " + c.FullName
}
