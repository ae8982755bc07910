package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/donyariesta/prerequisite/config"
	"github.com/donyariesta/prerequisite/internal/model"
	"github.com/donyariesta/prerequisite/internal/repository"
	pkgerrors "github.com/donyariesta/prerequisite/pkg/errors"
)

var errMockDB = errors.New("mock: 数据库不可用")

// ── Mock CourseRepository ──

type mockCourseRepo struct {
	courses  map[int64]*model.Course
	criteria map[int64]bool // 课程是否配置了完成条件
	aggr     map[int64]model.AggregationMode
	prereqs  *mockPrerequisiteRepo
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{
		courses:  make(map[int64]*model.Course),
		criteria: make(map[int64]bool),
		aggr:     make(map[int64]model.AggregationMode),
	}
}

func (m *mockCourseRepo) GetByID(_ context.Context, id int64) (*model.Course, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCourseRepo) ListCandidates(_ context.Context, excludeCourseID, instanceID int64) ([]model.CandidateCourse, error) {
	ids := make([]int64, 0, len(m.courses))
	for id := range m.courses {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var result []model.CandidateCourse
	for _, id := range ids {
		c := m.courses[id]
		if !c.EnableCompletion || !m.criteria[id] || id == excludeCourseID {
			continue
		}
		cc := model.CandidateCourse{
			ID:         c.ID,
			CategoryID: c.CategoryID,
			ShortName:  c.ShortName,
			FullName:   c.FullName,
			Selected:   m.prereqs.has(instanceID, id),
		}
		if c.Category != nil {
			cc.CategoryName = c.Category.Name
		}
		result = append(result, cc)
	}
	return result, nil
}

func (m *mockCourseRepo) GetAggregationMethod(_ context.Context, courseID int64, _ int16) (model.AggregationMode, error) {
	if mode, ok := m.aggr[courseID]; ok {
		return mode, nil
	}
	return model.AggregationAll, nil
}

// ── Mock CompletionRepository ──

type mockCompletionRepo struct {
	records map[[2]int64]*model.CourseCompletion // (userID, courseID)
	err     error
}

func newMockCompletionRepo() *mockCompletionRepo {
	return &mockCompletionRepo{records: make(map[[2]int64]*model.CourseCompletion)}
}

func (m *mockCompletionRepo) GetByCourseAndUser(_ context.Context, courseID, userID int64) (*model.CourseCompletion, error) {
	if cc, ok := m.records[[2]int64{userID, courseID}]; ok {
		return cc, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCompletionRepo) ListCompletedCourseIDs(_ context.Context, userID int64, courseIDs []int64) ([]int64, error) {
	if m.err != nil {
		return nil, m.err
	}
	var ids []int64
	for _, id := range courseIDs {
		if cc, ok := m.records[[2]int64{userID, id}]; ok && cc.IsCompleted() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *mockCompletionRepo) MarkCompleted(_ context.Context, courseID, userID int64, at time.Time) error {
	m.records[[2]int64{userID, courseID}] = &model.CourseCompletion{UserID: userID, CourseID: courseID, TimeCompleted: &at}
	return nil
}

// ── Mock PrerequisiteRepository ──

type mockPrerequisiteRepo struct {
	rows    []model.Prerequisite
	nextID  int64
	courses *mockCourseRepo
}

func newMockPrerequisiteRepo(courses *mockCourseRepo) *mockPrerequisiteRepo {
	return &mockPrerequisiteRepo{courses: courses}
}

func (m *mockPrerequisiteRepo) has(instanceID, requiredCourseID int64) bool {
	for _, r := range m.rows {
		if r.EnrolID == instanceID && r.RequiredCourseID == requiredCourseID {
			return true
		}
	}
	return false
}

func (m *mockPrerequisiteRepo) ListByInstance(_ context.Context, instanceID int64) ([]model.Prerequisite, error) {
	var result []model.Prerequisite
	for _, r := range m.rows {
		if r.EnrolID != instanceID {
			continue
		}
		r.RequiredCourse = m.courses.courses[r.RequiredCourseID]
		result = append(result, r)
	}
	return result, nil
}

func (m *mockPrerequisiteRepo) Replace(_ context.Context, instanceID, courseID int64, requiredCourseIDs []int64) error {
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.EnrolID == instanceID && r.CourseID == courseID {
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept

	for _, id := range requiredCourseIDs {
		if m.has(instanceID, id) {
			return gorm.ErrDuplicatedKey
		}
		m.nextID++
		m.rows = append(m.rows, model.Prerequisite{
			ID:               m.nextID,
			EnrolID:          instanceID,
			CourseID:         courseID,
			RequiredCourseID: id,
		})
	}
	return nil
}

// ── Mock EnrolInstanceRepository ──

type mockEnrolInstanceRepo struct {
	instances map[int64]*model.EnrolInstance
	nextID    int64
	prereqs   *mockPrerequisiteRepo
	courses   *mockCourseRepo
}

func newMockEnrolInstanceRepo(prereqs *mockPrerequisiteRepo, courses *mockCourseRepo) *mockEnrolInstanceRepo {
	return &mockEnrolInstanceRepo{
		instances: make(map[int64]*model.EnrolInstance),
		prereqs:   prereqs,
		courses:   courses,
	}
}

func (m *mockEnrolInstanceRepo) GetByID(_ context.Context, id int64) (*model.EnrolInstance, error) {
	inst, ok := m.instances[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *inst
	cp.Course = m.courses.courses[cp.CourseID]
	return &cp, nil
}

func (m *mockEnrolInstanceRepo) ListByCourse(_ context.Context, courseID int64, enrol string) ([]model.EnrolInstance, error) {
	ids := make([]int64, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var result []model.EnrolInstance
	for _, id := range ids {
		inst := m.instances[id]
		if inst.CourseID == courseID && inst.Enrol == enrol {
			result = append(result, *inst)
		}
	}
	return result, nil
}

func (m *mockEnrolInstanceRepo) CreateWithPrerequisites(ctx context.Context, instance *model.EnrolInstance, requiredCourseIDs []int64) error {
	m.nextID++
	instance.ID = m.nextID
	instance.Version = 1
	instance.CreatedAt = time.Now()
	instance.UpdatedAt = instance.CreatedAt
	cp := *instance
	m.instances[instance.ID] = &cp
	return m.prereqs.Replace(ctx, instance.ID, instance.CourseID, requiredCourseIDs)
}

func (m *mockEnrolInstanceRepo) UpdateWithPrerequisites(ctx context.Context, instance *model.EnrolInstance, requiredCourseIDs []int64) error {
	stored, ok := m.instances[instance.ID]
	if !ok || stored.Version != instance.Version {
		return pkgerrors.ErrOptimisticLock
	}
	if err := m.prereqs.Replace(ctx, instance.ID, instance.CourseID, requiredCourseIDs); err != nil {
		return err
	}
	instance.Version++
	cp := *instance
	cp.Course = nil
	m.instances[instance.ID] = &cp
	return nil
}

func (m *mockEnrolInstanceRepo) UpdateStatus(_ context.Context, instance *model.EnrolInstance) error {
	stored, ok := m.instances[instance.ID]
	if !ok || stored.Version != instance.Version {
		return pkgerrors.ErrOptimisticLock
	}
	stored.Status = instance.Status
	stored.Version++
	instance.Version = stored.Version
	return nil
}

func (m *mockEnrolInstanceRepo) Delete(ctx context.Context, id int64) error {
	inst, ok := m.instances[id]
	if !ok {
		return nil
	}
	delete(m.instances, id)
	return m.prereqs.Replace(ctx, id, inst.CourseID, nil)
}

// ── Mock UserEnrolmentRepository ──

type mockUserEnrolmentRepo struct {
	rows      map[[2]int64]*model.UserEnrolment // (instanceID, userID)
	nextID    int64
	createErr error
}

func newMockUserEnrolmentRepo() *mockUserEnrolmentRepo {
	return &mockUserEnrolmentRepo{rows: make(map[[2]int64]*model.UserEnrolment)}
}

func (m *mockUserEnrolmentRepo) Exists(_ context.Context, instanceID, userID int64) (bool, error) {
	_, ok := m.rows[[2]int64{instanceID, userID}]
	return ok, nil
}

func (m *mockUserEnrolmentRepo) GetByInstanceAndUser(_ context.Context, instanceID, userID int64) (*model.UserEnrolment, error) {
	if ue, ok := m.rows[[2]int64{instanceID, userID}]; ok {
		return ue, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserEnrolmentRepo) ListByInstance(_ context.Context, instanceID int64) ([]model.UserEnrolment, error) {
	var result []model.UserEnrolment
	for key, ue := range m.rows {
		if key[0] == instanceID {
			result = append(result, *ue)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockUserEnrolmentRepo) Create(_ context.Context, ue *model.UserEnrolment) error {
	if m.createErr != nil {
		return m.createErr
	}
	key := [2]int64{ue.EnrolID, ue.UserID}
	if _, ok := m.rows[key]; ok {
		return gorm.ErrDuplicatedKey
	}
	m.nextID++
	ue.ID = m.nextID
	m.rows[key] = ue
	return nil
}

func (m *mockUserEnrolmentRepo) Delete(_ context.Context, instanceID, userID int64) (int64, error) {
	key := [2]int64{instanceID, userID}
	if _, ok := m.rows[key]; !ok {
		return 0, nil
	}
	delete(m.rows, key)
	return 1, nil
}

// ═══════════════════════════════════════════════════════════
// 测试夹具
// ═══════════════════════════════════════════════════════════

type testFixture struct {
	repo        *repository.Repository
	courses     *mockCourseRepo
	completions *mockCompletionRepo
	prereqs     *mockPrerequisiteRepo
	instances   *mockEnrolInstanceRepo
	enrolments  *mockUserEnrolmentRepo
	cfg         *config.EnrolConfig
	logger      *zap.Logger
}

func newTestFixture() *testFixture {
	courses := newMockCourseRepo()
	prereqs := newMockPrerequisiteRepo(courses)
	courses.prereqs = prereqs
	instances := newMockEnrolInstanceRepo(prereqs, courses)
	completions := newMockCompletionRepo()
	enrolments := newMockUserEnrolmentRepo()

	return &testFixture{
		repo: &repository.Repository{
			Course:        courses,
			Completion:    completions,
			EnrolInstance: instances,
			Prerequisite:  prereqs,
			UserEnrolment: enrolments,
		},
		courses:     courses,
		completions: completions,
		prereqs:     prereqs,
		instances:   instances,
		enrolments:  enrolments,
		cfg: &config.EnrolConfig{
			DefaultRoleID:     5,
			PasswordMinLength: 6,
		},
		logger: zap.NewNop(),
	}
}

// addCourse 添加课程；candidate 为 true 时启用完成跟踪并配置完成条件
func (f *testFixture) addCourse(id int64, shortName string, candidate bool) *model.Course {
	c := &model.Course{
		ID:               id,
		ShortName:        shortName,
		FullName:         shortName + " 全称",
		EnableCompletion: candidate,
	}
	f.courses.courses[id] = c
	f.courses.criteria[id] = candidate
	return c
}

// addInstance 直接写入实例与映射，绕过 Service 校验
func (f *testFixture) addInstance(courseID int64, mode model.AggregationMode, requiredIDs ...int64) *model.EnrolInstance {
	inst := &model.EnrolInstance{
		Enrol:       model.PluginName,
		CourseID:    courseID,
		Name:        "先修选课",
		Status:      model.InstanceEnabled,
		RoleID:      5,
		Aggregation: mode,
	}
	_ = f.instances.CreateWithPrerequisites(context.Background(), inst, requiredIDs)
	return f.instances.instances[inst.ID]
}

func (f *testFixture) complete(userID, courseID int64) {
	_ = f.completions.MarkCompleted(context.Background(), courseID, userID, time.Now())
}

func (f *testFixture) newInstanceService() InstanceService {
	return NewInstanceService(f.cfg, f.repo, NewMinLengthPolicy(f.cfg.PasswordMinLength), f.logger)
}

func (f *testFixture) newEnrolmentService(now time.Time) EnrolmentService {
	svc := NewEnrolmentService(f.repo, f.logger).(*enrolmentService)
	svc.now = func() time.Time { return now }
	return svc
}
