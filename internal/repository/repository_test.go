package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/donyariesta/prerequisite/internal/model"
	"github.com/donyariesta/prerequisite/internal/repository"
	pkgerrors "github.com/donyariesta/prerequisite/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup（内存 SQLite，单连接保证事务与查询共用同一库）
// ═══════════════════════════════════════════════════════════

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("打开 SQLite 失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取 sql.DB 失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = db.AutoMigrate(
		&model.CourseCategory{},
		&model.Course{},
		&model.CourseCompletionCriteria{},
		&model.CourseCompletionAggregation{},
		&model.CourseCompletion{},
		&model.EnrolInstance{},
		&model.Prerequisite{},
		&model.UserEnrolment{},
	)
	if err != nil {
		t.Fatalf("AutoMigrate 失败: %v", err)
	}
	return db
}

// seedCourse 创建课程；withCriteria 为 true 时附带一条课程类完成条件
func seedCourse(t *testing.T, db *gorm.DB, id int64, shortname string, completion, withCriteria bool) {
	t.Helper()
	c := &model.Course{ID: id, CategoryID: 1, ShortName: shortname, FullName: shortname + " 全称", EnableCompletion: completion}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("创建课程失败: %v", err)
	}
	if withCriteria {
		if err := db.Create(&model.CourseCompletionCriteria{CourseID: id, CriteriaType: model.CriteriaTypeCourse}).Error; err != nil {
			t.Fatalf("创建完成条件失败: %v", err)
		}
	}
}

func seedInstance(t *testing.T, db *gorm.DB, courseID int64) *model.EnrolInstance {
	t.Helper()
	inst := &model.EnrolInstance{
		Enrol:       model.PluginName,
		CourseID:    courseID,
		Name:        "先修选课",
		RoleID:      5,
		Aggregation: model.AggregationAll,
	}
	if err := db.Create(inst).Error; err != nil {
		t.Fatalf("创建实例失败: %v", err)
	}
	return inst
}

func requiredIDs(rows []model.Prerequisite) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.RequiredCourseID)
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ═══════════════════════════════════════════════════════════
// PrerequisiteRepository
// ═══════════════════════════════════════════════════════════

func TestPrerequisiteRepo_Replace_IsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewPrerequisiteRepo(db)
	ctx := context.Background()

	seedCourse(t, db, 1, "TARGET", true, true)
	seedCourse(t, db, 2, "A", true, true)
	seedCourse(t, db, 3, "B", true, true)

	for i := 0; i < 2; i++ {
		if err := repo.Replace(ctx, 10, 1, []int64{2, 3}); err != nil {
			t.Fatalf("第 %d 次 Replace 失败: %v", i+1, err)
		}
	}

	rows, err := repo.ListByInstance(ctx, 10)
	if err != nil {
		t.Fatalf("ListByInstance 失败: %v", err)
	}
	if got := requiredIDs(rows); !equalIDs(got, []int64{2, 3}) {
		t.Errorf("期望 [2 3]，实际 %v", got)
	}
	if rows[0].RequiredCourse == nil || rows[0].RequiredCourse.ShortName != "A" {
		t.Error("应预加载先修课程信息")
	}
}

func TestPrerequisiteRepo_Replace_RemovesStaleRows(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewPrerequisiteRepo(db)
	ctx := context.Background()

	if err := repo.Replace(ctx, 10, 1, []int64{2, 3}); err != nil {
		t.Fatalf("Replace 失败: %v", err)
	}
	if err := repo.Replace(ctx, 10, 1, []int64{4}); err != nil {
		t.Fatalf("Replace 失败: %v", err)
	}

	rows, _ := repo.ListByInstance(ctx, 10)
	if got := requiredIDs(rows); !equalIDs(got, []int64{4}) {
		t.Errorf("期望仅剩 [4]，实际 %v", got)
	}
}

func TestPrerequisiteRepo_Replace_Empty(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewPrerequisiteRepo(db)
	ctx := context.Background()

	_ = repo.Replace(ctx, 10, 1, []int64{2, 3})
	if err := repo.Replace(ctx, 10, 1, nil); err != nil {
		t.Fatalf("Replace 空列表失败: %v", err)
	}

	rows, err := repo.ListByInstance(ctx, 10)
	if err != nil {
		t.Fatalf("ListByInstance 失败: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("期望映射为空，实际 %d 条", len(rows))
	}
}

func TestPrerequisiteRepo_Replace_DoesNotTouchOtherInstances(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewPrerequisiteRepo(db)
	ctx := context.Background()

	_ = repo.Replace(ctx, 10, 1, []int64{2})
	_ = repo.Replace(ctx, 11, 1, []int64{3})
	_ = repo.Replace(ctx, 10, 1, []int64{4})

	rows, _ := repo.ListByInstance(ctx, 11)
	if got := requiredIDs(rows); !equalIDs(got, []int64{3}) {
		t.Errorf("实例 11 的映射不应变化，实际 %v", got)
	}
}

func TestPrerequisiteRepo_UniqueRequiredCourse(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewPrerequisiteRepo(db)
	ctx := context.Background()

	_ = repo.Replace(ctx, 10, 1, []int64{2})
	err := repo.Replace(ctx, 10, 1, []int64{3, 3})
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("重复先修课程应违反唯一约束，实际: %v", err)
	}

	// 事务回滚后旧映射保持不变
	rows, _ := repo.ListByInstance(ctx, 10)
	if got := requiredIDs(rows); !equalIDs(got, []int64{2}) {
		t.Errorf("失败的替换不应留下部分结果，实际 %v", got)
	}
}

// ═══════════════════════════════════════════════════════════
// EnrolInstanceRepository
// ═══════════════════════════════════════════════════════════

func TestEnrolInstanceRepo_CreateAndUpdateWithPrerequisites(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewRepository(db)
	ctx := context.Background()

	seedCourse(t, db, 1, "TARGET", true, true)

	inst := &model.EnrolInstance{
		Enrol:       model.PluginName,
		CourseID:    1,
		Name:        "先修选课",
		RoleID:      5,
		Aggregation: model.AggregationAll,
	}
	if err := repo.EnrolInstance.CreateWithPrerequisites(ctx, inst, []int64{2, 3}); err != nil {
		t.Fatalf("CreateWithPrerequisites 失败: %v", err)
	}
	if inst.ID == 0 {
		t.Fatal("创建后应回填实例 ID")
	}

	inst.Aggregation = model.AggregationAny
	if err := repo.EnrolInstance.UpdateWithPrerequisites(ctx, inst, []int64{3}); err != nil {
		t.Fatalf("UpdateWithPrerequisites 失败: %v", err)
	}
	if inst.Version != 2 {
		t.Errorf("期望 Version=2，实际=%d", inst.Version)
	}

	got, err := repo.EnrolInstance.GetByID(ctx, inst.ID)
	if err != nil {
		t.Fatalf("GetByID 失败: %v", err)
	}
	if got.Aggregation != model.AggregationAny {
		t.Errorf("期望聚合方式 any，实际 %v", got.Aggregation)
	}
	if got.Course == nil || got.Course.ShortName != "TARGET" {
		t.Error("应预加载实例所属课程")
	}

	rows, _ := repo.Prerequisite.ListByInstance(ctx, inst.ID)
	if ids := requiredIDs(rows); !equalIDs(ids, []int64{3}) {
		t.Errorf("期望映射 [3]，实际 %v", ids)
	}
}

func TestEnrolInstanceRepo_Update_OptimisticLock(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewRepository(db)
	ctx := context.Background()

	inst := seedInstance(t, db, 1)
	_ = repo.Prerequisite.Replace(ctx, inst.ID, 1, []int64{2})

	stale := *inst
	if err := repo.EnrolInstance.UpdateWithPrerequisites(ctx, inst, []int64{3}); err != nil {
		t.Fatalf("首次更新失败: %v", err)
	}

	err := repo.EnrolInstance.UpdateWithPrerequisites(ctx, &stale, []int64{4})
	if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Fatalf("期望 ErrOptimisticLock，实际: %v", err)
	}

	// 冲突时映射替换随事务回滚
	rows, _ := repo.Prerequisite.ListByInstance(ctx, inst.ID)
	if ids := requiredIDs(rows); !equalIDs(ids, []int64{3}) {
		t.Errorf("冲突后映射应保持 [3]，实际 %v", ids)
	}
}

func TestEnrolInstanceRepo_UpdateStatus(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewEnrolInstanceRepo(db)
	ctx := context.Background()

	inst := seedInstance(t, db, 1)
	inst.Status = model.InstanceDisabled
	if err := repo.UpdateStatus(ctx, inst); err != nil {
		t.Fatalf("UpdateStatus 失败: %v", err)
	}

	got, _ := repo.GetByID(ctx, inst.ID)
	if got.IsEnabled() {
		t.Error("实例应已停用")
	}
}

func TestEnrolInstanceRepo_Delete_Cascades(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewRepository(db)
	ctx := context.Background()

	inst := seedInstance(t, db, 1)
	_ = repo.Prerequisite.Replace(ctx, inst.ID, 1, []int64{2, 3})
	_ = repo.UserEnrolment.Create(ctx, &model.UserEnrolment{EnrolID: inst.ID, UserID: 7, RoleID: 5, TimeStart: time.Now()})

	if err := repo.EnrolInstance.Delete(ctx, inst.ID); err != nil {
		t.Fatalf("Delete 失败: %v", err)
	}

	if _, err := repo.EnrolInstance.GetByID(ctx, inst.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("实例应已删除，实际: %v", err)
	}
	rows, _ := repo.Prerequisite.ListByInstance(ctx, inst.ID)
	if len(rows) != 0 {
		t.Errorf("映射应随实例删除，剩余 %d 条", len(rows))
	}
	exists, _ := repo.UserEnrolment.Exists(ctx, inst.ID, 7)
	if exists {
		t.Error("选课记录应随实例删除")
	}
}

// ═══════════════════════════════════════════════════════════
// CourseRepository
// ═══════════════════════════════════════════════════════════

func TestCourseRepo_ListCandidates(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewRepository(db)
	ctx := context.Background()

	if err := db.Create(&model.CourseCategory{ID: 1, Name: "理学院"}).Error; err != nil {
		t.Fatalf("创建分类失败: %v", err)
	}
	seedCourse(t, db, 1, "TARGET", true, true)  // 当前课程，应排除
	seedCourse(t, db, 2, "A", true, true)       // 候选
	seedCourse(t, db, 3, "B", true, false)      // 无完成条件，排除
	seedCourse(t, db, 4, "C", false, true)      // 未启用完成跟踪，排除
	seedCourse(t, db, 5, "D", true, true)       // 候选
	_ = db.Create(&model.CourseCompletionCriteria{CourseID: 5, CriteriaType: 2}).Error // 多条条件不应产生重复

	inst := seedInstance(t, db, 1)
	_ = repo.Prerequisite.Replace(ctx, inst.ID, 1, []int64{5})

	got, err := repo.Course.ListCandidates(ctx, 1, inst.ID)
	if err != nil {
		t.Fatalf("ListCandidates 失败: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("期望 2 门候选课程，实际 %d: %+v", len(got), got)
	}
	if got[0].ID != 2 || got[0].Selected {
		t.Errorf("课程 A 应未选中，实际 %+v", got[0])
	}
	if got[1].ID != 5 || !got[1].Selected {
		t.Errorf("课程 D 应已选中，实际 %+v", got[1])
	}
	if got[0].CategoryName != "理学院" || got[0].FullName != "A 全称" {
		t.Errorf("分类与全称未正确映射: %+v", got[0])
	}

	// 新实例（ID=0）不标注选中
	fresh, _ := repo.Course.ListCandidates(ctx, 1, 0)
	for _, c := range fresh {
		if c.Selected {
			t.Errorf("新实例不应有已选课程: %+v", c)
		}
	}
}

func TestCourseRepo_GetAggregationMethod(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewCourseRepo(db)
	ctx := context.Background()

	mode, err := repo.GetAggregationMethod(ctx, 1, model.CriteriaTypeCourse)
	if err != nil {
		t.Fatalf("GetAggregationMethod 失败: %v", err)
	}
	if mode != model.AggregationAll {
		t.Errorf("未配置时应默认 all，实际 %v", mode)
	}

	ct := model.CriteriaTypeCourse
	_ = db.Create(&model.CourseCompletionAggregation{CourseID: 1, CriteriaType: &ct, Method: model.AggregationAny}).Error

	mode, _ = repo.GetAggregationMethod(ctx, 1, model.CriteriaTypeCourse)
	if mode != model.AggregationAny {
		t.Errorf("期望 any，实际 %v", mode)
	}
}

// ═══════════════════════════════════════════════════════════
// CompletionRepository / UserEnrolmentRepository
// ═══════════════════════════════════════════════════════════

func TestCompletionRepo_ListCompletedCourseIDs(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewCompletionRepo(db)
	ctx := context.Background()

	now := time.Now()
	_ = repo.MarkCompleted(ctx, 2, 7, now)
	_ = repo.MarkCompleted(ctx, 3, 8, now) // 其他用户
	_ = db.Create(&model.CourseCompletion{UserID: 7, CourseID: 4, TimeEnrolled: &now}).Error // 未完成

	ids, err := repo.ListCompletedCourseIDs(ctx, 7, []int64{2, 3, 4})
	if err != nil {
		t.Fatalf("ListCompletedCourseIDs 失败: %v", err)
	}
	if !equalIDs(ids, []int64{2}) {
		t.Errorf("期望仅 [2]，实际 %v", ids)
	}

	cc, err := repo.GetByCourseAndUser(ctx, 4, 7)
	if err != nil {
		t.Fatalf("GetByCourseAndUser 失败: %v", err)
	}
	if cc.IsCompleted() {
		t.Error("未设置完成时间的记录不应视为完成")
	}
}

func TestCompletionRepo_MarkCompleted_Upserts(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewCompletionRepo(db)
	ctx := context.Background()

	now := time.Now()
	_ = db.Create(&model.CourseCompletion{UserID: 7, CourseID: 4, TimeEnrolled: &now}).Error
	if err := repo.MarkCompleted(ctx, 4, 7, now); err != nil {
		t.Fatalf("MarkCompleted 失败: %v", err)
	}

	cc, _ := repo.GetByCourseAndUser(ctx, 4, 7)
	if !cc.IsCompleted() {
		t.Error("已有记录应被更新为完成")
	}
}

func TestUserEnrolmentRepo_CreateDuplicate(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewUserEnrolmentRepo(db)
	ctx := context.Background()

	ue := &model.UserEnrolment{EnrolID: 1, UserID: 7, RoleID: 5, TimeStart: time.Now()}
	if err := repo.Create(ctx, ue); err != nil {
		t.Fatalf("Create 失败: %v", err)
	}

	dup := &model.UserEnrolment{EnrolID: 1, UserID: 7, RoleID: 5, TimeStart: time.Now()}
	if err := repo.Create(ctx, dup); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("期望 ErrDuplicatedKey，实际: %v", err)
	}

	n, err := repo.Delete(ctx, 1, 7)
	if err != nil || n != 1 {
		t.Errorf("期望删除 1 行，实际 n=%d err=%v", n, err)
	}
	n, _ = repo.Delete(ctx, 1, 7)
	if n != 0 {
		t.Errorf("重复删除应返回 0 行，实际 %d", n)
	}
}
