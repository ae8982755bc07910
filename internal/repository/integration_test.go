//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/donyariesta/prerequisite/internal/model"
	"github.com/donyariesta/prerequisite/internal/repository"
	"github.com/donyariesta/prerequisite/pkg/database"
)

// ═══════════════════════════════════════════════════════════
// Test Setup（真实 PostgreSQL，执行嵌入的迁移）
// ═══════════════════════════════════════════════════════════

var pgDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=postgres password=postgres dbname=enrol_prerequisite_test sslmode=disable TimeZone=UTC"
	}

	var err error
	pgDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := pgDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "迁移失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func setupCourseWithInstance(t *testing.T) (*model.Course, *model.EnrolInstance, func()) {
	t.Helper()
	ctx := context.Background()

	course := &model.Course{ShortName: "PG-TARGET", FullName: "PG 目标课程", EnableCompletion: true}
	if err := pgDB.WithContext(ctx).Create(course).Error; err != nil {
		t.Fatalf("创建课程失败: %v", err)
	}
	inst := &model.EnrolInstance{
		Enrol:       model.PluginName,
		CourseID:    course.ID,
		Name:        "PG 先修选课",
		RoleID:      5,
		Aggregation: model.AggregationAll,
	}
	if err := pgDB.WithContext(ctx).Omit("Course").Create(inst).Error; err != nil {
		t.Fatalf("创建实例失败: %v", err)
	}

	cleanup := func() {
		pgDB.Where("enrol = ?", inst.ID).Delete(&model.Prerequisite{})
		pgDB.Where("id = ?", inst.ID).Delete(&model.EnrolInstance{})
		pgDB.Where("id = ?", course.ID).Delete(&model.Course{})
	}
	return course, inst, cleanup
}

// TestPrerequisiteRepo_Replace_ReadersNeverSeePartialSet 并发读取只能看到替换前或替换后的完整集合
func TestPrerequisiteRepo_Replace_ReadersNeverSeePartialSet(t *testing.T) {
	course, inst, cleanup := setupCourseWithInstance(t)
	defer cleanup()

	repo := repository.NewPrerequisiteRepo(pgDB)
	ctx := context.Background()

	setA := []int64{101, 102, 103}
	setB := []int64{201, 202}
	if err := repo.Replace(ctx, inst.ID, course.ID, setA); err != nil {
		t.Fatalf("初始化映射失败: %v", err)
	}

	var wg sync.WaitGroup
	done := make(chan struct{})
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < 50; i++ {
			next := setA
			if i%2 == 0 {
				next = setB
			}
			if err := repo.Replace(ctx, inst.ID, course.ID, next); err != nil {
				errCh <- err
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			wg.Wait()
			select {
			case err := <-errCh:
				t.Fatalf("Replace 失败: %v", err)
			default:
			}
			return
		default:
		}

		rows, err := repo.ListByInstance(ctx, inst.ID)
		if err != nil {
			t.Fatalf("ListByInstance 失败: %v", err)
		}
		got := requiredIDs(rows)
		if !equalIDs(got, setA) && !equalIDs(got, setB) {
			t.Fatalf("读取到部分替换的映射: %v", got)
		}
	}
}

func TestMigrations_EnforceUniqueRequiredCourse(t *testing.T) {
	course, inst, cleanup := setupCourseWithInstance(t)
	defer cleanup()

	row := model.Prerequisite{EnrolID: inst.ID, CourseID: course.ID, RequiredCourseID: 999}
	if err := pgDB.Create(&row).Error; err != nil {
		t.Fatalf("插入映射失败: %v", err)
	}
	dup := model.Prerequisite{EnrolID: inst.ID, CourseID: course.ID, RequiredCourseID: 999}
	if err := pgDB.Create(&dup).Error; err != gorm.ErrDuplicatedKey {
		t.Errorf("期望 ErrDuplicatedKey，实际: %v", err)
	}
}
