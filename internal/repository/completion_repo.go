package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/donyariesta/prerequisite/internal/model"
)

// CompletionRepository 宿主课程完成记录访问接口
type CompletionRepository interface {
	GetByCourseAndUser(ctx context.Context, courseID, userID int64) (*model.CourseCompletion, error)
	// ListCompletedCourseIDs 返回 courseIDs 中该用户已完成（time_completed 非空）的课程
	ListCompletedCourseIDs(ctx context.Context, userID int64, courseIDs []int64) ([]int64, error)
	// MarkCompleted 记录用户完成课程，已存在时更新完成时间
	MarkCompleted(ctx context.Context, courseID, userID int64, at time.Time) error
}

type completionRepo struct {
	db *gorm.DB
}

// NewCompletionRepo 创建 CompletionRepository 实例
func NewCompletionRepo(db *gorm.DB) CompletionRepository {
	return &completionRepo{db: db}
}

func (r *completionRepo) GetByCourseAndUser(ctx context.Context, courseID, userID int64) (*model.CourseCompletion, error) {
	var cc model.CourseCompletion
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		First(&cc).Error
	if err != nil {
		return nil, err
	}
	return &cc, nil
}

func (r *completionRepo) ListCompletedCourseIDs(ctx context.Context, userID int64, courseIDs []int64) ([]int64, error) {
	if len(courseIDs) == 0 || userID <= 0 {
		return nil, nil
	}
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.CourseCompletion{}).
		Where("user_id = ? AND course_id IN ? AND time_completed IS NOT NULL", userID, courseIDs).
		Pluck("course_id", &ids).Error
	return ids, err
}

func (r *completionRepo) MarkCompleted(ctx context.Context, courseID, userID int64, at time.Time) error {
	cc := model.CourseCompletion{
		UserID:        userID,
		CourseID:      courseID,
		TimeEnrolled:  &at,
		TimeCompleted: &at,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"time_completed"}),
		}).
		Create(&cc).Error
}
