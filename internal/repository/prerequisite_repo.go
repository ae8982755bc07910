package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/donyariesta/prerequisite/internal/model"
)

// PrerequisiteRepository 先修课程映射数据访问接口
type PrerequisiteRepository interface {
	// ListByInstance 按插入顺序列出实例的先修课程映射（含课程信息）
	ListByInstance(ctx context.Context, instanceID int64) ([]model.Prerequisite, error)
	// Replace 在事务中全量替换映射：先删除 (enrol, course) 下的旧行，再逐条插入
	Replace(ctx context.Context, instanceID, courseID int64, requiredCourseIDs []int64) error
}

type prerequisiteRepo struct {
	db *gorm.DB
}

// NewPrerequisiteRepo 创建 PrerequisiteRepository 实例
func NewPrerequisiteRepo(db *gorm.DB) PrerequisiteRepository {
	return &prerequisiteRepo{db: db}
}

func (r *prerequisiteRepo) ListByInstance(ctx context.Context, instanceID int64) ([]model.Prerequisite, error) {
	var rows []model.Prerequisite
	err := r.db.WithContext(ctx).
		Preload("RequiredCourse").
		Where("enrol = ?", instanceID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *prerequisiteRepo) Replace(ctx context.Context, instanceID, courseID int64, requiredCourseIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replacePrerequisites(tx, instanceID, courseID, requiredCourseIDs)
	})
}

// replacePrerequisites 在调用方事务内执行 delete + reinsert
func replacePrerequisites(tx *gorm.DB, instanceID, courseID int64, requiredCourseIDs []int64) error {
	if err := tx.Where("enrol = ? AND course = ?", instanceID, courseID).
		Delete(&model.Prerequisite{}).Error; err != nil {
		return err
	}
	if len(requiredCourseIDs) == 0 {
		return nil
	}

	rows := make([]model.Prerequisite, 0, len(requiredCourseIDs))
	for _, id := range requiredCourseIDs {
		rows = append(rows, model.Prerequisite{
			EnrolID:          instanceID,
			CourseID:         courseID,
			RequiredCourseID: id,
		})
	}
	return tx.Create(&rows).Error
}
