package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/donyariesta/prerequisite/internal/model"
	pkgerrors "github.com/donyariesta/prerequisite/pkg/errors"
)

// EnrolInstanceRepository 选课实例数据访问接口
type EnrolInstanceRepository interface {
	GetByID(ctx context.Context, id int64) (*model.EnrolInstance, error)
	ListByCourse(ctx context.Context, courseID int64, enrol string) ([]model.EnrolInstance, error)
	// CreateWithPrerequisites 在同一事务中创建实例并写入先修课程映射
	CreateWithPrerequisites(ctx context.Context, instance *model.EnrolInstance, requiredCourseIDs []int64) error
	// UpdateWithPrerequisites 在同一事务中全量替换映射并更新实例（乐观锁）
	UpdateWithPrerequisites(ctx context.Context, instance *model.EnrolInstance, requiredCourseIDs []int64) error
	// UpdateStatus 启用/停用实例（乐观锁）
	UpdateStatus(ctx context.Context, instance *model.EnrolInstance) error
	// Delete 删除实例及其映射、选课记录
	Delete(ctx context.Context, id int64) error
}

type enrolInstanceRepo struct {
	db *gorm.DB
}

// NewEnrolInstanceRepo 创建 EnrolInstanceRepository 实例
func NewEnrolInstanceRepo(db *gorm.DB) EnrolInstanceRepository {
	return &enrolInstanceRepo{db: db}
}

func (r *enrolInstanceRepo) GetByID(ctx context.Context, id int64) (*model.EnrolInstance, error) {
	var instance model.EnrolInstance
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("id = ?", id).
		First(&instance).Error
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

func (r *enrolInstanceRepo) ListByCourse(ctx context.Context, courseID int64, enrol string) ([]model.EnrolInstance, error) {
	var instances []model.EnrolInstance
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND enrol = ?", courseID, enrol).
		Order("id ASC").
		Find(&instances).Error
	return instances, err
}

func (r *enrolInstanceRepo) CreateWithPrerequisites(ctx context.Context, instance *model.EnrolInstance, requiredCourseIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Course").Create(instance).Error; err != nil {
			return err
		}
		return replacePrerequisites(tx, instance.ID, instance.CourseID, requiredCourseIDs)
	})
}

func (r *enrolInstanceRepo) UpdateWithPrerequisites(ctx context.Context, instance *model.EnrolInstance, requiredCourseIDs []int64) error {
	oldVersion := instance.Version
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先替换映射再更新实例，与宿主的编辑流程顺序一致
		if err := replacePrerequisites(tx, instance.ID, instance.CourseID, requiredCourseIDs); err != nil {
			return err
		}

		result := tx.Model(&model.EnrolInstance{}).
			Where("id = ? AND version = ?", instance.ID, oldVersion).
			Updates(map[string]interface{}{
				"name":         instance.Name,
				"password":     instance.Password,
				"role_id":      instance.RoleID,
				"enrol_period": instance.EnrolPeriod,
				"aggregation":  instance.Aggregation,
				"updated_by":   instance.UpdatedBy,
				"version":      oldVersion + 1,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrOptimisticLock
		}
		return nil
	})
	if err != nil {
		return err
	}
	instance.Version = oldVersion + 1
	return nil
}

func (r *enrolInstanceRepo) UpdateStatus(ctx context.Context, instance *model.EnrolInstance) error {
	oldVersion := instance.Version
	result := r.db.WithContext(ctx).
		Model(&model.EnrolInstance{}).
		Where("id = ? AND version = ?", instance.ID, oldVersion).
		Updates(map[string]interface{}{
			"status":     instance.Status,
			"updated_by": instance.UpdatedBy,
			"version":    oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	instance.Version = oldVersion + 1
	return nil
}

func (r *enrolInstanceRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("enrol = ?", id).Delete(&model.Prerequisite{}).Error; err != nil {
			return err
		}
		if err := tx.Where("enrol_id = ?", id).Delete(&model.UserEnrolment{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.EnrolInstance{}).Error
	})
}
