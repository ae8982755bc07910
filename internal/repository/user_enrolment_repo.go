package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/donyariesta/prerequisite/internal/model"
)

// UserEnrolmentRepository 宿主选课记录访问接口
type UserEnrolmentRepository interface {
	Exists(ctx context.Context, instanceID, userID int64) (bool, error)
	GetByInstanceAndUser(ctx context.Context, instanceID, userID int64) (*model.UserEnrolment, error)
	ListByInstance(ctx context.Context, instanceID int64) ([]model.UserEnrolment, error)
	// Create 重复选课时返回 gorm.ErrDuplicatedKey（依赖 TranslateError）
	Create(ctx context.Context, ue *model.UserEnrolment) error
	// Delete 返回删除的行数
	Delete(ctx context.Context, instanceID, userID int64) (int64, error)
}

type userEnrolmentRepo struct {
	db *gorm.DB
}

// NewUserEnrolmentRepo 创建 UserEnrolmentRepository 实例
func NewUserEnrolmentRepo(db *gorm.DB) UserEnrolmentRepository {
	return &userEnrolmentRepo{db: db}
}

func (r *userEnrolmentRepo) Exists(ctx context.Context, instanceID, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.UserEnrolment{}).
		Where("enrol_id = ? AND user_id = ?", instanceID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *userEnrolmentRepo) GetByInstanceAndUser(ctx context.Context, instanceID, userID int64) (*model.UserEnrolment, error) {
	var ue model.UserEnrolment
	err := r.db.WithContext(ctx).
		Where("enrol_id = ? AND user_id = ?", instanceID, userID).
		First(&ue).Error
	if err != nil {
		return nil, err
	}
	return &ue, nil
}

func (r *userEnrolmentRepo) ListByInstance(ctx context.Context, instanceID int64) ([]model.UserEnrolment, error) {
	var list []model.UserEnrolment
	err := r.db.WithContext(ctx).
		Where("enrol_id = ?", instanceID).
		Order("time_start ASC, id ASC").
		Find(&list).Error
	return list, err
}

func (r *userEnrolmentRepo) Create(ctx context.Context, ue *model.UserEnrolment) error {
	return r.db.WithContext(ctx).Create(ue).Error
}

func (r *userEnrolmentRepo) Delete(ctx context.Context, instanceID, userID int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("enrol_id = ? AND user_id = ?", instanceID, userID).
		Delete(&model.UserEnrolment{})
	return result.RowsAffected, result.Error
}
