package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/donyariesta/prerequisite/internal/model"
)

// CourseRepository 宿主课程目录只读访问接口
type CourseRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Course, error)
	// ListCandidates 列出可作为先修课程的课程：启用完成跟踪且配置了完成条件，排除当前课程；
	// instanceID 非 0 时标注该实例已选中的课程
	ListCandidates(ctx context.Context, excludeCourseID, instanceID int64) ([]model.CandidateCourse, error)
	// GetAggregationMethod 课程自身某类完成条件的聚合方式，未配置时返回 AggregationAll
	GetAggregationMethod(ctx context.Context, courseID int64, criteriaType int16) (model.AggregationMode, error)
}

type courseRepo struct {
	db *gorm.DB
}

// NewCourseRepo 创建 CourseRepository 实例
func NewCourseRepo(db *gorm.DB) CourseRepository {
	return &courseRepo{db: db}
}

func (r *courseRepo) GetByID(ctx context.Context, id int64) (*model.Course, error) {
	var course model.Course
	err := r.db.WithContext(ctx).
		Preload("Category").
		Where("id = ?", id).
		First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepo) ListCandidates(ctx context.Context, excludeCourseID, instanceID int64) ([]model.CandidateCourse, error) {
	var rows []model.CandidateCourse
	err := r.db.WithContext(ctx).
		Table("courses c").
		Select("DISTINCT c.id, c.category_id, COALESCE(cat.name, '') AS category_name, " +
			"c.shortname AS short_name, c.fullname AS full_name, (p.id IS NOT NULL) AS selected").
		Joins("INNER JOIN course_completion_criteria ccc ON ccc.course_id = c.id").
		Joins("LEFT JOIN course_categories cat ON cat.id = c.category_id").
		Joins("LEFT JOIN enrol_prerequisite p ON p.courseinstance = c.id AND p.enrol = ?", instanceID).
		Where("c.enable_completion = ? AND c.id <> ?", true, excludeCourseID).
		Order("c.id ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *courseRepo) GetAggregationMethod(ctx context.Context, courseID int64, criteriaType int16) (model.AggregationMode, error) {
	var aggr model.CourseCompletionAggregation
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND criteria_type = ?", courseID, criteriaType).
		First(&aggr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.AggregationAll, nil
		}
		return 0, err
	}
	return aggr.Method, nil
}
