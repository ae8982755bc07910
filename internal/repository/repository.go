package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Course        CourseRepository
	Completion    CompletionRepository
	EnrolInstance EnrolInstanceRepository
	Prerequisite  PrerequisiteRepository
	UserEnrolment UserEnrolmentRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Course:        NewCourseRepo(db),
		Completion:    NewCompletionRepo(db),
		EnrolInstance: NewEnrolInstanceRepo(db),
		Prerequisite:  NewPrerequisiteRepo(db),
		UserEnrolment: NewUserEnrolmentRepo(db),
	}
}
