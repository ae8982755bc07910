package model

import "time"

// 课程完成条件类型（与宿主平台取值一致）
const (
	CriteriaTypeCourse int16 = 8
)

// CourseCategory 课程分类表 — 对应 course_categories
type CourseCategory struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name string `gorm:"type:varchar(255);not null" json:"name"`
}

// TableName 指定表名
func (CourseCategory) TableName() string { return "course_categories" }

// Course 课程表 — 对应 courses（宿主平台课程目录）
type Course struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"      json:"id"`
	CategoryID       int64  `gorm:"not null;default:0"            json:"category_id"`
	ShortName        string `gorm:"column:shortname;type:varchar(255);not null" json:"shortname"`
	FullName         string `gorm:"column:fullname;type:varchar(254);not null"  json:"fullname"`
	EnableCompletion bool   `gorm:"not null;default:false"        json:"enable_completion"`

	Category *CourseCategory `gorm:"foreignKey:CategoryID;references:ID" json:"category,omitempty"`
}

// TableName 指定表名
func (Course) TableName() string { return "courses" }

// CourseCompletionCriteria 课程完成条件表 — 对应 course_completion_criteria
type CourseCompletionCriteria struct {
	ID           int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	CourseID     int64 `gorm:"not null;index"           json:"course_id"`
	CriteriaType int16 `gorm:"not null"                 json:"criteria_type"`
}

// TableName 指定表名
func (CourseCompletionCriteria) TableName() string { return "course_completion_criteria" }

// CourseCompletionAggregation 课程自身的完成条件聚合方式 — 对应 course_completion_aggr_methd
type CourseCompletionAggregation struct {
	ID           int64           `gorm:"primaryKey;autoIncrement"                            json:"id"`
	CourseID     int64           `gorm:"not null;uniqueIndex:uq_course_completion_aggr,priority:1" json:"course_id"`
	CriteriaType *int16          `gorm:"uniqueIndex:uq_course_completion_aggr,priority:2"    json:"criteria_type"`
	Method       AggregationMode `gorm:"not null;default:1"                                  json:"method"`
}

// TableName 指定表名
func (CourseCompletionAggregation) TableName() string { return "course_completion_aggr_methd" }

// CourseCompletion 课程完成记录 — 对应 course_completions
// TimeCompleted 为空表示已开始但尚未完成
type CourseCompletion struct {
	ID            int64      `gorm:"primaryKey;autoIncrement"                                     json:"id"`
	UserID        int64      `gorm:"not null;uniqueIndex:uq_course_completions_user_course,priority:1" json:"user_id"`
	CourseID      int64      `gorm:"not null;uniqueIndex:uq_course_completions_user_course,priority:2" json:"course_id"`
	TimeEnrolled  *time.Time `json:"time_enrolled,omitempty"`
	TimeCompleted *time.Time `json:"time_completed,omitempty"`
}

// TableName 指定表名
func (CourseCompletion) TableName() string { return "course_completions" }

// IsCompleted 是否已满足课程完成条件
func (c *CourseCompletion) IsCompleted() bool {
	return c != nil && c.TimeCompleted != nil
}

// CandidateCourse 可作为先修课程的课程（查询结果，非表）
type CandidateCourse struct {
	ID           int64
	CategoryID   int64
	CategoryName string
	ShortName    string
	FullName     string
	Selected     bool
}
