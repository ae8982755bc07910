package model

// Prerequisite 先修课程映射表 — 对应 enrol_prerequisite
// 列名沿用宿主既有结构：enrol=实例ID，course=实例所属课程，courseinstance=先修课程
type Prerequisite struct {
	ID               int64 `gorm:"primaryKey;autoIncrement"                                                      json:"id"`
	EnrolID          int64 `gorm:"column:enrol;not null;index:idx_enrol_prerequisite_enrol_course,priority:1;uniqueIndex:uq_enrol_prerequisite_enrol_courseinstance,priority:1" json:"enrol"`
	CourseID         int64 `gorm:"column:course;not null;index:idx_enrol_prerequisite_enrol_course,priority:2"   json:"course"`
	RequiredCourseID int64 `gorm:"column:courseinstance;not null;uniqueIndex:uq_enrol_prerequisite_enrol_courseinstance,priority:2" json:"courseinstance"`

	RequiredCourse *Course `gorm:"foreignKey:RequiredCourseID;references:ID" json:"required_course,omitempty"`
}

// TableName 指定表名
func (Prerequisite) TableName() string { return "enrol_prerequisite" }

// RequiredCourseStatus 某用户对一门先修课程的完成情况（每次评估时计算，不落库）
type RequiredCourseStatus struct {
	RequiredCourseID int64
	ShortName        string
	FullName         string
	Completed        bool
}
