package model

import "time"

// UserEnrolment 用户选课记录 — 对应 user_enrolments
type UserEnrolment struct {
	ID        int64      `gorm:"primaryKey;autoIncrement"                                  json:"id"`
	EnrolID   int64      `gorm:"not null;uniqueIndex:uq_user_enrolments_enrol_user,priority:1" json:"enrol_id"`
	UserID    int64      `gorm:"not null;uniqueIndex:uq_user_enrolments_enrol_user,priority:2" json:"user_id"`
	RoleID    int64      `gorm:"not null"                                                  json:"role_id"`
	TimeStart time.Time  `gorm:"not null"                                                  json:"time_start"`
	TimeEnd   *time.Time `json:"time_end,omitempty"`
	BaseModel
}

// TableName 指定表名
func (UserEnrolment) TableName() string { return "user_enrolments" }
