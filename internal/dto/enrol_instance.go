package dto

// ── 选课实例配置 DTO ──

// InstanceRequest 创建/编辑选课实例请求
// 字段级校验在 Service 层完成，以便逐字段回显
type InstanceRequest struct {
	Name              string  `json:"name"`
	Password          *string `json:"password"` // nil 表示编辑时保持不变；"" 表示清除
	RequiredCourseIDs []int64 `json:"required_course_ids"`
	Aggregation       string  `json:"aggregation"  binding:"omitempty,oneof=all any"`
	RoleID            int64   `json:"role_id"      binding:"omitempty,min=1"`
	EnrolPeriod       *int64  `json:"enrol_period" binding:"omitempty,min=0"` // 秒
	Version           int     `json:"version"      binding:"omitempty,min=1"` // 编辑时用于乐观锁
}

// UpdateInstanceStatusRequest 启用/停用实例
type UpdateInstanceStatusRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// RequiredCourseResponse 实例配置的先修课程
type RequiredCourseResponse struct {
	ID        int64  `json:"id"`
	ShortName string `json:"shortname"`
	FullName  string `json:"fullname"`
}

// InstanceResponse 选课实例信息（不含密码明文）
type InstanceResponse struct {
	ID              int64                    `json:"id"`
	CourseID        int64                    `json:"course_id"`
	Name            string                   `json:"name"`
	Status          string                   `json:"status"` // enabled | disabled
	HasPassword     bool                     `json:"has_password"`
	RoleID          int64                    `json:"role_id"`
	EnrolPeriod     int64                    `json:"enrol_period"`
	Aggregation     string                   `json:"aggregation"` // all | any
	RequiredCourses []RequiredCourseResponse `json:"required_courses"`
	Version         int                      `json:"version"`
	CreatedAt       string                   `json:"created_at"`
	UpdatedAt       string                   `json:"updated_at"`
}

// CandidateCourseResponse 可选的先修课程
type CandidateCourseResponse struct {
	ID        int64  `json:"id"`
	Label     string `json:"label"` // "分类 / 课程全称"
	ShortName string `json:"shortname"`
	FullName  string `json:"fullname"`
	Selected  bool   `json:"selected"`
}

// CandidateCoursesResponse 实例配置表单所需的候选课程
type CandidateCoursesResponse struct {
	Courses               []CandidateCourseResponse `json:"courses"`
	AggregationSelectable bool                      `json:"aggregation_selectable"` // 仅候选课程多于一门时可选
	DefaultAggregation    string                    `json:"default_aggregation"`
}
