package dto

// ── 选课 DTO ──

// EligibilityQuery 选课资格查询参数
type EligibilityQuery struct {
	// 为 false 时跳过访客/已选课检查，仅判断先修条件（导航等高频场景）
	CheckUserEnrolment *bool `form:"check_user_enrolment"`
}

// RequiredCourseStatusResponse 先修课程完成情况
type RequiredCourseStatusResponse struct {
	CourseID  int64  `json:"course_id"`
	ShortName string `json:"shortname"`
	FullName  string `json:"fullname"`
	Completed bool   `json:"completed"`
}

// EligibilityResponse 选课资格评估结果
// 不满足条件属于正常返回值，而非错误
type EligibilityResponse struct {
	InstanceID       int64                          `json:"instance_id"`
	InstanceName     string                         `json:"instance_name"`
	Eligible         bool                           `json:"eligible"`
	Reason           string                         `json:"reason,omitempty"`
	Message          string                         `json:"message,omitempty"`
	LoginRequired    bool                           `json:"login_required"`
	PasswordRequired bool                           `json:"password_required"`
	RequiredCourses  []RequiredCourseStatusResponse `json:"required_courses"`
}

// SelfEnrolRequest 自助选课请求
type SelfEnrolRequest struct {
	Password string `json:"password" binding:"max=255"`
}

// ManualEnrolRequest 管理员手动选课请求
type ManualEnrolRequest struct {
	UserID int64 `json:"user_id" binding:"required,min=1"`
}

// UserEnrolmentResponse 选课记录
type UserEnrolmentResponse struct {
	ID         int64   `json:"id"`
	InstanceID int64   `json:"instance_id"`
	UserID     int64   `json:"user_id"`
	RoleID     int64   `json:"role_id"`
	TimeStart  string  `json:"time_start"`
	TimeEnd    *string `json:"time_end,omitempty"`
}

// EnrolmentResponse 自助选课结果
type EnrolmentResponse struct {
	Enrolled    bool                   `json:"enrolled"`
	Reason      string                 `json:"reason,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Eligibility *EligibilityResponse   `json:"eligibility,omitempty"`
	Enrolment   *UserEnrolmentResponse `json:"enrolment,omitempty"`
}

// PluginResponse 已注册的选课方式
type PluginResponse struct {
	Name                 string `json:"name"`
	AllowEnrol           bool   `json:"allow_enrol"`
	AllowUnenrol         bool   `json:"allow_unenrol"`
	CanAddInstance       bool   `json:"can_add_instance"`
	UseStandardEditingUI bool   `json:"use_standard_editing_ui"`
	CanHideShowInstance  bool   `json:"can_hide_show_instance"`
	CanDeleteInstance    bool   `json:"can_delete_instance"`
}
