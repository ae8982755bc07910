package plugin

import (
	"context"

	"github.com/donyariesta/prerequisite/internal/dto"
)

// Identity 当前请求的调用者身份，显式传入每一次资格评估
type Identity struct {
	UserID int64
	Guest  bool
}

// GuestIdentity 未登录访客
func GuestIdentity() Identity {
	return Identity{Guest: true}
}

// CurrentUserID 当前用户 ID，访客为 0
func (i Identity) CurrentUserID() int64 {
	if i.IsGuest() {
		return 0
	}
	return i.UserID
}

// IsGuest 是否为访客
func (i Identity) IsGuest() bool {
	return i.Guest || i.UserID <= 0
}

// Capabilities 选课方式向宿主声明的能力
type Capabilities struct {
	AllowEnrol           bool // 允许管理员手动选课
	AllowUnenrol         bool // 允许管理员退课
	CanAddInstance       bool
	UseStandardEditingUI bool
	CanHideShowInstance  bool
	CanDeleteInstance    bool
}

// Provider 选课方式，由宿主按名称查找后调用
type Provider interface {
	// Name 选课方式名称，对应 enrol_instances.enrol
	Name() string
	Capabilities() Capabilities
	// CanEnrol 评估 identity 能否通过 instanceID 自助选课
	// checkUserEnrolment 为 false 时只判断先修条件
	CanEnrol(ctx context.Context, instanceID int64, identity Identity, checkUserEnrolment bool) (*dto.EligibilityResponse, error)
	// Enrol 自助选课；不满足条件时返回 Enrolled=false 而非错误
	Enrol(ctx context.Context, instanceID int64, identity Identity, req *dto.SelfEnrolRequest) (*dto.EnrolmentResponse, error)
}
