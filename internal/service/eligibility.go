package service

import "github.com/donyariesta/prerequisite/internal/model"

// ── 选课资格评估 ──

// IneligibleReason 不满足选课条件的原因
type IneligibleReason string

const (
	ReasonGuestNotAllowed        IneligibleReason = "guest_not_allowed"
	ReasonAlreadyEnrolled        IneligibleReason = "already_enrolled"
	ReasonInstanceDisabled       IneligibleReason = "instance_disabled"
	ReasonPrerequisitesNotMetAll IneligibleReason = "prerequisites_not_met_all"
	ReasonPrerequisitesNotMetAny IneligibleReason = "prerequisites_not_met_any"
	// ReasonPasswordInvalid 仅由自助选课返回，评估本身不产生
	ReasonPasswordInvalid IneligibleReason = "password_invalid"
)

var reasonMessages = map[IneligibleReason]string{
	ReasonGuestNotAllowed:        "访客无法选课，请先登录",
	ReasonAlreadyEnrolled:        "您已选修该课程",
	ReasonInstanceDisabled:       "该选课方式已停用",
	ReasonPrerequisitesNotMetAll: "需完成以下全部先修课程后方可选课",
	ReasonPrerequisitesNotMetAny: "需至少完成以下一门先修课程后方可选课",
	ReasonPasswordInvalid:        "选课密码错误",
}

// Message 面向用户的提示文案
func (r IneligibleReason) Message() string {
	return reasonMessages[r]
}

// EligibilityInput 一次评估所需的全部输入，由调用方显式传入
type EligibilityInput struct {
	Status              model.InstanceStatus
	Aggregation         model.AggregationMode
	UserAlreadyEnrolled bool
	IsGuest             bool
	// CheckUserEnrolment 为 false 时跳过访客与已选课检查，只回答先修条件是否满足
	CheckUserEnrolment bool
	Required           []model.RequiredCourseStatus
}

// Eligibility 评估结果；Eligible 为 false 时 Reason 非空
type Eligibility struct {
	Eligible bool
	Reason   IneligibleReason
}

func eligible() Eligibility { return Eligibility{Eligible: true} }

func ineligible(r IneligibleReason) Eligibility { return Eligibility{Reason: r} }

// EvaluateEligibility 按固定顺序评估，遇到第一个不满足的检查即返回
func EvaluateEligibility(in EligibilityInput) Eligibility {
	if in.CheckUserEnrolment {
		if in.IsGuest {
			return ineligible(ReasonGuestNotAllowed)
		}
		if in.UserAlreadyEnrolled {
			return ineligible(ReasonAlreadyEnrolled)
		}
	}
	if in.Status != model.InstanceEnabled {
		return ineligible(ReasonInstanceDisabled)
	}

	allCompleted, anyCompleted := true, false
	for _, rc := range in.Required {
		if rc.Completed {
			anyCompleted = true
		} else {
			allCompleted = false
		}
	}

	switch in.Aggregation {
	case model.AggregationAll:
		if !allCompleted {
			return ineligible(ReasonPrerequisitesNotMetAll)
		}
	case model.AggregationAny:
		if !anyCompleted {
			return ineligible(ReasonPrerequisitesNotMetAny)
		}
	}
	return eligible()
}
