package service

import (
	"context"

	"github.com/donyariesta/prerequisite/internal/dto"
	"github.com/donyariesta/prerequisite/internal/model"
	"github.com/donyariesta/prerequisite/internal/plugin"
)

// prerequisiteProvider 先修课程选课方式，向宿主注册为 plugin.Provider
type prerequisiteProvider struct {
	enrolment EnrolmentService
}

// NewPrerequisiteProvider 创建先修课程选课方式
func NewPrerequisiteProvider(enrolment EnrolmentService) plugin.Provider {
	return &prerequisiteProvider{enrolment: enrolment}
}

func (p *prerequisiteProvider) Name() string { return model.PluginName }

func (p *prerequisiteProvider) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{
		AllowEnrol:           true,
		AllowUnenrol:         true,
		CanAddInstance:       true,
		UseStandardEditingUI: true,
		CanHideShowInstance:  true,
		CanDeleteInstance:    true,
	}
}

func (p *prerequisiteProvider) CanEnrol(ctx context.Context, instanceID int64, identity plugin.Identity, checkUserEnrolment bool) (*dto.EligibilityResponse, error) {
	return p.enrolment.CheckEligibility(ctx, instanceID, identity, checkUserEnrolment)
}

func (p *prerequisiteProvider) Enrol(ctx context.Context, instanceID int64, identity plugin.Identity, req *dto.SelfEnrolRequest) (*dto.EnrolmentResponse, error) {
	return p.enrolment.SelfEnrol(ctx, instanceID, identity, req)
}
