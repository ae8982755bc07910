package handler

import (
	"github.com/donyariesta/prerequisite/internal/model"
	"github.com/donyariesta/prerequisite/internal/plugin"
	"github.com/donyariesta/prerequisite/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Instance *InstanceHandler
	Enrol    *EnrolHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	// 实例管理接口按先修课程选课方式声明的能力开放
	var caps plugin.Capabilities
	if p, err := svc.Plugins.Lookup(model.PluginName); err == nil {
		caps = p.Capabilities()
	}

	return &Handler{
		Instance: NewInstanceHandler(svc.Instance, svc.Enrolment, svc.Export, caps),
		Enrol:    NewEnrolHandler(svc.Plugins, svc.Export),
	}
}
