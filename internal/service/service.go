package service

import (
	"go.uber.org/zap"

	"github.com/donyariesta/prerequisite/config"
	"github.com/donyariesta/prerequisite/internal/plugin"
	"github.com/donyariesta/prerequisite/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Instance  InstanceService
	Enrolment EnrolmentService
	Export    ExportService
	// Plugins 已注册的选课方式，HTTP 层按名称查找
	Plugins *plugin.Registry
}

// NewService 创建 Service 聚合并注册先修课程选课方式
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	logger *zap.Logger,
) (*Service, error) {
	enrolment := NewEnrolmentService(repo, logger)

	registry := plugin.NewRegistry()
	if err := registry.Register(NewPrerequisiteProvider(enrolment)); err != nil {
		return nil, err
	}

	return &Service{
		Instance:  NewInstanceService(&cfg.Enrol, repo, NewMinLengthPolicy(cfg.Enrol.PasswordMinLength), logger),
		Enrolment: enrolment,
		Export:    NewExportService(repo, logger),
		Plugins:   registry,
	}, nil
}
