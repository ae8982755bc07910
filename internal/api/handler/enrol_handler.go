package handler

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/donyariesta/prerequisite/internal/dto"
	"github.com/donyariesta/prerequisite/internal/plugin"
	"github.com/donyariesta/prerequisite/internal/service"
	"github.com/donyariesta/prerequisite/pkg/response"
)

// EnrolHandler 面向学习者的选课 HTTP 处理器，按 :plugin 查找选课方式
type EnrolHandler struct {
	registry  *plugin.Registry
	exportSvc service.ExportService
}

// NewEnrolHandler 创建 EnrolHandler
func NewEnrolHandler(registry *plugin.Registry, exportSvc service.ExportService) *EnrolHandler {
	return &EnrolHandler{registry: registry, exportSvc: exportSvc}
}

// ListPlugins 列出已注册的选课方式及其能力
// GET /api/v1/enrol-plugins
func (h *EnrolHandler) ListPlugins(c *gin.Context) {
	providers := h.registry.List()
	list := make([]dto.PluginResponse, 0, len(providers))
	for _, p := range providers {
		caps := p.Capabilities()
		list = append(list, dto.PluginResponse{
			Name:                 p.Name(),
			AllowEnrol:           caps.AllowEnrol,
			AllowUnenrol:         caps.AllowUnenrol,
			CanAddInstance:       caps.CanAddInstance,
			UseStandardEditingUI: caps.UseStandardEditingUI,
			CanHideShowInstance:  caps.CanHideShowInstance,
			CanDeleteInstance:    caps.CanDeleteInstance,
		})
	}

	response.OK(c, gin.H{"list": list})
}

// CheckEligibility 评估当前用户能否通过实例选课
// GET /api/v1/enrol/:plugin/instances/:id/eligibility?check_user_enrolment=
func (h *EnrolHandler) CheckEligibility(c *gin.Context) {
	provider, err := h.registry.Lookup(c.Param("plugin"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	id, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}

	var query dto.EligibilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	checkUserEnrolment := true
	if query.CheckUserEnrolment != nil {
		checkUserEnrolment = *query.CheckUserEnrolment
	}

	resp, err := provider.CanEnrol(c.Request.Context(), id, GetIdentity(c), checkUserEnrolment)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, resp)
}

// SelfEnrol 自助选课
// POST /api/v1/enrol/:plugin/instances/:id/enrol
// 不满足条件或密码错误时返回 200 与 enrolled=false
func (h *EnrolHandler) SelfEnrol(c *gin.Context) {
	provider, err := h.registry.Lookup(c.Param("plugin"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	id, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.SelfEnrolRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	resp, err := provider.Enrol(c.Request.Context(), id, GetIdentity(c), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if resp.Enrolled {
		response.Created(c, resp)
		return
	}
	response.OK(c, resp)
}

// MyEnrolmentCalendar 下载当前用户选课有效期日历
// GET /api/v1/me/enrolments/:instance_id/calendar.ics
func (h *EnrolHandler) MyEnrolmentCalendar(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	instanceID, ok := MustGetIDParam(c, "instance_id")
	if !ok {
		return
	}

	data, filename, err := h.exportSvc.EnrolmentCalendar(c.Request.Context(), instanceID, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", data)
}
