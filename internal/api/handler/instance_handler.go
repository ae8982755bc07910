package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/donyariesta/prerequisite/internal/dto"
	"github.com/donyariesta/prerequisite/internal/plugin"
	"github.com/donyariesta/prerequisite/internal/service"
	"github.com/donyariesta/prerequisite/pkg/response"
)

// InstanceHandler 先修选课实例管理 HTTP 处理器
type InstanceHandler struct {
	instanceSvc  service.InstanceService
	enrolmentSvc service.EnrolmentService
	exportSvc    service.ExportService
	caps         plugin.Capabilities
}

// NewInstanceHandler 创建 InstanceHandler
func NewInstanceHandler(
	instanceSvc service.InstanceService,
	enrolmentSvc service.EnrolmentService,
	exportSvc service.ExportService,
	caps plugin.Capabilities,
) *InstanceHandler {
	return &InstanceHandler{
		instanceSvc:  instanceSvc,
		enrolmentSvc: enrolmentSvc,
		exportSvc:    exportSvc,
		caps:         caps,
	}
}

// requireCapability 选课方式未声明该能力时写入 403
func requireCapability(c *gin.Context, allowed bool) bool {
	if !allowed {
		response.Forbidden(c, 10003, "该选课方式不支持此操作")
		return false
	}
	return true
}

// ListInstances 列出课程下的先修选课实例
// GET /api/v1/admin/courses/:course_id/prerequisite-instances
func (h *InstanceHandler) ListInstances(c *gin.Context) {
	courseID, ok := MustGetIDParam(c, "course_id")
	if !ok {
		return
	}

	list, err := h.instanceSvc.List(c.Request.Context(), courseID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// CandidateCourses 实例配置表单的候选先修课程
// GET /api/v1/admin/courses/:course_id/prerequisite-candidates?instance_id=
func (h *InstanceHandler) CandidateCourses(c *gin.Context) {
	courseID, ok := MustGetIDParam(c, "course_id")
	if !ok {
		return
	}

	var query struct {
		InstanceID int64 `form:"instance_id" binding:"omitempty,min=1"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	resp, err := h.instanceSvc.CandidateCourses(c.Request.Context(), courseID, query.InstanceID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, resp)
}

// CreateInstance 创建先修选课实例
// POST /api/v1/admin/courses/:course_id/prerequisite-instances
func (h *InstanceHandler) CreateInstance(c *gin.Context) {
	if !requireCapability(c, h.caps.CanAddInstance) {
		return
	}
	courseID, ok := MustGetIDParam(c, "course_id")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.InstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	inst, err := h.instanceSvc.Add(c.Request.Context(), courseID, &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, inst)
}

// GetInstance 获取实例详情
// GET /api/v1/admin/prerequisite-instances/:id
func (h *InstanceHandler) GetInstance(c *gin.Context) {
	id, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}

	inst, err := h.instanceSvc.Get(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, inst)
}

// UpdateInstance 编辑实例（全量替换先修课程）
// PUT /api/v1/admin/prerequisite-instances/:id
func (h *InstanceHandler) UpdateInstance(c *gin.Context) {
	id, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.InstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	inst, err := h.instanceSvc.Update(c.Request.Context(), id, &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, inst)
}

// UpdateStatus 启用/停用实例
// PUT /api/v1/admin/prerequisite-instances/:id/status
func (h *InstanceHandler) UpdateStatus(c *gin.Context) {
	if !requireCapability(c, h.caps.CanHideShowInstance) {
		return
	}
	id, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateInstanceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	inst, err := h.instanceSvc.SetStatus(c.Request.Context(), id, *req.Enabled, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, inst)
}

// DeleteInstance 删除实例及其映射与选课记录
// DELETE /api/v1/admin/prerequisite-instances/:id
func (h *InstanceHandler) DeleteInstance(c *gin.Context) {
	if !requireCapability(c, h.caps.CanDeleteInstance) {
		return
	}
	id, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.instanceSvc.Delete(c.Request.Context(), id); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListEnrolments 列出实例的选课记录
// GET /api/v1/admin/prerequisite-instances/:id/enrolments
func (h *InstanceHandler) ListEnrolments(c *gin.Context) {
	id, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}

	list, err := h.enrolmentSvc.ListEnrolments(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// EnrolUser 管理员手动选课
// POST /api/v1/admin/prerequisite-instances/:id/enrolments
func (h *InstanceHandler) EnrolUser(c *gin.Context) {
	if !requireCapability(c, h.caps.AllowEnrol) {
		return
	}
	id, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.ManualEnrolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	ue, err := h.enrolmentSvc.EnrolUser(c.Request.Context(), id, req.UserID, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, ue)
}

// Unenrol 管理员退课
// DELETE /api/v1/admin/prerequisite-instances/:id/enrolments/:user_id
func (h *InstanceHandler) Unenrol(c *gin.Context) {
	if !requireCapability(c, h.caps.AllowUnenrol) {
		return
	}
	id, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := MustGetIDParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.enrolmentSvc.Unenrol(c.Request.Context(), id, userID); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// ExportInstance 导出实例先修课程与选课记录
// GET /api/v1/admin/prerequisite-instances/:id/export
func (h *InstanceHandler) ExportInstance(c *gin.Context) {
	id, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportInstance(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, xlsxType, buf.Bytes())
}
