package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/donyariesta/prerequisite/internal/plugin"
	"github.com/donyariesta/prerequisite/internal/service"
	pkgerrors "github.com/donyariesta/prerequisite/pkg/errors"
	"github.com/donyariesta/prerequisite/pkg/response"
)

// handleServiceError 将业务错误映射为 HTTP 状态码与业务码
func handleServiceError(c *gin.Context, err error) {
	if verr, ok := pkgerrors.AsValidationErrors(err); ok {
		response.ErrorWithData(c, http.StatusBadRequest, 10001, "参数校验失败", verr)
		return
	}

	switch {
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 10009, err.Error())
	case errors.Is(err, plugin.ErrProviderNotFound):
		response.NotFound(c, 20001, "选课方式不存在")
	case errors.Is(err, service.ErrInstanceNotFound):
		response.NotFound(c, 20002, "选课实例不存在")
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 20003, "课程不存在")
	case errors.Is(err, service.ErrNoCandidateCourses):
		response.Error(c, http.StatusUnprocessableEntity, 20004, err.Error())
	case errors.Is(err, service.ErrAlreadyEnrolled):
		response.Conflict(c, 20101, "用户已选修该课程")
	case errors.Is(err, service.ErrEnrolmentNotFound):
		response.NotFound(c, 20102, "选课记录不存在")
	default:
		response.InternalError(c)
	}
}
