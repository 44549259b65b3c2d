package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/logger"
)

// Response 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data"`
}

// Pagination 分页信息结构
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"page_size"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"total_page"`
}

func newPagination(page, size int, total int64) Pagination {
	p := Pagination{Page: page, PageSize: size, Total: total}
	if size > 0 {
		p.TotalPage = (total + int64(size) - 1) / int64(size)
	}
	return p
}

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, code apperr.Code, message string) {
	c.AbortWithStatusJSON(statusCode, Response{
		Success: false,
		Message: message,
		Code:    string(code),
		Data:    nil,
	})
}

// respondError 按错误类别映射状态码
func respondError(c *gin.Context, err error) {
	status := apperr.KindOf(err).HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	ErrorResponse(c, status, apperr.CodeOf(err), apperr.MessageOf(err))
}

// bindError 请求体解析失败
func bindError(c *gin.Context, err error) {
	ErrorResponse(c, http.StatusBadRequest, apperr.CodeInvalidArgument, "invalid request body: "+err.Error())
}
