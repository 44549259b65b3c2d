package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/domain"
)

func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Validation(apperr.CodeInvalidArgument, "invalid %s", name)
	}
	return id, nil
}

func pageQuery(c *gin.Context) domain.Page {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return domain.Page{Number: page, Size: size}.Normalize()
}

// statusesQuery 逗号分隔的投资状态
func statusesQuery(c *gin.Context) ([]domain.InvestmentStatus, error) {
	raw := strings.TrimSpace(c.Query("status"))
	if raw == "" {
		return nil, nil
	}
	return domain.ParseInvestmentStatuses(strings.Split(raw, ","))
}
