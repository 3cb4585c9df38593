package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
	"go.mongodb.org/mongo-driver/bson"

	"alert_center/core/api/dto"
	models "alert_center/core/api/models/mongodb"
	"alert_center/core/api/services"
	"alert_center/core/common"
)

// EscalationChainHandler xử lý các request liên quan đến Escalation Chain
type EscalationChainHandler struct {
	BaseHandler[models.EscalationChain, dto.EscalationChainCreateInput, dto.EscalationChainUpdateInput]
	chainService *services.EscalationChainService
	ruleService  *services.DeliveryRuleService
	runService   *services.EscalationRunService
}

// NewEscalationChainHandler tạo mới EscalationChainHandler
func NewEscalationChainHandler() (*EscalationChainHandler, error) {
	chainService, err := services.NewEscalationChainService()
	if err != nil {
		return nil, fmt.Errorf("failed to create escalation chain service: %v", err)
	}
	ruleService, err := services.NewDeliveryRuleService()
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery rule service: %v", err)
	}
	runService, err := services.NewEscalationRunService()
	if err != nil {
		return nil, fmt.Errorf("failed to create escalation run service: %v", err)
	}

	baseHandler := NewBaseHandler[models.EscalationChain, dto.EscalationChainCreateInput, dto.EscalationChainUpdateInput](chainService)
	return &EscalationChainHandler{
		BaseHandler:  *baseHandler,
		chainService: chainService,
		ruleService:  ruleService,
		runService:   runService,
	}, nil
}

// DeleteById override để chặn xóa chain đang được rule tham chiếu
// hoặc đang có run chưa kết thúc
func (h *EscalationChainHandler) DeleteById(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		id, err := h.GetObjectIDFromContext(c)
		if err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}

		ruleCount, err := h.ruleService.CountDocuments(c.Context(), bson.M{"target.chainId": id})
		if err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}
		if ruleCount > 0 {
			h.HandleResponse(c, nil, common.NewError(
				common.ErrCodeBusiness,
				fmt.Sprintf("Chain đang được %d rule tham chiếu, không thể xóa", ruleCount),
				common.StatusConflict,
				nil,
			))
			return nil
		}

		runCount, err := h.runService.CountDocuments(c.Context(), bson.M{
			"chainId": id,
			"state":   bson.M{"$in": models.NonTerminalRunStates},
		})
		if err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}
		if runCount > 0 {
			h.HandleResponse(c, nil, common.NewError(
				common.ErrCodeBusinessState,
				fmt.Sprintf("Chain đang có %d run chưa kết thúc, không thể xóa", runCount),
				common.StatusConflict,
				nil,
			))
			return nil
		}

		err = h.chainService.DeleteById(c.Context(), id)
		h.HandleResponse(c, nil, err)
		return nil
	})
}
