package handler

import (
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v3"

	"alert_center/core/api/dto"
	models "alert_center/core/api/models/mongodb"
	"alert_center/core/api/services"
	"alert_center/core/common"
	"alert_center/core/escalation"
	"alert_center/core/global"
	"alert_center/core/logger"
)

// SafeHandlerWrapper bọc handler với recover, dùng cho các handler không embed BaseHandler
func SafeHandlerWrapper(c fiber.Ctx, fn func() error) error {
	defer func() {
		if r := recover(); r != nil {
			logger.GetErrorLogger().WithFields(map[string]interface{}{
				"panic": fmt.Sprintf("%v", r),
				"path":  c.Path(),
				"stack": string(debug.Stack()),
			}).Error("❌ Panic trong handler")

			HandleResponse(c, nil, common.NewError(
				common.ErrCodeInternalServer,
				fmt.Sprintf("Lỗi hệ thống không mong muốn: %v", r),
				common.StatusInternalServerError,
				nil,
			))
		}
	}()
	return fn()
}

// EscalationHandler xử lý các request của engine: submit event, ack, cancel,
// xem trạng thái run. Khác với các CRUD handler, các route này đi qua
// dispatcher và scheduler thay vì thao tác trực tiếp lên collection.
type EscalationHandler struct {
	dispatcher        *escalation.Dispatcher
	scheduler         *escalation.Scheduler
	runService        *services.EscalationRunService
	attemptService    *services.DeliveryAttemptService
	transitionService *services.RunTransitionService
}

// NewEscalationHandler tạo mới EscalationHandler với engine đã wire sẵn
func NewEscalationHandler(dispatcher *escalation.Dispatcher, scheduler *escalation.Scheduler) (*EscalationHandler, error) {
	runService, err := services.NewEscalationRunService()
	if err != nil {
		return nil, fmt.Errorf("failed to create escalation run service: %v", err)
	}
	attemptService, err := services.NewDeliveryAttemptService()
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery attempt service: %v", err)
	}
	transitionService, err := services.NewRunTransitionService()
	if err != nil {
		return nil, fmt.Errorf("failed to create run transition service: %v", err)
	}

	return &EscalationHandler{
		dispatcher:        dispatcher,
		scheduler:         scheduler,
		runService:        runService,
		attemptService:    attemptService,
		transitionService: transitionService,
	}, nil
}

// parseBody parse và validate request body bằng validator global
func (h *EscalationHandler) parseBody(c fiber.Ctx, input interface{}) error {
	if err := c.Bind().Body(input); err != nil {
		return common.NewError(common.ErrCodeValidationFormat, common.MsgValidationError, common.StatusBadRequest, err)
	}
	if err := global.Validate.Struct(input); err != nil {
		return common.NewError(common.ErrCodeValidationInput, common.MsgValidationError, common.StatusBadRequest, err)
	}
	return nil
}

// HandleSubmitEvent nhận một event, persist idempotent và định tuyến.
// Response cho biết event khớp rule nào, đã gửi tới đâu hoặc run nào đang chạy.
func (h *EscalationHandler) HandleSubmitEvent(c fiber.Ctx) error {
	return SafeHandlerWrapper(c, func() error {
		var input dto.EventSubmitInput
		if err := h.parseBody(c, &input); err != nil {
			HandleResponse(c, nil, err)
			return nil
		}

		event := models.NotificationEvent{
			EventID:  input.EventID,
			Type:     input.Type,
			Severity: input.Severity,
			Tags:     input.Tags,
			Payload:  input.Payload,
		}

		result, err := h.dispatcher.Submit(c.Context(), event)
		if err != nil {
			HandleResponse(c, nil, err)
			return nil
		}

		response := dto.SubmitResponse{
			Event:     result.Event,
			Duplicate: result.Duplicate,
			Matched:   result.Matched,
			Attempts:  result.Attempts,
			Run:       result.Run,
		}
		if !result.RuleID.IsZero() {
			response.RuleID = result.RuleID.Hex()
		}

		HandleResponse(c, response, nil)
		return nil
	})
}

// HandleAckRun acknowledge một run, dừng leo thang. Idempotent.
func (h *EscalationHandler) HandleAckRun(c fiber.Ctx) error {
	return SafeHandlerWrapper(c, func() error {
		runID, err := ParseObjectID(c.Params("runId"))
		if err != nil {
			HandleResponse(c, nil, err)
			return nil
		}

		var input dto.RunAckInput
		if err := h.parseBody(c, &input); err != nil {
			HandleResponse(c, nil, err)
			return nil
		}

		run, err := h.scheduler.Acknowledge(c.Context(), runID, input.AckedBy)
		if err != nil {
			HandleResponse(c, nil, err)
			return nil
		}

		logger.GetAuditLogger().WithFields(map[string]interface{}{
			"runId":   runID.Hex(),
			"eventId": run.EventID,
			"ackedBy": input.AckedBy,
			"state":   run.State,
		}).Info("📝 Acknowledge escalation run")

		HandleResponse(c, run, nil)
		return nil
	})
}

// HandleCancelRun hủy chủ động một run đang chạy
func (h *EscalationHandler) HandleCancelRun(c fiber.Ctx) error {
	return SafeHandlerWrapper(c, func() error {
		runID, err := ParseObjectID(c.Params("runId"))
		if err != nil {
			HandleResponse(c, nil, err)
			return nil
		}

		var input dto.RunCancelInput
		if err := h.parseBody(c, &input); err != nil {
			HandleResponse(c, nil, err)
			return nil
		}

		run, err := h.scheduler.Cancel(c.Context(), runID, input.CancelledBy)
		if err != nil {
			HandleResponse(c, nil, err)
			return nil
		}

		logger.GetAuditLogger().WithFields(map[string]interface{}{
			"runId":       runID.Hex(),
			"eventId":     run.EventID,
			"cancelledBy": input.CancelledBy,
		}).Info("📝 Hủy escalation run")

		HandleResponse(c, run, nil)
		return nil
	})
}

// HandleGetRun trả về trạng thái đầy đủ của một run kèm lịch sử attempt và transition
func (h *EscalationHandler) HandleGetRun(c fiber.Ctx) error {
	return SafeHandlerWrapper(c, func() error {
		runID, err := ParseObjectID(c.Params("runId"))
		if err != nil {
			HandleResponse(c, nil, err)
			return nil
		}

		run, err := h.runService.FindOneById(c.Context(), runID)
		if err != nil {
			HandleResponse(c, nil, err)
			return nil
		}

		attempts, err := h.attemptService.FindByRunID(c.Context(), runID)
		if err != nil {
			HandleResponse(c, nil, err)
			return nil
		}

		transitions, err := h.transitionService.FindByRunID(c.Context(), runID)
		if err != nil {
			HandleResponse(c, nil, err)
			return nil
		}

		HandleResponse(c, dto.RunSnapshot{
			Run:         run,
			Attempts:    attempts,
			Transitions: transitions,
		}, nil)
		return nil
	})
}

// HandleGetEventAttempts trả về toàn bộ attempt của một event (cả direct send)
func (h *EscalationHandler) HandleGetEventAttempts(c fiber.Ctx) error {
	return SafeHandlerWrapper(c, func() error {
		eventID := c.Params("eventId")
		if eventID == "" {
			HandleResponse(c, nil, common.NewError(
				common.ErrCodeValidationInput,
				"Thiếu eventId",
				common.StatusBadRequest,
				nil,
			))
			return nil
		}

		attempts, err := h.attemptService.FindByEventID(c.Context(), eventID)
		if err != nil {
			HandleResponse(c, nil, err)
			return nil
		}
		if attempts == nil {
			attempts = []models.DeliveryAttempt{}
		}

		HandleResponse(c, attempts, nil)
		return nil
	})
}
