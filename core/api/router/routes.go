package router

import (
	"fmt"

	"alert_center/core/api/handler"
	"alert_center/core/escalation"

	"github.com/gofiber/fiber/v3"
)

// ============================================================================
// ⚠️ QUAN TRỌNG: BUG FIBER V3 - CÁCH ĐĂNG KÝ MIDDLEWARE
// ============================================================================
//
// Fiber v3 có BUG với cách đăng ký middleware trực tiếp trong route:
// middleware sẽ KHÔNG được gọi nếu truyền trực tiếp vào router.Get/Post/...
//
// ❌ CÁCH SAI:  router.Get("/path", someMiddleware, handler)
// ✅ CÁCH ĐÚNG: registerRouteWithMiddleware(router, "/prefix", "GET", "/path",
//               []fiber.Handler{someMiddleware}, handler)
//               → middleware được gắn qua .Use() trên group, hoạt động đúng.
//
// Nếu thêm route mới có middleware riêng, PHẢI dùng registerRouteWithMiddleware.
// ============================================================================

// CONFIGS

// CRUDHandler định nghĩa interface cho các handler CRUD
type CRUDHandler interface {
	// Create
	InsertOne(c fiber.Ctx) error

	// Read
	Find(c fiber.Ctx) error
	FindOneById(c fiber.Ctx) error
	FindWithPagination(c fiber.Ctx) error

	// Update
	UpdateById(c fiber.Ctx) error

	// Delete
	DeleteById(c fiber.Ctx) error

	// Other
	CountDocuments(c fiber.Ctx) error
}

// Router quản lý việc định tuyến cho API
type Router struct {
	app *fiber.App
}

// CRUDConfig cấu hình các operation được phép cho mỗi collection
type CRUDConfig struct {
	// Create
	InsOne bool // Insert One

	// Read
	Find     bool // Find All
	FindById bool // Find By Id
	Paginate bool // Find With Pagination

	// Update
	UpdById bool // Update By Id

	// Delete
	DelById bool // Delete By Id

	// Other
	Count bool // Count Documents
}

// Config cho từng collection
var (
	readWriteConfig = CRUDConfig{
		InsOne: true,
		Find:   true, FindById: true, Paginate: true,
		UpdById: true,
		DelById: true,
		Count:   true,
	}

	// Delivery Module Collections
	deliveryChannelConfig = readWriteConfig
	deliveryRuleConfig    = readWriteConfig

	// Escalation Module Collections
	escalationChainConfig = readWriteConfig
)

// RoutePrefix chứa các prefix cơ bản cho API
type RoutePrefix struct {
	Base string // Prefix cơ bản (/api)
	V1   string // Prefix cho API version 1 (/api/v1)
}

// NewRoutePrefix tạo mới một instance của RoutePrefix với các giá trị mặc định
func NewRoutePrefix() RoutePrefix {
	base := "/api"
	return RoutePrefix{
		Base: base,
		V1:   base + "/v1",
	}
}

// NewRouter tạo mới một instance của Router
func NewRouter(app *fiber.App) *Router {
	return &Router{
		app: app,
	}
}

// registerRouteWithMiddleware đăng ký route với middleware sử dụng .Use() method (cách đúng theo Fiber v3)
//
// ⚠️ QUAN TRỌNG: Đây là cách duy nhất hoạt động đúng trong Fiber v3!
// Middleware truyền trực tiếp vào router.Get/Post/... sẽ KHÔNG được gọi.
func registerRouteWithMiddleware(router fiber.Router, prefix string, method string, path string, middlewares []fiber.Handler, handler fiber.Handler) {
	// Tạo group với prefix, middleware sẽ chỉ áp dụng cho routes trong group này
	routeGroup := router.Group(prefix)
	for _, mw := range middlewares {
		routeGroup.Use(mw)
	}

	// Đăng ký route với path tương đối (không có prefix vì đã có trong group)
	switch method {
	case "GET":
		routeGroup.Get(path, handler)
	case "POST":
		routeGroup.Post(path, handler)
	case "PUT":
		routeGroup.Put(path, handler)
	case "DELETE":
		routeGroup.Delete(path, handler)
	}
}

// registerCRUDRoutes đăng ký các route CRUD cho một collection
func (r *Router) registerCRUDRoutes(router fiber.Router, prefix string, h CRUDHandler, config CRUDConfig) {
	// Create operations
	if config.InsOne {
		registerRouteWithMiddleware(router, prefix, "POST", "/insert-one", nil, h.InsertOne)
	}

	// Read operations
	if config.Find {
		registerRouteWithMiddleware(router, prefix, "GET", "/find", nil, h.Find)
	}
	if config.FindById {
		registerRouteWithMiddleware(router, prefix, "GET", "/find-by-id/:id", nil, h.FindOneById)
	}
	if config.Paginate {
		registerRouteWithMiddleware(router, prefix, "GET", "/find-with-pagination", nil, h.FindWithPagination)
	}

	// Update operations
	if config.UpdById {
		registerRouteWithMiddleware(router, prefix, "PUT", "/update-by-id/:id", nil, h.UpdateById)
	}

	// Delete operations
	if config.DelById {
		registerRouteWithMiddleware(router, prefix, "DELETE", "/delete-by-id/:id", nil, h.DeleteById)
	}

	// Other operations
	if config.Count {
		registerRouteWithMiddleware(router, prefix, "GET", "/count", nil, h.CountDocuments)
	}
}

// CÁC HÀM ĐĂNG KÝ ROUTES

// registerDeliveryRoutes đăng ký các route cho Delivery Module
func (r *Router) registerDeliveryRoutes(router fiber.Router) error {
	// Delivery Channel routes
	channelHandler, err := handler.NewDeliveryChannelHandler()
	if err != nil {
		return fmt.Errorf("failed to create delivery channel handler: %v", err)
	}
	r.registerCRUDRoutes(router, "/channels", channelHandler, deliveryChannelConfig)

	// Delivery Rule routes
	ruleHandler, err := handler.NewDeliveryRuleHandler()
	if err != nil {
		return fmt.Errorf("failed to create delivery rule handler: %v", err)
	}
	r.registerCRUDRoutes(router, "/rules", ruleHandler, deliveryRuleConfig)

	return nil
}

// registerEscalationRoutes đăng ký các route cho Escalation Module
func (r *Router) registerEscalationRoutes(router fiber.Router, dispatcher *escalation.Dispatcher, scheduler *escalation.Scheduler) error {
	// Escalation Chain routes (CRUD)
	chainHandler, err := handler.NewEscalationChainHandler()
	if err != nil {
		return fmt.Errorf("failed to create escalation chain handler: %v", err)
	}
	r.registerCRUDRoutes(router, "/chains", chainHandler, escalationChainConfig)

	// Engine routes: nạp event, ack/cancel run, tra cứu run và lịch sử gửi
	escalationHandler, err := handler.NewEscalationHandler(dispatcher, scheduler)
	if err != nil {
		return fmt.Errorf("failed to create escalation handler: %v", err)
	}
	registerRouteWithMiddleware(router, "/events", "POST", "/", nil, escalationHandler.HandleSubmitEvent)
	registerRouteWithMiddleware(router, "/events", "GET", "/:eventId/attempts", nil, escalationHandler.HandleGetEventAttempts)
	registerRouteWithMiddleware(router, "/runs", "POST", "/:runId/ack", nil, escalationHandler.HandleAckRun)
	registerRouteWithMiddleware(router, "/runs", "POST", "/:runId/cancel", nil, escalationHandler.HandleCancelRun)
	registerRouteWithMiddleware(router, "/runs", "GET", "/:runId", nil, escalationHandler.HandleGetRun)

	return nil
}

// SetupRoutes thiết lập tất cả các route cho ứng dụng
func SetupRoutes(app *fiber.App, dispatcher *escalation.Dispatcher, scheduler *escalation.Scheduler) error {
	// Khởi tạo route prefix
	prefix := NewRoutePrefix()
	v1 := app.Group(prefix.V1)

	// Khởi tạo router
	router := NewRouter(app)

	// Health check (public, không qua middleware)
	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 1. Delivery Routes
	if err := router.registerDeliveryRoutes(v1); err != nil {
		return fmt.Errorf("failed to register delivery routes: %v", err)
	}

	// 2. Escalation Routes
	if err := router.registerEscalationRoutes(v1, dispatcher, scheduler); err != nil {
		return fmt.Errorf("failed to register escalation routes: %v", err)
	}

	return nil
}
