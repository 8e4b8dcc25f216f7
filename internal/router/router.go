package router

import (
	"time"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, mailCB *infra.CircuitBreaker, dispatcher *worker.Dispatcher) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigin))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(rdb, "api", 1000, time.Minute))

	// ── Repositories ─────────────────────────────────────────────────────────
	productRepo := repository.NewProductRepository(db)
	stockRepo := repository.NewStockRepository(db)
	cartRepo := repository.NewCartRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	ledger := service.NewStockLedger(stockRepo, rdb)
	coordinator := service.NewReservationCoordinator(ledger, cartRepo, productRepo)

	cartSvc := service.NewCartService(cartRepo, coordinator)
	orderSvc := service.NewOrderService(orderRepo, cartRepo, ledger, service.ShippingPolicy{
		FlatFee:       decimal.NewFromFloat(cfg.ShippingFlatFee),
		FreeThreshold: decimal.NewFromFloat(cfg.FreeShippingThreshold),
	}, dispatcher)
	inventorySvc := service.NewInventoryService(ledger, stockRepo, productRepo, rdb,
		int64(cfg.LowStockThreshold), time.Duration(cfg.StockCacheTTLSeconds)*time.Second)

	// ── Handlers ─────────────────────────────────────────────────────────────
	cartH := handler.NewCartHandler(cartSvc)
	ordersH := handler.NewOrdersHandler(orderSvc)
	inventoryH := handler.NewInventoryHandler(inventorySvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, mailCB))
	r.GET("/v1/stock/:productId", inventoryH.Availability)

	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		// Cart writes move reservations; keep a tighter per-user limit.
		cart := v1.Group("/cart")
		{
			cartWrites := middleware.RateLimiter(rdb, "cart", 120, time.Minute)
			cart.GET("", cartH.Get)
			cart.DELETE("", cartWrites, cartH.Clear)
			cart.POST("/items", cartWrites, cartH.AddItem)
			cart.PATCH("/items/:itemId", cartWrites, cartH.UpdateItem)
			cart.DELETE("/items/:itemId", cartWrites, cartH.RemoveItem)
		}

		orders := v1.Group("/orders")
		{
			orders.POST("", ordersH.Checkout)
			orders.GET("", ordersH.ListMine)
			orders.GET("/:id", ordersH.GetMine)
		}

		inv := v1.Group("/inventario", middleware.RequireRole(middleware.RoleAdmin))
		{
			inv.POST("/restock", inventoryH.Restock)
			inv.POST("/write-off", inventoryH.WriteOff)
			inv.GET("/movimientos", inventoryH.ListLog)
			inv.GET("/alertas", inventoryH.Alerts)
		}

		admin := v1.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
		{
			admin.GET("/orders", ordersH.List)
			admin.PATCH("/orders/:id/status", ordersH.UpdateStatus)
		}
	}

	// Swagger UI, only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
