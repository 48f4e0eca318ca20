package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"mall/internal/config"
	"mall/internal/database"
	"mall/internal/handler"
	"mall/internal/middleware"
	"mall/internal/monitor"
	"mall/internal/redis"
	"mall/internal/service/bargain"
	"mall/internal/service/flashsale"
	"mall/internal/service/inventory"
	"mall/internal/service/order"
	"mall/internal/service/team"
	"mall/internal/utils"
	"mall/pkg/limiter"
)

type routerDeps struct {
	db      *gorm.DB
	redis   *goredis.Client
	cmd     goredis.Cmdable
	metrics *monitor.MetricsCollector
	tracer  *monitor.Tracer
	jwt     *utils.JWTManager

	orders    order.OrderService
	teams     team.TeamService
	bargains  bargain.BargainService
	flashSale flashsale.FlashSaleService
	inventory inventory.InventoryService
}

// newLimiter shares the window across instances through redis when available
func newLimiter(cmd goredis.Cmdable, name string, rule config.LimitRule) limiter.RateLimiter {
	if cmd != nil {
		return limiter.NewSlidingWindowLimiter(cmd, redis.Key("ratelimit", name)+":", rule.RPS*windowSeconds(rule.Window), rule.Window)
	}
	return limiter.NewTokenBucketLimiter(rate.Limit(rule.RPS), rule.Burst, rule.TTL)
}

func windowSeconds(d time.Duration) int {
	if s := int(d / time.Second); s > 1 {
		return s
	}
	return 1
}

func setupRouter(cfg *config.Config, d routerDeps) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Tracing(d.tracer))
	router.Use(middleware.Metrics(d.metrics))
	router.Use(middleware.Logger())
	if cfg.Security.CORS.Enabled {
		router.Use(middleware.CORS(cfg.Security))
	}

	router.GET("/health", healthCheck(d.db, d.redis))
	router.GET("/ping", ping)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(d.metrics.Registry(), promhttp.HandlerOpts{})))
	}

	orderHandler := handler.NewOrderHandler(d.orders)
	teamHandler := handler.NewTeamHandler(d.teams, d.orders)
	bargainHandler := handler.NewBargainHandler(d.bargains)
	flashSaleHandler := handler.NewFlashSaleHandler(d.flashSale)
	inventoryHandler := handler.NewInventoryHandler(d.inventory)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Timeout(cfg.Server.WriteTimeout))

	callbacks := v1.Group("/callbacks")
	if cfg.RateLimit.Enabled {
		callbacks.Use(middleware.RateLimit(newLimiter(d.cmd, "callback", cfg.RateLimit.Callback), middleware.KeyByIP))
	}
	callbacks.POST("/payment", orderHandler.PaymentCallback)

	authed := v1.Group("")
	if cfg.RateLimit.Enabled {
		authed.Use(middleware.RateLimit(newLimiter(d.cmd, "ip", cfg.RateLimit.PerIP), middleware.KeyByIP))
	}
	authed.Use(middleware.Auth(middleware.JWTValidator(d.jwt)))
	if cfg.RateLimit.Enabled {
		authed.Use(middleware.RateLimit(newLimiter(d.cmd, "user", cfg.RateLimit.PerUser), middleware.KeyByUser))
	}

	// buyer
	{
		authed.POST("/orders", orderHandler.CreateOrder)
		authed.GET("/orders/:code", orderHandler.GetOrder)
		authed.GET("/orders/:code/logs", orderHandler.GetOrderLogs)
		authed.POST("/orders/:code/refund", orderHandler.RequestRefund)
		authed.POST("/orders/:code/receipt", orderHandler.ConfirmReceipt)
		authed.DELETE("/orders/:code", orderHandler.DeleteOrder)

		authed.GET("/teams/:id", teamHandler.GetTeam)
		authed.POST("/teams/:id/cancel", teamHandler.CancelTeam)

		authed.POST("/bargains/:campaign_id/sessions", bargainHandler.StartSession)
		authed.GET("/bargains/sessions/:id", bargainHandler.GetSession)
		authed.POST("/bargains/sessions/:id/help", bargainHandler.Help)

		authed.GET("/flash-sale/slots/current", flashSaleHandler.CurrentSlots)
		authed.GET("/flash-sale/listings/:id/availability", flashSaleHandler.Availability)
	}

	admin := authed.Group("/admin")
	admin.Use(middleware.RequireRole(utils.RoleAdmin))
	{
		admin.GET("/orders/:code", orderHandler.AdminGetOrder)
		admin.GET("/orders/:code/logs", orderHandler.AdminGetOrderLogs)
		admin.POST("/orders/:code/ship", orderHandler.Ship)
		admin.PUT("/orders/:code/tracking", orderHandler.CorrectTracking)
		admin.PUT("/orders/:code/price", orderHandler.ChangePrice)
		admin.POST("/orders/:code/refund/approve", orderHandler.ApproveRefund)
		admin.POST("/orders/:code/refund/reject", orderHandler.RejectRefund)
		admin.POST("/orders/:code/complete", orderHandler.Complete)
		admin.DELETE("/orders/:code", orderHandler.SystemDelete)
		admin.POST("/write-off", orderHandler.WriteOff)

		admin.GET("/flash-sale/slots", flashSaleHandler.ListSlots)
		admin.POST("/flash-sale/slots", flashSaleHandler.CreateSlot)
		admin.PUT("/flash-sale/slots/:id", flashSaleHandler.UpdateSlot)
		admin.DELETE("/flash-sale/slots/:id", flashSaleHandler.DeleteSlot)
		admin.POST("/flash-sale/listings", flashSaleHandler.CreateListing)

		admin.POST("/team-campaigns", teamHandler.CreateCampaign)
		admin.POST("/bargain-campaigns", bargainHandler.CreateCampaign)

		admin.POST("/inventory/:owner_type/:owner_id/restock", inventoryHandler.Restock)
		admin.PUT("/inventory/:owner_type/:owner_id/skus", inventoryHandler.ReplaceSkus)
		admin.GET("/inventory/:owner_type/:owner_id/skus/:sku_key", inventoryHandler.GetStock)
	}

	return router
}

func healthCheck(db *gorm.DB, client *goredis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		services := map[string]interface{}{
			"database": componentHealth(database.Health(ctx, db)),
		}
		healthy := services["database"].(map[string]interface{})["healthy"].(bool)
		if client != nil {
			services["redis"] = componentHealth(redis.Health(ctx, client))
			healthy = healthy && services["redis"].(map[string]interface{})["healthy"].(bool)
		}

		health := map[string]interface{}{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
			"services":  services,
		}
		if !healthy {
			health["status"] = "error"
			c.JSON(http.StatusServiceUnavailable, health)
			return
		}
		c.JSON(http.StatusOK, health)
	}
}

func componentHealth(err error) map[string]interface{} {
	if err != nil {
		return map[string]interface{}{
			"healthy": false,
			"error":   err.Error(),
		}
	}
	return map[string]interface{}{
		"healthy": true,
		"status":  "connected",
	}
}

func ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "pong",
		"timestamp": time.Now().Unix(),
	})
}
