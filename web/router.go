package web

import (
	"context"
	"fmt"
	"time"

	"go-mpesa/web/controllers"
	"go-mpesa/web/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Handler *controllers.Handler
	Logger  *zap.Logger

	JWTSecret          string
	CallbackSecret     string
	CallbackAllowedIPs []string
	CORSOrigins        []string
	TrustedProxies     []string
	RateLimit          int
	RateWindow         time.Duration
}

// NewRouter mounts the /payments routes. ctx bounds the rate limiter's
// cleanup goroutine. Client addresses come from the socket unless the peer
// is one of cfg.TrustedProxies.
func NewRouter(ctx context.Context, cfg RouterConfig) (*gin.Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery(), middleware.Logger(cfg.Logger))

	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	corsCfg.AddAllowHeaders("Authorization")
	r.Use(cors.New(corsCfg))

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	limiter.StartCleanup(ctx, 10*time.Minute)
	auth := middleware.NewAuth(cfg.JWTSecret)
	h := cfg.Handler

	payments := r.Group("/payments")
	payments.POST("/initiate", limiter.Middleware(), auth.OptionalAuth(), h.Initiate)
	payments.POST("/callback", middleware.CallbackAuth(cfg.CallbackSecret, cfg.CallbackAllowedIPs, cfg.Logger), h.Callback)
	payments.GET("/history/:phone", h.History)
	payments.GET("/status/:checkoutRequestId", h.Status)
	payments.GET("/receipt/:checkoutRequestId", h.Receipt)
	payments.GET("/admin", auth.RequireAdmin(), h.AdminList)
	payments.GET("/health", h.Health)

	return r, nil
}
