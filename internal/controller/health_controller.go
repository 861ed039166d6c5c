package controller

import (
	"context"
	"net/http"
	"time"

	"sa_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/gorm"
)

type HealthController struct {
	DB    *gorm.DB
	Mongo *mongo.Database
	Redis *redis.Client
}

func NewHealthController(db *gorm.DB, mongoDB *mongo.Database, rdb *redis.Client) *HealthController {
	return &HealthController{DB: db, Mongo: mongoDB, Redis: rdb}
}

// @Summary 健康检查
// @Description 检查关系库、文档库与缓存连接状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	components := gin.H{}
	healthy := true

	sqlDB, err := c.DB.DB()
	if err != nil || sqlDB.PingContext(checkCtx) != nil {
		components["database"] = "down"
		healthy = false
	} else {
		components["database"] = "up"
	}

	if err := c.Mongo.Client().Ping(checkCtx, readpref.Primary()); err != nil {
		components["mongo"] = "down"
		healthy = false
	} else {
		components["mongo"] = "up"
	}

	if err := c.Redis.Ping(checkCtx).Err(); err != nil {
		components["redis"] = "down"
		healthy = false
	} else {
		components["redis"] = "up"
	}

	if !healthy {
		util.Error(ctx, http.StatusServiceUnavailable, "dependency unavailable")
		return
	}

	util.Success(ctx, gin.H{
		"status":     "ok",
		"components": components,
	})
}
