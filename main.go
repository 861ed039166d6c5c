// @title SA Assessment 后端 API
// @version 1.0
// @description 系统分析师能力测评与个性化建议服务。

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"flag"
	"log"

	"sa_assessment_backend/internal/app"
	"sa_assessment_backend/internal/config"
	"sa_assessment_backend/pkg/configwatcher"
	"sa_assessment_backend/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs", "配置文件目录")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// 配置热更新：重载后通知已注册的回调
	go configwatcher.WatchConfig(*configPath, func(newCfg *config.Config) {
		*application.Config = *newCfg
		for _, cb := range application.ConfigCallbacks() {
			cb(newCfg)
		}
	})

	application.Run()
}
