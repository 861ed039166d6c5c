// 手动导入测评内容包脚本
//
// 内容包为 JSON 文件：测评元数据（分类、等级、作答设置）加题目列表。
// 导入会覆盖同 ID 的既有内容并清空题库缓存。
//
// 用法: go run scripts/import_quiz.go path/to/bundle.json

package main

import (
	"context"
	"log"
	"os"

	"sa_assessment_backend/internal/config"
	"sa_assessment_backend/internal/repository"
	"sa_assessment_backend/internal/service"
	"sa_assessment_backend/pkg/database"
	"sa_assessment_backend/pkg/logger"

	"gopkg.in/yaml.v3"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("用法: go run scripts/import_quiz.go path/to/bundle.json")
	}
	bundlePath := os.Args[1]

	data, err := os.ReadFile("configs/config.yaml")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	logger.InitLogger(&cfg)

	mongoDB, err := database.InitMongo(&cfg.Mongo)
	if err != nil {
		log.Fatalf("MongoDB 连接失败: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Redis 连接失败: %v", err)
	}

	content := service.NewContentService(
		repository.NewQuizContentRepository(mongoDB),
		repository.NewQuestionRepository(mongoDB),
		rdb,
		&cfg,
	)

	f, err := os.Open(bundlePath)
	if err != nil {
		log.Fatalf("无法打开内容包: %v", err)
	}
	defer f.Close()

	quiz, err := content.ImportBundle(context.Background(), f)
	if err != nil {
		log.Fatalf("导入失败: %v", err)
	}

	log.Printf("导入完成: %s（%d 道题）", quiz.ID, len(quiz.QuestionIDs))
}
