package controller

import (
	"fmt"
	"time"

	"sa_assessment_backend/internal/service"
	"sa_assessment_backend/internal/util"
	"sa_assessment_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ContentController struct {
	Content *service.ContentService
	Storage service.StorageProvider
}

func NewContentController(content *service.ContentService, storage service.StorageProvider) *ContentController {
	return &ContentController{Content: content, Storage: storage}
}

// ImportBundle godoc
// @Summary 导入测评内容包
// @Description 上传 JSON 内容包（测评元数据 + 题目），写入文档库并刷新缓存；
// @Description 原始文件同时归档到对象存储
// @Tags 内容管理
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   file formData file true "内容包 JSON 文件"
// @Success 200 {object} util.Response{data=object} "导入成功"
// @Failure 400 {object} util.Response "内容包校验失败"
// @Failure 403 {object} util.Response "权限不足"
// @Router /api/admin/quizzes/import [post]
func (c *ContentController) ImportBundle(ctx *gin.Context) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少内容包文件")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	content, err := c.Content.ImportBundle(ctx.Request.Context(), file)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	// 归档原始文件，失败不影响导入结果
	if _, err := file.Seek(0, 0); err == nil {
		archiveName := fmt.Sprintf("bundles/%s-%d.json", content.ID, time.Now().Unix())
		if _, err := c.Storage.Upload(ctx.Request.Context(), archiveName, file, fileHeader.Size, "application/json"); err != nil {
			logger.Log.Warn("内容包归档失败",
				zap.String("quizId", content.ID),
				zap.Error(err))
		}
	}

	util.Success(ctx, gin.H{
		"quizId":        content.ID,
		"title":         content.Title,
		"questionCount": len(content.QuestionIDs),
	})
}

type ImportFromStorageRequest struct {
	Key string `json:"key" binding:"required"`
}

// ImportFromStorage godoc
// @Summary 从对象存储导入内容包
// @Description 读取对象存储中已存在的内容包并导入
// @Tags 内容管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body ImportFromStorageRequest true "对象键"
// @Success 200 {object} util.Response{data=object} "导入成功"
// @Failure 400 {object} util.Response "内容包校验失败"
// @Router /api/admin/quizzes/import-from-storage [post]
func (c *ContentController) ImportFromStorage(ctx *gin.Context) {
	var req ImportFromStorageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	reader, err := c.Storage.Open(ctx.Request.Context(), req.Key)
	if err != nil {
		util.BadRequest(ctx, "无法读取对象: "+err.Error())
		return
	}
	defer reader.Close()

	content, err := c.Content.ImportBundle(ctx.Request.Context(), reader)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	util.Success(ctx, gin.H{
		"quizId":        content.ID,
		"title":         content.Title,
		"questionCount": len(content.QuestionIDs),
	})
}
