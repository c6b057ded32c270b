package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jobboard/internal/app"
	"jobboard/internal/domain/account"
	"jobboard/internal/domain/upload"
	"jobboard/internal/middleware"
	jwtsvc "jobboard/internal/pkg/jwt"
	"jobboard/internal/pkg/response"
	"jobboard/internal/storage"
)

func newRouter(a *app.App, j *jwtsvc.Service) *gin.Engine {
	cfg := a.Config
	uploadHandler := upload.NewHandler(a.Uploads, cfg.Upload.MultipartMemory)
	accountHandler := account.NewHandler(a.Accounts)

	r := gin.New()
	r.MaxMultipartMemory = cfg.Upload.MultipartMemory
	r.Use(middleware.RequestID(), middleware.ErrorLogger(), middleware.RequestLogger(), middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok", "storage": a.Blobs.Provider()})
	})

	if local, ok := a.Blobs.(*storage.LocalStore); ok {
		r.Static(cfg.Storage.PublicPrefix, local.BasePath())
	}

	v1 := r.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(middleware.JWTAuth(j))
	{
		upload.RegisterRoutes(protected, uploadHandler)
		account.RegisterRoutes(protected, accountHandler)

		admin := protected.Group("/admin")
		admin.Use(middleware.AdminOnly())
		upload.RegisterAdminRoutes(admin, uploadHandler)
		account.RegisterAdminRoutes(admin, accountHandler)
	}

	return r
}
