package upload

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the owner's file routes. r must be behind JWTAuth.
func RegisterRoutes(r *gin.RouterGroup, handler *Handler) {
	files := r.Group("/files")
	{
		files.GET("", handler.ListFiles)
		files.POST("", handler.UploadFile)
		files.POST("/batch", handler.UploadBatch)
		files.PATCH("/name", handler.RenameFile)
		files.DELETE("", handler.DeleteFile)
	}
}

// RegisterAdminRoutes registers operator routes. r must be admin only.
func RegisterAdminRoutes(r *gin.RouterGroup, handler *Handler) {
	r.DELETE("/owners/:id/files", handler.PurgeOwner)
}
