package account

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.RouterGroup, handler *Handler) {
	r.GET("/me", handler.Me)
}

func RegisterAdminRoutes(r *gin.RouterGroup, handler *Handler) {
	r.DELETE("/users/:id", handler.DeleteUser)
}
