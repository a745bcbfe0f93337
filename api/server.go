package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"release-registry/registry"
	"release-registry/storage"
)

// Server exposes the registry over REST. All entity addressing on the
// authenticated surface is by name; the resolver turns names into ids before
// the storage contract is invoked.
type Server struct {
	store    storage.Storage
	resolver *registry.Resolver
}

// NewServer creates a server over the given storage backend.
func NewServer(store storage.Storage) *Server {
	return &Server{
		store:    store,
		resolver: registry.NewResolver(store),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.healthz)

	// Clients fetch history with nothing but the deployment key, so this
	// route carries no authentication.
	router.GET("/deployments/:deploymentKey/history", s.publicHistory)

	authed := router.Group("/", s.authenticate)
	{
		authed.GET("/account", s.getAccount)
		authed.PATCH("/account", s.patchAccount)

		authed.GET("/accessKeys", s.listAccessKeys)
		authed.POST("/accessKeys", s.createAccessKey)
		authed.GET("/accessKeys/:accessKeyName", s.getAccessKey)
		authed.PATCH("/accessKeys/:accessKeyName", s.patchAccessKey)
		authed.DELETE("/accessKeys/:accessKeyName", s.deleteAccessKey)

		authed.GET("/apps", s.listApps)
		authed.POST("/apps", s.createApp)
		authed.GET("/apps/:appName", s.getApp)
		authed.PATCH("/apps/:appName", s.patchApp)
		authed.DELETE("/apps/:appName", s.deleteApp)
		authed.POST("/apps/:appName/transfer/:email", s.transferApp)

		authed.GET("/apps/:appName/collaborators", s.listCollaborators)
		authed.POST("/apps/:appName/collaborators/:email", s.addCollaborator)
		authed.DELETE("/apps/:appName/collaborators/:email", s.removeCollaborator)

		authed.GET("/apps/:appName/deployments", s.listDeployments)
		authed.POST("/apps/:appName/deployments", s.createDeployment)
		authed.GET("/apps/:appName/deployments/:deploymentName", s.getDeployment)
		authed.PATCH("/apps/:appName/deployments/:deploymentName", s.patchDeployment)
		authed.DELETE("/apps/:appName/deployments/:deploymentName", s.deleteDeployment)

		authed.GET("/apps/:appName/deployments/:deploymentName/history", s.getHistory)
		authed.PUT("/apps/:appName/deployments/:deploymentName/history", s.replaceHistory)
		authed.DELETE("/apps/:appName/deployments/:deploymentName/history", s.clearHistory)

		authed.POST("/apps/:appName/deployments/:deploymentName/release", s.release)
		authed.POST("/apps/:appName/deployments/:deploymentName/promote/:destDeploymentName", s.promote)
		authed.POST("/apps/:appName/deployments/:deploymentName/rollback", s.rollback)
		authed.POST("/apps/:appName/deployments/:deploymentName/rollback/:targetRelease", s.rollback)
	}

	return router
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.store.CheckHealth(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
