package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"release-registry/storage"
)

type createDeploymentRequest struct {
	Name string `json:"name"`
	// Key is optional; the backend generates one when empty.
	Key string `json:"key"`
}

func (s *Server) listDeployments(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := s.resolver.ResolveApp(ctx, accountID(c), c.Param("appName"))
	if err != nil {
		fail(c, err)
		return
	}
	deployments, err := s.store.GetDeployments(ctx, accountID(c), app.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deployments": deployments})
}

func (s *Server) createDeployment(c *gin.Context) {
	var req createDeploymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failInvalid(c, "malformed deployment request: %v", err)
		return
	}
	if req.Name == "" {
		failInvalid(c, "name is required")
		return
	}

	ctx := c.Request.Context()
	app, err := s.resolver.ResolveApp(ctx, accountID(c), c.Param("appName"))
	if err != nil {
		fail(c, err)
		return
	}

	duplicate, err := s.resolver.IsDuplicateDeployment(ctx, accountID(c), app.ID, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	if duplicate {
		fail(c, storage.NewError(storage.ErrAlreadyExists,
			"A deployment named %q already exists", req.Name))
		return
	}

	deployment, err := s.store.AddDeployment(ctx, accountID(c), app.ID, storage.Deployment{
		Name: req.Name,
		Key:  req.Key,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"deployment": deployment})
}

// resolveDeployment resolves the appName/deploymentName route params into
// concrete entities.
func (s *Server) resolveDeployment(c *gin.Context) (storage.App, storage.Deployment, bool) {
	ctx := c.Request.Context()
	app, err := s.resolver.ResolveApp(ctx, accountID(c), c.Param("appName"))
	if err != nil {
		fail(c, err)
		return storage.App{}, storage.Deployment{}, false
	}
	deployment, err := s.resolver.ResolveDeployment(ctx, accountID(c), app.ID, c.Param("deploymentName"))
	if err != nil {
		fail(c, err)
		return storage.App{}, storage.Deployment{}, false
	}
	return app, deployment, true
}

func (s *Server) getDeployment(c *gin.Context) {
	_, deployment, ok := s.resolveDeployment(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"deployment": deployment})
}

func (s *Server) patchDeployment(c *gin.Context) {
	var patch storage.DeploymentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		failInvalid(c, "malformed deployment patch: %v", err)
		return
	}
	if patch.Name.Present && (patch.Name.Null || patch.Name.Value == "") {
		failInvalid(c, "a deployment cannot have an empty name")
		return
	}

	app, deployment, ok := s.resolveDeployment(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if patch.Name.Present && patch.Name.Value != deployment.Name {
		duplicate, err := s.resolver.IsDuplicateDeployment(ctx, accountID(c), app.ID, patch.Name.Value)
		if err != nil {
			fail(c, err)
			return
		}
		if duplicate {
			fail(c, storage.NewError(storage.ErrAlreadyExists,
				"A deployment named %q already exists", patch.Name.Value))
			return
		}
	}

	if err := s.store.UpdateDeployment(ctx, accountID(c), app.ID, deployment.ID, patch); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteDeployment(c *gin.Context) {
	app, deployment, ok := s.resolveDeployment(c)
	if !ok {
		return
	}
	if err := s.store.RemoveDeployment(c.Request.Context(), accountID(c), app.ID, deployment.ID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getHistory(c *gin.Context) {
	app, deployment, ok := s.resolveDeployment(c)
	if !ok {
		return
	}
	history, err := s.store.GetPackageHistory(c.Request.Context(), accountID(c), app.ID, deployment.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (s *Server) replaceHistory(c *gin.Context) {
	var history []storage.Package
	if err := c.ShouldBindJSON(&history); err != nil {
		failInvalid(c, "malformed package history: %v", err)
		return
	}

	app, deployment, ok := s.resolveDeployment(c)
	if !ok {
		return
	}
	if err := s.store.UpdatePackageHistory(c.Request.Context(), accountID(c), app.ID, deployment.ID, history); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) clearHistory(c *gin.Context) {
	app, deployment, ok := s.resolveDeployment(c)
	if !ok {
		return
	}
	if err := s.store.ClearPackageHistory(c.Request.Context(), accountID(c), app.ID, deployment.ID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// publicHistory serves history by deployment key alone, for update clients
// that never hold an account credential.
func (s *Server) publicHistory(c *gin.Context) {
	history, err := s.store.GetPackageHistoryFromDeploymentKey(c.Request.Context(), c.Param("deploymentKey"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}
