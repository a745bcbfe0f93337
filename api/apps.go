package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"release-registry/storage"
)

type createAppRequest struct {
	Name string `json:"name"`
}

func (s *Server) listApps(c *gin.Context) {
	apps, err := s.store.GetApps(c.Request.Context(), accountID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"apps": apps})
}

func (s *Server) createApp(c *gin.Context) {
	var req createAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failInvalid(c, "malformed app request: %v", err)
		return
	}
	if req.Name == "" {
		failInvalid(c, "name is required")
		return
	}

	ctx := c.Request.Context()
	duplicate, err := s.resolver.IsDuplicateApp(ctx, accountID(c), req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	if duplicate {
		fail(c, storage.NewError(storage.ErrAlreadyExists,
			"An app named %q already exists", req.Name))
		return
	}

	app, err := s.store.AddApp(ctx, accountID(c), storage.App{Name: req.Name})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"app": app})
}

func (s *Server) getApp(c *gin.Context) {
	app, err := s.resolver.ResolveApp(c.Request.Context(), accountID(c), c.Param("appName"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"app": app})
}

func (s *Server) patchApp(c *gin.Context) {
	var patch storage.AppPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		failInvalid(c, "malformed app patch: %v", err)
		return
	}
	if patch.Name.Present && (patch.Name.Null || patch.Name.Value == "") {
		failInvalid(c, "an app cannot have an empty name")
		return
	}

	ctx := c.Request.Context()
	app, err := s.resolver.ResolveApp(ctx, accountID(c), c.Param("appName"))
	if err != nil {
		fail(c, err)
		return
	}

	if patch.Name.Present && patch.Name.Value != app.Name {
		duplicate, err := s.resolver.IsDuplicateApp(ctx, accountID(c), patch.Name.Value)
		if err != nil {
			fail(c, err)
			return
		}
		if duplicate {
			fail(c, storage.NewError(storage.ErrAlreadyExists,
				"An app named %q already exists", patch.Name.Value))
			return
		}
	}

	if err := s.store.UpdateApp(ctx, accountID(c), app.ID, patch); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteApp(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := s.resolver.ResolveApp(ctx, accountID(c), c.Param("appName"))
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.store.RemoveApp(ctx, accountID(c), app.ID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) transferApp(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := s.resolver.ResolveApp(ctx, accountID(c), c.Param("appName"))
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.store.TransferApp(ctx, accountID(c), app.ID, c.Param("email")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) listCollaborators(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := s.resolver.ResolveApp(ctx, accountID(c), c.Param("appName"))
	if err != nil {
		fail(c, err)
		return
	}
	collaborators, err := s.store.GetCollaborators(ctx, accountID(c), app.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collaborators": collaborators})
}

func (s *Server) addCollaborator(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := s.resolver.ResolveApp(ctx, accountID(c), c.Param("appName"))
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.store.AddCollaborator(ctx, accountID(c), app.ID, c.Param("email")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) removeCollaborator(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := s.resolver.ResolveApp(ctx, accountID(c), c.Param("appName"))
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.store.RemoveCollaborator(ctx, accountID(c), app.ID, c.Param("email")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
