package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"release-registry/storage"
)

// defaultAccessKeyTTL applies when a creation request names no expiry.
const defaultAccessKeyTTL = 60 * 24 * time.Hour

func (s *Server) getAccount(c *gin.Context) {
	account, err := s.store.GetAccount(c.Request.Context(), accountID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

func (s *Server) patchAccount(c *gin.Context) {
	var patch storage.AccountPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		failInvalid(c, "malformed account patch: %v", err)
		return
	}

	ctx := c.Request.Context()
	account, err := s.store.GetAccount(ctx, accountID(c))
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.store.UpdateAccount(ctx, account.Email, patch); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createAccessKeyRequest struct {
	FriendlyName string `json:"friendlyName"`
	Description  string `json:"description"`
	// TTL is the key lifetime in milliseconds; zero selects the default.
	TTL int64 `json:"ttl"`
}

func (s *Server) listAccessKeys(c *gin.Context) {
	keys, err := s.store.GetAccessKeys(c.Request.Context(), accountID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessKeys": keys})
}

func (s *Server) createAccessKey(c *gin.Context) {
	var req createAccessKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failInvalid(c, "malformed access key request: %v", err)
		return
	}
	if req.FriendlyName == "" {
		failInvalid(c, "friendlyName is required")
		return
	}

	ctx := c.Request.Context()
	duplicate, err := s.resolver.IsDuplicateAccessKey(ctx, accountID(c), req.FriendlyName)
	if err != nil {
		fail(c, err)
		return
	}
	if duplicate {
		fail(c, storage.NewError(storage.ErrAlreadyExists,
			"An access key named %q already exists", req.FriendlyName))
		return
	}

	ttl := time.Duration(req.TTL) * time.Millisecond
	if ttl <= 0 {
		ttl = defaultAccessKeyTTL
	}
	key, err := s.store.AddAccessKey(ctx, accountID(c), storage.AccessKey{
		FriendlyName: req.FriendlyName,
		Description:  req.Description,
		Expires:      time.Now().Add(ttl).UnixMilli(),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"accessKey": key})
}

func (s *Server) getAccessKey(c *gin.Context) {
	key, err := s.resolver.ResolveAccessKey(c.Request.Context(), accountID(c), c.Param("accessKeyName"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessKey": key})
}

func (s *Server) patchAccessKey(c *gin.Context) {
	var patch storage.AccessKeyPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		failInvalid(c, "malformed access key patch: %v", err)
		return
	}

	ctx := c.Request.Context()
	key, err := s.resolver.ResolveAccessKey(ctx, accountID(c), c.Param("accessKeyName"))
	if err != nil {
		fail(c, err)
		return
	}

	if patch.FriendlyName.Present && !patch.FriendlyName.Null &&
		patch.FriendlyName.Value != key.FriendlyName {
		duplicate, err := s.resolver.IsDuplicateAccessKey(ctx, accountID(c), patch.FriendlyName.Value)
		if err != nil {
			fail(c, err)
			return
		}
		if duplicate {
			fail(c, storage.NewError(storage.ErrAlreadyExists,
				"An access key named %q already exists", patch.FriendlyName.Value))
			return
		}
	}

	if err := s.store.UpdateAccessKey(ctx, accountID(c), key.ID, patch); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteAccessKey(c *gin.Context) {
	ctx := c.Request.Context()
	key, err := s.resolver.ResolveAccessKey(ctx, accountID(c), c.Param("accessKeyName"))
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.store.RemoveAccessKey(ctx, accountID(c), key.ID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
