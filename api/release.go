package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"release-registry/storage"
)

// maxPackageSize bounds uploaded release archives.
const maxPackageSize = 200 << 20

type releaseInfo struct {
	AppVersion  string `json:"appVersion"`
	Description string `json:"description"`
	IsDisabled  bool   `json:"isDisabled"`
	IsMandatory bool   `json:"isMandatory"`
	Rollout     *int   `json:"rollout"`
}

func (ri releaseInfo) validate() error {
	if ri.AppVersion == "" {
		return storage.NewError(storage.ErrInvalid, "appVersion is required")
	}
	if ri.Rollout != nil && (*ri.Rollout < 1 || *ri.Rollout > 100) {
		return storage.NewError(storage.ErrInvalid, "rollout must be between 1 and 100")
	}
	return nil
}

// release commits a new package from a multipart upload: the archive under
// the "package" part and a JSON "packageInfo" part describing the release.
func (s *Server) release(c *gin.Context) {
	var info releaseInfo
	if raw := c.PostForm("packageInfo"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			failInvalid(c, "malformed packageInfo: %v", err)
			return
		}
	}
	if err := info.validate(); err != nil {
		fail(c, err)
		return
	}

	fileHeader, err := c.FormFile("package")
	if err != nil {
		failInvalid(c, "a package file is required")
		return
	}

	app, deployment, ok := s.resolveDeployment(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	account, err := s.store.GetAccount(ctx, accountID(c))
	if err != nil {
		fail(c, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		failInvalid(c, "unreadable package file: %v", err)
		return
	}
	defer file.Close()

	hasher := sha256.New()
	blobID := uuid.NewString()
	if err := s.store.AddBlob(ctx, blobID, io.TeeReader(file, hasher), maxPackageSize); err != nil {
		fail(c, err)
		return
	}
	blobURL, err := s.store.GetBlobURL(ctx, blobID)
	if err != nil {
		fail(c, err)
		return
	}

	pkg, err := s.store.CommitPackage(ctx, accountID(c), app.ID, deployment.ID, storage.Package{
		AppVersion:    info.AppVersion,
		BlobURL:       blobURL,
		Description:   info.Description,
		IsDisabled:    info.IsDisabled,
		IsMandatory:   info.IsMandatory,
		PackageHash:   hex.EncodeToString(hasher.Sum(nil)),
		ReleasedBy:    account.Email,
		ReleaseMethod: storage.ReleaseMethodUpload,
		Rollout:       info.Rollout,
		Size:          fileHeader.Size,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"package": pkg})
}

// promote copies the source deployment's current package into the destination
// deployment, preserving provenance. The optional JSON body overrides release
// metadata on the promoted copy.
func (s *Server) promote(c *gin.Context) {
	var overrides struct {
		AppVersion  storage.Field[string] `json:"appVersion"`
		Description storage.Field[string] `json:"description"`
		IsDisabled  storage.Field[bool]   `json:"isDisabled"`
		IsMandatory storage.Field[bool]   `json:"isMandatory"`
		Rollout     storage.Field[int]    `json:"rollout"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&overrides); err != nil {
			failInvalid(c, "malformed promote request: %v", err)
			return
		}
	}

	app, source, ok := s.resolveDeployment(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	dest, err := s.resolver.ResolveDeployment(ctx, accountID(c), app.ID, c.Param("destDeploymentName"))
	if err != nil {
		fail(c, err)
		return
	}
	if source.Package == nil {
		fail(c, storage.NewError(storage.ErrNotFound,
			"Deployment %q has no releases to promote", source.Name))
		return
	}
	account, err := s.store.GetAccount(ctx, accountID(c))
	if err != nil {
		fail(c, err)
		return
	}

	promoted := storage.ClonePackage(*source.Package)
	promoted.OriginalDeployment = source.Name
	promoted.OriginalLabel = source.Package.Label
	promoted.ReleasedBy = account.Email
	promoted.ReleaseMethod = storage.ReleaseMethodPromote
	promoted.Rollout = nil
	promoted.UploadTime = 0

	overrides.AppVersion.Apply(&promoted.AppVersion)
	overrides.Description.Apply(&promoted.Description)
	overrides.IsDisabled.Apply(&promoted.IsDisabled)
	overrides.IsMandatory.Apply(&promoted.IsMandatory)
	overrides.Rollout.ApplyPtr(&promoted.Rollout)
	if promoted.Rollout != nil && (*promoted.Rollout < 1 || *promoted.Rollout > 100) {
		failInvalid(c, "rollout must be between 1 and 100")
		return
	}

	pkg, err := s.store.CommitPackage(ctx, accountID(c), app.ID, dest.ID, promoted)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"package": pkg})
}

// rollback re-releases an earlier package from the deployment's own history:
// the entry before the current one, or the entry with the target label when
// the route names one.
func (s *Server) rollback(c *gin.Context) {
	app, deployment, ok := s.resolveDeployment(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	history, err := s.store.GetPackageHistory(ctx, accountID(c), app.ID, deployment.ID)
	if err != nil {
		fail(c, err)
		return
	}
	if len(history) == 0 {
		fail(c, storage.NewError(storage.ErrNotFound,
			"Deployment %q has no releases to roll back", deployment.Name))
		return
	}

	current := history[len(history)-1]
	var target *storage.Package
	if label := c.Param("targetRelease"); label != "" {
		if label == current.Label {
			failInvalid(c, "Cannot roll back to the current release %q", label)
			return
		}
		for i := range history {
			if history[i].Label == label {
				target = &history[i]
				break
			}
		}
		if target == nil {
			fail(c, storage.NewError(storage.ErrNotFound,
				"Release %q does not exist in deployment %q", label, deployment.Name))
			return
		}
	} else {
		if len(history) < 2 {
			failInvalid(c, "Deployment %q has no previous release to roll back to", deployment.Name)
			return
		}
		target = &history[len(history)-2]
	}

	account, err := s.store.GetAccount(ctx, accountID(c))
	if err != nil {
		fail(c, err)
		return
	}

	rolled := storage.ClonePackage(*target)
	rolled.OriginalLabel = target.Label
	rolled.ReleasedBy = account.Email
	rolled.ReleaseMethod = storage.ReleaseMethodRollback
	rolled.Rollout = nil
	rolled.UploadTime = 0

	pkg, err := s.store.CommitPackage(ctx, accountID(c), app.ID, deployment.ID, rolled)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"package": pkg})
}
