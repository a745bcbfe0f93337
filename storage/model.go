package storage

// Permission is the access level a collaborator holds on an app.
type Permission string

const (
	PermissionOwner        Permission = "Owner"
	PermissionCollaborator Permission = "Collaborator"
)

// ReleaseMethod records how a package entered a deployment's history.
type ReleaseMethod string

const (
	ReleaseMethodUpload   ReleaseMethod = "Upload"
	ReleaseMethodPromote  ReleaseMethod = "Promote"
	ReleaseMethodRollback ReleaseMethod = "Rollback"
)

// Account is a registered user of the registry. Email is the case-insensitive
// lookup key; ID is assigned by the storage backend and immutable.
type Account struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	GitHubID    string `json:"gitHubId,omitempty"`
	MicrosoftID string `json:"microsoftId,omitempty"`
	CreatedTime int64  `json:"createdTime"`
}

// CollaboratorEntry describes one account's access to an app. IsCurrentAccount
// is a view-time annotation for the calling account's own entry and is never
// persisted.
type CollaboratorEntry struct {
	AccountID        string     `json:"accountId"`
	Permission       Permission `json:"permission"`
	IsCurrentAccount bool       `json:"isCurrentAccount,omitempty"`
}

// App is a release target. Names are only unique per owner, so lookups by name
// go through the resolver. Collaborators is keyed by account email and holds
// exactly one Owner entry at all times.
type App struct {
	ID            string                       `json:"id"`
	Name          string                       `json:"name"`
	CreatedTime   int64                        `json:"createdTime"`
	Collaborators map[string]CollaboratorEntry `json:"collaborators"`
}

// Deployment is a named release channel of an app. Key is an opaque, globally
// unique token clients use to fetch package history without an account/app
// path. Package is the currently served release, the last entry of the
// deployment's package history.
type Deployment struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Key         string   `json:"key"`
	Package     *Package `json:"package,omitempty"`
	CreatedTime int64    `json:"createdTime"`
}

// DeploymentInfo locates a deployment from its client-facing key.
type DeploymentInfo struct {
	AppID        string `json:"appId"`
	DeploymentID string `json:"deploymentId"`
}

// Package is an immutable release artifact. Label is assigned at commit time
// as "v" plus the 1-based position in the deployment's history. Rollout may
// only be non-nil on the last history entry. OriginalDeployment and
// OriginalLabel trace provenance for promoted and rolled-back releases.
type Package struct {
	AppVersion         string        `json:"appVersion"`
	BlobURL            string        `json:"blobUrl"`
	Description        string        `json:"description,omitempty"`
	IsDisabled         bool          `json:"isDisabled"`
	IsMandatory        bool          `json:"isMandatory"`
	Label              string        `json:"label,omitempty"`
	ManifestBlobURL    string        `json:"manifestBlobUrl,omitempty"`
	OriginalDeployment string        `json:"originalDeployment,omitempty"`
	OriginalLabel      string        `json:"originalLabel,omitempty"`
	PackageHash        string        `json:"packageHash"`
	ReleasedBy         string        `json:"releasedBy,omitempty"`
	ReleaseMethod      ReleaseMethod `json:"releaseMethod,omitempty"`
	Rollout            *int          `json:"rollout,omitempty"`
	Size               int64         `json:"size"`
	UploadTime         int64         `json:"uploadTime"`
}

// AccessKey is a bearer credential owned by one account. Name is the opaque
// token used for lookup; FriendlyName is the human-facing display name.
type AccessKey struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	FriendlyName string `json:"friendlyName"`
	Description  string `json:"description,omitempty"`
	CreatedBy    string `json:"createdBy"`
	CreatedTime  int64  `json:"createdTime"`
	Expires      int64  `json:"expires"`
	IsSession    bool   `json:"isSession,omitempty"`
}

// AccountPatch is a three-state merge update for an account.
type AccountPatch struct {
	Name        Field[string] `json:"name"`
	GitHubID    Field[string] `json:"gitHubId"`
	MicrosoftID Field[string] `json:"microsoftId"`
}

// AppPatch is a three-state merge update for an app.
type AppPatch struct {
	Name Field[string] `json:"name"`
}

// DeploymentPatch is a three-state merge update for a deployment.
type DeploymentPatch struct {
	Name Field[string] `json:"name"`
}

// AccessKeyPatch is a three-state merge update for an access key.
type AccessKeyPatch struct {
	FriendlyName Field[string] `json:"friendlyName"`
	Description  Field[string] `json:"description"`
	Expires      Field[int64]  `json:"expires"`
}
