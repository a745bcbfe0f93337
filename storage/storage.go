package storage

import (
	"context"
	"io"
)

// Storage is the contract a persistence backend must satisfy. All identifiers
// are opaque strings assigned by the backend at creation time; callers never
// supply ids when creating. Every operation verifies the entire supplied id
// chain, not just the leaf: an appID that does not belong to the given
// accountID fails NotFound even when the app exists under another account.
//
// Backends never return an empty value to signal "not found"; absence is
// always an explicit *Error with ErrNotFound. Collection getters return an
// empty slice (success) when a valid parent has no children.
//
// Update operations apply three-state merge patches (see Field), never full
// overwrites. Mutations that read, modify, and write a single entity are
// serialized per entity id inside the backend; the resolver and the API layer
// above hold no locks of their own.
type Storage interface {
	// CheckHealth verifies the backend can serve requests.
	CheckHealth(ctx context.Context) error

	AddAccount(ctx context.Context, account Account) (string, error)
	GetAccount(ctx context.Context, accountID string) (Account, error)
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	// GetAccountIDFromAccessKey resolves a bearer key to its owning account,
	// failing Expired for keys past their expiry.
	GetAccountIDFromAccessKey(ctx context.Context, accessKey string) (string, error)
	UpdateAccount(ctx context.Context, email string, patch AccountPatch) error

	// AddApp creates the app with accountID's account as its sole Owner
	// collaborator, ignoring any collaborator map supplied by the caller.
	AddApp(ctx context.Context, accountID string, app App) (App, error)
	GetApps(ctx context.Context, accountID string) ([]App, error)
	GetApp(ctx context.Context, accountID, appID string) (App, error)
	// RemoveApp deletes the app and cascades to all of its deployments.
	RemoveApp(ctx context.Context, accountID, appID string) error
	UpdateApp(ctx context.Context, accountID, appID string, patch AppPatch) error
	// TransferApp moves ownership to the account registered under email.
	TransferApp(ctx context.Context, accountID, appID, email string) error

	AddCollaborator(ctx context.Context, accountID, appID, email string) error
	GetCollaborators(ctx context.Context, accountID, appID string) (map[string]CollaboratorEntry, error)
	RemoveCollaborator(ctx context.Context, accountID, appID, email string) error

	AddDeployment(ctx context.Context, accountID, appID string, deployment Deployment) (Deployment, error)
	GetDeployment(ctx context.Context, accountID, appID, deploymentID string) (Deployment, error)
	GetDeploymentInfo(ctx context.Context, deploymentKey string) (DeploymentInfo, error)
	GetDeployments(ctx context.Context, accountID, appID string) ([]Deployment, error)
	RemoveDeployment(ctx context.Context, accountID, appID, deploymentID string) error
	UpdateDeployment(ctx context.Context, accountID, appID, deploymentID string, patch DeploymentPatch) error

	// CommitPackage appends pkg to the deployment's history, assigning the
	// next ordinal label and clearing the previous tail's rollout.
	CommitPackage(ctx context.Context, accountID, appID, deploymentID string, pkg Package) (Package, error)
	ClearPackageHistory(ctx context.Context, accountID, appID, deploymentID string) error
	GetPackageHistory(ctx context.Context, accountID, appID, deploymentID string) ([]Package, error)
	GetPackageHistoryFromDeploymentKey(ctx context.Context, deploymentKey string) ([]Package, error)
	// UpdatePackageHistory replaces the whole sequence, failing Invalid on an
	// empty slice and leaving existing history untouched in that case.
	UpdatePackageHistory(ctx context.Context, accountID, appID, deploymentID string, history []Package) error

	// AddBlob stores at most maxSizeBytes from the stream under blobID,
	// failing TooLarge beyond that bound.
	AddBlob(ctx context.Context, blobID string, stream io.Reader, maxSizeBytes int64) error
	GetBlobURL(ctx context.Context, blobID string) (string, error)
	RemoveBlob(ctx context.Context, blobID string) error

	AddAccessKey(ctx context.Context, accountID string, key AccessKey) (AccessKey, error)
	GetAccessKey(ctx context.Context, accountID, accessKeyID string) (AccessKey, error)
	GetAccessKeys(ctx context.Context, accountID string) ([]AccessKey, error)
	RemoveAccessKey(ctx context.Context, accountID, accessKeyID string) error
	UpdateAccessKey(ctx context.Context, accountID, accessKeyID string, patch AccessKeyPatch) error

	// DropAll releases all held state and auxiliary resources, including any
	// transient blob-serving endpoint. It is idempotent.
	DropAll(ctx context.Context) error
}
