package memory

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"release-registry/blob/memoryBlob"
	"release-registry/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(memoryBlob.New())
	t.Cleanup(func() {
		assert.NoError(t, s.DropAll(context.Background()))
	})
	return s
}

func addAccount(t *testing.T, s *Store, email string) string {
	t.Helper()
	id, err := s.AddAccount(context.Background(), storage.Account{Email: email, Name: email})
	assert.NoError(t, err)
	return id
}

func addApp(t *testing.T, s *Store, accountID, name string) storage.App {
	t.Helper()
	app, err := s.AddApp(context.Background(), accountID, storage.App{Name: name})
	assert.NoError(t, err)
	return app
}

func addDeployment(t *testing.T, s *Store, accountID, appID, name string) storage.Deployment {
	t.Helper()
	deployment, err := s.AddDeployment(context.Background(), accountID, appID, storage.Deployment{Name: name})
	assert.NoError(t, err)
	return deployment
}

func TestAccountLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := addAccount(t, s, "Owner@Example.com")

	t.Run("lookup by id", func(t *testing.T) {
		account, err := s.GetAccount(ctx, id)
		assert.NoError(t, err)
		assert.Equal(t, "Owner@Example.com", account.Email)
		assert.NotZero(t, account.CreatedTime)
	})

	t.Run("email lookup is case-insensitive", func(t *testing.T) {
		account, err := s.GetAccountByEmail(ctx, "owner@example.COM")
		assert.NoError(t, err)
		assert.Equal(t, id, account.ID)
	})

	t.Run("duplicate email fails AlreadyExists", func(t *testing.T) {
		_, err := s.AddAccount(ctx, storage.Account{Email: "OWNER@example.com"})
		assert.True(t, storage.IsCode(err, storage.ErrAlreadyExists))
	})

	t.Run("unknown id fails NotFound, never an empty value", func(t *testing.T) {
		_, err := s.GetAccount(ctx, "missing")
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	})

	t.Run("patch merges three-state fields", func(t *testing.T) {
		err := s.UpdateAccount(ctx, "owner@example.com", storage.AccountPatch{
			Name:     storage.Set("New Name"),
			GitHubID: storage.Unset[string](),
		})
		assert.NoError(t, err)

		account, err := s.GetAccount(ctx, id)
		assert.NoError(t, err)
		assert.Equal(t, "New Name", account.Name)
		assert.Empty(t, account.GitHubID)
		assert.Equal(t, "Owner@Example.com", account.Email)
	})
}

func TestAppCreationAndChain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ownerID := addAccount(t, s, "owner@example.com")
	strangerID := addAccount(t, s, "stranger@example.com")
	app := addApp(t, s, ownerID, "MyApp")

	t.Run("creator is the sole owner collaborator", func(t *testing.T) {
		entry, ok := app.Collaborators["owner@example.com"]
		assert.True(t, ok)
		assert.Equal(t, storage.PermissionOwner, entry.Permission)
		assert.True(t, entry.IsCurrentAccount)
		assert.Len(t, app.Collaborators, 1)
	})

	t.Run("chain violation is NotFound even though the app exists", func(t *testing.T) {
		_, err := s.GetApp(ctx, strangerID, app.ID)
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	})

	t.Run("empty collection is success, bad parent is NotFound", func(t *testing.T) {
		apps, err := s.GetApps(ctx, strangerID)
		assert.NoError(t, err)
		assert.Empty(t, apps)

		_, err = s.GetApps(ctx, "missing-account")
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	})

	t.Run("IsCurrentAccount is per-view, not persisted", func(t *testing.T) {
		err := s.AddCollaborator(ctx, ownerID, app.ID, "stranger@example.com")
		assert.NoError(t, err)

		fromStranger, err := s.GetApp(ctx, strangerID, app.ID)
		assert.NoError(t, err)
		assert.True(t, fromStranger.Collaborators["stranger@example.com"].IsCurrentAccount)
		assert.False(t, fromStranger.Collaborators["owner@example.com"].IsCurrentAccount)

		fromOwner, err := s.GetApp(ctx, ownerID, app.ID)
		assert.NoError(t, err)
		assert.True(t, fromOwner.Collaborators["owner@example.com"].IsCurrentAccount)
		assert.False(t, fromOwner.Collaborators["stranger@example.com"].IsCurrentAccount)
	})
}

func TestCollaborators(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ownerID := addAccount(t, s, "owner@example.com")
	friendID := addAccount(t, s, "friend@example.com")
	app := addApp(t, s, ownerID, "MyApp")

	assert.NoError(t, s.AddCollaborator(ctx, ownerID, app.ID, "friend@example.com"))

	t.Run("collaborator sees the app in its own list", func(t *testing.T) {
		apps, err := s.GetApps(ctx, friendID)
		assert.NoError(t, err)
		assert.Len(t, apps, 1)
		assert.Equal(t, app.ID, apps[0].ID)
	})

	t.Run("adding twice fails AlreadyExists", func(t *testing.T) {
		err := s.AddCollaborator(ctx, ownerID, app.ID, "friend@example.com")
		assert.True(t, storage.IsCode(err, storage.ErrAlreadyExists))
	})

	t.Run("unknown target account fails NotFound", func(t *testing.T) {
		err := s.AddCollaborator(ctx, ownerID, app.ID, "nobody@example.com")
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	})

	t.Run("denylisted email fails Invalid without mutation", func(t *testing.T) {
		err := s.AddCollaborator(ctx, ownerID, app.ID, "__proto__")
		assert.True(t, storage.IsCode(err, storage.ErrInvalid))

		collaborators, err := s.GetCollaborators(ctx, ownerID, app.ID)
		assert.NoError(t, err)
		assert.Len(t, collaborators, 2)
	})

	t.Run("owner removal fails AlreadyExists", func(t *testing.T) {
		err := s.RemoveCollaborator(ctx, ownerID, app.ID, "owner@example.com")
		assert.True(t, storage.IsCode(err, storage.ErrAlreadyExists))
	})

	t.Run("removal drops the reverse index", func(t *testing.T) {
		assert.NoError(t, s.RemoveCollaborator(ctx, ownerID, app.ID, "friend@example.com"))

		apps, err := s.GetApps(ctx, friendID)
		assert.NoError(t, err)
		assert.Empty(t, apps)
	})
}

func TestTransferApp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	aID := addAccount(t, s, "a@example.com")
	bID := addAccount(t, s, "b@example.com")
	cID := addAccount(t, s, "c@example.com")
	app := addApp(t, s, aID, "MyApp")

	assert.NoError(t, s.TransferApp(ctx, aID, app.ID, "b@example.com"))
	assert.NoError(t, s.TransferApp(ctx, aID, app.ID, "c@example.com"))

	got, err := s.GetApp(ctx, cID, app.ID)
	assert.NoError(t, err)

	owners := 0
	for _, entry := range got.Collaborators {
		if entry.Permission == storage.PermissionOwner {
			owners++
		}
	}
	assert.Equal(t, 1, owners)
	assert.Equal(t, storage.PermissionOwner, got.Collaborators["c@example.com"].Permission)
	assert.Equal(t, storage.PermissionCollaborator, got.Collaborators["a@example.com"].Permission)
	assert.Equal(t, storage.PermissionCollaborator, got.Collaborators["b@example.com"].Permission)

	// Every party still reaches the app.
	for _, accountID := range []string{aID, bID, cID} {
		apps, err := s.GetApps(ctx, accountID)
		assert.NoError(t, err)
		assert.Len(t, apps, 1)
	}

	t.Run("transfer to current owner fails AlreadyExists", func(t *testing.T) {
		err := s.TransferApp(ctx, aID, app.ID, "c@example.com")
		assert.True(t, storage.IsCode(err, storage.ErrAlreadyExists))
	})

	t.Run("transfer to unknown account fails NotFound", func(t *testing.T) {
		err := s.TransferApp(ctx, aID, app.ID, "nobody@example.com")
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	})
}

func TestRemoveAppCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ownerID := addAccount(t, s, "owner@example.com")
	friendID := addAccount(t, s, "friend@example.com")
	app := addApp(t, s, ownerID, "MyApp")
	assert.NoError(t, s.AddCollaborator(ctx, ownerID, app.ID, "friend@example.com"))
	deployment := addDeployment(t, s, ownerID, app.ID, "Production")

	assert.NoError(t, s.RemoveApp(ctx, ownerID, app.ID))

	_, err := s.GetApp(ctx, ownerID, app.ID)
	assert.True(t, storage.IsCode(err, storage.ErrNotFound))

	_, err = s.GetDeploymentInfo(ctx, deployment.Key)
	assert.True(t, storage.IsCode(err, storage.ErrNotFound))

	apps, err := s.GetApps(ctx, friendID)
	assert.NoError(t, err)
	assert.Empty(t, apps)
}

func TestDeployments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ownerID := addAccount(t, s, "owner@example.com")
	otherID := addAccount(t, s, "other@example.com")
	app := addApp(t, s, ownerID, "MyApp")
	otherApp := addApp(t, s, otherID, "OtherApp")

	deployment := addDeployment(t, s, ownerID, app.ID, "Production")

	t.Run("key is generated and globally unique", func(t *testing.T) {
		assert.NotEmpty(t, deployment.Key)

		_, err := s.AddDeployment(ctx, otherID, otherApp.ID, storage.Deployment{
			Name: "Staging", Key: deployment.Key,
		})
		assert.True(t, storage.IsCode(err, storage.ErrAlreadyExists))
	})

	t.Run("deployment info resolves from the key alone", func(t *testing.T) {
		info, err := s.GetDeploymentInfo(ctx, deployment.Key)
		assert.NoError(t, err)
		assert.Equal(t, app.ID, info.AppID)
		assert.Equal(t, deployment.ID, info.DeploymentID)
	})

	t.Run("deployment under the wrong app fails NotFound", func(t *testing.T) {
		_, err := s.GetDeployment(ctx, otherID, otherApp.ID, deployment.ID)
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	})

	t.Run("rename applies through the chain", func(t *testing.T) {
		err := s.UpdateDeployment(ctx, ownerID, app.ID, deployment.ID, storage.DeploymentPatch{
			Name: storage.Set("Prod"),
		})
		assert.NoError(t, err)

		got, err := s.GetDeployment(ctx, ownerID, app.ID, deployment.ID)
		assert.NoError(t, err)
		assert.Equal(t, "Prod", got.Name)
		assert.Equal(t, deployment.Key, got.Key)
	})

	t.Run("removal releases the key", func(t *testing.T) {
		assert.NoError(t, s.RemoveDeployment(ctx, ownerID, app.ID, deployment.ID))

		_, err := s.GetDeploymentInfo(ctx, deployment.Key)
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	})
}

func TestPackageHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ownerID := addAccount(t, s, "owner@example.com")
	app := addApp(t, s, ownerID, "MyApp")
	deployment := addDeployment(t, s, ownerID, app.ID, "Production")

	rollout := 25
	first, err := s.CommitPackage(ctx, ownerID, app.ID, deployment.ID, storage.Package{
		AppVersion: "1.0.0", Rollout: &rollout,
	})
	assert.NoError(t, err)
	assert.Equal(t, "v1", first.Label)
	assert.NotZero(t, first.UploadTime)

	second, err := s.CommitPackage(ctx, ownerID, app.ID, deployment.ID, storage.Package{AppVersion: "1.0.1"})
	assert.NoError(t, err)
	assert.Equal(t, "v2", second.Label)

	third, err := s.CommitPackage(ctx, ownerID, app.ID, deployment.ID, storage.Package{AppVersion: "1.1.0"})
	assert.NoError(t, err)
	assert.Equal(t, "v3", third.Label)

	t.Run("previous rollouts are cleared, labels are ordinal", func(t *testing.T) {
		history, err := s.GetPackageHistory(ctx, ownerID, app.ID, deployment.ID)
		assert.NoError(t, err)
		assert.Len(t, history, 3)
		for i, pkg := range history {
			assert.Equal(t, fmt.Sprintf("v%d", i+1), pkg.Label)
		}
		assert.Nil(t, history[0].Rollout)
		assert.Nil(t, history[1].Rollout)
	})

	t.Run("deployment serves the history tail", func(t *testing.T) {
		got, err := s.GetDeployment(ctx, ownerID, app.ID, deployment.ID)
		assert.NoError(t, err)
		assert.NotNil(t, got.Package)
		assert.Equal(t, "v3", got.Package.Label)
	})

	t.Run("history resolves from the deployment key", func(t *testing.T) {
		history, err := s.GetPackageHistoryFromDeploymentKey(ctx, deployment.Key)
		assert.NoError(t, err)
		assert.Len(t, history, 3)
	})

	t.Run("empty replacement fails Invalid and changes nothing", func(t *testing.T) {
		err := s.UpdatePackageHistory(ctx, ownerID, app.ID, deployment.ID, nil)
		assert.True(t, storage.IsCode(err, storage.ErrInvalid))

		history, err := s.GetPackageHistory(ctx, ownerID, app.ID, deployment.ID)
		assert.NoError(t, err)
		assert.Len(t, history, 3)
	})

	t.Run("replacement swaps the whole sequence", func(t *testing.T) {
		err := s.UpdatePackageHistory(ctx, ownerID, app.ID, deployment.ID, []storage.Package{
			{AppVersion: "2.0.0", Label: "v1"},
		})
		assert.NoError(t, err)

		got, err := s.GetDeployment(ctx, ownerID, app.ID, deployment.ID)
		assert.NoError(t, err)
		assert.Equal(t, "2.0.0", got.Package.AppVersion)
	})

	t.Run("clear empties the history and the current package", func(t *testing.T) {
		assert.NoError(t, s.ClearPackageHistory(ctx, ownerID, app.ID, deployment.ID))

		history, err := s.GetPackageHistory(ctx, ownerID, app.ID, deployment.ID)
		assert.NoError(t, err)
		assert.Empty(t, history)

		got, err := s.GetDeployment(ctx, ownerID, app.ID, deployment.ID)
		assert.NoError(t, err)
		assert.Nil(t, got.Package)
	})
}

func TestAccessKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ownerID := addAccount(t, s, "owner@example.com")

	key, err := s.AddAccessKey(ctx, ownerID, storage.AccessKey{
		FriendlyName: "CI key",
		Expires:      time.Now().Add(time.Hour).UnixMilli(),
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, key.Name)
	assert.Equal(t, ownerID, key.CreatedBy)

	t.Run("bearer lookup resolves the owning account", func(t *testing.T) {
		accountID, err := s.GetAccountIDFromAccessKey(ctx, key.Name)
		assert.NoError(t, err)
		assert.Equal(t, ownerID, accountID)
	})

	t.Run("expired key fails Expired", func(t *testing.T) {
		expired, err := s.AddAccessKey(ctx, ownerID, storage.AccessKey{
			FriendlyName: "stale",
			Expires:      time.Now().Add(-time.Hour).UnixMilli(),
		})
		assert.NoError(t, err)

		_, err = s.GetAccountIDFromAccessKey(ctx, expired.Name)
		assert.True(t, storage.IsCode(err, storage.ErrExpired))
	})

	t.Run("unknown key fails NotFound", func(t *testing.T) {
		_, err := s.GetAccountIDFromAccessKey(ctx, "no-such-key")
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	})

	t.Run("patch extends the expiry", func(t *testing.T) {
		newExpiry := time.Now().Add(48 * time.Hour).UnixMilli()
		err := s.UpdateAccessKey(ctx, ownerID, key.ID, storage.AccessKeyPatch{
			Expires: storage.Set(newExpiry),
		})
		assert.NoError(t, err)

		got, err := s.GetAccessKey(ctx, ownerID, key.ID)
		assert.NoError(t, err)
		assert.Equal(t, newExpiry, got.Expires)
		assert.Equal(t, "CI key", got.FriendlyName)
	})

	t.Run("removal revokes the bearer lookup", func(t *testing.T) {
		assert.NoError(t, s.RemoveAccessKey(ctx, ownerID, key.ID))

		_, err := s.GetAccountIDFromAccessKey(ctx, key.Name)
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	})
}

func TestBlobDelegation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.AddBlob(ctx, "blob-1", strings.NewReader("payload"), 1024)
	assert.NoError(t, err)

	url, err := s.GetBlobURL(ctx, "blob-1")
	assert.NoError(t, err)
	assert.NotEmpty(t, url)

	t.Run("oversized stream fails TooLarge", func(t *testing.T) {
		err := s.AddBlob(ctx, "blob-2", strings.NewReader("too big for the bound"), 4)
		assert.True(t, storage.IsCode(err, storage.ErrTooLarge))
	})

	assert.NoError(t, s.RemoveBlob(ctx, "blob-1"))
	_, err = s.GetBlobURL(ctx, "blob-1")
	assert.True(t, storage.IsCode(err, storage.ErrNotFound))
}

func TestDropAllIsIdempotent(t *testing.T) {
	s := New(memoryBlob.New())
	ctx := context.Background()

	ownerID := addAccount(t, s, "owner@example.com")
	app := addApp(t, s, ownerID, "MyApp")
	addDeployment(t, s, ownerID, app.ID, "Production")
	assert.NoError(t, s.AddBlob(ctx, "blob-1", strings.NewReader("payload"), 1024))

	assert.NoError(t, s.DropAll(ctx))
	assert.NoError(t, s.DropAll(ctx))

	_, err := s.GetAccount(ctx, ownerID)
	assert.True(t, storage.IsCode(err, storage.ErrNotFound))

	// The store is usable again after a drop.
	addAccount(t, s, "owner@example.com")
	assert.NoError(t, s.DropAll(ctx))
}
