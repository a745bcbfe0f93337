package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"release-registry/blob/memoryBlob"
	"release-registry/storage"
)

// newLiveStore connects to the database named by REGISTRY_TEST_DSN. Tests are
// skipped when the variable is unset, so the suite stays runnable without a
// local postgres.
func newLiveStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("REGISTRY_TEST_DSN")
	if dsn == "" {
		t.Skip("REGISTRY_TEST_DSN not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&accountRecord{},
		&appRecord{},
		&collaboratorRecord{},
		&deploymentRecord{},
		&packageRecord{},
		&accessKeyRecord{},
	))

	s := New(db, memoryBlob.New())
	assert.NoError(t, s.DropAll(context.Background()))
	t.Cleanup(func() {
		assert.NoError(t, s.DropAll(context.Background()))
	})
	return s
}

func TestLiveHealthCheck(t *testing.T) {
	s := newLiveStore(t)
	assert.NoError(t, s.CheckHealth(context.Background()))
}

func TestLiveAccountAndAppRoundTrip(t *testing.T) {
	s := newLiveStore(t)
	ctx := context.Background()

	accountID, err := s.AddAccount(ctx, storage.Account{Email: "Owner@Example.com", Name: "Owner"})
	assert.NoError(t, err)

	t.Run("email lookup is case-insensitive", func(t *testing.T) {
		account, err := s.GetAccountByEmail(ctx, "owner@example.com")
		assert.NoError(t, err)
		assert.Equal(t, accountID, account.ID)
		assert.Equal(t, "Owner@Example.com", account.Email)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := s.AddAccount(ctx, storage.Account{Email: "OWNER@example.com"})
		assert.True(t, storage.IsCode(err, storage.ErrAlreadyExists))
	})

	app, err := s.AddApp(ctx, accountID, storage.App{Name: "MyApp"})
	assert.NoError(t, err)
	assert.Equal(t, storage.PermissionOwner, app.Collaborators["Owner@Example.com"].Permission)

	t.Run("chain violation is NotFound", func(t *testing.T) {
		strangerID, err := s.AddAccount(ctx, storage.Account{Email: "stranger@example.com"})
		assert.NoError(t, err)

		_, err = s.GetApp(ctx, strangerID, app.ID)
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	})
}

func TestLiveOwnershipTransfer(t *testing.T) {
	s := newLiveStore(t)
	ctx := context.Background()

	aID, err := s.AddAccount(ctx, storage.Account{Email: "a@example.com"})
	assert.NoError(t, err)
	_, err = s.AddAccount(ctx, storage.Account{Email: "b@example.com"})
	assert.NoError(t, err)

	app, err := s.AddApp(ctx, aID, storage.App{Name: "MyApp"})
	assert.NoError(t, err)

	assert.NoError(t, s.TransferApp(ctx, aID, app.ID, "b@example.com"))

	got, err := s.GetApp(ctx, aID, app.ID)
	assert.NoError(t, err)

	owners := 0
	for _, entry := range got.Collaborators {
		if entry.Permission == storage.PermissionOwner {
			owners++
		}
	}
	assert.Equal(t, 1, owners)
	assert.Equal(t, storage.PermissionOwner, got.Collaborators["b@example.com"].Permission)
	assert.Equal(t, storage.PermissionCollaborator, got.Collaborators["a@example.com"].Permission)
}

func TestLivePackageHistory(t *testing.T) {
	s := newLiveStore(t)
	ctx := context.Background()

	accountID, err := s.AddAccount(ctx, storage.Account{Email: "owner@example.com"})
	assert.NoError(t, err)
	app, err := s.AddApp(ctx, accountID, storage.App{Name: "MyApp"})
	assert.NoError(t, err)
	deployment, err := s.AddDeployment(ctx, accountID, app.ID, storage.Deployment{Name: "Production"})
	assert.NoError(t, err)

	rollout := 10
	first, err := s.CommitPackage(ctx, accountID, app.ID, deployment.ID, storage.Package{
		AppVersion: "1.0.0", Rollout: &rollout,
	})
	assert.NoError(t, err)
	assert.Equal(t, "v1", first.Label)

	second, err := s.CommitPackage(ctx, accountID, app.ID, deployment.ID, storage.Package{AppVersion: "1.0.1"})
	assert.NoError(t, err)
	assert.Equal(t, "v2", second.Label)

	history, err := s.GetPackageHistory(ctx, accountID, app.ID, deployment.ID)
	assert.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Nil(t, history[0].Rollout)

	got, err := s.GetDeployment(ctx, accountID, app.ID, deployment.ID)
	assert.NoError(t, err)
	assert.NotNil(t, got.Package)
	assert.Equal(t, "v2", got.Package.Label)

	t.Run("history by key", func(t *testing.T) {
		fromKey, err := s.GetPackageHistoryFromDeploymentKey(ctx, deployment.Key)
		assert.NoError(t, err)
		assert.Len(t, fromKey, 2)
	})

	t.Run("empty replacement fails Invalid", func(t *testing.T) {
		err := s.UpdatePackageHistory(ctx, accountID, app.ID, deployment.ID, nil)
		assert.True(t, storage.IsCode(err, storage.ErrInvalid))
	})
}

func TestLiveAccessKeys(t *testing.T) {
	s := newLiveStore(t)
	ctx := context.Background()

	accountID, err := s.AddAccount(ctx, storage.Account{Email: "owner@example.com"})
	assert.NoError(t, err)

	key, err := s.AddAccessKey(ctx, accountID, storage.AccessKey{
		FriendlyName: "ci",
		Expires:      time.Now().Add(time.Hour).UnixMilli(),
	})
	assert.NoError(t, err)

	resolved, err := s.GetAccountIDFromAccessKey(ctx, key.Name)
	assert.NoError(t, err)
	assert.Equal(t, accountID, resolved)

	expired, err := s.AddAccessKey(ctx, accountID, storage.AccessKey{
		FriendlyName: "stale",
		Expires:      time.Now().Add(-time.Hour).UnixMilli(),
	})
	assert.NoError(t, err)

	_, err = s.GetAccountIDFromAccessKey(ctx, expired.Name)
	assert.True(t, storage.IsCode(err, storage.ErrExpired))
}
