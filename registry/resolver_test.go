package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"release-registry/storage"
	"release-registry/storage/memory"
)

type fixture struct {
	store    *memory.Store
	resolver *Resolver
	ctx      context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New(nil)
	return &fixture{
		store:    store,
		resolver: NewResolver(store),
		ctx:      context.Background(),
	}
}

func (f *fixture) account(t *testing.T, email string) string {
	t.Helper()
	id, err := f.store.AddAccount(f.ctx, storage.Account{Email: email})
	assert.NoError(t, err)
	return id
}

func (f *fixture) app(t *testing.T, accountID, name string) storage.App {
	t.Helper()
	app, err := f.store.AddApp(f.ctx, accountID, storage.App{Name: name})
	assert.NoError(t, err)
	return app
}

func TestResolveAppBareName(t *testing.T) {
	f := newFixture(t)
	ownerID := f.account(t, "owner@example.com")
	created := f.app(t, ownerID, "MyApp")

	app, err := f.resolver.ResolveApp(f.ctx, ownerID, "MyApp")
	assert.NoError(t, err)
	assert.Equal(t, created.ID, app.ID)

	_, err = f.resolver.ResolveApp(f.ctx, ownerID, "NoSuchApp")
	assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	assert.EqualError(t, err, `App "NoSuchApp" does not exist.`)
}

func TestResolveAppAmbiguity(t *testing.T) {
	f := newFixture(t)

	// Two different owners each own an app called "Shared"; the caller
	// collaborates on both but owns neither.
	aliceID := f.account(t, "alice@example.com")
	bobID := f.account(t, "bob@example.com")
	callerID := f.account(t, "caller@example.com")

	aliceApp := f.app(t, aliceID, "Shared")
	bobApp := f.app(t, bobID, "Shared")
	assert.NoError(t, f.store.AddCollaborator(f.ctx, aliceID, aliceApp.ID, "caller@example.com"))
	assert.NoError(t, f.store.AddCollaborator(f.ctx, bobID, bobApp.ID, "caller@example.com"))

	t.Run("bare ambiguous name fails NotFound", func(t *testing.T) {
		_, err := f.resolver.ResolveApp(f.ctx, callerID, "Shared")
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	})

	t.Run("owner-qualified name disambiguates", func(t *testing.T) {
		app, err := f.resolver.ResolveApp(f.ctx, callerID, "alice@example.com:Shared")
		assert.NoError(t, err)
		assert.Equal(t, aliceApp.ID, app.ID)

		app, err = f.resolver.ResolveApp(f.ctx, callerID, "bob@example.com:Shared")
		assert.NoError(t, err)
		assert.Equal(t, bobApp.ID, app.ID)
	})

	t.Run("caller ownership breaks the tie", func(t *testing.T) {
		ownApp := f.app(t, callerID, "Shared")

		app, err := f.resolver.ResolveApp(f.ctx, callerID, "Shared")
		assert.NoError(t, err)
		assert.Equal(t, ownApp.ID, app.ID)
	})

	t.Run("qualified owner without a match fails NotFound", func(t *testing.T) {
		_, err := f.resolver.ResolveApp(f.ctx, callerID, "nobody@example.com:Shared")
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	})

	t.Run("more than one colon matches nothing", func(t *testing.T) {
		_, err := f.resolver.ResolveApp(f.ctx, callerID, "a:b:Shared")
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	})

	t.Run("denylisted owner qualifier fails Invalid", func(t *testing.T) {
		_, err := f.resolver.ResolveApp(f.ctx, callerID, "__proto__:Shared")
		assert.True(t, storage.IsCode(err, storage.ErrInvalid))
	})
}

func TestResolveDeployment(t *testing.T) {
	f := newFixture(t)
	ownerID := f.account(t, "owner@example.com")
	app := f.app(t, ownerID, "MyApp")

	deployment, err := f.store.AddDeployment(f.ctx, ownerID, app.ID, storage.Deployment{Name: "Production"})
	assert.NoError(t, err)

	resolved, err := f.resolver.ResolveDeployment(f.ctx, ownerID, app.ID, "Production")
	assert.NoError(t, err)
	assert.Equal(t, deployment.ID, resolved.ID)

	_, err = f.resolver.ResolveDeployment(f.ctx, ownerID, app.ID, "Staging")
	assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	assert.EqualError(t, err, `Deployment "Staging" does not exist.`)

	// A broken chain surfaces as NotFound with the friendly message, not as
	// the backend's raw error.
	_, err = f.resolver.ResolveDeployment(f.ctx, "missing-account", app.ID, "Production")
	assert.True(t, storage.IsCode(err, storage.ErrNotFound))
}

func TestResolveAccessKey(t *testing.T) {
	f := newFixture(t)
	ownerID := f.account(t, "owner@example.com")

	key, err := f.store.AddAccessKey(f.ctx, ownerID, storage.AccessKey{
		FriendlyName: "CI key",
		Expires:      time.Now().Add(time.Hour).UnixMilli(),
	})
	assert.NoError(t, err)

	t.Run("matches by opaque name", func(t *testing.T) {
		resolved, err := f.resolver.ResolveAccessKey(f.ctx, ownerID, key.Name)
		assert.NoError(t, err)
		assert.Equal(t, key.ID, resolved.ID)
	})

	t.Run("matches by friendly name", func(t *testing.T) {
		resolved, err := f.resolver.ResolveAccessKey(f.ctx, ownerID, "CI key")
		assert.NoError(t, err)
		assert.Equal(t, key.ID, resolved.ID)
	})

	t.Run("unknown name fails NotFound", func(t *testing.T) {
		_, err := f.resolver.ResolveAccessKey(f.ctx, ownerID, "nope")
		assert.True(t, storage.IsCode(err, storage.ErrNotFound))
	})
}

func TestDuplicateChecks(t *testing.T) {
	f := newFixture(t)
	aliceID := f.account(t, "alice@example.com")
	bobID := f.account(t, "bob@example.com")

	aliceApp := f.app(t, aliceID, "MyApp")
	assert.NoError(t, f.store.AddCollaborator(f.ctx, aliceID, aliceApp.ID, "bob@example.com"))

	t.Run("own app counts as a duplicate", func(t *testing.T) {
		duplicate, err := f.resolver.IsDuplicateApp(f.ctx, aliceID, "MyApp")
		assert.NoError(t, err)
		assert.True(t, duplicate)
	})

	t.Run("collaborated app does not block the name", func(t *testing.T) {
		duplicate, err := f.resolver.IsDuplicateApp(f.ctx, bobID, "MyApp")
		assert.NoError(t, err)
		assert.False(t, duplicate)
	})

	t.Run("deployment names are unique per app", func(t *testing.T) {
		_, err := f.store.AddDeployment(f.ctx, aliceID, aliceApp.ID, storage.Deployment{Name: "Production"})
		assert.NoError(t, err)

		duplicate, err := f.resolver.IsDuplicateDeployment(f.ctx, aliceID, aliceApp.ID, "Production")
		assert.NoError(t, err)
		assert.True(t, duplicate)

		duplicate, err = f.resolver.IsDuplicateDeployment(f.ctx, aliceID, aliceApp.ID, "Staging")
		assert.NoError(t, err)
		assert.False(t, duplicate)
	})
}

func TestParseQualifiedName(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		ownerEmail string
		appName    string
		ok         bool
	}{
		{"bare name", "MyApp", "", "MyApp", true},
		{"qualified", "a@example.com:MyApp", "a@example.com", "MyApp", true},
		{"empty owner", ":MyApp", "", "MyApp", true},
		{"two colons", "a:b:c", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ownerEmail, appName, ok := parseQualifiedName(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ownerEmail, ownerEmail)
			assert.Equal(t, tt.appName, appName)
		})
	}
}
