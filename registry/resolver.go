package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"release-registry/storage"
)

// Resolver maps human-supplied names (app names, optionally qualified by
// owner email; deployment names; access-key names or friendly names) to
// concrete entities. It fetches candidate sets through the storage contract
// scoped to the calling account and applies the disambiguation rules below;
// it holds no state and no locks.
type Resolver struct {
	store storage.Storage
}

// NewResolver creates a resolver over the given storage backend.
func NewResolver(store storage.Storage) *Resolver {
	return &Resolver{store: store}
}

// notFoundMessage rewrites the message of NotFound failures to a friendly
// string naming the entity and the search term. Every other error code
// propagates unchanged.
func notFoundMessage(err error, entity, name string) error {
	var serr *storage.Error
	if errors.As(err, &serr) && serr.Code == storage.ErrNotFound {
		return storage.WrapError(storage.ErrNotFound,
			fmt.Sprintf("%s %q does not exist.", entity, name), err)
	}
	return err
}

// ResolveAccessKey resolves name against the account's access keys, matching
// either the key name or its friendly name.
func (r *Resolver) ResolveAccessKey(ctx context.Context, accountID, name string) (storage.AccessKey, error) {
	keys, err := r.store.GetAccessKeys(ctx, accountID)
	if err != nil {
		return storage.AccessKey{}, notFoundMessage(err, "Access key", name)
	}

	for _, key := range keys {
		if matchByNameOrFriendlyName(key, name) {
			return key, nil
		}
	}
	return storage.AccessKey{}, storage.NewError(storage.ErrNotFound, "Access key %q does not exist.", name)
}

// ResolveDeployment resolves name against the app's deployments.
func (r *Resolver) ResolveDeployment(ctx context.Context, accountID, appID, name string) (storage.Deployment, error) {
	deployments, err := r.store.GetDeployments(ctx, accountID, appID)
	if err != nil {
		return storage.Deployment{}, notFoundMessage(err, "Deployment", name)
	}

	for _, deployment := range deployments {
		if matchDeployment(deployment, name) {
			return deployment, nil
		}
	}
	return storage.Deployment{}, storage.NewError(storage.ErrNotFound, "Deployment %q does not exist.", name)
}

// ResolveApp resolves an app name for the calling account. Because app names
// are only unique per owner, the query may be qualified as
// "ownerEmail:appName"; a bare name resolves when it is unambiguous or when
// the calling account owns one of the candidates. Ambiguous queries fail
// NotFound, and callers are expected to re-issue the qualified form.
func (r *Resolver) ResolveApp(ctx context.Context, accountID, name string) (storage.App, error) {
	ownerEmail, appName, ok := parseQualifiedName(name)
	if !ok {
		return storage.App{}, storage.NewError(storage.ErrNotFound, "App %q does not exist.", name)
	}
	if ownerEmail != "" {
		if err := storage.ValidateMapKey(ownerEmail); err != nil {
			return storage.App{}, err
		}
	}

	apps, err := r.store.GetApps(ctx, accountID)
	if err != nil {
		return storage.App{}, notFoundMessage(err, "App", name)
	}

	app, found := matchApp(apps, ownerEmail, appName)
	if !found {
		return storage.App{}, storage.NewError(storage.ErrNotFound, "App %q does not exist.", name)
	}
	return app, nil
}

// IsDuplicateApp reports whether creating an app called name would collide
// under the resolution rules. A collision only counts when the existing app
// is owned by the calling account: two accounts may each own an app of the
// same name.
func (r *Resolver) IsDuplicateApp(ctx context.Context, accountID, name string) (bool, error) {
	apps, err := r.store.GetApps(ctx, accountID)
	if err != nil {
		return false, err
	}

	for i := range apps {
		if apps[i].Name == name && ownedByCurrentAccount(&apps[i]) {
			return true, nil
		}
	}
	return false, nil
}

// IsDuplicateDeployment reports whether the app already has a deployment
// called name.
func (r *Resolver) IsDuplicateDeployment(ctx context.Context, accountID, appID, name string) (bool, error) {
	deployments, err := r.store.GetDeployments(ctx, accountID, appID)
	if err != nil {
		return false, err
	}

	for _, deployment := range deployments {
		if matchDeployment(deployment, name) {
			return true, nil
		}
	}
	return false, nil
}

// IsDuplicateAccessKey reports whether the account already has an access key
// matching name by name or friendly name.
func (r *Resolver) IsDuplicateAccessKey(ctx context.Context, accountID, name string) (bool, error) {
	keys, err := r.store.GetAccessKeys(ctx, accountID)
	if err != nil {
		return false, err
	}

	for _, key := range keys {
		if matchByNameOrFriendlyName(key, name) {
			return true, nil
		}
	}
	return false, nil
}

// parseQualifiedName splits "ownerEmail:appName" on the first colon. A bare
// name yields an empty ownerEmail. More than one colon is not an error; it
// simply matches nothing.
func parseQualifiedName(name string) (ownerEmail, appName string, ok bool) {
	switch strings.Count(name, ":") {
	case 0:
		return "", name, true
	case 1:
		before, after, _ := strings.Cut(name, ":")
		return before, after, true
	default:
		return "", "", false
	}
}
