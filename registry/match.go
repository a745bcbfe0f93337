package registry

import "release-registry/storage"

// One explicit matcher per entity kind; the caller selects the matcher, it is
// never inferred from the data.

// matchByNameOrFriendlyName matches an access key by its opaque name or its
// human-facing friendly name.
func matchByNameOrFriendlyName(key storage.AccessKey, query string) bool {
	return key.Name == query || key.FriendlyName == query
}

// matchDeployment matches a deployment by name only.
func matchDeployment(deployment storage.Deployment, query string) bool {
	return deployment.Name == query
}

// matchApp applies the two-tier app disambiguation over the candidate list,
// which must already carry the view-time IsCurrentAccount annotation. With an
// owner email, the match is the name candidate owned by that email. Without
// one, a unique name candidate wins; otherwise the candidate owned by the
// calling account wins; otherwise the query is ambiguous and nothing matches.
func matchApp(apps []storage.App, ownerEmail, name string) (storage.App, bool) {
	var candidates []storage.App
	for _, app := range apps {
		if app.Name == name {
			candidates = append(candidates, app)
		}
	}

	if ownerEmail != "" {
		for i := range candidates {
			entry, ok := candidates[i].Collaborators[ownerEmail]
			if ok && entry.Permission == storage.PermissionOwner {
				return candidates[i], true
			}
		}
		return storage.App{}, false
	}

	if len(candidates) == 1 {
		return candidates[0], true
	}
	for i := range candidates {
		if ownedByCurrentAccount(&candidates[i]) {
			return candidates[i], true
		}
	}
	return storage.App{}, false
}

// ownedByCurrentAccount reports whether the calling account's own entry holds
// the Owner permission, using the view-time annotation.
func ownedByCurrentAccount(app *storage.App) bool {
	for _, entry := range app.Collaborators {
		if entry.IsCurrentAccount && entry.Permission == storage.PermissionOwner {
			return true
		}
	}
	return false
}
