package storage

// Backends hand out copies, never references into their own state, and merge
// mutations back through private copies. These helpers keep the deep-copy
// rules in one place.

// CloneApp deep-copies an app, including its collaborator map.
func CloneApp(app App) App {
	clone := app
	clone.Collaborators = CloneCollaborators(app.Collaborators)
	return clone
}

// CloneCollaborators deep-copies a collaborator map.
func CloneCollaborators(collaborators map[string]CollaboratorEntry) map[string]CollaboratorEntry {
	if collaborators == nil {
		return nil
	}
	clone := make(map[string]CollaboratorEntry, len(collaborators))
	for email, entry := range collaborators {
		clone[email] = entry
	}
	return clone
}

// ClonePackage copies a package, detaching its rollout pointer.
func ClonePackage(pkg Package) Package {
	clone := pkg
	if pkg.Rollout != nil {
		rollout := *pkg.Rollout
		clone.Rollout = &rollout
	}
	return clone
}

// CloneHistory deep-copies a package history.
func CloneHistory(history []Package) []Package {
	if history == nil {
		return nil
	}
	clone := make([]Package, len(history))
	for i, pkg := range history {
		clone[i] = ClonePackage(pkg)
	}
	return clone
}

// CloneDeployment copies a deployment, detaching its current package.
func CloneDeployment(d Deployment) Deployment {
	clone := d
	if d.Package != nil {
		pkg := ClonePackage(*d.Package)
		clone.Package = &pkg
	}
	return clone
}
