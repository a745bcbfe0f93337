package storage

// The collaborator map of every app holds exactly one Owner entry at any time.
// The functions below are the only way backends mutate that map; each operates
// on a private copy of the app inside the backend's atomicity domain (memory
// mutex, database transaction) and reports what reverse-index maintenance the
// backend owes.

// OwnerEmail returns the email of the app's Owner entry.
func OwnerEmail(app *App) (string, bool) {
	for email, entry := range app.Collaborators {
		if entry.Permission == PermissionOwner {
			return email, true
		}
	}
	return "", false
}

// IsCollaborator reports whether accountID has any entry on the app.
func IsCollaborator(app *App, accountID string) bool {
	for _, entry := range app.Collaborators {
		if entry.AccountID == accountID {
			return true
		}
	}
	return false
}

// AddCollaboratorEntry inserts a Collaborator entry for email. Fails
// AlreadyExists when email already holds any permission on the app, and
// Invalid for denylisted keys. The caller must have resolved email to an
// existing account beforehand.
func AddCollaboratorEntry(app *App, email, accountID string) error {
	if err := ValidateMapKey(email); err != nil {
		return err
	}
	if _, exists := app.Collaborators[email]; exists {
		return NewError(ErrAlreadyExists, "Account %q is already a collaborator on this app", email)
	}
	if app.Collaborators == nil {
		app.Collaborators = make(map[string]CollaboratorEntry)
	}
	app.Collaborators[email] = CollaboratorEntry{
		AccountID:  accountID,
		Permission: PermissionCollaborator,
	}
	return nil
}

// RemoveCollaboratorEntry deletes the entry for email and returns the account
// id whose reverse index must drop the app. Owners cannot be removed through
// this path; ownership must be transferred first. That case deliberately
// signals AlreadyExists, matching the long-standing contract of this store.
func RemoveCollaboratorEntry(app *App, email string) (string, error) {
	if err := ValidateMapKey(email); err != nil {
		return "", err
	}
	entry, exists := app.Collaborators[email]
	if !exists {
		return "", NewError(ErrNotFound, "Account %q is not a collaborator on this app", email)
	}
	if entry.Permission == PermissionOwner {
		return "", NewError(ErrAlreadyExists, "Cannot remove the owner of an app; transfer ownership first")
	}
	delete(app.Collaborators, email)
	return entry.AccountID, nil
}

// TransferOwnershipEntry moves the Owner permission to newOwnerEmail. The
// current Owner entry is demoted to Collaborator; newOwnerEmail's entry is
// promoted, or created when the account was not yet a collaborator. Returns
// whether a new entry was created so the backend can add the reverse index.
// Exactly one Owner entry exists both before and after.
func TransferOwnershipEntry(app *App, newOwnerEmail, newOwnerAccountID string) (created bool, err error) {
	if err := ValidateMapKey(newOwnerEmail); err != nil {
		return false, err
	}
	if existing, ok := app.Collaborators[newOwnerEmail]; ok && existing.Permission == PermissionOwner {
		return false, NewError(ErrAlreadyExists, "Account %q already owns this app", newOwnerEmail)
	}

	ownerEmail, ok := OwnerEmail(app)
	if !ok {
		return false, NewError(ErrOther, "app %q has no owner entry", app.ID)
	}
	demoted := app.Collaborators[ownerEmail]
	demoted.Permission = PermissionCollaborator
	app.Collaborators[ownerEmail] = demoted

	entry, existed := app.Collaborators[newOwnerEmail]
	if !existed {
		entry = CollaboratorEntry{AccountID: newOwnerAccountID}
	}
	entry.Permission = PermissionOwner
	app.Collaborators[newOwnerEmail] = entry

	return !existed, nil
}
