package postgres

import (
	"release-registry/storage"
)

// Relational schema. The collaborators join table is the relational form of
// the account<->app index pair: querying by app_id walks one direction,
// querying by account_id the other, so both directions agree by construction.

type accountRecord struct {
	ID string `gorm:"primaryKey;size:64"`
	// EmailKey is the lowercased lookup key; Email keeps the caller's casing.
	EmailKey    string `gorm:"uniqueIndex;size:255;not null"`
	Email       string `gorm:"size:255;not null"`
	Name        string `gorm:"size:255"`
	GitHubID    string `gorm:"size:255"`
	MicrosoftID string `gorm:"size:255"`
	CreatedTime int64  `gorm:"not null"`
}

func (accountRecord) TableName() string { return "accounts" }

type appRecord struct {
	ID          string `gorm:"primaryKey;size:64"`
	Name        string `gorm:"size:255;not null;index"`
	CreatedTime int64  `gorm:"not null"`

	Collaborators []collaboratorRecord `gorm:"foreignKey:AppID;references:ID;constraint:OnDelete:CASCADE"`
}

func (appRecord) TableName() string { return "apps" }

type collaboratorRecord struct {
	AppID      string `gorm:"primaryKey;size:64"`
	Email      string `gorm:"primaryKey;size:255"`
	AccountID  string `gorm:"size:64;not null;index"`
	Permission string `gorm:"size:16;not null"`
}

func (collaboratorRecord) TableName() string { return "collaborators" }

type deploymentRecord struct {
	ID          string `gorm:"primaryKey;size:64"`
	AppID       string `gorm:"size:64;not null;index"`
	Name        string `gorm:"size:255;not null"`
	Key         string `gorm:"uniqueIndex;size:128;not null"`
	CreatedTime int64  `gorm:"not null"`

	// Package is the currently served release, the tail of the history.
	Package *storage.Package `gorm:"type:jsonb;serializer:json"`

	Packages []packageRecord `gorm:"foreignKey:DeploymentID;references:ID;constraint:OnDelete:CASCADE"`
}

func (deploymentRecord) TableName() string { return "deployments" }

type packageRecord struct {
	DeploymentID string `gorm:"primaryKey;size:64"`
	// Ordinal is the 1-based position in the deployment's history, the same
	// number the package label carries.
	Ordinal int             `gorm:"primaryKey"`
	Body    storage.Package `gorm:"type:jsonb;serializer:json;not null"`
}

func (packageRecord) TableName() string { return "packages" }

type accessKeyRecord struct {
	ID           string `gorm:"primaryKey;size:64"`
	AccountID    string `gorm:"size:64;not null;index"`
	Name         string `gorm:"uniqueIndex;size:255;not null"`
	FriendlyName string `gorm:"size:255"`
	Description  string `gorm:"size:255"`
	CreatedTime  int64  `gorm:"not null"`
	Expires      int64  `gorm:"not null"`
	IsSession    bool
}

func (accessKeyRecord) TableName() string { return "access_keys" }

func (r accountRecord) toAccount() storage.Account {
	return storage.Account{
		ID:          r.ID,
		Email:       r.Email,
		Name:        r.Name,
		GitHubID:    r.GitHubID,
		MicrosoftID: r.MicrosoftID,
		CreatedTime: r.CreatedTime,
	}
}

func (r appRecord) toApp() storage.App {
	app := storage.App{
		ID:            r.ID,
		Name:          r.Name,
		CreatedTime:   r.CreatedTime,
		Collaborators: make(map[string]storage.CollaboratorEntry, len(r.Collaborators)),
	}
	for _, collaborator := range r.Collaborators {
		app.Collaborators[collaborator.Email] = storage.CollaboratorEntry{
			AccountID:  collaborator.AccountID,
			Permission: storage.Permission(collaborator.Permission),
		}
	}
	return app
}

func (r deploymentRecord) toDeployment() storage.Deployment {
	d := storage.Deployment{
		ID:          r.ID,
		Name:        r.Name,
		Key:         r.Key,
		CreatedTime: r.CreatedTime,
	}
	if r.Package != nil {
		pkg := storage.ClonePackage(*r.Package)
		d.Package = &pkg
	}
	return d
}

func (r accessKeyRecord) toAccessKey() storage.AccessKey {
	return storage.AccessKey{
		ID:           r.ID,
		Name:         r.Name,
		FriendlyName: r.FriendlyName,
		Description:  r.Description,
		CreatedBy:    r.AccountID,
		CreatedTime:  r.CreatedTime,
		Expires:      r.Expires,
		IsSession:    r.IsSession,
	}
}
