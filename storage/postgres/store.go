package postgres

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"release-registry/blob"
	"release-registry/storage"
)

// Store is the gorm-backed implementation of the storage contract. Every
// read-modify-write cycle runs inside a database transaction, which is the
// serialization domain required of the backend; the layers above hold no
// locks. The shared ownership and history state machines are invoked inside
// those transactions so both backends enforce identical invariants.
type Store struct {
	db    *gorm.DB
	blobs blob.Store
}

var _ storage.Storage = (*Store)(nil)

// New creates a store over an initialized gorm handle. Blob operations are
// delegated to blobStore.
func New(db *gorm.DB, blobStore blob.Store) *Store {
	return &Store{db: db, blobs: blobStore}
}

func (s *Store) CheckHealth(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return storage.WrapError(storage.ErrConnectionFailed, "database handle unavailable", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storage.WrapError(storage.ErrConnectionFailed, "database unreachable", err)
	}
	return nil
}

// DropAll removes every row, children before parents, and shuts down the
// blob backend's transient resources. Idempotent.
func (s *Store) DropAll(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"packages", "deployments", "collaborators", "access_keys", "apps", "accounts"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return wrapErrorWithDetails(err, "drop all", table)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.blobs != nil {
		return s.blobs.Close(ctx)
	}
	return nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Accounts ---------------------------------------------------------------------

func (s *Store) AddAccount(ctx context.Context, account storage.Account) (string, error) {
	if err := storage.ValidateMapKey(account.Email); err != nil {
		return "", err
	}

	record := accountRecord{
		ID:          uuid.NewString(),
		EmailKey:    strings.ToLower(account.Email),
		Email:       account.Email,
		Name:        account.Name,
		GitHubID:    account.GitHubID,
		MicrosoftID: account.MicrosoftID,
		CreatedTime: nowMillis(),
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", wrapErrorWithDetails(err, "add account", "email="+account.Email)
	}
	return record.ID, nil
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (storage.Account, error) {
	record, err := getAccount(s.db.WithContext(ctx), accountID)
	if err != nil {
		return storage.Account{}, err
	}
	return record.toAccount(), nil
}

func getAccount(tx *gorm.DB, accountID string) (accountRecord, error) {
	var record accountRecord
	err := tx.First(&record, "id = ?", accountID).Error
	if err != nil {
		return accountRecord{}, wrapErrorWithDetails(err, "get account", "id="+accountID)
	}
	return record, nil
}

func getAccountByEmail(tx *gorm.DB, email string) (accountRecord, error) {
	var record accountRecord
	err := tx.First(&record, "email_key = ?", strings.ToLower(email)).Error
	if err != nil {
		return accountRecord{}, wrapErrorWithDetails(err, "get account", "email="+email)
	}
	return record, nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (storage.Account, error) {
	record, err := getAccountByEmail(s.db.WithContext(ctx), email)
	if err != nil {
		return storage.Account{}, err
	}
	return record.toAccount(), nil
}

func (s *Store) UpdateAccount(ctx context.Context, email string, patch storage.AccountPatch) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := getAccountByEmail(tx, email)
		if err != nil {
			return err
		}

		patch.Name.Apply(&record.Name)
		patch.GitHubID.Apply(&record.GitHubID)
		patch.MicrosoftID.Apply(&record.MicrosoftID)

		if err := tx.Save(&record).Error; err != nil {
			return wrapErrorWithDetails(err, "update account", "email="+email)
		}
		return nil
	})
}

func (s *Store) GetAccountIDFromAccessKey(ctx context.Context, accessKey string) (string, error) {
	var record accessKeyRecord
	err := s.db.WithContext(ctx).First(&record, "name = ?", accessKey).Error
	if err != nil {
		return "", wrapErrorWithDetails(err, "get account id from access key", "")
	}
	if record.Expires < nowMillis() {
		return "", storage.NewError(storage.ErrExpired, "The access key has expired")
	}
	return record.AccountID, nil
}

// Apps ------------------------------------------------------------------------

func (s *Store) AddApp(ctx context.Context, accountID string, app storage.App) (storage.App, error) {
	var created storage.App
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := getAccount(tx, accountID)
		if err != nil {
			return err
		}
		if err := storage.ValidateMapKey(account.Email); err != nil {
			return err
		}

		record := appRecord{
			ID:          uuid.NewString(),
			Name:        app.Name,
			CreatedTime: nowMillis(),
		}
		if err := tx.Create(&record).Error; err != nil {
			return wrapErrorWithDetails(err, "add app", "name="+app.Name)
		}

		owner := collaboratorRecord{
			AppID:      record.ID,
			Email:      account.Email,
			AccountID:  accountID,
			Permission: string(storage.PermissionOwner),
		}
		if err := tx.Create(&owner).Error; err != nil {
			return wrapErrorWithDetails(err, "add app owner", "name="+app.Name)
		}

		record.Collaborators = []collaboratorRecord{owner}
		created = annotate(record.toApp(), accountID)
		return nil
	})
	if err != nil {
		return storage.App{}, err
	}
	return created, nil
}

// getAppChain verifies the account->app id chain inside tx: the account must
// exist and hold a collaborator entry on the app.
func getAppChain(tx *gorm.DB, accountID, appID string) (appRecord, error) {
	if _, err := getAccount(tx, accountID); err != nil {
		return appRecord{}, err
	}

	var record appRecord
	err := tx.Preload("Collaborators").First(&record, "id = ?", appID).Error
	if err != nil {
		return appRecord{}, wrapErrorWithDetails(err, "get app", "id="+appID)
	}

	for _, collaborator := range record.Collaborators {
		if collaborator.AccountID == accountID {
			return record, nil
		}
	}
	return appRecord{}, storage.NewError(storage.ErrNotFound, "App %q does not exist", appID)
}

// annotate flags the calling account's own collaborator entry. Computed per
// request, never persisted.
func annotate(app storage.App, accountID string) storage.App {
	for email, entry := range app.Collaborators {
		if entry.AccountID == accountID {
			entry.IsCurrentAccount = true
			app.Collaborators[email] = entry
		}
	}
	return app
}

func (s *Store) GetApps(ctx context.Context, accountID string) ([]storage.App, error) {
	var apps []storage.App
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getAccount(tx, accountID); err != nil {
			return err
		}

		var appIDs []string
		err := tx.Model(&collaboratorRecord{}).
			Where("account_id = ?", accountID).
			Pluck("app_id", &appIDs).Error
		if err != nil {
			return wrapErrorWithDetails(err, "get apps", "account="+accountID)
		}

		apps = make([]storage.App, 0, len(appIDs))
		if len(appIDs) == 0 {
			return nil
		}

		var records []appRecord
		err = tx.Preload("Collaborators").
			Where("id IN ?", appIDs).
			Order("created_time, id").
			Find(&records).Error
		if err != nil {
			return wrapErrorWithDetails(err, "get apps", "account="+accountID)
		}

		for _, record := range records {
			apps = append(apps, annotate(record.toApp(), accountID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return apps, nil
}

func (s *Store) GetApp(ctx context.Context, accountID, appID string) (storage.App, error) {
	record, err := getAppChain(s.db.WithContext(ctx), accountID, appID)
	if err != nil {
		return storage.App{}, err
	}
	return annotate(record.toApp(), accountID), nil
}

func (s *Store) RemoveApp(ctx context.Context, accountID, appID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getAppChain(tx, accountID, appID); err != nil {
			return err
		}

		// Children and index rows go before the app record.
		err := tx.Where("deployment_id IN (?)",
			tx.Model(&deploymentRecord{}).Select("id").Where("app_id = ?", appID),
		).Delete(&packageRecord{}).Error
		if err != nil {
			return wrapErrorWithDetails(err, "remove app packages", "id="+appID)
		}
		if err := tx.Where("app_id = ?", appID).Delete(&deploymentRecord{}).Error; err != nil {
			return wrapErrorWithDetails(err, "remove app deployments", "id="+appID)
		}
		if err := tx.Where("app_id = ?", appID).Delete(&collaboratorRecord{}).Error; err != nil {
			return wrapErrorWithDetails(err, "remove app collaborators", "id="+appID)
		}
		if err := tx.Delete(&appRecord{}, "id = ?", appID).Error; err != nil {
			return wrapErrorWithDetails(err, "remove app", "id="+appID)
		}
		return nil
	})
}

func (s *Store) UpdateApp(ctx context.Context, accountID, appID string, patch storage.AppPatch) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := getAppChain(tx, accountID, appID)
		if err != nil {
			return err
		}

		patch.Name.Apply(&record.Name)
		err = tx.Model(&appRecord{}).Where("id = ?", appID).Update("name", record.Name).Error
		if err != nil {
			return wrapErrorWithDetails(err, "update app", "id="+appID)
		}
		return nil
	})
}

func (s *Store) TransferApp(ctx context.Context, accountID, appID, email string) error {
	if err := storage.ValidateMapKey(email); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := getAppChain(tx, accountID, appID)
		if err != nil {
			return err
		}
		target, err := getAccountByEmail(tx, email)
		if err != nil {
			return err
		}

		app := record.toApp()
		before := storage.CloneCollaborators(app.Collaborators)
		if _, err := storage.TransferOwnershipEntry(&app, target.Email, target.ID); err != nil {
			return err
		}
		return syncCollaborators(tx, appID, before, app.Collaborators)
	})
}

// Collaborators ---------------------------------------------------------------

func (s *Store) AddCollaborator(ctx context.Context, accountID, appID, email string) error {
	if err := storage.ValidateMapKey(email); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := getAppChain(tx, accountID, appID)
		if err != nil {
			return err
		}
		target, err := getAccountByEmail(tx, email)
		if err != nil {
			return err
		}

		app := record.toApp()
		before := storage.CloneCollaborators(app.Collaborators)
		if err := storage.AddCollaboratorEntry(&app, target.Email, target.ID); err != nil {
			return err
		}
		return syncCollaborators(tx, appID, before, app.Collaborators)
	})
}

func (s *Store) GetCollaborators(ctx context.Context, accountID, appID string) (map[string]storage.CollaboratorEntry, error) {
	record, err := getAppChain(s.db.WithContext(ctx), accountID, appID)
	if err != nil {
		return nil, err
	}
	return annotate(record.toApp(), accountID).Collaborators, nil
}

func (s *Store) RemoveCollaborator(ctx context.Context, accountID, appID, email string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := getAppChain(tx, accountID, appID)
		if err != nil {
			return err
		}

		app := record.toApp()
		before := storage.CloneCollaborators(app.Collaborators)
		if _, err := storage.RemoveCollaboratorEntry(&app, email); err != nil {
			return err
		}
		return syncCollaborators(tx, appID, before, app.Collaborators)
	})
}

// syncCollaborators reconciles the join table with the mutated collaborator
// map produced by the shared state machine.
func syncCollaborators(tx *gorm.DB, appID string, before, after map[string]storage.CollaboratorEntry) error {
	for email := range before {
		if _, kept := after[email]; !kept {
			err := tx.Delete(&collaboratorRecord{}, "app_id = ? AND email = ?", appID, email).Error
			if err != nil {
				return wrapErrorWithDetails(err, "remove collaborator", "email="+email)
			}
		}
	}
	for email, entry := range after {
		previous, existed := before[email]
		if existed && previous == entry {
			continue
		}
		record := collaboratorRecord{
			AppID:      appID,
			Email:      email,
			AccountID:  entry.AccountID,
			Permission: string(entry.Permission),
		}
		if existed {
			err := tx.Model(&collaboratorRecord{}).
				Where("app_id = ? AND email = ?", appID, email).
				Update("permission", record.Permission).Error
			if err != nil {
				return wrapErrorWithDetails(err, "update collaborator", "email="+email)
			}
			continue
		}
		if err := tx.Create(&record).Error; err != nil {
			return wrapErrorWithDetails(err, "add collaborator", "email="+email)
		}
	}
	return nil
}

// Deployments -----------------------------------------------------------------

func (s *Store) AddDeployment(ctx context.Context, accountID, appID string, deployment storage.Deployment) (storage.Deployment, error) {
	var created storage.Deployment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getAppChain(tx, accountID, appID); err != nil {
			return err
		}

		if deployment.Key == "" {
			deployment.Key = uuid.NewString()
		}
		record := deploymentRecord{
			ID:          uuid.NewString(),
			AppID:       appID,
			Name:        deployment.Name,
			Key:         deployment.Key,
			CreatedTime: nowMillis(),
		}
		if err := tx.Create(&record).Error; err != nil {
			return wrapErrorWithDetails(err, "add deployment", "name="+deployment.Name)
		}

		created = record.toDeployment()
		return nil
	})
	if err != nil {
		return storage.Deployment{}, err
	}
	return created, nil
}

// getDeploymentChain verifies the full account->app->deployment id chain.
func getDeploymentChain(tx *gorm.DB, accountID, appID, deploymentID string) (deploymentRecord, error) {
	if _, err := getAppChain(tx, accountID, appID); err != nil {
		return deploymentRecord{}, err
	}

	var record deploymentRecord
	err := tx.First(&record, "id = ?", deploymentID).Error
	if err != nil {
		return deploymentRecord{}, wrapErrorWithDetails(err, "get deployment", "id="+deploymentID)
	}
	if record.AppID != appID {
		return deploymentRecord{}, storage.NewError(storage.ErrNotFound, "Deployment %q does not exist", deploymentID)
	}
	return record, nil
}

func (s *Store) GetDeployment(ctx context.Context, accountID, appID, deploymentID string) (storage.Deployment, error) {
	record, err := getDeploymentChain(s.db.WithContext(ctx), accountID, appID, deploymentID)
	if err != nil {
		return storage.Deployment{}, err
	}
	return record.toDeployment(), nil
}

func (s *Store) GetDeployments(ctx context.Context, accountID, appID string) ([]storage.Deployment, error) {
	var deployments []storage.Deployment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getAppChain(tx, accountID, appID); err != nil {
			return err
		}

		var records []deploymentRecord
		err := tx.Where("app_id = ?", appID).Order("created_time, id").Find(&records).Error
		if err != nil {
			return wrapErrorWithDetails(err, "get deployments", "app="+appID)
		}

		deployments = make([]storage.Deployment, 0, len(records))
		for _, record := range records {
			deployments = append(deployments, record.toDeployment())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deployments, nil
}

func (s *Store) GetDeploymentInfo(ctx context.Context, deploymentKey string) (storage.DeploymentInfo, error) {
	var record deploymentRecord
	err := s.db.WithContext(ctx).First(&record, "key = ?", deploymentKey).Error
	if err != nil {
		return storage.DeploymentInfo{}, wrapErrorWithDetails(err, "get deployment info", "key="+deploymentKey)
	}
	return storage.DeploymentInfo{AppID: record.AppID, DeploymentID: record.ID}, nil
}

func (s *Store) RemoveDeployment(ctx context.Context, accountID, appID, deploymentID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getDeploymentChain(tx, accountID, appID, deploymentID); err != nil {
			return err
		}

		if err := tx.Where("deployment_id = ?", deploymentID).Delete(&packageRecord{}).Error; err != nil {
			return wrapErrorWithDetails(err, "remove deployment packages", "id="+deploymentID)
		}
		if err := tx.Delete(&deploymentRecord{}, "id = ?", deploymentID).Error; err != nil {
			return wrapErrorWithDetails(err, "remove deployment", "id="+deploymentID)
		}
		return nil
	})
}

func (s *Store) UpdateDeployment(ctx context.Context, accountID, appID, deploymentID string, patch storage.DeploymentPatch) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := getDeploymentChain(tx, accountID, appID, deploymentID)
		if err != nil {
			return err
		}

		patch.Name.Apply(&record.Name)
		err = tx.Model(&deploymentRecord{}).Where("id = ?", deploymentID).Update("name", record.Name).Error
		if err != nil {
			return wrapErrorWithDetails(err, "update deployment", "id="+deploymentID)
		}
		return nil
	})
}

// Package history -------------------------------------------------------------

func loadHistory(tx *gorm.DB, deploymentID string) ([]storage.Package, error) {
	var records []packageRecord
	err := tx.Where("deployment_id = ?", deploymentID).Order("ordinal").Find(&records).Error
	if err != nil {
		return nil, wrapErrorWithDetails(err, "get package history", "deployment="+deploymentID)
	}

	history := make([]storage.Package, 0, len(records))
	for _, record := range records {
		history = append(history, storage.ClonePackage(record.Body))
	}
	return history, nil
}

func setCurrentPackage(tx *gorm.DB, deploymentID string, pkg *storage.Package) error {
	err := tx.Model(&deploymentRecord{}).Where("id = ?", deploymentID).Update("package", pkg).Error
	if err != nil {
		return wrapErrorWithDetails(err, "update current package", "deployment="+deploymentID)
	}
	return nil
}

func (s *Store) CommitPackage(ctx context.Context, accountID, appID, deploymentID string, pkg storage.Package) (storage.Package, error) {
	var committed storage.Package
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getDeploymentChain(tx, accountID, appID, deploymentID); err != nil {
			return err
		}

		history, err := loadHistory(tx, deploymentID)
		if err != nil {
			return err
		}

		if pkg.UploadTime == 0 {
			pkg.UploadTime = nowMillis()
		}
		history = storage.AppendPackage(history, pkg)
		tail := len(history)

		// AppendPackage cleared the previous tail's rollout; persist it.
		if tail > 1 {
			err := tx.Model(&packageRecord{}).
				Where("deployment_id = ? AND ordinal = ?", deploymentID, tail-1).
				Update("body", history[tail-2]).Error
			if err != nil {
				return wrapErrorWithDetails(err, "clear previous rollout", "deployment="+deploymentID)
			}
		}

		record := packageRecord{DeploymentID: deploymentID, Ordinal: tail, Body: history[tail-1]}
		if err := tx.Create(&record).Error; err != nil {
			return wrapErrorWithDetails(err, "commit package", "deployment="+deploymentID)
		}

		if err := setCurrentPackage(tx, deploymentID, storage.CurrentPackage(history)); err != nil {
			return err
		}
		committed = storage.ClonePackage(history[tail-1])
		return nil
	})
	if err != nil {
		return storage.Package{}, err
	}
	return committed, nil
}

func (s *Store) ClearPackageHistory(ctx context.Context, accountID, appID, deploymentID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getDeploymentChain(tx, accountID, appID, deploymentID); err != nil {
			return err
		}

		if err := tx.Where("deployment_id = ?", deploymentID).Delete(&packageRecord{}).Error; err != nil {
			return wrapErrorWithDetails(err, "clear package history", "deployment="+deploymentID)
		}
		return setCurrentPackage(tx, deploymentID, nil)
	})
}

func (s *Store) GetPackageHistory(ctx context.Context, accountID, appID, deploymentID string) ([]storage.Package, error) {
	var history []storage.Package
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getDeploymentChain(tx, accountID, appID, deploymentID); err != nil {
			return err
		}
		loaded, err := loadHistory(tx, deploymentID)
		if err != nil {
			return err
		}
		history = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Store) GetPackageHistoryFromDeploymentKey(ctx context.Context, deploymentKey string) ([]storage.Package, error) {
	info, err := s.GetDeploymentInfo(ctx, deploymentKey)
	if err != nil {
		return nil, err
	}
	return loadHistory(s.db.WithContext(ctx), info.DeploymentID)
}

func (s *Store) UpdatePackageHistory(ctx context.Context, accountID, appID, deploymentID string, history []storage.Package) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getDeploymentChain(tx, accountID, appID, deploymentID); err != nil {
			return err
		}
		if err := storage.ValidateHistoryReplacement(history); err != nil {
			return err
		}

		if err := tx.Where("deployment_id = ?", deploymentID).Delete(&packageRecord{}).Error; err != nil {
			return wrapErrorWithDetails(err, "replace package history", "deployment="+deploymentID)
		}
		for i, pkg := range history {
			record := packageRecord{DeploymentID: deploymentID, Ordinal: i + 1, Body: pkg}
			if err := tx.Create(&record).Error; err != nil {
				return wrapErrorWithDetails(err, "replace package history", "deployment="+deploymentID)
			}
		}
		return setCurrentPackage(tx, deploymentID, storage.CurrentPackage(history))
	})
}

// Blobs -----------------------------------------------------------------------

func (s *Store) AddBlob(ctx context.Context, blobID string, stream io.Reader, maxSizeBytes int64) error {
	if s.blobs == nil {
		return storage.NewError(storage.ErrOther, "no blob store configured")
	}
	return s.blobs.Put(ctx, blobID, stream, maxSizeBytes)
}

func (s *Store) GetBlobURL(ctx context.Context, blobID string) (string, error) {
	if s.blobs == nil {
		return "", storage.NewError(storage.ErrOther, "no blob store configured")
	}
	return s.blobs.URL(ctx, blobID)
}

func (s *Store) RemoveBlob(ctx context.Context, blobID string) error {
	if s.blobs == nil {
		return storage.NewError(storage.ErrOther, "no blob store configured")
	}
	return s.blobs.Remove(ctx, blobID)
}

// Access keys -----------------------------------------------------------------

func (s *Store) AddAccessKey(ctx context.Context, accountID string, key storage.AccessKey) (storage.AccessKey, error) {
	var created storage.AccessKey
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getAccount(tx, accountID); err != nil {
			return err
		}

		if key.Name == "" {
			key.Name = uuid.NewString()
		}
		record := accessKeyRecord{
			ID:           uuid.NewString(),
			AccountID:    accountID,
			Name:         key.Name,
			FriendlyName: key.FriendlyName,
			Description:  key.Description,
			CreatedTime:  nowMillis(),
			Expires:      key.Expires,
			IsSession:    key.IsSession,
		}
		if err := tx.Create(&record).Error; err != nil {
			return wrapErrorWithDetails(err, "add access key", "friendly_name="+key.FriendlyName)
		}

		created = record.toAccessKey()
		return nil
	})
	if err != nil {
		return storage.AccessKey{}, err
	}
	return created, nil
}

func getAccessKeyChain(tx *gorm.DB, accountID, accessKeyID string) (accessKeyRecord, error) {
	if _, err := getAccount(tx, accountID); err != nil {
		return accessKeyRecord{}, err
	}

	var record accessKeyRecord
	err := tx.First(&record, "id = ?", accessKeyID).Error
	if err != nil {
		return accessKeyRecord{}, wrapErrorWithDetails(err, "get access key", "id="+accessKeyID)
	}
	if record.AccountID != accountID {
		return accessKeyRecord{}, storage.NewError(storage.ErrNotFound, "Access key %q does not exist", accessKeyID)
	}
	return record, nil
}

func (s *Store) GetAccessKey(ctx context.Context, accountID, accessKeyID string) (storage.AccessKey, error) {
	record, err := getAccessKeyChain(s.db.WithContext(ctx), accountID, accessKeyID)
	if err != nil {
		return storage.AccessKey{}, err
	}
	return record.toAccessKey(), nil
}

func (s *Store) GetAccessKeys(ctx context.Context, accountID string) ([]storage.AccessKey, error) {
	var keys []storage.AccessKey
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getAccount(tx, accountID); err != nil {
			return err
		}

		var records []accessKeyRecord
		err := tx.Where("account_id = ?", accountID).Order("created_time, id").Find(&records).Error
		if err != nil {
			return wrapErrorWithDetails(err, "get access keys", "account="+accountID)
		}

		keys = make([]storage.AccessKey, 0, len(records))
		for _, record := range records {
			keys = append(keys, record.toAccessKey())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) RemoveAccessKey(ctx context.Context, accountID, accessKeyID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getAccessKeyChain(tx, accountID, accessKeyID); err != nil {
			return err
		}
		if err := tx.Delete(&accessKeyRecord{}, "id = ?", accessKeyID).Error; err != nil {
			return wrapErrorWithDetails(err, "remove access key", "id="+accessKeyID)
		}
		return nil
	})
}

func (s *Store) UpdateAccessKey(ctx context.Context, accountID, accessKeyID string, patch storage.AccessKeyPatch) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := getAccessKeyChain(tx, accountID, accessKeyID)
		if err != nil {
			return err
		}

		patch.FriendlyName.Apply(&record.FriendlyName)
		patch.Description.Apply(&record.Description)
		patch.Expires.Apply(&record.Expires)

		if err := tx.Save(&record).Error; err != nil {
			return wrapErrorWithDetails(err, "update access key", "id="+accessKeyID)
		}
		return nil
	})
}
