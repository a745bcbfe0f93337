package memory

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"release-registry/blob"
	"release-registry/storage"
)

// Store is an in-memory implementation of the storage contract. A single
// mutex serializes every mutation, so each read-modify-write cycle is atomic
// with respect to concurrent operations on the same entity; the resolver and
// API layers above hold no locks of their own.
//
// Relationships are kept as index pairs updated in lockstep with the owning
// entity: account->apps, app->deployments, account->accessKeys,
// email->accountId, deploymentKey->deploymentId, accessKeyName->id. Child id
// slices preserve insertion order, which is the return order of the
// collection getters and therefore the resolver's scan order.
type Store struct {
	mu    sync.RWMutex
	blobs blob.Store

	accounts         map[string]storage.Account
	accountIDByEmail map[string]string

	apps            map[string]storage.App
	appIDsByAccount map[string][]string

	deployments        map[string]storage.Deployment
	deploymentIDsByApp map[string][]string
	deploymentIDByKey  map[string]string
	appIDByDeployment  map[string]string
	histories          map[string][]storage.Package

	accessKeys            map[string]storage.AccessKey
	accessKeyIDsByAccount map[string][]string
	accessKeyIDByName     map[string]string
}

var _ storage.Storage = (*Store)(nil)

// New creates an empty store. Blob operations are delegated to blobStore,
// which DropAll closes alongside the metadata state.
func New(blobStore blob.Store) *Store {
	s := &Store{blobs: blobStore}
	s.resetLocked()
	return s
}

func (s *Store) resetLocked() {
	s.accounts = make(map[string]storage.Account)
	s.accountIDByEmail = make(map[string]string)
	s.apps = make(map[string]storage.App)
	s.appIDsByAccount = make(map[string][]string)
	s.deployments = make(map[string]storage.Deployment)
	s.deploymentIDsByApp = make(map[string][]string)
	s.deploymentIDByKey = make(map[string]string)
	s.appIDByDeployment = make(map[string]string)
	s.histories = make(map[string][]storage.Package)
	s.accessKeys = make(map[string]storage.AccessKey)
	s.accessKeyIDsByAccount = make(map[string][]string)
	s.accessKeyIDByName = make(map[string]string)
}

// CheckHealth always succeeds for the in-memory backend.
func (s *Store) CheckHealth(context.Context) error {
	return nil
}

// DropAll releases all held state and shuts down the transient blob endpoint.
// Idempotent.
func (s *Store) DropAll(ctx context.Context) error {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()

	if s.blobs != nil {
		return s.blobs.Close(ctx)
	}
	return nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func removeID(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// Accounts ---------------------------------------------------------------------

func (s *Store) AddAccount(_ context.Context, account storage.Account) (string, error) {
	if err := storage.ValidateMapKey(account.Email); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	emailKey := strings.ToLower(account.Email)
	if _, exists := s.accountIDByEmail[emailKey]; exists {
		return "", storage.NewError(storage.ErrAlreadyExists, "Account %q already exists", account.Email)
	}

	account.ID = uuid.NewString()
	account.CreatedTime = nowMillis()

	s.accounts[account.ID] = account
	s.accountIDByEmail[emailKey] = account.ID
	return account.ID, nil
}

func (s *Store) GetAccount(_ context.Context, accountID string) (storage.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAccountLocked(accountID)
}

func (s *Store) getAccountLocked(accountID string) (storage.Account, error) {
	account, exists := s.accounts[accountID]
	if !exists {
		return storage.Account{}, storage.NewError(storage.ErrNotFound, "Account %q does not exist", accountID)
	}
	return account, nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (storage.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accountID, exists := s.accountIDByEmail[strings.ToLower(email)]
	if !exists {
		return storage.Account{}, storage.NewError(storage.ErrNotFound, "Account %q does not exist", email)
	}
	return s.accounts[accountID], nil
}

func (s *Store) UpdateAccount(_ context.Context, email string, patch storage.AccountPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID, exists := s.accountIDByEmail[strings.ToLower(email)]
	if !exists {
		return storage.NewError(storage.ErrNotFound, "Account %q does not exist", email)
	}

	account := s.accounts[accountID]
	patch.Name.Apply(&account.Name)
	patch.GitHubID.Apply(&account.GitHubID)
	patch.MicrosoftID.Apply(&account.MicrosoftID)
	s.accounts[accountID] = account
	return nil
}

func (s *Store) GetAccountIDFromAccessKey(_ context.Context, accessKey string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keyID, exists := s.accessKeyIDByName[accessKey]
	if !exists {
		return "", storage.NewError(storage.ErrNotFound, "Access key does not exist")
	}
	key := s.accessKeys[keyID]
	if key.Expires < nowMillis() {
		return "", storage.NewError(storage.ErrExpired, "The access key has expired")
	}
	return key.CreatedBy, nil
}

// Apps ------------------------------------------------------------------------

func (s *Store) AddApp(_ context.Context, accountID string, app storage.App) (storage.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.getAccountLocked(accountID)
	if err != nil {
		return storage.App{}, err
	}
	if err := storage.ValidateMapKey(account.Email); err != nil {
		return storage.App{}, err
	}

	app.ID = uuid.NewString()
	app.CreatedTime = nowMillis()
	// The caller never controls the collaborator map; the creating account is
	// the sole Owner.
	app.Collaborators = map[string]storage.CollaboratorEntry{
		account.Email: {AccountID: accountID, Permission: storage.PermissionOwner},
	}

	s.apps[app.ID] = app
	s.appIDsByAccount[accountID] = append(s.appIDsByAccount[accountID], app.ID)
	return s.annotatedAppLocked(app.ID, accountID), nil
}

func (s *Store) GetApps(_ context.Context, accountID string) ([]storage.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.getAccountLocked(accountID); err != nil {
		return nil, err
	}

	appIDs := s.appIDsByAccount[accountID]
	apps := make([]storage.App, 0, len(appIDs))
	for _, appID := range appIDs {
		apps = append(apps, s.annotatedAppLocked(appID, accountID))
	}
	return apps, nil
}

func (s *Store) GetApp(_ context.Context, accountID, appID string) (storage.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.getAppChainLocked(accountID, appID); err != nil {
		return storage.App{}, err
	}
	return s.annotatedAppLocked(appID, accountID), nil
}

// getAppChainLocked verifies the account->app id chain: the account must
// exist, the app must exist, and the account must hold a collaborator entry
// on the app. Chain violations are NotFound regardless of whether the app
// exists under another account.
func (s *Store) getAppChainLocked(accountID, appID string) (storage.App, error) {
	if _, err := s.getAccountLocked(accountID); err != nil {
		return storage.App{}, err
	}
	app, exists := s.apps[appID]
	if !exists || !storage.IsCollaborator(&app, accountID) {
		return storage.App{}, storage.NewError(storage.ErrNotFound, "App %q does not exist", appID)
	}
	return app, nil
}

// annotatedAppLocked clones the app and flags the calling account's own
// collaborator entry. The flag is computed per request and never persisted.
func (s *Store) annotatedAppLocked(appID, accountID string) storage.App {
	app := storage.CloneApp(s.apps[appID])
	for email, entry := range app.Collaborators {
		if entry.AccountID == accountID {
			entry.IsCurrentAccount = true
			app.Collaborators[email] = entry
		}
	}
	return app
}

func (s *Store) RemoveApp(_ context.Context, accountID, appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, err := s.getAppChainLocked(accountID, appID)
	if err != nil {
		return err
	}

	// Children and reverse indexes go before the forward record, so a crash
	// mid-sequence cannot leave a dangling forward reference.
	for _, deploymentID := range s.deploymentIDsByApp[appID] {
		deployment := s.deployments[deploymentID]
		delete(s.deploymentIDByKey, deployment.Key)
		delete(s.appIDByDeployment, deploymentID)
		delete(s.histories, deploymentID)
		delete(s.deployments, deploymentID)
	}
	delete(s.deploymentIDsByApp, appID)

	for _, entry := range app.Collaborators {
		s.appIDsByAccount[entry.AccountID] = removeID(s.appIDsByAccount[entry.AccountID], appID)
	}
	delete(s.apps, appID)
	return nil
}

func (s *Store) UpdateApp(_ context.Context, accountID, appID string, patch storage.AppPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, err := s.getAppChainLocked(accountID, appID)
	if err != nil {
		return err
	}

	patch.Name.Apply(&app.Name)
	s.apps[appID] = app
	return nil
}

func (s *Store) TransferApp(_ context.Context, accountID, appID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := storage.ValidateMapKey(email); err != nil {
		return err
	}

	app, err := s.getAppChainLocked(accountID, appID)
	if err != nil {
		return err
	}

	targetID, exists := s.accountIDByEmail[strings.ToLower(email)]
	if !exists {
		return storage.NewError(storage.ErrNotFound, "Account %q does not exist", email)
	}
	target := s.accounts[targetID]

	mutated := storage.CloneApp(app)
	created, err := storage.TransferOwnershipEntry(&mutated, target.Email, targetID)
	if err != nil {
		return err
	}

	s.apps[appID] = mutated
	if created {
		s.appIDsByAccount[targetID] = append(s.appIDsByAccount[targetID], appID)
	}
	return nil
}

// Collaborators ---------------------------------------------------------------

func (s *Store) AddCollaborator(_ context.Context, accountID, appID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := storage.ValidateMapKey(email); err != nil {
		return err
	}

	app, err := s.getAppChainLocked(accountID, appID)
	if err != nil {
		return err
	}

	targetID, exists := s.accountIDByEmail[strings.ToLower(email)]
	if !exists {
		return storage.NewError(storage.ErrNotFound, "Account %q does not exist", email)
	}
	target := s.accounts[targetID]

	mutated := storage.CloneApp(app)
	if err := storage.AddCollaboratorEntry(&mutated, target.Email, targetID); err != nil {
		return err
	}

	s.apps[appID] = mutated
	s.appIDsByAccount[targetID] = append(s.appIDsByAccount[targetID], appID)
	return nil
}

func (s *Store) GetCollaborators(_ context.Context, accountID, appID string) (map[string]storage.CollaboratorEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.getAppChainLocked(accountID, appID); err != nil {
		return nil, err
	}
	return s.annotatedAppLocked(appID, accountID).Collaborators, nil
}

func (s *Store) RemoveCollaborator(_ context.Context, accountID, appID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, err := s.getAppChainLocked(accountID, appID)
	if err != nil {
		return err
	}

	mutated := storage.CloneApp(app)
	removedAccountID, err := storage.RemoveCollaboratorEntry(&mutated, email)
	if err != nil {
		return err
	}

	// Reverse index first, then the forward record.
	s.appIDsByAccount[removedAccountID] = removeID(s.appIDsByAccount[removedAccountID], appID)
	s.apps[appID] = mutated
	return nil
}

// Deployments -----------------------------------------------------------------

func (s *Store) AddDeployment(_ context.Context, accountID, appID string, deployment storage.Deployment) (storage.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getAppChainLocked(accountID, appID); err != nil {
		return storage.Deployment{}, err
	}

	if deployment.Key == "" {
		deployment.Key = uuid.NewString()
	}
	if _, exists := s.deploymentIDByKey[deployment.Key]; exists {
		return storage.Deployment{}, storage.NewError(storage.ErrAlreadyExists, "Deployment key %q already exists", deployment.Key)
	}

	deployment.ID = uuid.NewString()
	deployment.CreatedTime = nowMillis()
	deployment.Package = nil

	s.deployments[deployment.ID] = deployment
	s.deploymentIDsByApp[appID] = append(s.deploymentIDsByApp[appID], deployment.ID)
	s.deploymentIDByKey[deployment.Key] = deployment.ID
	s.appIDByDeployment[deployment.ID] = appID
	return storage.CloneDeployment(deployment), nil
}

func (s *Store) GetDeployments(_ context.Context, accountID, appID string) ([]storage.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.getAppChainLocked(accountID, appID); err != nil {
		return nil, err
	}

	deploymentIDs := s.deploymentIDsByApp[appID]
	deployments := make([]storage.Deployment, 0, len(deploymentIDs))
	for _, deploymentID := range deploymentIDs {
		deployments = append(deployments, storage.CloneDeployment(s.deployments[deploymentID]))
	}
	return deployments, nil
}

func (s *Store) GetDeployment(_ context.Context, accountID, appID, deploymentID string) (storage.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deployment, err := s.getDeploymentChainLocked(accountID, appID, deploymentID)
	if err != nil {
		return storage.Deployment{}, err
	}
	return storage.CloneDeployment(deployment), nil
}

// getDeploymentChainLocked verifies the full account->app->deployment chain.
func (s *Store) getDeploymentChainLocked(accountID, appID, deploymentID string) (storage.Deployment, error) {
	if _, err := s.getAppChainLocked(accountID, appID); err != nil {
		return storage.Deployment{}, err
	}
	deployment, exists := s.deployments[deploymentID]
	if !exists || s.appIDByDeployment[deploymentID] != appID {
		return storage.Deployment{}, storage.NewError(storage.ErrNotFound, "Deployment %q does not exist", deploymentID)
	}
	return deployment, nil
}

func (s *Store) GetDeploymentInfo(_ context.Context, deploymentKey string) (storage.DeploymentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deploymentID, exists := s.deploymentIDByKey[deploymentKey]
	if !exists {
		return storage.DeploymentInfo{}, storage.NewError(storage.ErrNotFound, "Deployment key %q does not exist", deploymentKey)
	}
	return storage.DeploymentInfo{
		AppID:        s.appIDByDeployment[deploymentID],
		DeploymentID: deploymentID,
	}, nil
}

func (s *Store) RemoveDeployment(_ context.Context, accountID, appID, deploymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deployment, err := s.getDeploymentChainLocked(accountID, appID, deploymentID)
	if err != nil {
		return err
	}

	delete(s.deploymentIDByKey, deployment.Key)
	delete(s.appIDByDeployment, deploymentID)
	delete(s.histories, deploymentID)
	s.deploymentIDsByApp[appID] = removeID(s.deploymentIDsByApp[appID], deploymentID)
	delete(s.deployments, deploymentID)
	return nil
}

func (s *Store) UpdateDeployment(_ context.Context, accountID, appID, deploymentID string, patch storage.DeploymentPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deployment, err := s.getDeploymentChainLocked(accountID, appID, deploymentID)
	if err != nil {
		return err
	}

	patch.Name.Apply(&deployment.Name)
	s.deployments[deploymentID] = deployment
	return nil
}

// Package history -------------------------------------------------------------

func (s *Store) CommitPackage(_ context.Context, accountID, appID, deploymentID string, pkg storage.Package) (storage.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deployment, err := s.getDeploymentChainLocked(accountID, appID, deploymentID)
	if err != nil {
		return storage.Package{}, err
	}

	if pkg.UploadTime == 0 {
		pkg.UploadTime = nowMillis()
	}

	history := storage.AppendPackage(storage.CloneHistory(s.histories[deploymentID]), pkg)
	s.histories[deploymentID] = history
	deployment.Package = storage.CurrentPackage(history)
	s.deployments[deploymentID] = deployment

	return storage.ClonePackage(history[len(history)-1]), nil
}

func (s *Store) ClearPackageHistory(_ context.Context, accountID, appID, deploymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deployment, err := s.getDeploymentChainLocked(accountID, appID, deploymentID)
	if err != nil {
		return err
	}

	delete(s.histories, deploymentID)
	deployment.Package = nil
	s.deployments[deploymentID] = deployment
	return nil
}

func (s *Store) GetPackageHistory(_ context.Context, accountID, appID, deploymentID string) ([]storage.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.getDeploymentChainLocked(accountID, appID, deploymentID); err != nil {
		return nil, err
	}

	history := storage.CloneHistory(s.histories[deploymentID])
	if history == nil {
		history = []storage.Package{}
	}
	return history, nil
}

func (s *Store) GetPackageHistoryFromDeploymentKey(_ context.Context, deploymentKey string) ([]storage.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deploymentID, exists := s.deploymentIDByKey[deploymentKey]
	if !exists {
		return nil, storage.NewError(storage.ErrNotFound, "Deployment key %q does not exist", deploymentKey)
	}

	history := storage.CloneHistory(s.histories[deploymentID])
	if history == nil {
		history = []storage.Package{}
	}
	return history, nil
}

func (s *Store) UpdatePackageHistory(_ context.Context, accountID, appID, deploymentID string, history []storage.Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deployment, err := s.getDeploymentChainLocked(accountID, appID, deploymentID)
	if err != nil {
		return err
	}
	if err := storage.ValidateHistoryReplacement(history); err != nil {
		return err
	}

	replacement := storage.CloneHistory(history)
	s.histories[deploymentID] = replacement
	deployment.Package = storage.CurrentPackage(replacement)
	s.deployments[deploymentID] = deployment
	return nil
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

func (s *Store) AddAccessKey(_ context.Context, accountID string, key storage.AccessKey) (storage.AccessKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getAccountLocked(accountID); err != nil {
		return storage.AccessKey{}, err
	}

	if key.Name == "" {
		key.Name = uuid.NewString()
	}
	if _, exists := s.accessKeyIDByName[key.Name]; exists {
		return storage.AccessKey{}, storage.NewError(storage.ErrAlreadyExists, "Access key %q already exists", key.FriendlyName)
	}

	key.ID = uuid.NewString()
	key.CreatedBy = accountID
	key.CreatedTime = nowMillis()

	s.accessKeys[key.ID] = key
	s.accessKeyIDsByAccount[accountID] = append(s.accessKeyIDsByAccount[accountID], key.ID)
	s.accessKeyIDByName[key.Name] = key.ID
	return key, nil
}

func (s *Store) GetAccessKeys(_ context.Context, accountID string) ([]storage.AccessKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.getAccountLocked(accountID); err != nil {
		return nil, err
	}

	keyIDs := s.accessKeyIDsByAccount[accountID]
	keys := make([]storage.AccessKey, 0, len(keyIDs))
	for _, keyID := range keyIDs {
		keys = append(keys, s.accessKeys[keyID])
	}
	return keys, nil
}

func (s *Store) GetAccessKey(_ context.Context, accountID, accessKeyID string) (storage.AccessKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAccessKeyChainLocked(accountID, accessKeyID)
}

func (s *Store) getAccessKeyChainLocked(accountID, accessKeyID string) (storage.AccessKey, error) {
	if _, err := s.getAccountLocked(accountID); err != nil {
		return storage.AccessKey{}, err
	}
	key, exists := s.accessKeys[accessKeyID]
	if !exists || key.CreatedBy != accountID {
		return storage.AccessKey{}, storage.NewError(storage.ErrNotFound, "Access key %q does not exist", accessKeyID)
	}
	return key, nil
}

func (s *Store) RemoveAccessKey(_ context.Context, accountID, accessKeyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := s.getAccessKeyChainLocked(accountID, accessKeyID)
	if err != nil {
		return err
	}

	delete(s.accessKeyIDByName, key.Name)
	s.accessKeyIDsByAccount[accountID] = removeID(s.accessKeyIDsByAccount[accountID], accessKeyID)
	delete(s.accessKeys, accessKeyID)
	return nil
}

func (s *Store) UpdateAccessKey(_ context.Context, accountID, accessKeyID string, patch storage.AccessKeyPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := s.getAccessKeyChainLocked(accountID, accessKeyID)
	if err != nil {
		return err
	}

	patch.FriendlyName.Apply(&key.FriendlyName)
	patch.Description.Apply(&key.Description)
	patch.Expires.Apply(&key.Expires)
	s.accessKeys[key.ID] = key
	return nil
}
