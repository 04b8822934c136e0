package application_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ericfisherdev/igmedia/internal/domain/model"
	"github.com/ericfisherdev/igmedia/internal/domain/port/driven"
)

// --- Credential store ---

type fakeCredentialStore struct {
	mu      sync.Mutex
	cred    model.Credential
	saves   int
	saveErr error
}

func (f *fakeCredentialStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch key {
	case driven.SettingAppID:
		return f.cred.AppID, nil
	case driven.SettingAppSecret:
		return f.cred.AppSecret, nil
	case driven.SettingAccessToken:
		return f.cred.AccessToken, nil
	case driven.SettingUsername:
		return f.cred.Username, nil
	}
	return "", nil
}

func (f *fakeCredentialStore) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch key {
	case driven.SettingAppID:
		f.cred.AppID = value
	case driven.SettingAppSecret:
		f.cred.AppSecret = value
	case driven.SettingAccessToken:
		f.cred.AccessToken = value
	case driven.SettingUsername:
		f.cred.Username = value
	}
	return nil
}

func (f *fakeCredentialStore) Delete(ctx context.Context, key string) error {
	return f.Set(ctx, key, "")
}

func (f *fakeCredentialStore) Load(_ context.Context) (model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cred, nil
}

func (f *fakeCredentialStore) Save(_ context.Context, cred model.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.cred = cred
	f.saves++
	return nil
}

func (f *fakeCredentialStore) snapshot() model.Credential {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cred
}

// --- State store ---

type fakeStateStore struct {
	states map[string]time.Time
	now    func() time.Time
}

func newFakeStateStore(now func() time.Time) *fakeStateStore {
	return &fakeStateStore{states: map[string]time.Time{}, now: now}
}

func (f *fakeStateStore) Put(_ context.Context, state string, expiresAt time.Time) error {
	f.states[state] = expiresAt
	return nil
}

func (f *fakeStateStore) Exists(_ context.Context, state string) (bool, error) {
	exp, ok := f.states[state]
	return ok && f.now().Before(exp), nil
}

func (f *fakeStateStore) Delete(_ context.Context, state string) error {
	delete(f.states, state)
	return nil
}

func (f *fakeStateStore) Pending(_ context.Context) (bool, error) {
	for _, exp := range f.states {
		if f.now().Before(exp) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStateStore) only() string {
	for s := range f.states {
		return s
	}
	return ""
}

// --- Media store ---

type fakeMediaStore struct {
	byRemote  map[string]*model.MediaItem
	nextID    int64
	failOn    map[string]error
	now       func() time.Time
	upsertErr error
}

func newFakeMediaStore() *fakeMediaStore {
	return &fakeMediaStore{byRemote: map[string]*model.MediaItem{}, failOn: map[string]error{}, now: time.Now}
}

func (f *fakeMediaStore) Upsert(_ context.Context, item model.MediaItem) (bool, error) {
	if err := f.failOn[item.RemoteID]; err != nil {
		return false, err
	}
	if existing, ok := f.byRemote[item.RemoteID]; ok {
		item.ID = existing.ID
		item.IsVisible = existing.IsVisible
		item.CreatedAt = existing.CreatedAt
		item.UpdatedAt = f.now()
		*existing = item
		return false, nil
	}
	f.nextID++
	item.ID = f.nextID
	item.CreatedAt = f.now()
	item.UpdatedAt = item.CreatedAt
	f.byRemote[item.RemoteID] = &item
	return true, nil
}

func (f *fakeMediaStore) GetByRemoteID(_ context.Context, remoteID string) (*model.MediaItem, error) {
	item, ok := f.byRemote[remoteID]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (f *fakeMediaStore) GetByID(_ context.Context, id int64) (*model.MediaItem, error) {
	for _, item := range f.byRemote {
		if item.ID == id {
			cp := *item
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeMediaStore) List(_ context.Context, q driven.MediaQuery) ([]model.MediaItem, error) {
	items := []model.MediaItem{}
	for _, item := range f.byRemote {
		if q.VisibleOnly && !item.IsVisible {
			continue
		}
		if q.MediaType != "" && item.MediaType != q.MediaType {
			continue
		}
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items, nil
}

func (f *fakeMediaStore) SetVisibility(_ context.Context, id int64, visible bool) error {
	for _, item := range f.byRemote {
		if item.ID == id {
			item.IsVisible = visible
			return nil
		}
	}
	return model.ErrMediaNotFound
}

func (f *fakeMediaStore) HideOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	var n int
	for _, item := range f.byRemote {
		if item.IsVisible && !item.PostedAt.IsZero() && item.PostedAt.Before(cutoff) {
			item.IsVisible = false
			n++
		}
	}
	return n, nil
}

// --- Instagram client ---

type fakeInstagramClient struct {
	mu sync.Mutex

	shortGrant   model.TokenGrant
	longGrant    model.TokenGrant
	refreshGrant model.TokenGrant
	profile      model.Profile
	media        []model.RemoteMedia
	single       map[string]*model.RemoteMedia

	exchangeErr error
	longErr     error
	refreshErr  error
	profileErr  error
	mediaErr    error

	refreshCalls  int
	exchangeCalls int
	lastLimit     int
}

func (f *fakeInstagramClient) AuthorizationURL(appID, redirectURI, state string) string {
	return "https://auth.test/authorize?client_id=" + appID + "&redirect_uri=" + redirectURI + "&state=" + state
}

func (f *fakeInstagramClient) ExchangeCode(_ context.Context, _, _, _, _ string) (model.TokenGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchangeCalls++
	return f.shortGrant, f.exchangeErr
}

func (f *fakeInstagramClient) ExchangeLongLived(_ context.Context, _, _ string) (model.TokenGrant, error) {
	return f.longGrant, f.longErr
}

func (f *fakeInstagramClient) RefreshToken(_ context.Context, _ string) (model.TokenGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	return f.refreshGrant, f.refreshErr
}

func (f *fakeInstagramClient) FetchProfile(_ context.Context, _ string) (model.Profile, error) {
	return f.profile, f.profileErr
}

func (f *fakeInstagramClient) FetchMedia(_ context.Context, _ string, limit int) ([]model.RemoteMedia, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	return f.media, f.mediaErr
}

func (f *fakeInstagramClient) FetchMediaByID(_ context.Context, _, mediaID string) (*model.RemoteMedia, error) {
	if f.mediaErr != nil {
		return nil, f.mediaErr
	}
	return f.single[mediaID], nil
}

var errBoom = errors.New("boom")

func intPtr(v int) *int { return &v }

// fixedClock returns a time source pinned to t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
