package delivery

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/infrastructure/lock"
	"github.com/deliverysync/backend/internal/infrastructure/vault"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	testRestaurant = "rest-1"
	testSecret     = "test-vault-secret-with-at-least-32-chars"
)

// ---------------------------------------------------------------------------
// Repositories
// ---------------------------------------------------------------------------

type credKey struct {
	restaurantID string
	platform     delivery.Platform
}

type fakeCredentialRepo struct {
	mu    sync.Mutex
	creds map[credKey]delivery.Credential
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{creds: make(map[credKey]delivery.Credential)}
}

func (r *fakeCredentialRepo) Create(_ context.Context, cred *delivery.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := credKey{cred.RestaurantID, cred.Platform}
	if _, ok := r.creds[k]; ok {
		return delivery.NewCredentialConflictError(cred.Platform)
	}
	r.creds[k] = *cred
	return nil
}

func (r *fakeCredentialRepo) FindByKey(_ context.Context, restaurantID string, platform delivery.Platform) (*delivery.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[credKey{restaurantID, platform}]
	if !ok {
		return nil, delivery.NewNotFoundError("credentials", restaurantID, platform)
	}
	return &c, nil
}

func (r *fakeCredentialRepo) list(match func(delivery.Credential) bool) []delivery.Credential {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []delivery.Credential
	for _, c := range r.creds {
		if match(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RestaurantID != out[j].RestaurantID {
			return out[i].RestaurantID < out[j].RestaurantID
		}
		return out[i].Platform < out[j].Platform
	})
	return out
}

func (r *fakeCredentialRepo) FindByRestaurant(_ context.Context, restaurantID string) ([]delivery.Credential, error) {
	return r.list(func(c delivery.Credential) bool { return c.RestaurantID == restaurantID }), nil
}

func (r *fakeCredentialRepo) FindActiveByRestaurant(_ context.Context, restaurantID string) ([]delivery.Credential, error) {
	return r.list(func(c delivery.Credential) bool { return c.RestaurantID == restaurantID && c.IsActive }), nil
}

func (r *fakeCredentialRepo) FindAutoSync(_ context.Context) ([]delivery.Credential, error) {
	return r.list(func(c delivery.Credential) bool { return c.IsActive && c.SyncConfig != nil && c.SyncConfig.AutoSync }), nil
}

func (r *fakeCredentialRepo) Update(_ context.Context, cred *delivery.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := credKey{cred.RestaurantID, cred.Platform}
	if _, ok := r.creds[k]; !ok {
		return delivery.NewNotFoundError("credentials", cred.RestaurantID, cred.Platform)
	}
	r.creds[k] = *cred
	return nil
}

func (r *fakeCredentialRepo) Delete(_ context.Context, restaurantID string, platform delivery.Platform) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := credKey{restaurantID, platform}
	if _, ok := r.creds[k]; !ok {
		return delivery.NewNotFoundError("credentials", restaurantID, platform)
	}
	delete(r.creds, k)
	return nil
}

func (r *fakeCredentialRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.creds)
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[credKey]delivery.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[credKey]delivery.Session)}
}

func (r *fakeSessionRepo) put(s delivery.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[credKey{s.RestaurantID, s.Platform}] = s
}

func (r *fakeSessionRepo) get(restaurantID string, platform delivery.Platform) (delivery.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[credKey{restaurantID, platform}]
	return s, ok
}

func (r *fakeSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *fakeSessionRepo) Upsert(_ context.Context, session *delivery.Session) error {
	r.put(*session)
	return nil
}

func (r *fakeSessionRepo) FindByKey(_ context.Context, restaurantID string, platform delivery.Platform) (*delivery.Session, error) {
	s, ok := r.get(restaurantID, platform)
	if !ok {
		return nil, delivery.NewNotFoundError("session", restaurantID, platform)
	}
	return &s, nil
}

func (r *fakeSessionRepo) Exists(_ context.Context, restaurantID string, platform delivery.Platform) (bool, error) {
	_, ok := r.get(restaurantID, platform)
	return ok, nil
}

func (r *fakeSessionRepo) FindByRestaurant(_ context.Context, restaurantID string) ([]delivery.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []delivery.Session
	for _, s := range r.sessions {
		if s.RestaurantID == restaurantID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out, nil
}

func (r *fakeSessionRepo) mutate(restaurantID string, platform delivery.Platform, fn func(*delivery.Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := credKey{restaurantID, platform}
	s, ok := r.sessions[k]
	if !ok {
		return delivery.NewNotFoundError("session", restaurantID, platform)
	}
	fn(&s)
	r.sessions[k] = s
	return nil
}

func (r *fakeSessionRepo) Touch(_ context.Context, restaurantID string, platform delivery.Platform, usedAt time.Time) error {
	return r.mutate(restaurantID, platform, func(s *delivery.Session) { s.LastUsedAt = usedAt })
}

func (r *fakeSessionRepo) MarkValidated(_ context.Context, restaurantID string, platform delivery.Platform, at time.Time) error {
	return r.mutate(restaurantID, platform, func(s *delivery.Session) { s.LastValidatedAt = &at })
}

func (r *fakeSessionRepo) Revoke(_ context.Context, restaurantID string, platform delivery.Platform) error {
	return r.mutate(restaurantID, platform, func(s *delivery.Session) { s.Revoked = true })
}

func (r *fakeSessionRepo) Delete(_ context.Context, restaurantID string, platform delivery.Platform) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := credKey{restaurantID, platform}
	_, ok := r.sessions[k]
	delete(r.sessions, k)
	return ok, nil
}

func (r *fakeSessionRepo) DeleteCreatedBefore(_ context.Context, restaurantID string, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, s := range r.sessions {
		if restaurantID != "" && k.restaurantID != restaurantID {
			continue
		}
		if s.CreatedAt.Before(cutoff) {
			delete(r.sessions, k)
			n++
		}
	}
	return n, nil
}

type fakeSyncLogRepo struct {
	mu   sync.Mutex
	logs []delivery.SyncLog
}

func (r *fakeSyncLogRepo) Create(_ context.Context, log *delivery.SyncLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *fakeSyncLogRepo) List(_ context.Context, filter delivery.SyncLogFilter) ([]delivery.SyncLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []delivery.SyncLog
	for _, l := range r.logs {
		if l.RestaurantID == filter.RestaurantID && (filter.Platform == "" || l.Platform == filter.Platform) {
			out = append(out, l)
		}
	}
	total := int64(len(out))
	start := min(filter.Offset(), len(out))
	end := min(start+filter.PageSize, len(out))
	return out[start:end], total, nil
}

func (r *fakeSyncLogRepo) all() []delivery.SyncLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery.SyncLog(nil), r.logs...)
}

type fakeSyncStateRepo struct {
	mu     sync.Mutex
	states map[credKey]delivery.SyncState
}

func newFakeSyncStateRepo() *fakeSyncStateRepo {
	return &fakeSyncStateRepo{states: make(map[credKey]delivery.SyncState)}
}

func (r *fakeSyncStateRepo) Find(_ context.Context, restaurantID string, platform delivery.Platform) (*delivery.SyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[credKey{restaurantID, platform}]
	if !ok {
		return nil, nil
	}
	items := make(map[string]delivery.SyncedItem, len(s.Items))
	for k, v := range s.Items {
		items[k] = v
	}
	s.Items = items
	return &s, nil
}

func (r *fakeSyncStateRepo) Save(_ context.Context, state *delivery.SyncState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[credKey{state.RestaurantID, state.Platform}] = *state
	return nil
}

type fakeMenu struct {
	items []delivery.MenuItem
}

func (m *fakeMenu) Snapshot(_ context.Context, restaurantID string) (*delivery.MenuSnapshot, error) {
	return &delivery.MenuSnapshot{RestaurantID: restaurantID, Items: m.items, TakenAt: fixedNow}, nil
}

func testMenu() *fakeMenu {
	return &fakeMenu{items: []delivery.MenuItem{
		{ID: "item-1", Name: "Pad Thai", Price: decimal.RequireFromString("12.50"), InStock: true},
		{ID: "item-2", Name: "Green Curry", Price: decimal.RequireFromString("14.00"), InStock: true},
	}}
}

// ---------------------------------------------------------------------------
// Audit
// ---------------------------------------------------------------------------

type recordingAudit struct {
	mu      sync.Mutex
	entries []delivery.AuditEntry
}

func (a *recordingAudit) Record(_ context.Context, entry delivery.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *recordingAudit) actions() []delivery.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]delivery.AuditAction, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

func (a *recordingAudit) last() delivery.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries[len(a.entries)-1]
}

// ---------------------------------------------------------------------------
// Browser and driver
// ---------------------------------------------------------------------------

type stubPage struct{}

func (stubPage) Navigate(string) error { return nil }
func (stubPage) URL() (string, error) { return "about:blank", nil }
func (stubPage) Click(string) error { return nil }
func (stubPage) Fill(string, string) error { return nil }
func (stubPage) WaitVisible(string, time.Duration) error { return nil }
func (stubPage) Exists(string) (bool, error) { return true, nil }
func (stubPage) Text(string) (string, error) { return "", nil }
func (stubPage) Snapshot() (*delivery.BrowserState, error) { return &delivery.BrowserState{}, nil }
func (stubPage) Restore(*delivery.BrowserState) error { return nil }
func (stubPage) Screenshot() ([]byte, error) { return []byte("png"), nil }

type fakeBrowser struct {
	opened atomic.Int32
	closed atomic.Int32
	headed atomic.Int32
	err    error
}

func (b *fakeBrowser) Open(_ context.Context, opts delivery.PageOptions) (delivery.Page, func(), error) {
	if b.err != nil {
		return nil, nil, b.err
	}
	b.opened.Add(1)
	if opts.Headed {
		b.headed.Add(1)
	}
	return stubPage{}, func() { b.closed.Add(1) }, nil
}

// fakeDriver answers from its function fields; nil fields succeed
type fakeDriver struct {
	platform        delivery.Platform
	startLogin      func(creds delivery.LoginCredentials) error
	isAuthenticated func(ctx context.Context) (bool, error)
	validate        func(ctx context.Context, blob []byte) (bool, error)
	syncMenu        func(ctx context.Context, req delivery.SyncRequest) (*delivery.SyncResult, error)

	mu     sync.Mutex
	logins []delivery.LoginCredentials
	syncs  []delivery.SyncRequest
}

func (d *fakeDriver) Platform() delivery.Platform { return d.platform }

func (d *fakeDriver) StartLogin(_ context.Context, _ delivery.Page, creds delivery.LoginCredentials) error {
	d.mu.Lock()
	d.logins = append(d.logins, creds)
	d.mu.Unlock()
	if d.startLogin != nil {
		return d.startLogin(creds)
	}
	return nil
}

func (d *fakeDriver) IsAuthenticated(ctx context.Context, _ delivery.Page) (bool, error) {
	if d.isAuthenticated != nil {
		return d.isAuthenticated(ctx)
	}
	return true, nil
}

func (d *fakeDriver) CaptureSession(context.Context, delivery.Page) ([]byte, error) {
	return []byte(`{"platform":"` + string(d.platform) + `"}`), nil
}

func (d *fakeDriver) ValidateSession(ctx context.Context, _ delivery.Page, blob []byte) (bool, error) {
	if d.validate != nil {
		return d.validate(ctx, blob)
	}
	return true, nil
}

func (d *fakeDriver) SyncMenu(ctx context.Context, _ delivery.Page, _ []byte, req delivery.SyncRequest) (*delivery.SyncResult, error) {
	d.mu.Lock()
	d.syncs = append(d.syncs, req)
	d.mu.Unlock()
	if d.syncMenu != nil {
		return d.syncMenu(ctx, req)
	}
	return applyAll(req), nil
}

func (d *fakeDriver) syncRequests() []delivery.SyncRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]delivery.SyncRequest(nil), d.syncs...)
}

// applyAll reports every change as synced on the first attempt
func applyAll(req delivery.SyncRequest) *delivery.SyncResult {
	result := &delivery.SyncResult{Errors: []string{}}
	for _, c := range req.Changes {
		result.Record(delivery.ItemResult{ItemID: c.Item.ID, Name: c.PortalName, Success: true, Attempts: 1})
	}
	return result
}

type fakeRegistry map[delivery.Platform]delivery.PlatformDriver

func (r fakeRegistry) Get(platform delivery.Platform) (delivery.PlatformDriver, error) {
	d, ok := r[platform]
	if !ok {
		return nil, delivery.NewValidationError("unsupported platform %q", platform)
	}
	return d, nil
}

type mockArtifactStore struct {
	mock.Mock
}

func (m *mockArtifactStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

type mockProber struct {
	mock.Mock
}

func (m *mockProber) Probe(ctx context.Context, platform delivery.Platform, creds delivery.LoginCredentials) (*ActionResult, error) {
	args := m.Called(ctx, platform, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ActionResult), args.Error(1)
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type harness struct {
	creds     *fakeCredentialRepo
	sessions  *fakeSessionRepo
	logs      *fakeSyncLogRepo
	states    *fakeSyncStateRepo
	menu      *fakeMenu
	browser   *fakeBrowser
	locker    *lock.MemoryLocker
	cipher    *vault.Cipher
	audit     *recordingAudit
	doordash  *fakeDriver
	ubereats  *fakeDriver
	artifacts delivery.ArtifactStore
	now       time.Time
}

func newHarness() *harness {
	cipher, err := vault.NewCipher(testSecret)
	if err != nil {
		panic(err)
	}
	return &harness{
		creds:    newFakeCredentialRepo(),
		sessions: newFakeSessionRepo(),
		logs:     &fakeSyncLogRepo{},
		states:   newFakeSyncStateRepo(),
		menu:     testMenu(),
		browser:  &fakeBrowser{},
		locker:   lock.NewMemoryLocker(),
		cipher:   cipher,
		audit:    &recordingAudit{},
		doordash: &fakeDriver{platform: delivery.PlatformDoorDash},
		ubereats: &fakeDriver{platform: delivery.PlatformUberEats},
		now:      fixedNow,
	}
}

func (h *harness) deps() Dependencies {
	return Dependencies{
		Credentials: h.creds,
		Sessions:    h.sessions,
		SyncLogs:    h.logs,
		SyncStates:  h.states,
		Menu:        h.menu,
		Drivers: fakeRegistry{
			delivery.PlatformDoorDash: h.doordash,
			delivery.PlatformUberEats: h.ubereats,
		},
		Browser:   h.browser,
		Locker:    h.locker,
		Cipher:    h.cipher,
		Audit:     h.audit,
		Artifacts: h.artifacts,
		Now:       func() time.Time { return h.now },
	}
}

func testConfig() Config {
	return Config{
		LoginWait:    200 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		TestTimeout:  200 * time.Millisecond,
		ProbeTimeout: 200 * time.Millisecond,
		SyncTimeout:  time.Second,
		MaxAgeDays:   30,
		Concurrency:  2,
		Retry:        delivery.DefaultRetryPolicy(),
	}
}

func (h *harness) sessionService() *SessionService {
	d := h.deps()
	return NewSessionService(d, NewCredentialReader(h.creds, h.cipher), testConfig())
}

func (h *harness) syncService() *SyncService {
	return NewSyncService(h.deps(), testConfig())
}

// seedSession stores a session captured age ago
func (h *harness) seedSession(platform delivery.Platform, age time.Duration) {
	created := h.now.Add(-age)
	h.sessions.put(delivery.Session{
		ID:           [16]byte{1},
		RestaurantID: testRestaurant,
		Platform:     platform,
		Blob:         []byte("blob"),
		CreatedAt:    created,
		LastUsedAt:   created,
	})
}

// seedCredential stores an active credential with a sealed password
func (h *harness) seedCredential(platform delivery.Platform, cfg *delivery.SyncConfig) {
	sealed, err := h.cipher.Seal("s3cret", delivery.CredentialAAD(testRestaurant, platform))
	if err != nil {
		panic(err)
	}
	cred, err := delivery.NewCredential(testRestaurant, platform, "owner@example.com", sealed, h.now)
	if err != nil {
		panic(err)
	}
	cred.SyncConfig = cfg
	if err := h.creds.Create(context.Background(), cred); err != nil {
		panic(err)
	}
}
