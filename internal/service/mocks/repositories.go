package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SergeiKhy/sourcetrace/internal/models"
	"github.com/SergeiKhy/sourcetrace/internal/repository"
)

// MockAppRepository implements repository.AppRepository for testing
type MockAppRepository struct {
	mu   sync.RWMutex
	apps map[string]*models.MobileApp
}

func NewMockAppRepository(apps ...*models.MobileApp) *MockAppRepository {
	m := &MockAppRepository{apps: make(map[string]*models.MobileApp)}
	for _, app := range apps {
		m.apps[app.ID] = app
	}
	return m
}

func (m *MockAppRepository) Add(app *models.MobileApp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[app.ID] = app
}

func (m *MockAppRepository) GetByID(ctx context.Context, id string) (*models.MobileApp, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	app, exists := m.apps[id]
	if !exists {
		return nil, repository.ErrAppNotFound
	}
	return app, nil
}

// MockLinkRepository implements repository.LinkRepository for testing
type MockLinkRepository struct {
	mu    sync.RWMutex
	links map[string]*models.TrackingLink // slug -> link

	// Conflicts первые N вызовов Create вернут ErrConflict
	Conflicts int
	// Err возвращается всеми методами чтения, если задан
	Err error
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{links: make(map[string]*models.TrackingLink)}
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.TrackingLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Conflicts > 0 {
		m.Conflicts--
		return repository.ErrConflict
	}
	if _, exists := m.links[link.Slug]; exists {
		return repository.ErrConflict
	}

	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}
	stored := *link
	m.links[link.Slug] = &stored
	return nil
}

func (m *MockLinkRepository) GetBySlug(ctx context.Context, slug string) (*models.TrackingLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	link, exists := m.links[slug]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	return link, nil
}

func (m *MockLinkRepository) GetBySlugForApp(ctx context.Context, slug, appID string) (*models.TrackingLink, error) {
	link, err := m.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if link.AppID != appID {
		return nil, repository.ErrLinkNotFound
	}
	return link, nil
}

func (m *MockLinkRepository) GetByID(id string) *models.TrackingLink {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, link := range m.links {
		if link.ID == id {
			return link
		}
	}
	return nil
}

func (m *MockLinkRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]models.LinkSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.LinkSummary
	for _, link := range m.links {
		if link.WorkspaceID != workspaceID {
			continue
		}
		summary := models.LinkSummary{TrackingLink: *link}
		if link.App != nil {
			summary.AppName = link.App.Name
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// MockLinkCache implements repository.LinkCache for testing
type MockLinkCache struct {
	mu    sync.RWMutex
	cache map[string]*models.TrackingLink

	// Err возвращается из Get и Set, если задан (недоступный Redis)
	Err  error
	Sets int
}

func NewMockLinkCache() *MockLinkCache {
	return &MockLinkCache{cache: make(map[string]*models.TrackingLink)}
}

func (m *MockLinkCache) Get(ctx context.Context, slug string) (*models.TrackingLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	link, exists := m.cache[slug]
	if !exists || link.App == nil {
		return nil, repository.ErrCacheMiss
	}
	return link, nil
}

func (m *MockLinkCache) Set(ctx context.Context, link *models.TrackingLink, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.Sets++
	m.cache[link.Slug] = link
	return nil
}

func (m *MockLinkCache) Delete(ctx context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, slug)
	return nil
}

func (m *MockLinkCache) Has(slug string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.cache[slug]
	return ok
}

// MockClickRepository implements repository.ClickRepository for testing
type MockClickRepository struct {
	mu     sync.RWMutex
	clicks map[string]*models.Click // click_id -> click
	links  *MockLinkRepository

	Conflicts int
	Err       error
}

// NewMockClickRepository links нужен, чтобы GetByClickID возвращал клик со ссылкой
func NewMockClickRepository(links *MockLinkRepository) *MockClickRepository {
	return &MockClickRepository{
		clicks: make(map[string]*models.Click),
		links:  links,
	}
}

func (m *MockClickRepository) Create(ctx context.Context, click *models.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if m.Conflicts > 0 {
		m.Conflicts--
		return repository.ErrConflict
	}
	if _, exists := m.clicks[click.ClickID]; exists {
		return repository.ErrConflict
	}

	if click.ID == "" {
		click.ID = uuid.NewString()
	}
	stored := *click
	m.clicks[click.ClickID] = &stored
	return nil
}

func (m *MockClickRepository) GetByClickID(ctx context.Context, clickID string) (*models.Click, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	click, exists := m.clicks[clickID]
	if !exists {
		return nil, repository.ErrClickNotFound
	}
	out := *click
	if m.links != nil {
		out.Link = m.links.GetByID(click.LinkID)
	}
	return &out, nil
}

func (m *MockClickRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clicks)
}

// All клики в произвольном порядке
func (m *MockClickRepository) All() []models.Click {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Click, 0, len(m.clicks))
	for _, c := range m.clicks {
		out = append(out, *c)
	}
	return out
}

// MockEventRepository implements repository.EventRepository for testing
type MockEventRepository struct {
	mu       sync.RWMutex
	events   []*models.Event
	installs *MockInstallRepository

	Err error
}

func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{}
}

func (m *MockEventRepository) Create(ctx context.Context, event *models.Event, backfill *models.ExternalUserBackfill) error {
	if m.Err != nil {
		return m.Err
	}

	m.insert(event)
	if backfill != nil && m.installs != nil {
		m.installs.backfill(backfill)
	}
	return nil
}

func (m *MockEventRepository) insert(event *models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	stored := *event
	m.events = append(m.events, &stored)
}

func (m *MockEventRepository) ListRecent(ctx context.Context, workspaceID string, limit int) ([]models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Event
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].WorkspaceID == workspaceID {
			out = append(out, *m.events[i])
		}
	}
	return out, nil
}

func (m *MockEventRepository) All() []models.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, *e)
	}
	return out
}

// MockInstallRepository implements repository.InstallRepository for testing
type MockInstallRepository struct {
	mu       sync.RWMutex
	installs map[string]*models.Install
	events   *MockEventRepository
}

// NewMockInstallRepository синтетические события INSTALL и back-fill идут через events
func NewMockInstallRepository(events *MockEventRepository) *MockInstallRepository {
	m := &MockInstallRepository{
		installs: make(map[string]*models.Install),
		events:   events,
	}
	events.installs = m
	return m
}

func (m *MockInstallRepository) CreateWithEvent(ctx context.Context, install *models.Install, event *models.Event) error {
	m.mu.Lock()
	if install.ClickInternalID != nil {
		for _, existing := range m.installs {
			if existing.ClickInternalID != nil && *existing.ClickInternalID == *install.ClickInternalID {
				m.mu.Unlock()
				return repository.ErrConflict
			}
		}
	}
	if install.ID == "" {
		install.ID = uuid.NewString()
	}
	if install.CreatedAt.IsZero() {
		install.CreatedAt = time.Now()
	}
	stored := *install
	m.installs[install.ID] = &stored
	m.mu.Unlock()

	event.InstallID = &install.ID
	m.events.insert(event)
	return nil
}

// Add кладёт установку напрямую, без события
func (m *MockInstallRepository) Add(install *models.Install) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if install.ID == "" {
		install.ID = uuid.NewString()
	}
	stored := *install
	m.installs[install.ID] = &stored
}

func (m *MockInstallRepository) Get(id string) *models.Install {
	m.mu.RLock()
	defer m.mu.RUnlock()

	install, ok := m.installs[id]
	if !ok {
		return nil
	}
	out := *install
	return &out
}

func (m *MockInstallRepository) GetForApp(ctx context.Context, id, workspaceID, appID string) (*models.Install, error) {
	install := m.Get(id)
	if install == nil || install.WorkspaceID != workspaceID || install.AppID != appID {
		return nil, repository.ErrInstallNotFound
	}
	return install, nil
}

func (m *MockInstallRepository) GetLatestByDevice(ctx context.Context, workspaceID, appID, deviceID string) (*models.Install, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *models.Install
	for _, install := range m.installs {
		if install.WorkspaceID != workspaceID || install.AppID != appID {
			continue
		}
		if install.DeviceID == nil || *install.DeviceID != deviceID {
			continue
		}
		if latest == nil || install.InstalledAt.After(latest.InstalledAt) {
			latest = install
		}
	}
	if latest == nil {
		return nil, repository.ErrInstallNotFound
	}
	out := *latest
	return &out, nil
}

func (m *MockInstallRepository) GetAttribution(ctx context.Context, id, workspaceID string) (*models.InstallAttribution, error) {
	install := m.Get(id)
	if install == nil || install.WorkspaceID != workspaceID {
		return nil, repository.ErrInstallNotFound
	}
	return &models.InstallAttribution{
		InstallID:   install.ID,
		Attribution: install.Attribution,
		LinkID:      install.LinkID,
	}, nil
}

func (m *MockInstallRepository) backfill(b *models.ExternalUserBackfill) {
	m.mu.Lock()
	defer m.mu.Unlock()

	install, ok := m.installs[b.InstallID]
	if !ok || install.ExternalUserID != nil {
		return
	}
	userID := b.ExternalUserID
	install.ExternalUserID = &userID
}

// MockSkanRepository implements repository.SkanRepository for testing
type MockSkanRepository struct {
	mu        sync.Mutex
	Postbacks []*models.SkanPostback
}

func NewMockSkanRepository() *MockSkanRepository {
	return &MockSkanRepository{}
}

func (m *MockSkanRepository) Create(ctx context.Context, postback *models.SkanPostback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if postback.ID == "" {
		postback.ID = uuid.NewString()
	}
	postback.CreatedAt = time.Now()
	m.Postbacks = append(m.Postbacks, postback)
	return nil
}

// MockCostRepository implements repository.CostRepository for testing
type MockCostRepository struct {
	mu      sync.Mutex
	Entries []*models.AdCostEntry
	// Attempts число вызовов Create, включая неудачные
	Attempts int
	Err      error
}

func NewMockCostRepository() *MockCostRepository {
	return &MockCostRepository{}
}

func (m *MockCostRepository) Create(ctx context.Context, entry *models.AdCostEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Attempts++
	if m.Err != nil {
		return m.Err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now()
	m.Entries = append(m.Entries, entry)
	return nil
}

func (m *MockCostRepository) ListRecent(ctx context.Context, workspaceID string, limit int) ([]models.AdCostEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.AdCostEntry
	for _, e := range m.Entries {
		if e.WorkspaceID == workspaceID {
			out = append(out, *e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MockAPIKeyRepository implements repository.APIKeyRepository for testing
type MockAPIKeyRepository struct {
	mu      sync.RWMutex
	keys    map[string]*models.IngestionAPIKey // id -> key
	touched map[string]time.Time

	Err error
}

func NewMockAPIKeyRepository() *MockAPIKeyRepository {
	return &MockAPIKeyRepository{
		keys:    make(map[string]*models.IngestionAPIKey),
		touched: make(map[string]time.Time),
	}
}

func (m *MockAPIKeyRepository) Create(ctx context.Context, key *models.IngestionAPIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.keys {
		if existing.KeyHash == key.KeyHash {
			return repository.ErrConflict
		}
	}
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	stored := *key
	m.keys[key.ID] = &stored
	return nil
}

func (m *MockAPIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*models.IngestionAPIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	for _, key := range m.keys {
		if key.KeyHash == keyHash {
			out := *key
			return &out, nil
		}
	}
	return nil, repository.ErrKeyNotFound
}

func (m *MockAPIKeyRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]models.IngestionAPIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.IngestionAPIKey
	for _, key := range m.keys {
		if key.WorkspaceID == workspaceID {
			out = append(out, *key)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockAPIKeyRepository) Revoke(ctx context.Context, workspaceID, keyID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[keyID]
	if !ok || key.WorkspaceID != workspaceID {
		return repository.ErrKeyNotFound
	}
	key.IsActive = false
	if key.RevokedAt == nil {
		key.RevokedAt = &at
	}
	return nil
}

func (m *MockAPIKeyRepository) TouchLastUsed(ctx context.Context, keyID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.touched[keyID] = at
	if key, ok := m.keys[keyID]; ok {
		key.LastUsedAt = &at
	}
	return nil
}

func (m *MockAPIKeyRepository) Get(id string) *models.IngestionAPIKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.keys[id]
	if !ok {
		return nil
	}
	out := *key
	return &out
}

func (m *MockAPIKeyRepository) Touched(id string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.touched[id]
	return at, ok
}

// MockSessionRepository implements repository.SessionRepository for testing
type MockSessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]mockSession // token hash -> session
}

type mockSession struct {
	membership models.Membership
	expiresAt  time.Time
}

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{sessions: make(map[string]mockSession)}
}

func (m *MockSessionRepository) Add(tokenHash string, membership models.Membership, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[tokenHash] = mockSession{membership: membership, expiresAt: expiresAt}
}

func (m *MockSessionRepository) GetMembership(ctx context.Context, tokenHash string, now time.Time) (*models.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[tokenHash]
	if !ok || !s.expiresAt.After(now) {
		return nil, repository.ErrSessionNotFound
	}
	out := s.membership
	return &out, nil
}

// MockIdempotencyStore implements repository.IdempotencyStore for testing
type MockIdempotencyStore struct {
	mu        sync.Mutex
	responses map[string]*repository.StoredResponse

	Err error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{responses: make(map[string]*repository.StoredResponse)}
}

func (m *MockIdempotencyStore) Get(ctx context.Context, scope, key string) (*repository.StoredResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	resp, ok := m.responses[scope+":"+key]
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	return resp, nil
}

func (m *MockIdempotencyStore) Save(ctx context.Context, scope, key string, resp *repository.StoredResponse, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if _, exists := m.responses[scope+":"+key]; !exists {
		m.responses[scope+":"+key] = resp
	}
	return nil
}
