// Package json implements a JSON file-based store driver.
// It uses atomic writes (temp file + fsync + rename) and in-process locking.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tutorloop/matchflow-go/internal/identity"
	"github.com/tutorloop/matchflow-go/internal/match"
	"github.com/tutorloop/matchflow-go/internal/match/actions"
	"github.com/tutorloop/matchflow-go/internal/match/calendar"
	"github.com/tutorloop/matchflow-go/internal/match/digest"
	"github.com/tutorloop/matchflow-go/internal/match/fallback"
	"github.com/tutorloop/matchflow-go/internal/match/onboarding"
	"github.com/tutorloop/matchflow-go/internal/match/requests"
	"github.com/tutorloop/matchflow-go/internal/platform/cfgutil"
	"github.com/tutorloop/matchflow-go/internal/store"
)

func init() {
	store.Register("json", NewDriver)
}

// Config holds the json driver settings.
type Config struct {
	// Dir is the directory holding the data files.
	Dir string `mapstructure:"dir"`
}

// Driver implements store.Driver using JSON files. Slices preserve
// the append order the engines rely on; maps are rebuilt on load.
type Driver struct {
	dataDir string
	mu      sync.RWMutex
	closed  bool

	requests    []*requests.Request
	onboarding  map[string]*onboarding.Record
	actions     []*actions.Action
	suggestions map[string]*fallback.SuggestionSet
	events      []*calendar.Event
	digests     []*digest.Digest
	users       []*userRecord

	requestIndex map[string]*requests.Request
	userIndex    map[string]*userRecord // by ID
	byUsername   map[string]*userRecord
}

// userRecord mirrors identity.User with the password hash included,
// since the domain type redacts it from JSON.
type userRecord struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	PartyID      string    `json:"party_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toUserRecord(user *identity.User) *userRecord {
	return &userRecord{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		PartyID:      user.PartyID,
		CreatedAt:    user.CreatedAt,
	}
}

func (r *userRecord) toUser() *identity.User {
	return &identity.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		DisplayName:  r.DisplayName,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		PartyID:      r.PartyID,
		CreatedAt:    r.CreatedAt,
	}
}

// NewDriver is the registry factory.
func NewDriver(conf map[string]any, _ *slog.Logger) (store.Driver, error) {
	var c Config
	if err := cfgutil.Decode(conf, &c); err != nil {
		return nil, err
	}
	if c.Dir == "" {
		return nil, fmt.Errorf("dir is required for json driver")
	}

	return &Driver{
		dataDir:      c.Dir,
		onboarding:   make(map[string]*onboarding.Record),
		suggestions:  make(map[string]*fallback.SuggestionSet),
		requestIndex: make(map[string]*requests.Request),
		userIndex:    make(map[string]*userRecord),
		byUsername:   make(map[string]*userRecord),
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string { return "json" }

// Init loads data from the JSON files and rebuilds indexes.
func (d *Driver) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	if err := d.loadFile("requests.json", &d.requests); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load requests: %w", err)
	}
	if err := d.loadFile("onboarding.json", &d.onboarding); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load onboarding records: %w", err)
	}
	if err := d.loadFile("actions.json", &d.actions); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load actions: %w", err)
	}
	if err := d.loadFile("suggestions.json", &d.suggestions); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load suggestions: %w", err)
	}
	if err := d.loadFile("events.json", &d.events); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load events: %w", err)
	}
	if err := d.loadFile("digests.json", &d.digests); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load digests: %w", err)
	}
	if err := d.loadFile("users.json", &d.users); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load users: %w", err)
	}

	d.rebuildIndexes()

	return nil
}

// Close releases resources.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// loadFile loads a JSON file into the target.
func (d *Driver) loadFile(filename string, target interface{}) error {
	path := filepath.Join(d.dataDir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// saveFile atomically writes data to a JSON file.
// Pattern: write to temp file, fsync, rename.
func (d *Driver) saveFile(filename string, data interface{}) error {
	path := filepath.Join(d.dataDir, filename)
	tempPath := path + ".tmp"

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(jsonData); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// rebuildIndexes rebuilds lookup maps from the loaded slices.
func (d *Driver) rebuildIndexes() {
	d.requestIndex = make(map[string]*requests.Request, len(d.requests))
	for _, req := range d.requests {
		d.requestIndex[req.ID] = req
	}

	d.userIndex = make(map[string]*userRecord, len(d.users))
	d.byUsername = make(map[string]*userRecord, len(d.users))
	for _, user := range d.users {
		d.userIndex[user.ID] = user
		d.byUsername[user.Username] = user
	}

	if d.onboarding == nil {
		d.onboarding = make(map[string]*onboarding.Record)
	}
	if d.suggestions == nil {
		d.suggestions = make(map[string]*fallback.SuggestionSet)
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// requests.Repo implementation

func (d *Driver) CreateRequest(ctx context.Context, req *requests.Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}

	if _, exists := d.requestIndex[req.ID]; exists {
		return fmt.Errorf("request %s: %w", req.ID, match.ErrDuplicateID)
	}

	stored := req.Clone()
	d.requests = append(d.requests, stored)
	d.requestIndex[req.ID] = stored

	return d.saveFile("requests.json", d.requests)
}

func (d *Driver) GetRequest(ctx context.Context, id string) (*requests.Request, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}

	req, ok := d.requestIndex[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, match.ErrNotFound)
	}
	return req.Clone(), nil
}

func (d *Driver) ListRequests(ctx context.Context) ([]*requests.Request, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}

	out := make([]*requests.Request, 0, len(d.requests))
	for _, req := range d.requests {
		out = append(out, req.Clone())
	}
	return out, nil
}

func (d *Driver) TransitionRequest(ctx context.Context, id string, to requests.Status, at time.Time) (*requests.Request, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, store.ErrClosed
	}

	req, ok := d.requestIndex[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, match.ErrNotFound)
	}
	if req.Status != requests.StatusPending {
		return nil, fmt.Errorf("request %s is %s: %w", id, req.Status, match.ErrInvalidTransition)
	}
	if !to.Terminal() {
		return nil, fmt.Errorf("cannot transition to %s: %w", to, match.ErrInvalidTransition)
	}

	responded := at
	req.Status = to
	req.RespondedAt = &responded
	req.UpdatedAt = at

	if err := d.saveFile("requests.json", d.requests); err != nil {
		return nil, err
	}
	return req.Clone(), nil
}

// onboarding.Repo implementation

func (d *Driver) GetOnboarding(ctx context.Context, userID string) (*onboarding.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}

	rec, ok := d.onboarding[userID]
	if !ok {
		return nil, fmt.Errorf("onboarding %s: %w", userID, match.ErrNotFound)
	}
	copied := *rec
	return &copied, nil
}

func (d *Driver) SetOnboarding(ctx context.Context, rec *onboarding.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}

	copied := *rec
	d.onboarding[rec.UserID] = &copied

	return d.saveFile("onboarding.json", d.onboarding)
}

// actions.Repo implementation

func (d *Driver) PutAction(ctx context.Context, a *actions.Action) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}

	copied := *a
	d.actions = append(d.actions, &copied)

	return d.saveFile("actions.json", d.actions)
}

func (d *Driver) ListActions(ctx context.Context, role match.Role, targetID string) ([]*actions.Action, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}

	out := make([]*actions.Action, 0)
	for _, a := range d.actions {
		if a.Role == role && a.TargetID == targetID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

// fallback.Repo implementation

func (d *Driver) PutSuggestions(ctx context.Context, set *fallback.SuggestionSet) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}

	copied := *set
	copied.Candidates = append([]fallback.Candidate(nil), set.Candidates...)
	d.suggestions[set.RequestID] = &copied

	return d.saveFile("suggestions.json", d.suggestions)
}

func (d *Driver) GetSuggestions(ctx context.Context, requestID string) (*fallback.SuggestionSet, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}

	set, ok := d.suggestions[requestID]
	if !ok {
		return nil, nil
	}
	copied := *set
	copied.Candidates = append([]fallback.Candidate(nil), set.Candidates...)
	return &copied, nil
}

// calendar.Repo implementation

func (d *Driver) RecordEvent(ctx context.Context, ev *calendar.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}

	copied := *ev
	if copied.ID == "" {
		copied.ID = newID()
		ev.ID = copied.ID
	}
	d.events = append(d.events, &copied)

	return d.saveFile("events.json", d.events)
}

func (d *Driver) ListEvents(ctx context.Context, role match.Role, ownerID string) ([]*calendar.Event, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}

	out := make([]*calendar.Event, 0)
	for _, ev := range d.events {
		if ev.Role == role && ev.OwnerID == ownerID {
			copied := *ev
			out = append(out, &copied)
		}
	}
	return out, nil
}

// digest.Repo implementation

func (d *Driver) AppendDigest(ctx context.Context, dg *digest.Digest) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}

	copied := *dg
	if copied.ID == "" {
		copied.ID = newID()
		dg.ID = copied.ID
	}
	d.digests = append(d.digests, &copied)

	return d.saveFile("digests.json", d.digests)
}

func (d *Driver) ListDigests(ctx context.Context, role match.Role, targetID string) ([]*digest.Digest, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}

	out := make([]*digest.Digest, 0)
	for _, dg := range d.digests {
		if dg.Role == role && dg.TargetID == targetID {
			copied := *dg
			out = append(out, &copied)
		}
	}
	return out, nil
}

// identity.PartyRepo implementation

func (d *Driver) Create(ctx context.Context, user *identity.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}

	if _, exists := d.byUsername[user.Username]; exists {
		return identity.ErrUserExists
	}

	if user.ID == "" {
		user.ID = identity.NewUserID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	rec := toUserRecord(user)
	d.users = append(d.users, rec)
	d.userIndex[rec.ID] = rec
	d.byUsername[rec.Username] = rec

	return d.saveFile("users.json", d.users)
}

func (d *Driver) Get(ctx context.Context, id string) (*identity.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}

	rec, ok := d.userIndex[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return rec.toUser(), nil
}

func (d *Driver) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}

	rec, ok := d.byUsername[username]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return rec.toUser(), nil
}

func (d *Driver) Update(ctx context.Context, user *identity.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}

	rec, ok := d.userIndex[user.ID]
	if !ok {
		return identity.ErrUserNotFound
	}

	delete(d.byUsername, rec.Username)
	*rec = *toUserRecord(user)
	d.byUsername[rec.Username] = rec

	return d.saveFile("users.json", d.users)
}

func (d *Driver) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}

	rec, ok := d.userIndex[id]
	if !ok {
		return identity.ErrUserNotFound
	}

	if rec.Role == identity.RoleAdmin && d.adminCountLocked() == 1 {
		return identity.ErrAdminProtected
	}

	delete(d.userIndex, id)
	delete(d.byUsername, rec.Username)
	for i, u := range d.users {
		if u.ID == id {
			d.users = append(d.users[:i], d.users[i+1:]...)
			break
		}
	}

	return d.saveFile("users.json", d.users)
}

func (d *Driver) List(ctx context.Context, role string) ([]*identity.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}

	var out []*identity.User
	for _, rec := range d.users {
		if role == "" || rec.Role == role {
			out = append(out, rec.toUser())
		}
	}
	return out, nil
}

func (d *Driver) adminCountLocked() int {
	var n int
	for _, rec := range d.users {
		if rec.Role == identity.RoleAdmin {
			n++
		}
	}
	return n
}

var _ store.Driver = (*Driver)(nil)
