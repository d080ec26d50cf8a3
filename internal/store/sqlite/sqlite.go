// Package sqlite implements a SQLite-based store driver using GORM.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

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
	store.Register("sqlite", NewDriver)
}

// Config holds the sqlite driver settings.
type Config struct {
	// Path is the database file. Parent directories are created.
	Path string `mapstructure:"path"`
}

// Driver implements store.Driver using SQLite via GORM.
type Driver struct {
	path string
	db   *gorm.DB
}

// NewDriver is the registry factory.
func NewDriver(conf map[string]any, _ *slog.Logger) (store.Driver, error) {
	var c Config
	if err := cfgutil.Decode(conf, &c); err != nil {
		return nil, err
	}
	if c.Path == "" {
		return nil, fmt.Errorf("path is required for sqlite driver")
	}
	return &Driver{path: c.Path}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string { return "sqlite" }

// Init opens the database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	if dir := filepath.Dir(d.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(d.path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	if err := db.AutoMigrate(
		&requestRow{},
		&onboardingRow{},
		&actionRow{},
		&suggestionRow{},
		&eventRow{},
		&digestRow{},
		&userRow{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Row models. Seq is the insertion-order key; the domain id gets a
// unique index where the engines require one.

type requestRow struct {
	Seq           int64  `gorm:"primaryKey;autoIncrement"`
	ID            string `gorm:"uniqueIndex"`
	RequesterID   string
	TargetID      string
	TargetRole    string
	Subject       string
	Status        string `gorm:"index"`
	ResponseDueAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	RespondedAt   *time.Time
}

func (requestRow) TableName() string { return "matching_requests" }

func toRequestRow(req *requests.Request) *requestRow {
	return &requestRow{
		ID:            req.ID,
		RequesterID:   req.RequesterID,
		TargetID:      req.TargetID,
		TargetRole:    string(req.TargetRole),
		Subject:       req.Subject,
		Status:        string(req.Status),
		ResponseDueAt: req.ResponseDueAt,
		CreatedAt:     req.CreatedAt,
		UpdatedAt:     req.UpdatedAt,
		RespondedAt:   req.RespondedAt,
	}
}

func (r *requestRow) toRequest() *requests.Request {
	req := &requests.Request{
		ID:            r.ID,
		RequesterID:   r.RequesterID,
		TargetID:      r.TargetID,
		TargetRole:    match.Role(r.TargetRole),
		Subject:       r.Subject,
		Status:        requests.Status(r.Status),
		ResponseDueAt: r.ResponseDueAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.RespondedAt != nil {
		t := *r.RespondedAt
		req.RespondedAt = &t
	}
	return req
}

type onboardingRow struct {
	UserID            string `gorm:"primaryKey"`
	CompletionPercent int
}

func (onboardingRow) TableName() string { return "onboarding_records" }

type actionRow struct {
	Seq      int64  `gorm:"primaryKey;autoIncrement"`
	Role     string `gorm:"index:idx_actions_key"`
	TargetID string `gorm:"index:idx_actions_key"`
	Kind     string
	Payload  []byte
}

func (actionRow) TableName() string { return "next_actions" }

type suggestionRow struct {
	RequestID  string `gorm:"primaryKey"`
	Candidates []byte
}

func (suggestionRow) TableName() string { return "fallback_suggestions" }

type eventRow struct {
	Seq      int64  `gorm:"primaryKey;autoIncrement"`
	ID       string `gorm:"uniqueIndex"`
	Role     string `gorm:"index:idx_events_owner"`
	OwnerID  string `gorm:"index:idx_events_owner"`
	Title    string
	StartsAt time.Time
	EndsAt   time.Time
}

func (eventRow) TableName() string { return "calendar_events" }

type digestRow struct {
	Seq         int64  `gorm:"primaryKey;autoIncrement"`
	ID          string `gorm:"uniqueIndex"`
	Role        string `gorm:"index:idx_digests_target"`
	TargetID    string `gorm:"index:idx_digests_target"`
	GeneratedAt time.Time
	Body        []byte
}

func (digestRow) TableName() string { return "digests" }

type userRow struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex"`
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string `gorm:"index"`
	PartyID      string
	CreatedAt    time.Time
}

func (userRow) TableName() string { return "accounts" }

func toUserRow(user *identity.User) *userRow {
	return &userRow{
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

func (r *userRow) toUser() *identity.User {
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

// requests.Repo implementation

func (d *Driver) CreateRequest(ctx context.Context, req *requests.Request) error {
	result := d.db.WithContext(ctx).Create(toRequestRow(req))
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("request %s: %w", req.ID, match.ErrDuplicateID)
	}
	return result.Error
}

func (d *Driver) GetRequest(ctx context.Context, id string) (*requests.Request, error) {
	var row requestRow
	result := d.db.WithContext(ctx).First(&row, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("request %s: %w", id, match.ErrNotFound)
		}
		return nil, result.Error
	}
	return row.toRequest(), nil
}

func (d *Driver) ListRequests(ctx context.Context) ([]*requests.Request, error) {
	var rows []*requestRow
	result := d.db.WithContext(ctx).Order("seq").Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	out := make([]*requests.Request, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRequest())
	}
	return out, nil
}

func (d *Driver) TransitionRequest(ctx context.Context, id string, to requests.Status, at time.Time) (*requests.Request, error) {
	var row requestRow
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("request %s: %w", id, match.ErrNotFound)
			}
			return err
		}
		if requests.Status(row.Status) != requests.StatusPending {
			return fmt.Errorf("request %s is %s: %w", id, row.Status, match.ErrInvalidTransition)
		}
		if !to.Terminal() {
			return fmt.Errorf("cannot transition to %s: %w", to, match.ErrInvalidTransition)
		}

		responded := at
		row.Status = string(to)
		row.RespondedAt = &responded
		row.UpdatedAt = at
		return tx.Save(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return row.toRequest(), nil
}

// onboarding.Repo implementation

func (d *Driver) GetOnboarding(ctx context.Context, userID string) (*onboarding.Record, error) {
	var row onboardingRow
	result := d.db.WithContext(ctx).First(&row, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("onboarding %s: %w", userID, match.ErrNotFound)
		}
		return nil, result.Error
	}
	return &onboarding.Record{UserID: row.UserID, CompletionPercent: row.CompletionPercent}, nil
}

func (d *Driver) SetOnboarding(ctx context.Context, rec *onboarding.Record) error {
	row := &onboardingRow{UserID: rec.UserID, CompletionPercent: rec.CompletionPercent}
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, UpdateAll: true}).
		Create(row).Error
}

// actions.Repo implementation

func (d *Driver) PutAction(ctx context.Context, a *actions.Action) error {
	row := &actionRow{
		Role:     string(a.Role),
		TargetID: a.TargetID,
		Kind:     a.Kind,
		Payload:  []byte(a.Payload),
	}
	return d.db.WithContext(ctx).Create(row).Error
}

func (d *Driver) ListActions(ctx context.Context, role match.Role, targetID string) ([]*actions.Action, error) {
	var rows []*actionRow
	result := d.db.WithContext(ctx).
		Where("role = ? AND target_id = ?", string(role), targetID).
		Order("seq").Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	out := make([]*actions.Action, 0, len(rows))
	for _, row := range rows {
		out = append(out, &actions.Action{
			Role:     match.Role(row.Role),
			TargetID: row.TargetID,
			Kind:     row.Kind,
			Payload:  json.RawMessage(row.Payload),
		})
	}
	return out, nil
}

// fallback.Repo implementation

func (d *Driver) PutSuggestions(ctx context.Context, set *fallback.SuggestionSet) error {
	candidates, err := json.Marshal(set.Candidates)
	if err != nil {
		return fmt.Errorf("failed to marshal candidates: %w", err)
	}
	row := &suggestionRow{RequestID: set.RequestID, Candidates: candidates}
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "request_id"}}, UpdateAll: true}).
		Create(row).Error
}

func (d *Driver) GetSuggestions(ctx context.Context, requestID string) (*fallback.SuggestionSet, error) {
	var row suggestionRow
	result := d.db.WithContext(ctx).First(&row, "request_id = ?", requestID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	set := &fallback.SuggestionSet{RequestID: row.RequestID}
	if err := json.Unmarshal(row.Candidates, &set.Candidates); err != nil {
		return nil, fmt.Errorf("failed to unmarshal candidates: %w", err)
	}
	return set, nil
}

// calendar.Repo implementation

func (d *Driver) RecordEvent(ctx context.Context, ev *calendar.Event) error {
	if ev.ID == "" {
		ev.ID = newID()
	}
	row := &eventRow{
		ID:       ev.ID,
		Role:     string(ev.Role),
		OwnerID:  ev.OwnerID,
		Title:    ev.Title,
		StartsAt: ev.StartsAt,
		EndsAt:   ev.EndsAt,
	}
	return d.db.WithContext(ctx).Create(row).Error
}

func (d *Driver) ListEvents(ctx context.Context, role match.Role, ownerID string) ([]*calendar.Event, error) {
	var rows []*eventRow
	result := d.db.WithContext(ctx).
		Where("role = ? AND owner_id = ?", string(role), ownerID).
		Order("seq").Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	out := make([]*calendar.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, &calendar.Event{
			ID:       row.ID,
			Role:     match.Role(row.Role),
			OwnerID:  row.OwnerID,
			Title:    row.Title,
			StartsAt: row.StartsAt,
			EndsAt:   row.EndsAt,
		})
	}
	return out, nil
}

// digest.Repo implementation

func (d *Driver) AppendDigest(ctx context.Context, dg *digest.Digest) error {
	if dg.ID == "" {
		dg.ID = newID()
	}
	row := &digestRow{
		ID:          dg.ID,
		Role:        string(dg.Role),
		TargetID:    dg.TargetID,
		GeneratedAt: dg.GeneratedAt,
		Body:        []byte(dg.Body),
	}
	return d.db.WithContext(ctx).Create(row).Error
}

func (d *Driver) ListDigests(ctx context.Context, role match.Role, targetID string) ([]*digest.Digest, error) {
	var rows []*digestRow
	result := d.db.WithContext(ctx).
		Where("role = ? AND target_id = ?", string(role), targetID).
		Order("seq").Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	out := make([]*digest.Digest, 0, len(rows))
	for _, row := range rows {
		out = append(out, &digest.Digest{
			ID:          row.ID,
			Role:        match.Role(row.Role),
			TargetID:    row.TargetID,
			GeneratedAt: row.GeneratedAt,
			Body:        json.RawMessage(row.Body),
		})
	}
	return out, nil
}

// identity.PartyRepo implementation

func (d *Driver) Create(ctx context.Context, user *identity.User) error {
	if user.ID == "" {
		user.ID = identity.NewUserID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	result := d.db.WithContext(ctx).Create(toUserRow(user))
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return identity.ErrUserExists
	}
	return result.Error
}

func (d *Driver) Get(ctx context.Context, id string) (*identity.User, error) {
	var row userRow
	result := d.db.WithContext(ctx).First(&row, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, identity.ErrUserNotFound
		}
		return nil, result.Error
	}
	return row.toUser(), nil
}

func (d *Driver) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	var row userRow
	result := d.db.WithContext(ctx).First(&row, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, identity.ErrUserNotFound
		}
		return nil, result.Error
	}
	return row.toUser(), nil
}

func (d *Driver) Update(ctx context.Context, user *identity.User) error {
	result := d.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", user.ID).
		Select("*").Updates(toUserRow(user))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

func (d *Driver) Delete(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row userRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return identity.ErrUserNotFound
			}
			return err
		}

		if row.Role == identity.RoleAdmin {
			var admins int64
			if err := tx.Model(&userRow{}).Where("role = ?", identity.RoleAdmin).Count(&admins).Error; err != nil {
				return err
			}
			if admins <= 1 {
				return identity.ErrAdminProtected
			}
		}

		return tx.Delete(&userRow{}, "id = ?", id).Error
	})
}

func (d *Driver) List(ctx context.Context, role string) ([]*identity.User, error) {
	var rows []*userRow
	query := d.db.WithContext(ctx)
	if role != "" {
		query = query.Where("role = ?", role)
	}
	result := query.Order("username").Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	out := make([]*identity.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toUser())
	}
	return out, nil
}

var _ store.Driver = (*Driver)(nil)
