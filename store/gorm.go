package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// User is the gorm model backing UserRecord.
type User struct {
	UserID       int64  `gorm:"primarykey;autoIncrement:false"`
	Username     string `gorm:"index"`
	DisplayName  string
	WarningCount int `gorm:"not null;default:0"`
	Banned       bool `gorm:"not null;default:false"`
	JoinedAt     time.Time
	LastActive   time.Time
}

// Keyword is the gorm model backing KeywordEntry.
type Keyword struct {
	ID   int64  `gorm:"primarykey"`
	Term string `gorm:"uniqueIndex;not null"`
}

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// SetupDatabase opens a database handle based on a URL scheme prefix:
// "sqlite://" for sqlite files (or ":memory:"), "postgres://" (or
// "postgresql://") passed through to the postgres driver.
func SetupDatabase(dburl string, maxConnections int) (*gorm.DB, error) {
	var dial gorm.Dialector

	isSqlite := false
	openConns := maxConnections
	if strings.HasPrefix(dburl, "sqlite://") {
		sqliteSuffix := dburl[len("sqlite://"):]
		// ensure the directory exists (eg, if db file is being initialized)
		if !strings.Contains(sqliteSuffix, ":memory:") {
			os.MkdirAll(filepath.Dir(sqliteSuffix), os.ModePerm)
		}
		dial = sqlite.Open(sqliteSuffix)
		openConns = 1
		isSqlite = true
	} else if strings.HasPrefix(dburl, "postgresql://") || strings.HasPrefix(dburl, "postgres://") {
		// can pass entire URL, with prefix, to gorm driver
		dial = postgres.Open(dburl)
	} else {
		return nil, fmt.Errorf("unsupported or unrecognized DATABASE_URL value: %s", dburl)
	}

	gormLogger := slogGorm.New()

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqldb.SetMaxIdleConns(80)
	sqldb.SetMaxOpenConns(openConns)
	sqldb.SetConnMaxIdleTime(time.Hour)

	if isSqlite {
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			return nil, err
		}
	}

	return db, nil
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&User{}, &Keyword{}); err != nil {
		return nil, fmt.Errorf("migrating moderation tables: %w", err)
	}
	return &GormStore{db: db}, nil
}

// wraps database failures as ErrUnavailable, so callers can make a single
// fail-open/fail-closed decision without inspecting driver errors
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (s *GormStore) GetUser(ctx context.Context, userID int64) (*UserRecord, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, "user_id = ?", userID).Error; err != nil {
		return nil, translate(err)
	}
	rec := UserRecord(u)
	return &rec, nil
}

func (s *GormStore) UpsertUser(ctx context.Context, rec *UserRecord) error {
	u := User(*rec)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "display_name", "warning_count", "banned", "last_active",
		}),
	}).Create(&u).Error
	return translate(err)
}

func (s *GormStore) TouchUser(ctx context.Context, userID int64, username, displayName string, now time.Time) error {
	if displayName == "" {
		displayName = fmt.Sprintf("User_%d", userID)
	}
	u := User{
		UserID:      userID,
		Username:    username,
		DisplayName: displayName,
		JoinedAt:    now,
		LastActive:  now,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "display_name", "last_active"}),
	}).Create(&u).Error
	return translate(err)
}

// IncrementWarning is a single upsert statement, so concurrent violations
// for the same user each land, and each caller gets back a distinct count.
func (s *GormStore) IncrementWarning(ctx context.Context, userID int64) (int, error) {
	now := time.Now().UTC()
	u := User{
		UserID:       userID,
		DisplayName:  fmt.Sprintf("User_%d", userID),
		WarningCount: 1,
		JoinedAt:     now,
		LastActive:   now,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"warning_count": gorm.Expr("users.warning_count + 1"),
		}),
	}, clause.Returning{
		Columns: []clause.Column{{Name: "warning_count"}},
	}).Create(&u).Error
	if err != nil {
		return 0, translate(err)
	}
	return u.WarningCount, nil
}

func (s *GormStore) DecrementWarning(ctx context.Context, userID int64) (int, error) {
	var u User
	res := s.db.WithContext(ctx).Model(&u).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "warning_count"}}}).
		Where("user_id = ?", userID).
		Update("warning_count", gorm.Expr("CASE WHEN warning_count > 0 THEN warning_count - 1 ELSE 0 END"))
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		// unknown user is implicitly clean; don't create a record for them
		return 0, nil
	}
	return u.WarningCount, nil
}

func (s *GormStore) MarkBanned(ctx context.Context, userID int64) error {
	err := s.db.WithContext(ctx).Model(&User{}).
		Where("user_id = ?", userID).
		Update("banned", true).Error
	return translate(err)
}

func (s *GormStore) ListKeywords(ctx context.Context) ([]KeywordEntry, error) {
	var rows []Keyword
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]KeywordEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, KeywordEntry{ID: r.ID, Term: r.Term})
	}
	return out, nil
}
