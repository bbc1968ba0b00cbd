package cache

import (
	"context"
	"errors"
	"time"

	"github.com/KOMKZ/go-yogan-tiercache/database"
	"github.com/KOMKZ/go-yogan-tiercache/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLInstanceName database.Manager instance used by OpenSQLTier
const SQLInstanceName = "tiercache"

const sqlBatchSize = 100

// sqlEntry row of tiercache_entries; times are unix nanoseconds so every driver
// round-trips them exactly
type sqlEntry struct {
	Category     string `gorm:"primaryKey;size:64"`
	Identifier   string `gorm:"primaryKey;size:512"`
	Payload      []byte
	Policy       string `gorm:"size:64;not null"`
	SizeBytes    int
	Checksum     string `gorm:"size:64"`
	CreatedAtNs  int64  `gorm:"not null"`
	AccessedAtNs int64
	ExpiresAtNs  int64 `gorm:"index"` // 0 = never
}

func (sqlEntry) TableName() string {
	return "tiercache_entries"
}

// sqlTableOptions keys compare byte for byte; MySQL's default collation folds case and accents
func sqlTableOptions(dialect string) string {
	if dialect == "mysql" {
		return "DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin"
	}
	return ""
}

func toSQLEntry(e *Entry) sqlEntry {
	row := sqlEntry{
		Category:     string(e.Key.Category),
		Identifier:   e.Key.ID,
		Payload:      e.Payload,
		Policy:       e.Policy.String(),
		SizeBytes:    e.SizeBytes,
		Checksum:     checksum(e.Payload),
		CreatedAtNs:  e.CreatedAt.UnixNano(),
		AccessedAtNs: e.LastAccessedAt().UnixNano(),
	}
	if !e.ExpiresAt.IsZero() {
		row.ExpiresAtNs = e.ExpiresAt.UnixNano()
	}
	return row
}

func (r sqlEntry) entry() (*Entry, error) {
	key := Key{Category: Category(r.Category), ID: r.Identifier}
	policy, err := ParsePolicy(r.Policy)
	if err != nil || policy.IsZero() {
		return nil, ErrSerialize.WithMsgf("row %s has an invalid policy %q", key, r.Policy)
	}
	if r.Checksum != checksum(r.Payload) {
		return nil, ErrSerialize.WithMsgf("row %s checksum mismatch", key)
	}
	var expiresAt time.Time
	if r.ExpiresAtNs != 0 {
		expiresAt = time.Unix(0, r.ExpiresAtNs)
	}
	payload := r.Payload
	if payload == nil {
		payload = []byte{}
	}
	return RestoreEntry(key, payload, policy, time.Unix(0, r.CreatedAtNs), expiresAt, time.Unix(0, r.AccessedAtNs)), nil
}

// SQLTier persistent tier on gorm (sqlite, mysql, postgres)
type SQLTier struct {
	db      *gorm.DB
	manager *database.Manager // owned when opened through OpenSQLTier
}

// NewSQLTier migrates tiercache_entries on db; the caller keeps ownership of db
func NewSQLTier(db *gorm.DB) (*SQLTier, error) {
	if db == nil {
		return nil, ErrInvalidArgument.WithMsg("sql tier requires a database handle")
	}
	migrator := db
	if opts := sqlTableOptions(db.Dialector.Name()); opts != "" {
		migrator = db.Set("gorm:table_options", opts)
	}
	if err := migrator.AutoMigrate(&sqlEntry{}); err != nil {
		return nil, ErrTierIO.Wrapf(err, "migrate tiercache_entries")
	}
	return &SQLTier{db: db}, nil
}

// OpenSQLTier opens its own connection; Close releases it
func OpenSQLTier(cfg database.Config, log *logger.CtxZapLogger) (*SQLTier, error) {
	if log == nil {
		log = logger.GetLogger(logger.GormModule)
	}
	mgr, err := database.NewManager(
		map[string]database.Config{SQLInstanceName: cfg},
		database.NewGormLoggerFactory(log),
		log,
	)
	if err != nil {
		return nil, ErrTierIO.Wrapf(err, "open sql tier")
	}
	t, err := NewSQLTier(mgr.DB(SQLInstanceName))
	if err != nil {
		_ = mgr.Close()
		return nil, err
	}
	t.manager = mgr
	return t, nil
}

func (t *SQLTier) Name() string {
	return "sql"
}

// DB 底层 gorm 句柄
func (t *SQLTier) DB() *gorm.DB {
	return t.db
}

func (t *SQLTier) Lookup(ctx context.Context, key Key) (*Entry, error) {
	var row sqlEntry
	err := t.db.WithContext(ctx).
		Where("category = ? AND identifier = ?", string(key.Category), key.ID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCacheMiss
		}
		return nil, ErrTierIO.Wrapf(err, "select %s", key)
	}
	e, err := row.entry()
	if err != nil {
		return nil, err
	}
	if e.Key != key {
		// a case- or accent-insensitive column matched another identifier
		return nil, ErrCacheMiss
	}
	return e, nil
}

func upsert(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.OnConflict{UpdateAll: true})
}

func (t *SQLTier) Store(ctx context.Context, e *Entry) error {
	row := toSQLEntry(e)
	if err := upsert(t.db.WithContext(ctx)).Create(&row).Error; err != nil {
		return ErrTierIO.Wrapf(err, "upsert %s", e.Key)
	}
	return nil
}

// StoreBatch one transaction per batch
func (t *SQLTier) StoreBatch(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]sqlEntry, len(entries))
	for i, e := range entries {
		rows[i] = toSQLEntry(e)
	}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsert(tx).CreateInBatches(rows, sqlBatchSize).Error
	})
	if err != nil {
		return ErrTierIO.Wrapf(err, "upsert batch of %d", len(rows))
	}
	return nil
}

func (t *SQLTier) Remove(ctx context.Context, key Key) error {
	err := t.db.WithContext(ctx).
		Where("category = ? AND identifier = ?", string(key.Category), key.ID).
		Delete(&sqlEntry{}).Error
	if err != nil {
		return ErrTierIO.Wrapf(err, "delete %s", key)
	}
	return nil
}

func (t *SQLTier) RemoveCategory(ctx context.Context, category Category) (int, error) {
	res := t.db.WithContext(ctx).Where("category = ?", string(category)).Delete(&sqlEntry{})
	if res.Error != nil {
		return 0, ErrTierIO.Wrapf(res.Error, "delete category %s", category)
	}
	return int(res.RowsAffected), nil
}

// Scan pages through the table in primary key order (keyset pagination, the
// composite key rules out FindInBatches); unreadable rows are skipped
func (t *SQLTier) Scan(ctx context.Context, fn func(*Entry) bool) error {
	var lastCategory, lastID string
	for first := true; ; first = false {
		if err := ctx.Err(); err != nil {
			return err
		}
		q := t.db.WithContext(ctx).Order("category, identifier").Limit(sqlBatchSize)
		if !first {
			q = q.Where("category > ? OR (category = ? AND identifier > ?)", lastCategory, lastCategory, lastID)
		}
		var rows []sqlEntry
		if err := q.Find(&rows).Error; err != nil {
			return ErrTierIO.Wrapf(err, "scan tiercache_entries")
		}
		for _, row := range rows {
			e, err := row.entry()
			if err != nil {
				continue
			}
			if !fn(e) {
				return nil
			}
		}
		if len(rows) < sqlBatchSize {
			return nil
		}
		last := rows[len(rows)-1]
		lastCategory, lastID = last.Category, last.Identifier
	}
}

// Ping 当 tier 自己打开连接时走 database.HealthChecker
func (t *SQLTier) Ping(ctx context.Context) error {
	if t.manager != nil {
		if err := database.NewHealthChecker(t.manager).Check(ctx); err != nil {
			return ErrTierIO.Wrap(err)
		}
		return nil
	}
	sqlDB, err := t.db.DB()
	if err != nil {
		return ErrTierIO.Wrap(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return ErrTierIO.Wrap(err)
	}
	return nil
}

// Close releases the connection only when the tier opened it
func (t *SQLTier) Close() error {
	if t.manager == nil {
		return nil
	}
	return t.manager.Close()
}
