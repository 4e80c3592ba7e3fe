// Package archive exports bitácora entries to an external store as they are
// appended. It is write-only: nothing here is read back into room state.
package archive

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DoyleJ11/evidence-board/internal/game"
)

// Record is one bitácora entry tagged with the room it belongs to.
type Record struct {
	RoomCode string
	Entry    game.LogEntry
}

type Sink interface {
	// Record must not block the caller.
	Record(rec Record)
}

type Nop struct{}

func (Nop) Record(Record) {}

// Row is the table layout of an archived entry.
type Row struct {
	ID         uint   `gorm:"primaryKey"`
	RoomCode   string `gorm:"index:idx_room_entry,unique;not null"`
	EntryID    int    `gorm:"index:idx_room_entry,unique;not null"`
	Player     string
	TileName   string
	Type       string
	Prompt     string
	Answer     string
	LoggedAt   string
	ArchivedAt time.Time
}

func (Row) TableName() string { return "bitacora_entries" }

func toRow(rec Record, now time.Time) Row {
	e := rec.Entry
	return Row{
		RoomCode:   rec.RoomCode,
		EntryID:    e.ID,
		Player:     e.Player,
		TileName:   e.TileName,
		Type:       e.Type,
		Prompt:     e.Prompt,
		Answer:     e.Answer,
		LoggedAt:   e.Timestamp,
		ArchivedAt: now,
	}
}

// InsertTimeout bounds a single archive insert.
const InsertTimeout = 5 * time.Second

// Writer queues records and inserts them from a single goroutine.
type Writer struct {
	db            *gorm.DB
	queue         chan Record
	log           *zap.Logger
	done          chan struct{}
	insertTimeout time.Duration
}

func Open(dsn string, queueSize int, log *zap.Logger) (*Writer, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	if err := db.AutoMigrate(&Row{}); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return NewWriter(db, queueSize, log), nil
}

func NewWriter(db *gorm.DB, queueSize int, log *zap.Logger) *Writer {
	return &Writer{
		db:            db,
		queue:         make(chan Record, queueSize),
		log:           log,
		done:          make(chan struct{}),
		insertTimeout: InsertTimeout,
	}
}

func (w *Writer) Record(rec Record) {
	select {
	case <-w.done:
		return
	default:
	}

	select {
	case w.queue <- rec:
	default:
		w.log.Warn("archive queue full, dropping entry",
			zap.String("room", rec.RoomCode),
			zap.Int("entry", rec.Entry.ID))
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (w *Writer) Run(ctx context.Context) error {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return w.flush()
		case rec := <-w.queue:
			if err := w.insert(rec); err != nil {
				w.log.Error("archive insert failed", zap.String("room", rec.RoomCode), zap.Error(err))
			}
		}
	}
}

func (w *Writer) flush() error {
	var errs error
	for {
		select {
		case rec := <-w.queue:
			errs = multierr.Append(errs, w.insert(rec))
		default:
			return errs
		}
	}
}

// insert runs on a fresh context so the final flush still works after Run's
// context is cancelled.
func (w *Writer) insert(rec Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.insertTimeout)
	defer cancel()

	row := toRow(rec, time.Now())
	if err := w.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert %s#%d: %w", rec.RoomCode, rec.Entry.ID, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (w *Writer) Close() error {
	sqlDB, err := w.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
