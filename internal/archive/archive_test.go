package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DoyleJ11/evidence-board/internal/game"
)

func TestToRow(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	rec := Record{RoomCode: "abc", Entry: game.LogEntry{
		ID: 3, Timestamp: "10/15/2026, 1:00:00 PM", Player: "Ana",
		TileName: "Caseta", Type: "Co", Prompt: "p", Answer: "a",
	}}

	assert.Equal(t, Row{
		RoomCode: "abc", EntryID: 3, Player: "Ana", TileName: "Caseta",
		Type: "Co", Prompt: "p", Answer: "a", LoggedAt: "10/15/2026, 1:00:00 PM", ArchivedAt: now,
	}, toRow(rec, now))
}

func TestWriter_RecordNeverBlocks(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	w := NewWriter(nil, 1, zap.New(core))

	done := make(chan struct{})
	go func() {
		w.Record(Record{RoomCode: "abc", Entry: game.LogEntry{ID: 1}})
		w.Record(Record{RoomCode: "abc", Entry: game.LogEntry{ID: 2}})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Record blocked on a full queue")
	}

	assert.Len(t, w.queue, 1)
	assert.Equal(t, 1, logs.FilterMessage("archive queue full, dropping entry").Len())
}

func TestWriter_RecordAfterStopIsDropped(t *testing.T) {
	w := NewWriter(nil, 4, zap.NewNop())
	close(w.done)

	w.Record(Record{RoomCode: "abc"})
	assert.Len(t, w.queue, 0)
}

func TestNop(t *testing.T) {
	var s Sink = Nop{}
	s.Record(Record{RoomCode: "abc"})
}

// dryRunDB builds statements without a server; the deadlines channel
// receives the time left on each insert's context.
func dryRunDB(t *testing.T) (*gorm.DB, chan time.Duration) {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=127.0.0.1 user=board dbname=board sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	deadlines := make(chan time.Duration, 8)
	err = db.Callback().Create().Before("gorm:create").Register("test:deadline", func(tx *gorm.DB) {
		dl, ok := tx.Statement.Context.Deadline()
		if !ok {
			deadlines <- 0
			return
		}
		deadlines <- time.Until(dl)
	})
	require.NoError(t, err)
	return db, deadlines
}

func TestWriter_InsertsCarryDeadline(t *testing.T) {
	db, deadlines := dryRunDB(t)
	w := NewWriter(db, 4, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	w.Record(Record{RoomCode: "abc", Entry: game.LogEntry{ID: 1}})
	select {
	case left := <-deadlines:
		assert.Greater(t, left, time.Duration(0), "live insert has no deadline")
		assert.LessOrEqual(t, left, InsertTimeout)
	case <-time.After(time.Second):
		t.Fatalf("insert never reached the database")
	}

	cancel()
	require.NoError(t, <-errCh)
}

func TestWriter_FlushInsertsCarryDeadline(t *testing.T) {
	db, deadlines := dryRunDB(t)
	w := NewWriter(db, 4, zap.NewNop())
	w.Record(Record{RoomCode: "abc", Entry: game.LogEntry{ID: 1}})
	w.Record(Record{RoomCode: "abc", Entry: game.LogEntry{ID: 2}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))

	require.Len(t, deadlines, 2)
	for range 2 {
		left := <-deadlines
		assert.Greater(t, left, time.Duration(0), "flush insert has no deadline")
		assert.LessOrEqual(t, left, InsertTimeout)
	}
}
