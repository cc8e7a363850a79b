package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormLogger_LogMode(t *testing.T) {
	gormLog := NewGormLogger(zap.NewNop(), gormlogger.Info)
	newLogger := gormLog.LogMode(gormlogger.Warn)

	assert.Equal(t, gormlogger.Info, gormLog.level)
	newGormLog, ok := newLogger.(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, newGormLog.level)
}

func TestGormLogger_Trace(t *testing.T) {
	sqlFn := func() (string, int64) { return "SELECT * FROM delivery_sessions", 1 }

	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		begin   time.Time
		err     error
		wantMsg string
	}{
		{"error", gormlogger.Error, time.Now(), errors.New("connection refused"), "SQL error"},
		{"record not found ignored", gormlogger.Error, time.Now(), gormlogger.ErrRecordNotFound, ""},
		{"slow query", gormlogger.Warn, time.Now().Add(-time.Second), nil, "Slow SQL >= 200ms"},
		{"normal query", gormlogger.Info, time.Now(), nil, "SQL query"},
		{"silent", gormlogger.Silent, time.Now(), errors.New("x"), ""},
		{"query below level", gormlogger.Warn, time.Now(), nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)
			gormLog := NewGormLogger(zap.New(core), tt.level)

			gormLog.Trace(context.Background(), tt.begin, sqlFn, tt.err)

			if tt.wantMsg == "" {
				assert.Empty(t, recorded.All())
				return
			}
			require.Len(t, recorded.All(), 1)
			assert.Equal(t, tt.wantMsg, recorded.All()[0].Message)
		})
	}
}

func TestGormLogger_TraceStampsScope(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gormLog := NewGormLogger(zap.New(core), gormlogger.Error)

	ctx := WithScope(context.Background(), Scope{RequestID: "req-9", RestaurantID: "r1"})
	gormLog.Trace(ctx, time.Now(), func() (string, int64) { return "INSERT INTO sync_logs", 0 }, errors.New("disk full"))

	require.Len(t, recorded.All(), 1)
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "r1", fields["restaurant_id"])
	assert.Equal(t, "disk full", fields["error"])
}

func TestGormLogger_Messages(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gormLog := NewGormLogger(zap.New(core), gormlogger.Warn)

	gormLog.Info(context.Background(), "ignored %d", 1)
	gormLog.Warn(context.Background(), "replaced %s", "callback")
	gormLog.Error(context.Background(), "failed %s", "migration")

	entries := recorded.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "replaced callback", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestGormLogger_ParamsFilterDropsValues(t *testing.T) {
	gormLog := NewGormLogger(zap.NewNop(), gormlogger.Info)

	sql, params := gormLog.ParamsFilter(context.Background(), "UPDATE x SET blob = ?", []byte("cookie"))
	assert.Equal(t, "UPDATE x SET blob = ?", sql)
	assert.Nil(t, params)

	verbose := NewGormLogger(zap.NewNop(), gormlogger.Info, WithParams(true))
	_, params = verbose.ParamsFilter(context.Background(), "SELECT ?", 1)
	assert.Equal(t, []any{1}, params)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("other"))
}

func TestGormLoggerImplementsInterfaces(t *testing.T) {
	var _ gormlogger.Interface = (*GormLogger)(nil)
	var _ gorm.ParamsFilter = (*GormLogger)(nil)
}
