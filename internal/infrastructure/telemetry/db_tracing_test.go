package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedSale struct {
	ID     uint   `gorm:"primaryKey"`
	Number string `gorm:"size:50"`
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedSale{}))
	return db
}

func setupTracerWithExporter(t *testing.T) (*trace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, recorder
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()

	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestNewDBTracingPlugin_DefaultsThreshold(t *testing.T) {
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, nil)

	require.NotNil(t, plugin)
	assert.Equal(t, 200*time.Millisecond, plugin.config.SlowQueryThresh)
	assert.NotNil(t, plugin.logger)
}

func TestDBTracingPlugin_RegisterOtelGorm_Disabled(t *testing.T) {
	db := setupTestDB(t)
	plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())

	assert.NoError(t, plugin.RegisterOtelGorm(db))
	assert.Nil(t, db.Callback().Query().Get("otel_slow_query:query"))
}

func TestDBTracingPlugin_RegisterOtelGorm_Enabled(t *testing.T) {
	db := setupTestDB(t)
	core, logs := observer.New(zap.InfoLevel)
	plugin := NewDBTracingPlugin(DBTracingConfig{
		Enabled:         true,
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "sqlite",
	}, zap.New(core))

	require.NoError(t, plugin.RegisterOtelGorm(db))

	assert.NotNil(t, db.Callback().Query().Get("otel_slow_query:query"))
	assert.NotNil(t, db.Callback().Create().Get("otel_timing:before_create"))
	require.Equal(t, 1, logs.FilterMessage("Database tracing enabled").Len())
	fields := logs.FilterMessage("Database tracing enabled").All()[0].ContextMap()
	assert.Equal(t, "sqlite", fields["db_system"])
	assert.Equal(t, false, fields["log_full_sql"])
}

func TestDBTracingPlugin_RegisterOtelGorm_DoubleRegistration(t *testing.T) {
	db := setupTestDB(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBSystem: "sqlite"}, zap.NewNop())

	require.NoError(t, plugin.RegisterOtelGorm(db))
	assert.Error(t, plugin.RegisterOtelGorm(db))
}

func TestDBTracingPlugin_AnnotatesSpans(t *testing.T) {
	tp, recorder := setupTracerWithExporter(t)
	db := setupTestDB(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBSystem: "sqlite"}, zap.NewNop())
	require.NoError(t, plugin.RegisterOtelGorm(db))

	ctx, span := tp.Tracer("test").Start(context.Background(), "record_sale")
	require.NoError(t, db.WithContext(ctx).Create(&tracedSale{Number: "INV-1"}).Error)
	span.End()

	var parent trace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		if s.Name() == "record_sale" {
			parent = s
		}
	}
	require.NotNil(t, parent)

	attrs := map[string]any{}
	for _, kv := range parent.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, int64(1), attrs["db.rows_affected"])
	assert.Equal(t, "traced_sales", attrs["db.sql.table"])
}

func TestDBTracingPlugin_SlowQueryEvent(t *testing.T) {
	tp, recorder := setupTracerWithExporter(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Millisecond}, zap.NewNop())

	ctx, span := tp.Tracer("test").Start(context.Background(), "slow")
	ctx = context.WithValue(ctx, queryStartTimeKey, time.Now().Add(-50*time.Millisecond))
	db := &gorm.DB{Statement: &gorm.Statement{Context: ctx}}
	plugin.afterQuery(db)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	events := ended[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "slow_query_warning", events[0].Name)
}

func TestDBTracingPlugin_RecordsErrorsButNotMissingRows(t *testing.T) {
	tp, recorder := setupTracerWithExporter(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, zap.NewNop())

	ctx, span := tp.Tracer("test").Start(context.Background(), "missing")
	plugin.afterQuery(&gorm.DB{Error: gorm.ErrRecordNotFound, Statement: &gorm.Statement{Context: ctx}})
	span.End()

	ctx, span = tp.Tracer("test").Start(context.Background(), "broken")
	plugin.afterQuery(&gorm.DB{Error: errors.New("disk I/O error"), Statement: &gorm.Statement{Context: ctx}})
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Equal(t, codes.Error, ended[1].Status().Code)
}

func TestDBTracingPlugin_IgnoresNilContextAndNonRecordingSpan(t *testing.T) {
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, zap.NewNop())

	assert.NotPanics(t, func() {
		plugin.afterQuery(&gorm.DB{Statement: &gorm.Statement{}})
		plugin.afterQuery(&gorm.DB{Statement: &gorm.Statement{Context: context.Background()}})
		markQueryStart(&gorm.DB{Statement: &gorm.Statement{}})
	})
}
