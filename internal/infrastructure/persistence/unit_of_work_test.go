package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestUnitOfWork(db *gorm.DB, retries int) *GormUnitOfWork {
	u := NewGormUnitOfWork(db, retries, nil)
	u.backoff = time.Millisecond
	return u
}

func TestGormUnitOfWork_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	db := newMigratedDB(t)
	u := newTestUnitOfWork(db, 0)

	boom := errors.New("boom")
	err := u.Run(ctx, func(tx invoice.TxStore) error {
		h := &invoice.TransactionHeader{
			InvoiceNumber: "INV-ROLLBACK", GrandTotal: dec("10"), Subtotal: dec("10"),
			PaymentMethod: invoice.PaymentMethodCash, PaymentStatus: invoice.PaymentStatusPaid,
		}
		require.NoError(t, tx.CreateHeader(ctx, h))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&models.InvoiceModel{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGormTxStore_CreateHeaderAllocatesAboveLegacyIDs(t *testing.T) {
	ctx := context.Background()
	db := newMigratedDB(t)
	require.NoError(t, db.Create(&models.LegacySaleModel{ID: 40, InvoiceNo: "OLD-40"}).Error)
	seedInvoice(t, db, creditInvoice(12, "5"))

	var created *invoice.TransactionHeader
	err := newTestUnitOfWork(db, 0).Run(ctx, func(tx invoice.TxStore) error {
		created = &invoice.TransactionHeader{
			InvoiceNumber: "INV-NEW", GrandTotal: dec("10"), Subtotal: dec("10"),
			PaymentMethod: invoice.PaymentMethodCash, PaymentStatus: invoice.PaymentStatusPaid,
		}
		return tx.CreateHeader(ctx, created)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(41), created.ID)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestGormTxStore_InvoiceNumberTaken(t *testing.T) {
	ctx := context.Background()
	db := newMigratedDB(t)
	require.NoError(t, db.Create(&models.LegacySaleModel{ID: 1, InvoiceNo: "OLD-1"}).Error)
	seedInvoice(t, db, creditInvoice(2, "5"))

	err := newTestUnitOfWork(db, 0).Run(ctx, func(tx invoice.TxStore) error {
		for number, want := range map[string]bool{"OLD-1": true, "INV-TEST-2": true, "INV-FREE": false} {
			taken, err := tx.InvoiceNumberTaken(ctx, number)
			require.NoError(t, err)
			assert.Equal(t, want, taken, number)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestGormTxStore_CountIssuedOn(t *testing.T) {
	ctx := context.Background()
	db := newMigratedDB(t)
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local)
	for i, at := range []time.Time{day.Add(time.Hour), day.Add(23 * time.Hour), day.AddDate(0, 0, 1).Add(time.Minute)} {
		inv := creditInvoice(int64(i+1), "5")
		inv.CreatedAt = at
		seedInvoice(t, db, inv)
	}

	err := newTestUnitOfWork(db, 0).Run(ctx, func(tx invoice.TxStore) error {
		n, err := tx.CountIssuedOn(ctx, day.Add(15*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		return nil
	})
	require.NoError(t, err)
}

func TestGormTxStore_LedgerRunningBalance(t *testing.T) {
	ctx := context.Background()
	db := newMigratedDB(t)

	var last invoice.LedgerEntry
	err := newTestUnitOfWork(db, 0).Run(ctx, func(tx invoice.TxStore) error {
		entries := []*invoice.LedgerEntry{
			{CustomerID: 1, TransactionID: 1, EntryType: invoice.LedgerEntrySaleCredit, Debit: dec("1168.26")},
			{CustomerID: 2, TransactionID: 2, EntryType: invoice.LedgerEntrySaleCredit, Debit: dec("50")},
			{CustomerID: 1, TransactionID: 1, EntryType: invoice.LedgerEntryCreditPayment, Credit: dec("168.26")},
		}
		for _, e := range entries {
			if err := tx.AppendLedgerEntry(ctx, e); err != nil {
				return err
			}
		}
		last = *entries[2]
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "1000.00", last.RunningBalance.StringFixed(2))
	assert.NotZero(t, last.ID)
}

func TestGormTxStore_UpdateSettlementDetectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	db := newMigratedDB(t)
	seedInvoice(t, db, creditInvoice(3, "100"))

	err := newTestUnitOfWork(db, 0).Run(ctx, func(tx invoice.TxStore) error {
		h, err := tx.LockHeader(ctx, 3)
		require.NoError(t, err)
		_, err = h.ApplyPayment(dec("40"))
		require.NoError(t, err)

		// another writer got in between the read and the write
		store := tx.(*gormTxStore)
		require.NoError(t, store.tx.Exec("UPDATE invoices SET version = version + 1 WHERE id = ?", 3).Error)

		return tx.UpdateSettlement(ctx, h)
	})
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
}

func TestGormTxStore_LockHeaderNotFound(t *testing.T) {
	ctx := context.Background()
	err := newTestUnitOfWork(newMigratedDB(t), 0).Run(ctx, func(tx invoice.TxStore) error {
		_, err := tx.LockHeader(ctx, 404)
		return err
	})
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
}

func TestGormUnitOfWork_SerializableRetries(t *testing.T) {
	ctx := context.Background()
	db := newMigratedDB(t)

	t.Run("retries a conflicted attempt", func(t *testing.T) {
		calls := 0
		err := newTestUnitOfWork(db, 3).Serializable(ctx, func(tx invoice.TxStore) error {
			calls++
			if calls == 1 {
				return shared.ErrConcurrencyConflict
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := newTestUnitOfWork(db, 2).Serializable(ctx, func(tx invoice.TxStore) error {
			calls++
			return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
		})
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.True(t, shared.IsKind(err, shared.KindConflict))
		assert.Contains(t, err.Error(), "could not serialize access")
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry domain failures", func(t *testing.T) {
		calls := 0
		err := newTestUnitOfWork(db, 3).Serializable(ctx, func(tx invoice.TxStore) error {
			calls++
			return invoice.ErrInvalidAmount()
		})
		assert.True(t, shared.IsKind(err, shared.KindValidation))
		assert.Equal(t, 1, calls)
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, false},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"lock message", errors.New("database is locked"), true},
		{"optimistic conflict", shared.ErrConcurrencyConflict, true},
		{"other", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

// Two collections racing for the same balance: the database serializes them
// and the loser sees the reduced balance.
func TestGormUnitOfWork_ConcurrentCollection(t *testing.T) {
	ctx := context.Background()
	db := newMigratedDB(t)
	seedInvoice(t, db, creditInvoice(20, "100"))
	u := newTestUnitOfWork(db, 3)

	collect := func(amount decimal.Decimal) error {
		return u.Serializable(ctx, func(tx invoice.TxStore) error {
			h, err := tx.LockHeader(ctx, 20)
			if err != nil {
				return err
			}
			applied, err := h.ApplyPayment(amount)
			if err != nil {
				return err
			}
			if err := tx.UpdateSettlement(ctx, h); err != nil {
				return err
			}
			return tx.AppendPayment(ctx, &invoice.PaymentEvent{
				TransactionID: 20, Amount: applied, Method: invoice.PaymentMethodCash,
				PaidAt: time.Now(), BalanceAfter: h.OutstandingAmount,
			})
		})
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = collect(dec("70"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, shared.IsKind(err, shared.KindValidation), "loser fails validation: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	var m models.InvoiceModel
	require.NoError(t, db.First(&m, 20).Error)
	assert.Equal(t, "30.00", m.OutstandingAmount.StringFixed(2))
	assert.Equal(t, "PARTIALLY_PAID", m.PaymentStatus)

	var payments int64
	require.NoError(t, db.Model(&models.PaymentEventModel{}).Where("invoice_id = ?", 20).Count(&payments).Error)
	assert.Equal(t, int64(1), payments)
}
