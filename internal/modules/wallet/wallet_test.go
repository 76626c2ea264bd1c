// README: Wallet tests; conditional debits, ledger reconciliation, refunds (run with -race).
package wallet

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"taxiride/internal/types"
)

func TestTopupCreatesWallet(t *testing.T) {
	svc := NewService(setupTestStore(t), nil)
	ctx := context.Background()

	entry, after, err := svc.CreditTopup(ctx, CreditCommand{UserID: "d_topup", Amount: 100})
	if err != nil {
		t.Fatalf("topup: %v", err)
	}
	if after != 100 {
		t.Fatalf("balance after topup = %d, want 100", after)
	}
	if entry.Direction != DirectionCredit || entry.Reason != ReasonTopup {
		t.Fatalf("unexpected ledger entry: %+v", entry)
	}
	if entry.Ref == "" {
		t.Fatal("expected ledger ref to be set")
	}

	b, err := svc.Balance(ctx, "d_topup")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if b.Stars != 100 {
		t.Fatalf("balance = %d, want 100", b.Stars)
	}
}

func TestDebitCommission(t *testing.T) {
	store := setupTestStore(t)
	svc := NewService(store, nil)
	ctx := context.Background()

	mustTopup(t, svc, "d_debit", 50)

	orderID := types.ID("o1")
	entry, after, err := svc.DebitCommission(ctx, DebitCommand{
		UserID:  "d_debit",
		OrderID: &orderID,
		Amount:  30,
		Meta:    map[string]string{"city": "kazan"},
	})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if after != 20 {
		t.Fatalf("balance after debit = %d, want 20", after)
	}
	if entry.OrderID == nil || *entry.OrderID != orderID {
		t.Fatalf("expected order id on ledger entry, got %v", entry.OrderID)
	}

	// not enough credit left
	_, _, err = svc.DebitCommission(ctx, DebitCommand{UserID: "d_debit", Amount: 21})
	if err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	// the failed debit left no trace
	b, _ := svc.Balance(ctx, "d_debit")
	if b.Stars != 20 {
		t.Fatalf("balance after failed debit = %d, want 20", b.Stars)
	}
	sum, err := store.LedgerSum(ctx, "d_debit")
	if err != nil {
		t.Fatalf("ledger sum: %v", err)
	}
	if sum != 20 {
		t.Fatalf("ledger sum = %d, want 20", sum)
	}
}

func TestDebitUnknownUser(t *testing.T) {
	svc := NewService(setupTestStore(t), nil)
	_, _, err := svc.DebitCommission(context.Background(), DebitCommand{UserID: "d_ghost", Amount: 1})
	if err != ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

// TestConcurrentDebitsNeverOverdraw hammers one wallet with parallel debits;
// the conditional decrement must cap total spend at the balance.
func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	store := setupTestStore(t)
	svc := NewService(store, nil)
	ctx := context.Background()

	mustTopup(t, svc, "d_race", 50)

	const attempts = 10 // 10 × 10 stars against a balance of 50
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _, err := svc.DebitCommission(ctx, DebitCommand{UserID: "d_race", Amount: 10})
			errs <- err
		}()
	}

	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if err != ErrInsufficientBalance {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 5 {
		t.Fatalf("expected exactly 5 successful debits, got %d", success)
	}

	b, err := svc.Balance(ctx, "d_race")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if b.Stars != 0 {
		t.Fatalf("balance = %d, want 0", b.Stars)
	}
	sum, err := store.LedgerSum(ctx, "d_race")
	if err != nil {
		t.Fatalf("ledger sum: %v", err)
	}
	if sum != b.Stars {
		t.Fatalf("ledger sum %d does not match balance %d", sum, b.Stars)
	}
}

func TestRefund(t *testing.T) {
	store := setupTestStore(t)
	svc := NewService(store, nil)
	ctx := context.Background()

	mustTopup(t, svc, "d_refund", 100)
	orderID := types.ID("o_refund")
	debit, _, err := svc.DebitCommission(ctx, DebitCommand{UserID: "d_refund", OrderID: &orderID, Amount: 40})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}

	entry, after, err := svc.CreditRefund(ctx, CreditCommand{
		UserID:      "d_refund",
		Amount:      40,
		RelatedTxID: &debit.ID,
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if after != 100 {
		t.Fatalf("balance after refund = %d, want 100", after)
	}
	if entry.RelatedTxID == nil || *entry.RelatedTxID != debit.ID {
		t.Fatalf("expected refund linked to debit %d, got %v", debit.ID, entry.RelatedTxID)
	}
	// order id inherited from the reversed debit
	if entry.OrderID == nil || *entry.OrderID != orderID {
		t.Fatalf("expected refund to carry order id, got %v", entry.OrderID)
	}

	sum, err := store.LedgerSum(ctx, "d_refund")
	if err != nil {
		t.Fatalf("ledger sum: %v", err)
	}
	if sum != 100 {
		t.Fatalf("ledger sum = %d, want 100", sum)
	}
}

func TestRefundValidation(t *testing.T) {
	store := setupTestStore(t)
	svc := NewService(store, nil)
	ctx := context.Background()

	mustTopup(t, svc, "d_ref_a", 100)
	mustTopup(t, svc, "d_ref_b", 100)
	debit, _, err := svc.DebitCommission(ctx, DebitCommand{UserID: "d_ref_a", Amount: 30})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	topup, _, err := svc.CreditTopup(ctx, CreditCommand{UserID: "d_ref_a", Amount: 10})
	if err != nil {
		t.Fatalf("topup: %v", err)
	}

	// refund to a different user
	if _, _, err := svc.CreditRefund(ctx, CreditCommand{UserID: "d_ref_b", Amount: 30, RelatedTxID: &debit.ID}); err != ErrBadRequest {
		t.Fatalf("cross-user refund: expected ErrBadRequest, got %v", err)
	}
	// refund of a credit
	if _, _, err := svc.CreditRefund(ctx, CreditCommand{UserID: "d_ref_a", Amount: 10, RelatedTxID: &topup.ID}); err != ErrBadRequest {
		t.Fatalf("refund of credit: expected ErrBadRequest, got %v", err)
	}
	// refund exceeding the debit
	if _, _, err := svc.CreditRefund(ctx, CreditCommand{UserID: "d_ref_a", Amount: 31, RelatedTxID: &debit.ID}); err != ErrBadRequest {
		t.Fatalf("oversized refund: expected ErrBadRequest, got %v", err)
	}
	// refund of a missing transaction
	missing := int64(999999)
	if _, _, err := svc.CreditRefund(ctx, CreditCommand{UserID: "d_ref_a", Amount: 1, RelatedTxID: &missing}); err != ErrNotFound {
		t.Fatalf("refund of missing tx: expected ErrNotFound, got %v", err)
	}
}

func TestListTransactions(t *testing.T) {
	svc := NewService(setupTestStore(t), nil)
	ctx := context.Background()

	mustTopup(t, svc, "d_list", 100)
	for i := 0; i < 3; i++ {
		if _, _, err := svc.DebitCommission(ctx, DebitCommand{UserID: "d_list", Amount: 10}); err != nil {
			t.Fatalf("debit %d: %v", i, err)
		}
	}

	txs, err := svc.Transactions(ctx, "d_list", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	// newest first
	if txs[0].ID <= txs[1].ID {
		t.Fatalf("expected descending ids, got %d then %d", txs[0].ID, txs[1].ID)
	}
}

func mustTopup(t *testing.T, svc *Service, userID types.ID, amount types.Stars) {
	t.Helper()
	if _, _, err := svc.CreditTopup(context.Background(), CreditCommand{UserID: userID, Amount: amount}); err != nil {
		t.Fatalf("topup %s: %v", userID, err)
	}
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("TAXI_TEST_DSN")
	if dsn == "" {
		t.Skip("TAXI_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}

	if _, err := db.Exec(ctx, "TRUNCATE TABLE users_transactions, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	return NewStore(db)
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	path := filepath.Join(root, "migrations", "0001_init.sql")
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	cleaned := stripSQLComments(string(content))
	for _, stmt := range splitSQL(cleaned) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
