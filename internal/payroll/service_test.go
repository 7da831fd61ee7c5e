package payroll_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hrledger/internal/idempotency"
	"hrledger/internal/ledger"
	"hrledger/internal/ledger/ledgertest"
	"hrledger/internal/payroll"
	"hrledger/internal/queue"
)

type fixture struct {
	svc   *payroll.Service
	store *ledgertest.Store
	emp   ledger.Employee
	scope ledger.Scope
	clock *time.Time
}

func setup(t *testing.T, pub payroll.Publisher) fixture {
	t.Helper()
	store := ledgertest.New()
	emp := store.AddEmployee(1, "E003")
	now := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	f := fixture{
		store: store,
		emp:   emp,
		scope: ledger.Scope{UserID: "u-admin", Role: ledger.RoleAdmin, CompanyID: 1},
		clock: &now,
	}
	f.svc = payroll.NewService(store, idempotency.NewMemoryStore(time.Hour), pub, nil).
		WithClock(func() time.Time { return *f.clock })
	return f
}

func june(emp int64) payroll.Input {
	return payroll.Input{
		EmployeeID:  emp,
		PeriodStart: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		BaseSalary:  3000,
		Bonus:       200,
		Deductions:  450,
	}
}

func TestCreateAndProcess_Scenario(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	rec, replayed, err := f.svc.Create(ctx, f.scope, june(f.emp.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if replayed {
		t.Error("first create must not be a replay")
	}
	if rec.NetPay != 2750 || rec.Status != ledger.PayrollPending || rec.ProcessedAt != nil {
		t.Fatalf("unexpected record %+v", rec)
	}

	processed, err := f.svc.Process(ctx, f.scope, rec.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if processed.Status != ledger.PayrollProcessed || processed.ProcessedAt == nil {
		t.Fatalf("expected processed with timestamp, got %+v", processed)
	}
	first := *processed.ProcessedAt

	*f.clock = f.clock.Add(time.Hour)
	again, err := f.svc.Process(ctx, f.scope, rec.ID)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if !again.ProcessedAt.Equal(first) {
		t.Errorf("processed_at changed from %v to %v", first, *again.ProcessedAt)
	}
}

func TestCreate_NegativeNetPayIsKept(t *testing.T) {
	f := setup(t, nil)
	in := june(f.emp.ID)
	in.BaseSalary, in.Bonus, in.Deductions = 1000, 0, 1200.5

	rec, _, err := f.svc.Create(context.Background(), f.scope, in)
	if err != nil {
		t.Fatal(err)
	}
	if rec.NetPay != -200.5 {
		t.Errorf("expected -200.5, got %v", rec.NetPay)
	}
}

func TestCreate_Validation(t *testing.T) {
	f := setup(t, nil)

	tests := []struct {
		name   string
		mutate func(*payroll.Input)
		field  string
	}{
		{"negative base", func(in *payroll.Input) { in.BaseSalary = -1 }, "base_salary"},
		{"negative bonus", func(in *payroll.Input) { in.Bonus = -0.01 }, "bonus"},
		{"negative deductions", func(in *payroll.Input) { in.Deductions = -5 }, "deductions"},
		{"period reversed", func(in *payroll.Input) { in.PeriodEnd = in.PeriodStart.AddDate(0, 0, -1) }, "pay_period_end"},
		{"missing start", func(in *payroll.Input) { in.PeriodStart = time.Time{} }, "pay_period_start"},
		{"paid at creation", func(in *payroll.Input) { in.Status = ledger.PayrollPaid }, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := june(f.emp.ID)
			tt.mutate(&in)
			_, _, err := f.svc.Create(context.Background(), f.scope, in)
			le, ok := ledger.AsError(err)
			if !ok || le.Kind != ledger.KindValidation || le.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestCreate_EmployeeOutsideCompany(t *testing.T) {
	f := setup(t, nil)
	outsider := f.store.AddEmployee(2, "B001")

	_, _, err := f.svc.Create(context.Background(), f.scope, june(outsider.ID))
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestCreate_IdempotencyKey(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	in := june(f.emp.ID)
	in.IdempotencyKey = "june-run-1"

	first, _, err := f.svc.Create(ctx, f.scope, in)
	if err != nil {
		t.Fatal(err)
	}
	second, replayed, err := f.svc.Create(ctx, f.scope, in)
	if err != nil {
		t.Fatal(err)
	}
	if !replayed || second.ID != first.ID {
		t.Fatalf("expected replay of %d, got %d (replayed=%v)", first.ID, second.ID, replayed)
	}

	recs, _ := f.svc.ListForCompany(ctx, f.scope)
	if len(recs) != 1 {
		t.Errorf("expected a single record, got %d", len(recs))
	}

	// same key in another company is independent
	other := f.store.AddEmployee(2, "B001")
	in.EmployeeID = other.ID
	rec, replayed, err := f.svc.Create(ctx, ledger.Scope{Role: ledger.RoleAdmin, CompanyID: 2}, in)
	if err != nil || replayed || rec.ID == first.ID {
		t.Fatalf("expected fresh record for company 2, got %+v replayed=%v err=%v", rec, replayed, err)
	}
}

type failingInsert struct {
	*ledgertest.Store
	fail bool
}

func (f *failingInsert) InsertPayroll(ctx context.Context, rec ledger.PayrollRecord) (ledger.PayrollRecord, error) {
	if f.fail {
		return ledger.PayrollRecord{}, errors.New("db down")
	}
	return f.Store.InsertPayroll(ctx, rec)
}

func TestCreate_FailedInsertReleasesKey(t *testing.T) {
	store := ledgertest.New()
	emp := store.AddEmployee(1, "E003")
	repo := &failingInsert{Store: store, fail: true}
	svc := payroll.NewService(repo, idempotency.NewMemoryStore(time.Hour), nil, nil)
	scope := ledger.Scope{Role: ledger.RoleAdmin, CompanyID: 1}
	ctx := context.Background()
	in := june(emp.ID)
	in.IdempotencyKey = "retry-me"

	if _, _, err := svc.Create(ctx, scope, in); ledger.KindOf(err) != ledger.KindRepository {
		t.Fatalf("expected repository error, got %v", err)
	}

	repo.fail = false
	rec, replayed, err := svc.Create(ctx, scope, in)
	if err != nil || replayed || rec.ID == 0 {
		t.Fatalf("expected a fresh create after recovery, got %+v replayed=%v err=%v", rec, replayed, err)
	}
}

// keysFailingComplete loses the write that maps a key to its record.
type keysFailingComplete struct {
	*idempotency.MemoryStore
}

func (keysFailingComplete) Complete(context.Context, string, int64) error {
	return errors.New("redis timeout")
}

func TestCreate_RetryAfterLostCompleteReplaysStoredRecord(t *testing.T) {
	store := ledgertest.New()
	emp := store.AddEmployee(1, "E003")
	svc := payroll.NewService(store, keysFailingComplete{idempotency.NewMemoryStore(time.Hour)}, nil, nil)
	scope := ledger.Scope{Role: ledger.RoleAdmin, CompanyID: 1}
	ctx := context.Background()
	in := june(emp.ID)
	in.IdempotencyKey = "lost-complete"

	first, _, err := svc.Create(ctx, scope, in)
	if err != nil {
		t.Fatalf("create should succeed even if the key is not completed: %v", err)
	}
	second, replayed, err := svc.Create(ctx, scope, in)
	if err != nil {
		t.Fatalf("expected replay, got %v", err)
	}
	if !replayed || second.ID != first.ID {
		t.Fatalf("expected replay of %d, got %d (replayed=%v)", first.ID, second.ID, replayed)
	}
	if recs, _ := store.ListPayrollByCompany(ctx, 1); len(recs) != 1 {
		t.Errorf("expected a single record, got %d", len(recs))
	}
}

func TestCreate_KeyReservedWithoutRecordIsInProgress(t *testing.T) {
	store := ledgertest.New()
	emp := store.AddEmployee(1, "E003")
	keys := idempotency.NewMemoryStore(time.Hour)
	svc := payroll.NewService(store, keys, nil, nil)
	ctx := context.Background()
	if _, _, err := keys.Reserve(ctx, "payroll:1:in-flight"); err != nil {
		t.Fatal(err)
	}

	in := june(emp.ID)
	in.IdempotencyKey = "in-flight"
	_, _, err := svc.Create(ctx, ledger.Scope{Role: ledger.RoleAdmin, CompanyID: 1}, in)
	if !errors.Is(err, ledger.ErrRequestInProgress) {
		t.Fatalf("expected request_in_progress, got %v", err)
	}
}

func TestUpdateAmounts_KeepsNetPayInvariant(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	rec, _, _ := f.svc.Create(ctx, f.scope, june(f.emp.ID))

	updated, err := f.svc.UpdateAmounts(ctx, f.scope, rec.ID, payroll.Amounts{BaseSalary: 3100.10, Bonus: 50, Deductions: 100.05})
	if err != nil {
		t.Fatal(err)
	}
	if want := ledger.NetPay(updated.BaseSalary, updated.Bonus, updated.Deductions); updated.NetPay != want || want != 3050.05 {
		t.Errorf("net pay %v, want %v", updated.NetPay, want)
	}

	if _, err := f.svc.Process(ctx, f.scope, rec.ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.UpdateAmounts(ctx, f.scope, rec.ID, payroll.Amounts{BaseSalary: 1})
	if !errors.Is(err, ledger.ErrNotPending) {
		t.Fatalf("expected NotPending after processing, got %v", err)
	}
}

func TestMarkPaid(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	rec, _, _ := f.svc.Create(ctx, f.scope, june(f.emp.ID))

	if _, err := f.svc.MarkPaid(ctx, f.scope, rec.ID); !errors.Is(err, ledger.ErrNotProcessed) {
		t.Fatalf("expected NotProcessed, got %v", err)
	}
	if _, err := f.svc.Process(ctx, f.scope, rec.ID); err != nil {
		t.Fatal(err)
	}
	paid, err := f.svc.MarkPaid(ctx, f.scope, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if paid.Status != ledger.PayrollPaid || paid.PaidAt == nil {
		t.Fatalf("expected paid with timestamp, got %+v", paid)
	}

	// paying again and processing a paid record are both no-ops
	again, err := f.svc.MarkPaid(ctx, f.scope, rec.ID)
	if err != nil || !again.PaidAt.Equal(*paid.PaidAt) {
		t.Errorf("expected no-op, got %+v, %v", again, err)
	}
	if p, err := f.svc.Process(ctx, f.scope, rec.ID); err != nil || p.Status != ledger.PayrollPaid {
		t.Errorf("expected paid record unchanged, got %+v, %v", p, err)
	}
}

func TestCrossTenantIsolation(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	rec, _, _ := f.svc.Create(ctx, f.scope, june(f.emp.ID))

	companyB := ledger.Scope{Role: ledger.RoleAdmin, CompanyID: 2}
	if _, err := f.svc.Get(ctx, companyB, rec.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("get: expected NotFound, got %v", err)
	}
	if _, err := f.svc.Process(ctx, companyB, rec.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("process: expected NotFound, got %v", err)
	}
	if _, err := f.svc.MarkPaid(ctx, companyB, rec.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("pay: expected NotFound, got %v", err)
	}
	if _, err := f.svc.UpdateAmounts(ctx, companyB, rec.ID, payroll.Amounts{}); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("update: expected NotFound, got %v", err)
	}

	stored, _ := f.svc.Get(ctx, f.scope, rec.ID)
	if stored.Status != ledger.PayrollPending {
		t.Error("foreign tenant changed the record")
	}
}

func TestProcess_UnknownID(t *testing.T) {
	f := setup(t, nil)
	if _, err := f.svc.Process(context.Background(), f.scope, 999); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestLists_OrderedByPeriodStart(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	for _, m := range []time.Month{time.April, time.June, time.May} {
		in := june(f.emp.ID)
		in.PeriodStart = time.Date(2024, m, 1, 0, 0, 0, 0, time.UTC)
		in.PeriodEnd = in.PeriodStart.AddDate(0, 1, -1)
		if _, _, err := f.svc.Create(ctx, f.scope, in); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := f.svc.ListForEmployee(ctx, f.scope, f.emp.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []time.Month{time.June, time.May, time.April}
	for i, m := range want {
		if recs[i].PeriodStart.Month() != m {
			t.Errorf("record %d: expected %s, got %s", i, m, recs[i].PeriodStart.Month())
		}
	}
}

type capture struct {
	mu   sync.Mutex
	msgs []queue.Message
}

func (c *capture) Publish(_ context.Context, msg queue.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func TestEnqueueProcessing_WorkerRoundTrip(t *testing.T) {
	pub := &capture{}
	f := setup(t, pub)
	ctx := context.Background()
	a, _, _ := f.svc.Create(ctx, f.scope, june(f.emp.ID))
	in := june(f.emp.ID)
	in.PeriodStart, in.PeriodEnd = in.PeriodStart.AddDate(0, 1, 0), in.PeriodEnd.AddDate(0, 1, 0)
	b, _, _ := f.svc.Create(ctx, f.scope, in)

	ids, err := f.svc.EnqueueProcessing(ctx, f.scope, []int64{a.ID, b.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || len(pub.msgs) != 2 {
		t.Fatalf("expected 2 jobs, got %d ids and %d messages", len(ids), len(pub.msgs))
	}

	for _, msg := range pub.msgs {
		if err := f.svc.HandleMessage(ctx, msg); err != nil {
			t.Fatalf("handle %s: %v", msg.ID, err)
		}
	}
	for _, id := range []int64{a.ID, b.ID} {
		rec, _ := f.svc.Get(ctx, f.scope, id)
		if rec.Status != ledger.PayrollProcessed {
			t.Errorf("payroll %d not processed: %s", id, rec.Status)
		}
	}
}

func TestEnqueueProcessing_RejectsForeignIDs(t *testing.T) {
	pub := &capture{}
	f := setup(t, pub)
	ctx := context.Background()
	rec, _, _ := f.svc.Create(ctx, f.scope, june(f.emp.ID))

	_, err := f.svc.EnqueueProcessing(ctx, ledger.Scope{CompanyID: 2}, []int64{rec.ID})
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if len(pub.msgs) != 0 {
		t.Error("nothing should be published")
	}
	if _, err := f.svc.EnqueueProcessing(ctx, f.scope, nil); ledger.KindOf(err) != ledger.KindValidation {
		t.Errorf("expected validation error for empty batch, got %v", err)
	}
}

func TestEnqueueProcessing_InlineWithoutQueue(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	rec, _, _ := f.svc.Create(ctx, f.scope, june(f.emp.ID))

	if _, err := f.svc.EnqueueProcessing(ctx, f.scope, []int64{rec.ID}); err != nil {
		t.Fatal(err)
	}
	got, _ := f.svc.Get(ctx, f.scope, rec.ID)
	if got.Status != ledger.PayrollProcessed {
		t.Errorf("expected processed, got %s", got.Status)
	}
}

func TestHandleMessage_UnknownType(t *testing.T) {
	f := setup(t, nil)
	if err := f.svc.HandleMessage(context.Background(), queue.Message{Type: "attendance.export"}); err == nil {
		t.Fatal("expected error for unknown message type")
	}
}
