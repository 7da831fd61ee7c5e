package attendance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"hrledger/internal/attendance"
	"hrledger/internal/ledger"
	"hrledger/internal/ledger/ledgertest"
)

const companyA, companyB = 1, 2

func at(day, hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", day+" "+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func setup(t *testing.T) (*attendance.Service, *ledgertest.Store, ledger.Employee) {
	t.Helper()
	store := ledgertest.New()
	emp := store.AddEmployee(companyA, "E007")
	return attendance.NewService(store, time.UTC, zap.NewNop()), store, emp
}

func scopeOf(companyID int64) ledger.Scope {
	return ledger.Scope{UserID: "u-admin", Role: ledger.RoleAdmin, CompanyID: companyID}
}

func TestCheckInCheckOut_Scenario(t *testing.T) {
	svc, _, emp := setup(t)
	ctx := context.Background()

	rec, err := svc.CheckIn(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "08:55"))
	if err != nil {
		t.Fatalf("check in: %v", err)
	}
	if rec.CheckIn == nil || !rec.CheckIn.Equal(at("2024-06-10", "08:55")) {
		t.Errorf("unexpected check_in %v", rec.CheckIn)
	}
	if rec.CheckOut != nil {
		t.Error("expected open session")
	}
	if rec.Status != ledger.AttendancePresent {
		t.Errorf("expected present, got %s", rec.Status)
	}

	res, err := svc.CheckOut(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "17:05"))
	if err != nil {
		t.Fatalf("check out: %v", err)
	}
	if res.Record.ID != rec.ID {
		t.Errorf("expected same record, got %d vs %d", res.Record.ID, rec.ID)
	}
	if res.Record.TotalHours != 8.17 {
		t.Errorf("expected 8.17 hours, got %v", res.Record.TotalHours)
	}
	if len(res.Warnings) != 0 || res.Record.Flagged {
		t.Errorf("did not expect warnings, got %v", res.Warnings)
	}
}

func TestWorkedHours(t *testing.T) {
	hours, negative := attendance.WorkedHours(at("2024-06-10", "09:00"), at("2024-06-10", "17:30"))
	if hours != 8.5 || negative {
		t.Errorf("expected 8.5, got %v (negative=%v)", hours, negative)
	}

	hours, negative = attendance.WorkedHours(at("2024-06-10", "22:00"), at("2024-06-10", "06:00"))
	if hours != 0 || !negative {
		t.Errorf("expected clamped 0, got %v (negative=%v)", hours, negative)
	}
}

func TestCheckIn_Twice(t *testing.T) {
	svc, _, emp := setup(t)
	ctx := context.Background()

	if _, err := svc.CheckIn(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "09:00")); err != nil {
		t.Fatalf("first check in: %v", err)
	}
	_, err := svc.CheckIn(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "09:01"))
	if !errors.Is(err, ledger.ErrAlreadyCheckedIn) {
		t.Fatalf("expected AlreadyCheckedIn, got %v", err)
	}
}

func TestCheckIn_ConcurrentSingleOpenSession(t *testing.T) {
	svc, store, emp := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, conflicts := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CheckIn(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "09:00"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ledger.ErrAlreadyCheckedIn):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || conflicts != 9 {
		t.Errorf("expected 1 success and 9 conflicts, got %d and %d", ok, conflicts)
	}
	recs, _ := store.ListAttendanceByEmployee(ctx, companyA, emp.ID, ledger.DateRange{})
	open := 0
	for _, r := range recs {
		if r.IsOpen() {
			open++
		}
	}
	if open != 1 {
		t.Errorf("expected exactly one open session, got %d", open)
	}
}

func TestCheckOut_NotCheckedIn(t *testing.T) {
	svc, _, emp := setup(t)

	_, err := svc.CheckOut(context.Background(), scopeOf(companyA), emp.ID, at("2024-06-10", "17:00"))
	if !errors.Is(err, ledger.ErrNotCheckedIn) {
		t.Fatalf("expected NotCheckedIn, got %v", err)
	}
}

func TestCheckOut_Twice(t *testing.T) {
	svc, _, emp := setup(t)
	ctx := context.Background()

	if _, err := svc.CheckIn(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "09:00")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CheckOut(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "17:00")); err != nil {
		t.Fatal(err)
	}
	_, err := svc.CheckOut(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "17:01"))
	if !errors.Is(err, ledger.ErrAlreadyCheckedOut) {
		t.Fatalf("expected AlreadyCheckedOut, got %v", err)
	}
}

func TestCheckIn_AfterCheckOutOpensNewSession(t *testing.T) {
	svc, _, emp := setup(t)
	ctx := context.Background()

	first, _ := svc.CheckIn(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "09:00"))
	if _, err := svc.CheckOut(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "12:00")); err != nil {
		t.Fatal(err)
	}
	second, err := svc.CheckIn(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "13:00"))
	if err != nil {
		t.Fatalf("second session: %v", err)
	}
	if second.ID == first.ID {
		t.Error("expected a new record for the afternoon session")
	}
}

// Sessions are scoped to a calendar date: a session left open yesterday does not
// block today's check-in and is left for an admin to close with a manual edit.
func TestCheckIn_OpenSessionFromPreviousDayDoesNotBlockToday(t *testing.T) {
	svc, store, emp := setup(t)
	ctx := context.Background()

	stale, err := svc.CheckIn(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "09:00"))
	if err != nil {
		t.Fatal(err)
	}
	today, err := svc.CheckIn(ctx, scopeOf(companyA), emp.ID, at("2024-06-11", "09:00"))
	if err != nil {
		t.Fatalf("expected today's check in to succeed, got %v", err)
	}
	if today.ID == stale.ID || !today.Date.Equal(at("2024-06-11", "00:00")) {
		t.Fatalf("expected a new record for 2024-06-11, got %+v", today)
	}

	res, err := svc.CheckOut(ctx, scopeOf(companyA), emp.ID, at("2024-06-11", "17:00"))
	if err != nil || res.Record.ID != today.ID {
		t.Fatalf("expected check out to close today's session, got %+v, %v", res.Record, err)
	}
	st, err := svc.Status(ctx, scopeOf(companyA), emp.ID, at("2024-06-11", "18:00"))
	if err != nil || st.CheckedIn {
		t.Errorf("expected not checked in today, got %+v, %v", st, err)
	}

	open, err := store.FindOpenSession(ctx, emp.ID, at("2024-06-10", "00:00"))
	if err != nil || open == nil || open.ID != stale.ID {
		t.Errorf("expected yesterday's session to stay open, got %+v, %v", open, err)
	}
}

func TestCheckOut_NegativeDurationIsClampedAndFlagged(t *testing.T) {
	store := ledgertest.New()
	emp := store.AddEmployee(companyA, "E001")
	core, logs := observer.New(zapcore.WarnLevel)
	svc := attendance.NewService(store, time.UTC, zap.New(core))
	ctx := context.Background()

	if _, err := svc.CheckIn(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "22:00")); err != nil {
		t.Fatal(err)
	}
	res, err := svc.CheckOut(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "06:00"))
	if err != nil {
		t.Fatalf("check out: %v", err)
	}
	if res.Record.TotalHours != 0 {
		t.Errorf("expected 0 hours, got %v", res.Record.TotalHours)
	}
	if !res.Record.Flagged {
		t.Error("expected record to be flagged")
	}
	if len(res.Warnings) != 1 {
		t.Errorf("expected one warning, got %v", res.Warnings)
	}
	if logs.FilterMessage("negative attendance duration clamped").Len() != 1 {
		t.Error("expected a warning log entry")
	}
}

func TestCheckIn_InactiveEmployee(t *testing.T) {
	svc, store, emp := setup(t)
	ctx := context.Background()
	if _, err := store.SetEmployeeStatus(ctx, companyA, emp.ID, ledger.EmployeeInactive); err != nil {
		t.Fatal(err)
	}

	_, err := svc.CheckIn(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "09:00"))
	le, ok := ledger.AsError(err)
	if !ok || le.Kind != ledger.KindValidation || le.Field != "employee_id" {
		t.Fatalf("expected validation error on employee_id, got %v", err)
	}
}

func TestCheckIn_OtherTenantIsNotFound(t *testing.T) {
	svc, _, emp := setup(t)

	_, err := svc.CheckIn(context.Background(), scopeOf(companyB), emp.ID, at("2024-06-10", "09:00"))
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestCheckIn_StartsPreparedRecord(t *testing.T) {
	svc, _, emp := setup(t)
	ctx := context.Background()

	prepared, err := svc.ManualUpsert(ctx, scopeOf(companyA), attendance.ManualEntry{
		EmployeeID: emp.ID,
		Date:       at("2024-06-10", "00:00"),
		Status:     ledger.AttendanceAbsent,
	})
	if err != nil {
		t.Fatalf("manual upsert: %v", err)
	}

	rec, err := svc.CheckIn(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "09:30"))
	if err != nil {
		t.Fatalf("check in: %v", err)
	}
	if rec.ID != prepared.ID {
		t.Errorf("expected prepared record %d to be started, got %d", prepared.ID, rec.ID)
	}
	if rec.Status != ledger.AttendancePresent {
		t.Errorf("expected present, got %s", rec.Status)
	}
}

func TestCheckIn_UsesConfiguredTimeZone(t *testing.T) {
	store := ledgertest.New()
	emp := store.AddEmployee(companyA, "E002")
	svc := attendance.NewService(store, time.FixedZone("AEST", 10*60*60), nil)

	rec, err := svc.CheckIn(context.Background(), scopeOf(companyA), emp.ID, at("2024-06-09", "20:00"))
	if err != nil {
		t.Fatal(err)
	}
	if got := rec.Date.Format(ledger.DateLayout); got != "2024-06-10" {
		t.Errorf("expected local date 2024-06-10, got %s", got)
	}
}

func TestManualUpsert_Validation(t *testing.T) {
	svc, _, emp := setup(t)
	in := at("2024-06-10", "17:00")
	out := at("2024-06-10", "09:00")

	tests := []struct {
		name  string
		entry attendance.ManualEntry
		field string
	}{
		{"check out before check in", attendance.ManualEntry{EmployeeID: emp.ID, Date: in, CheckIn: &in, CheckOut: &out, Status: ledger.AttendancePresent}, "check_out"},
		{"unknown status", attendance.ManualEntry{EmployeeID: emp.ID, Date: in, Status: "sleeping"}, "status"},
		{"missing date", attendance.ManualEntry{EmployeeID: emp.ID, Status: ledger.AttendancePresent}, "date"},
		{"check out without check in", attendance.ManualEntry{EmployeeID: emp.ID, Date: in, CheckOut: &out, Status: ledger.AttendancePresent}, "check_in"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ManualUpsert(context.Background(), scopeOf(companyA), tt.entry)
			le, ok := ledger.AsError(err)
			if !ok || le.Kind != ledger.KindValidation || le.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestManualUpsert_EditComputesHours(t *testing.T) {
	svc, _, emp := setup(t)
	ctx := context.Background()

	rec, err := svc.CheckIn(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "09:00"))
	if err != nil {
		t.Fatal(err)
	}
	in, out := at("2024-06-10", "09:00"), at("2024-06-10", "13:15")
	note := "  forgot to check out  "
	edited, err := svc.ManualUpsert(ctx, scopeOf(companyA), attendance.ManualEntry{
		ID: rec.ID, EmployeeID: emp.ID, Date: in, CheckIn: &in, CheckOut: &out,
		Status: ledger.AttendanceHalfDay, Notes: &note,
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.TotalHours != 4.25 || edited.Status != ledger.AttendanceHalfDay {
		t.Errorf("unexpected record %+v", edited)
	}
	if edited.Notes == nil || *edited.Notes != "forgot to check out" {
		t.Errorf("expected trimmed notes, got %v", edited.Notes)
	}
	if !edited.CreatedAt.Equal(rec.CreatedAt) {
		t.Error("created_at must not change on edit")
	}
}

func TestManualUpsert_RejectsSecondOpenSession(t *testing.T) {
	svc, _, emp := setup(t)
	ctx := context.Background()

	if _, err := svc.CheckIn(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "09:00")); err != nil {
		t.Fatal(err)
	}
	in := at("2024-06-10", "10:00")
	_, err := svc.ManualUpsert(ctx, scopeOf(companyA), attendance.ManualEntry{
		EmployeeID: emp.ID, Date: in, CheckIn: &in, Status: ledger.AttendanceLate,
	})
	if !errors.Is(err, ledger.ErrAlreadyCheckedIn) {
		t.Fatalf("expected AlreadyCheckedIn, got %v", err)
	}
}

func TestManualUpsert_OtherTenantRecordIsNotFound(t *testing.T) {
	svc, store, emp := setup(t)
	ctx := context.Background()
	other := store.AddEmployee(companyB, "B001")

	rec, err := svc.CheckIn(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "09:00"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = svc.ManualUpsert(ctx, scopeOf(companyB), attendance.ManualEntry{
		ID: rec.ID, EmployeeID: other.ID, Date: at("2024-06-10", "00:00"), Status: ledger.AttendanceAbsent,
	})
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestStatus_DerivedFromOpenSession(t *testing.T) {
	svc, _, emp := setup(t)
	ctx := context.Background()
	now := at("2024-06-10", "10:00")

	st, err := svc.Status(ctx, scopeOf(companyA), emp.ID, now)
	if err != nil || st.CheckedIn {
		t.Fatalf("expected not checked in, got %+v, %v", st, err)
	}
	if _, err := svc.CheckIn(ctx, scopeOf(companyA), emp.ID, now); err != nil {
		t.Fatal(err)
	}
	st, _ = svc.Status(ctx, scopeOf(companyA), emp.ID, now)
	if !st.CheckedIn || st.Session == nil {
		t.Fatalf("expected checked in, got %+v", st)
	}
	if _, err := svc.CheckOut(ctx, scopeOf(companyA), emp.ID, now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	st, _ = svc.Status(ctx, scopeOf(companyA), emp.ID, now.Add(time.Hour))
	if st.CheckedIn {
		t.Error("expected not checked in after check out")
	}
}

func TestListForEmployee_OrderAndRange(t *testing.T) {
	svc, _, emp := setup(t)
	ctx := context.Background()

	for _, day := range []string{"2024-06-10", "2024-06-12", "2024-06-11"} {
		if _, err := svc.CheckIn(ctx, scopeOf(companyA), emp.ID, at(day, "09:00")); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := svc.ListForEmployee(ctx, scopeOf(companyA), emp.ID, ledger.DateRange{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2024-06-12", "2024-06-11", "2024-06-10"}
	if len(recs) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(recs))
	}
	for i, d := range want {
		if got := recs[i].Date.Format(ledger.DateLayout); got != d {
			t.Errorf("record %d: expected %s, got %s", i, d, got)
		}
	}

	from, _ := ledger.ParseDate("2024-06-11")
	recs, _ = svc.ListForEmployee(ctx, scopeOf(companyA), emp.ID, ledger.DateRange{From: &from})
	if len(recs) != 2 {
		t.Errorf("expected 2 records from 2024-06-11, got %d", len(recs))
	}

	to, _ := ledger.ParseDate("2024-06-01")
	_, err = svc.ListForEmployee(ctx, scopeOf(companyA), emp.ID, ledger.DateRange{From: &from, To: &to})
	if le, ok := ledger.AsError(err); !ok || le.Field != "to" {
		t.Errorf("expected validation error on to, got %v", err)
	}
}

func TestListForCompany_TenantFiltered(t *testing.T) {
	svc, store, emp := setup(t)
	ctx := context.Background()
	other := store.AddEmployee(companyB, "B001")

	if _, err := svc.CheckIn(ctx, scopeOf(companyA), emp.ID, at("2024-06-10", "09:00")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CheckIn(ctx, scopeOf(companyB), other.ID, at("2024-06-10", "09:00")); err != nil {
		t.Fatal(err)
	}

	day, _ := ledger.ParseDate("2024-06-10")
	recs, err := svc.ListForCompany(ctx, scopeOf(companyA), &day)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].EmployeeID != emp.ID {
		t.Errorf("expected only company A's record, got %+v", recs)
	}
}

func TestRepositoryFailureSurfaces(t *testing.T) {
	svc, store, emp := setup(t)
	store.Err = errors.New("connection refused")

	_, err := svc.CheckIn(context.Background(), scopeOf(companyA), emp.ID, at("2024-06-10", "09:00"))
	if ledger.KindOf(err) != ledger.KindRepository {
		t.Fatalf("expected repository error, got %v", err)
	}
}
