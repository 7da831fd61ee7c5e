// Package payroll computes net pay for a period and tracks the
// pending -> processed -> paid lifecycle.
package payroll

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"hrledger/internal/idempotency"
	"hrledger/internal/ledger"
	"hrledger/internal/logging"
	"hrledger/internal/metrics"
	"hrledger/internal/queue"
)

// Repository is the persistence port used by the calculator.
type Repository interface {
	GetEmployee(ctx context.Context, companyID, employeeID int64) (ledger.Employee, error)
	InsertPayroll(ctx context.Context, rec ledger.PayrollRecord) (ledger.PayrollRecord, error)
	GetPayroll(ctx context.Context, companyID, id int64) (ledger.PayrollRecord, error)
	FindPayrollByIdempotencyKey(ctx context.Context, companyID int64, key string) (*ledger.PayrollRecord, error)
	UpdatePayrollAmountsIfPending(ctx context.Context, companyID, id int64, amt ledger.PayrollAmounts) (ledger.PayrollRecord, bool, error)
	ProcessPayrollIfPending(ctx context.Context, companyID, id int64, at time.Time) (ledger.PayrollRecord, bool, error)
	MarkPayrollPaidIfProcessed(ctx context.Context, companyID, id int64, at time.Time) (ledger.PayrollRecord, bool, error)
	ListPayrollByEmployee(ctx context.Context, companyID, employeeID int64) ([]ledger.PayrollRecord, error)
	ListPayrollByCompany(ctx context.Context, companyID int64) ([]ledger.PayrollRecord, error)
}

// Publisher hands processing jobs to the worker.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Input describes a payroll record to create.
type Input struct {
	EmployeeID     int64
	PeriodStart    time.Time
	PeriodEnd      time.Time
	BaseSalary     float64
	Bonus          float64
	Deductions     float64
	Status         ledger.PayrollStatus
	IdempotencyKey string
}

// Amounts are the editable net pay inputs.
type Amounts struct {
	BaseSalary float64
	Bonus      float64
	Deductions float64
}

// Service is the payroll calculator.
type Service struct {
	repo   Repository
	keys   idempotency.Store
	pub    Publisher
	now    func() time.Time
	logger *zap.Logger
}

// NewService builds the calculator. keys and pub may be nil: without keys the
// Idempotency-Key is ignored, without pub batches are processed inline.
func NewService(repo Repository, keys idempotency.Store, pub Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, keys: keys, pub: pub, now: time.Now, logger: logger}
}

// WithClock overrides the processed/paid timestamp source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func checkAmounts(a Amounts) error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"base_salary", a.BaseSalary},
		{"bonus", a.Bonus},
		{"deductions", a.Deductions},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return ledger.Validation(f.name, "must be a finite number")
		}
		if f.v < 0 {
			return ledger.Validation(f.name, "must not be negative")
		}
	}
	return nil
}

func computeAmounts(a Amounts) ledger.PayrollAmounts {
	base, bonus, ded := ledger.RoundCents(a.BaseSalary), ledger.RoundCents(a.Bonus), ledger.RoundCents(a.Deductions)
	return ledger.PayrollAmounts{
		BaseSalary: base,
		Bonus:      bonus,
		Deductions: ded,
		NetPay:     ledger.NetPay(base, bonus, ded),
	}
}

// Create computes net pay and persists a record. Deductions may exceed base plus bonus;
// the resulting negative net pay is kept. A repeated IdempotencyKey within the company
// returns the first record with replayed set.
func (s *Service) Create(ctx context.Context, scope ledger.Scope, in Input) (rec ledger.PayrollRecord, replayed bool, err error) {
	defer func() { metrics.ObserveOperation("payroll.create", err) }()

	if in.PeriodStart.IsZero() {
		return ledger.PayrollRecord{}, false, ledger.Validation("pay_period_start", "is required")
	}
	if in.PeriodEnd.IsZero() {
		return ledger.PayrollRecord{}, false, ledger.Validation("pay_period_end", "is required")
	}
	start, end := ledger.DateOf(in.PeriodStart, time.UTC), ledger.DateOf(in.PeriodEnd, time.UTC)
	if end.Before(start) {
		return ledger.PayrollRecord{}, false, ledger.Validation("pay_period_end", "must not be before pay_period_start")
	}
	amounts := Amounts{BaseSalary: in.BaseSalary, Bonus: in.Bonus, Deductions: in.Deductions}
	if err := checkAmounts(amounts); err != nil {
		return ledger.PayrollRecord{}, false, err
	}
	status := in.Status
	if status == "" {
		status = ledger.PayrollPending
	}
	if status != ledger.PayrollPending && status != ledger.PayrollProcessed {
		return ledger.PayrollRecord{}, false, ledger.Validation("status", "must be pending or processed")
	}

	if _, err := s.repo.GetEmployee(ctx, scope.CompanyID, in.EmployeeID); err != nil {
		return ledger.PayrollRecord{}, false, ledger.RepositoryFailure("get employee", err)
	}

	var key string
	if in.IdempotencyKey != "" && s.keys != nil {
		key = fmt.Sprintf("payroll:%d:%s", scope.CompanyID, in.IdempotencyKey)
		existingID, reserved, err := s.keys.Reserve(ctx, key)
		if err != nil {
			return ledger.PayrollRecord{}, false, ledger.RepositoryFailure("reserve idempotency key", err)
		}
		if !reserved {
			if existingID != 0 {
				rec, err := s.repo.GetPayroll(ctx, scope.CompanyID, existingID)
				return rec, err == nil, ledger.RepositoryFailure("get payroll", err)
			}
			return s.replayStored(ctx, scope, key, in.IdempotencyKey)
		}
	}

	amt := computeAmounts(amounts)
	rec = ledger.PayrollRecord{
		EmployeeID:  in.EmployeeID,
		PeriodStart: start,
		PeriodEnd:   end,
		BaseSalary:  amt.BaseSalary,
		Bonus:       amt.Bonus,
		Deductions:  amt.Deductions,
		NetPay:      amt.NetPay,
		Status:      status,
	}
	if status == ledger.PayrollProcessed {
		now := s.now().UTC()
		rec.ProcessedAt = &now
	}
	if in.IdempotencyKey != "" {
		k := in.IdempotencyKey
		rec.IdempotencyKey = &k
	}

	log := logging.FromContext(ctx, s.logger)
	rec, err = s.repo.InsertPayroll(ctx, rec)
	if err != nil {
		if key != "" {
			if rerr := s.keys.Release(ctx, key); rerr != nil {
				log.Warn("release idempotency key", zap.String("key", key), zap.Error(rerr))
			}
		}
		return ledger.PayrollRecord{}, false, ledger.RepositoryFailure("insert payroll", err)
	}
	if key != "" {
		if err := s.keys.Complete(ctx, key, rec.ID); err != nil {
			log.Warn("complete idempotency key", zap.String("key", key), zap.Error(err))
		}
	}

	log.Info("payroll created",
		zap.Int64("payroll_id", rec.ID),
		zap.Int64("employee_id", rec.EmployeeID),
		zap.Float64("net_pay", rec.NetPay),
	)
	if rec.NetPay < 0 {
		log.Warn("payroll has negative net pay", zap.Int64("payroll_id", rec.ID), zap.Float64("net_pay", rec.NetPay))
	}
	return rec, false, nil
}

// replayStored handles a key still marked pending: either the first request is running,
// or it inserted the record but could not complete the key.
func (s *Service) replayStored(ctx context.Context, scope ledger.Scope, key, clientKey string) (ledger.PayrollRecord, bool, error) {
	found, err := s.repo.FindPayrollByIdempotencyKey(ctx, scope.CompanyID, clientKey)
	if err != nil {
		return ledger.PayrollRecord{}, false, ledger.RepositoryFailure("find payroll by idempotency key", err)
	}
	if found == nil {
		return ledger.PayrollRecord{}, false, ledger.ErrRequestInProgress
	}
	if err := s.keys.Complete(ctx, key, found.ID); err != nil {
		logging.FromContext(ctx, s.logger).Warn("complete idempotency key", zap.String("key", key), zap.Error(err))
	}
	return *found, true, nil
}

// UpdateAmounts edits the inputs of a pending record; net pay is recomputed in the same write.
func (s *Service) UpdateAmounts(ctx context.Context, scope ledger.Scope, id int64, a Amounts) (rec ledger.PayrollRecord, err error) {
	defer func() { metrics.ObserveOperation("payroll.update_amounts", err) }()

	if err := checkAmounts(a); err != nil {
		return ledger.PayrollRecord{}, err
	}
	rec, ok, err := s.repo.UpdatePayrollAmountsIfPending(ctx, scope.CompanyID, id, computeAmounts(a))
	if err != nil {
		return ledger.PayrollRecord{}, ledger.RepositoryFailure("update payroll amounts", err)
	}
	if !ok {
		if _, err := s.repo.GetPayroll(ctx, scope.CompanyID, id); err != nil {
			return ledger.PayrollRecord{}, ledger.RepositoryFailure("get payroll", err)
		}
		return ledger.PayrollRecord{}, ledger.ErrNotPending
	}
	return rec, nil
}

// Process moves a pending record to processed. Processing an already processed or
// paid record returns it unchanged.
func (s *Service) Process(ctx context.Context, scope ledger.Scope, id int64) (rec ledger.PayrollRecord, err error) {
	defer func() { metrics.ObserveOperation("payroll.process", err) }()

	rec, ok, err := s.repo.ProcessPayrollIfPending(ctx, scope.CompanyID, id, s.now().UTC())
	if err != nil {
		return ledger.PayrollRecord{}, ledger.RepositoryFailure("process payroll", err)
	}
	log := logging.FromContext(ctx, s.logger)
	if !ok {
		rec, err = s.repo.GetPayroll(ctx, scope.CompanyID, id)
		if err != nil {
			return ledger.PayrollRecord{}, ledger.RepositoryFailure("get payroll", err)
		}
		log.Debug("payroll already processed", zap.Int64("payroll_id", id), zap.String("status", string(rec.Status)))
		return rec, nil
	}
	log.Info("payroll processed", zap.Int64("payroll_id", rec.ID))
	return rec, nil
}

// MarkPaid moves a processed record to paid. A pending record cannot be paid.
func (s *Service) MarkPaid(ctx context.Context, scope ledger.Scope, id int64) (rec ledger.PayrollRecord, err error) {
	defer func() { metrics.ObserveOperation("payroll.mark_paid", err) }()

	rec, ok, err := s.repo.MarkPayrollPaidIfProcessed(ctx, scope.CompanyID, id, s.now().UTC())
	if err != nil {
		return ledger.PayrollRecord{}, ledger.RepositoryFailure("mark payroll paid", err)
	}
	if ok {
		logging.FromContext(ctx, s.logger).Info("payroll paid", zap.Int64("payroll_id", rec.ID))
		return rec, nil
	}
	rec, err = s.repo.GetPayroll(ctx, scope.CompanyID, id)
	if err != nil {
		return ledger.PayrollRecord{}, ledger.RepositoryFailure("get payroll", err)
	}
	if rec.Status == ledger.PayrollPending {
		return ledger.PayrollRecord{}, ledger.ErrNotProcessed
	}
	return rec, nil
}

// EnqueueProcessing publishes one processing job per id and returns the message ids.
// Every id must be visible to the caller before anything is published.
func (s *Service) EnqueueProcessing(ctx context.Context, scope ledger.Scope, ids []int64) ([]string, error) {
	if len(ids) == 0 {
		return nil, ledger.Validation("payroll_ids", "must not be empty")
	}
	for _, id := range ids {
		if _, err := s.repo.GetPayroll(ctx, scope.CompanyID, id); err != nil {
			return nil, ledger.RepositoryFailure("get payroll", err)
		}
	}

	log := logging.FromContext(ctx, s.logger)
	if s.pub == nil {
		for _, id := range ids {
			if _, err := s.Process(ctx, scope, id); err != nil {
				return nil, err
			}
		}
		log.Info("payroll batch processed inline", zap.Int("count", len(ids)))
		return nil, nil
	}

	msgIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		msg, err := queue.NewMessage(queue.TypePayrollProcess, queue.PayrollProcess{
			CompanyID:   scope.CompanyID,
			PayrollID:   id,
			RequestedBy: scope.UserID,
		})
		if err != nil {
			return msgIDs, ledger.RepositoryFailure("encode payroll job", err)
		}
		if err := s.pub.Publish(ctx, msg); err != nil {
			return msgIDs, ledger.RepositoryFailure("publish payroll job", err)
		}
		msgIDs = append(msgIDs, msg.ID)
	}
	log.Info("payroll batch enqueued", zap.Int("count", len(ids)))
	return msgIDs, nil
}

// Get returns one record of the caller's company.
func (s *Service) Get(ctx context.Context, scope ledger.Scope, id int64) (ledger.PayrollRecord, error) {
	rec, err := s.repo.GetPayroll(ctx, scope.CompanyID, id)
	return rec, ledger.RepositoryFailure("get payroll", err)
}

// ListForEmployee lists one employee's records, newest period first.
func (s *Service) ListForEmployee(ctx context.Context, scope ledger.Scope, employeeID int64) ([]ledger.PayrollRecord, error) {
	if _, err := s.repo.GetEmployee(ctx, scope.CompanyID, employeeID); err != nil {
		return nil, ledger.RepositoryFailure("get employee", err)
	}
	recs, err := s.repo.ListPayrollByEmployee(ctx, scope.CompanyID, employeeID)
	return recs, ledger.RepositoryFailure("list payroll", err)
}

// ListForCompany lists every record in the caller's company.
func (s *Service) ListForCompany(ctx context.Context, scope ledger.Scope) ([]ledger.PayrollRecord, error) {
	recs, err := s.repo.ListPayrollByCompany(ctx, scope.CompanyID)
	return recs, ledger.RepositoryFailure("list payroll", err)
}
