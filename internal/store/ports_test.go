package store_test

import (
	"hrledger/internal/attendance"
	"hrledger/internal/employee"
	"hrledger/internal/leave"
	"hrledger/internal/ledger/ledgertest"
	"hrledger/internal/payroll"
	"hrledger/internal/store"
)

// Both stores must keep satisfying every service port.
var (
	_ attendance.Repository = (*store.Ledger)(nil)
	_ leave.Repository      = (*store.Ledger)(nil)
	_ payroll.Repository    = (*store.Ledger)(nil)
	_ employee.Repository   = (*store.Ledger)(nil)

	_ attendance.Repository = (*ledgertest.Store)(nil)
	_ leave.Repository      = (*ledgertest.Store)(nil)
	_ payroll.Repository    = (*ledgertest.Store)(nil)
	_ employee.Repository   = (*ledgertest.Store)(nil)
)
