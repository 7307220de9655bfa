package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"loan-ledger/internal/domain/borrower"
	"loan-ledger/internal/domain/journal"
	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/event"
	"loan-ledger/internal/pkg/apperrors"
	"loan-ledger/internal/pkg/caldate"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service interface {
	Load(ctx context.Context) (*LoadResult, error)

	AddBorrower(ctx context.Context, in NewBorrowerInput) (*borrower.Summary, error)
	AddLoan(ctx context.Context, borrowerID string, in LoanInput) (*LoanResult, error)
	RecordPayment(ctx context.Context, borrowerID, loanID string, in PaymentInput) (*Receipt, error)
	EditBorrowerProfile(ctx context.Context, borrowerID string, update borrower.ProfileUpdate) (*borrower.Summary, error)
	DeleteBorrower(ctx context.Context, borrowerID string) error

	Borrower(ctx context.Context, borrowerID string, asOf time.Time) (*Detail, error)
	Worklist(ctx context.Context, asOf time.Time, q borrower.Query) borrower.Worklist
	Borrowers(ctx context.Context) []*borrower.Borrower
	Books(ctx context.Context, r journal.DateRange) journal.Books
	WriteCSV(ctx context.Context, w io.Writer, book journal.Book, r journal.DateRange) error
	CollectionList(ctx context.Context, asOf time.Time) string
	Dashboard(ctx context.Context, asOf time.Time) Dashboard

	ExportSnapshot(ctx context.Context) ([]byte, error)
	ImportSnapshot(ctx context.Context, data []byte) (*ImportResult, error)

	Now() time.Time
}

var _ Service = (*ledgerService)(nil)

type Option func(*ledgerService)

func WithClock(now func() time.Time) Option {
	return func(s *ledgerService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *ledgerService) { s.newID = newID }
}

func WithEventPublisher(pub event.EventPublisher) Option {
	return func(s *ledgerService) {
		if pub != nil {
			s.pub = pub
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *ledgerService) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithDefaultTerms sets the terms used when a loan or legacy record carries none.
func WithDefaultTerms(t loan.Terms) Option {
	return func(s *ledgerService) {
		if t.Valid() {
			s.defaultTerms = t
		}
	}
}

// ledgerService keeps every borrower in memory and writes a full snapshot
// through to the store after each mutation. One mutex serializes all access.
type ledgerService struct {
	mu        sync.Mutex
	borrowers []*borrower.Borrower

	store        SnapshotStore
	pub          event.EventPublisher
	recorder     Recorder
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string
	defaultTerms loan.Terms
}

func NewLedgerService(store SnapshotStore, logger *slog.Logger, opts ...Option) Service {
	if store == nil {
		panic("snapshot store cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewLedgerService, using default stderr handler")
	}

	s := &ledgerService{
		borrowers:    []*borrower.Borrower{},
		store:        store,
		pub:          event.NopEventPublisher{},
		recorder:     nopRecorder{},
		logger:       logger.With(slog.String("component", "ledgerService")),
		now:          time.Now,
		newID:        uuid.NewString,
		defaultTerms: loan.DefaultTerms,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ledgerService) Now() time.Time {
	return s.now()
}

func (s *ledgerService) Load(ctx context.Context) (*LoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load snapshot", slog.Any("error", err))
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if data == nil {
		s.logger.InfoContext(ctx, "No saved snapshot found, starting with an empty ledger")
		s.borrowers = []*borrower.Borrower{}
		return &LoadResult{}, nil
	}

	decoded, err := decodeSnapshot(data, s.defaultTerms, s.now())
	if err != nil {
		s.logger.WarnContext(ctx, "Saved snapshot is unreadable, starting with an empty ledger", slog.Any("error", err))
		s.borrowers = []*borrower.Borrower{}
		return &LoadResult{Discarded: true}, nil
	}

	s.borrowers = decoded.Borrowers
	result := &LoadResult{Borrowers: len(decoded.Borrowers), Migrated: decoded.Migrated}
	s.logger.InfoContext(ctx, "Ledger loaded",
		slog.Int("borrowers", result.Borrowers),
		slog.Int("migrated", result.Migrated),
		slog.Int("snapshotVersion", decoded.Version))

	if decoded.Migrated > 0 || decoded.Version < SnapshotVersion {
		if err := s.persist(ctx); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (s *ledgerService) newLoan(in LoanInput, now time.Time) (*loan.Loan, error) {
	terms := in.Terms
	if terms == 0 {
		terms = s.defaultTerms
	}
	date := in.Date
	if date.IsZero() {
		date = now
	}
	return loan.NewLoan(s.newID(), loan.Params{
		Principal:    in.Principal,
		Date:         date,
		Terms:        terms,
		InterestRate: in.InterestRate,
		PenaltyRate:  in.PenaltyRate,
		Notes:        in.Notes,
	}, now)
}

func (s *ledgerService) AddBorrower(ctx context.Context, in NewBorrowerInput) (*borrower.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, err := borrower.New(s.newID(), in.Contact, now)
	if err != nil {
		s.logger.WarnContext(ctx, "Borrower validation failed", slog.Any("error", err))
		return nil, err
	}

	var initial *loan.Loan
	if in.InitialLoan != nil {
		initial, err = s.newLoan(*in.InitialLoan, now)
		if err != nil {
			s.logger.WarnContext(ctx, "Initial loan validation failed", slog.Any("error", err))
			return nil, err
		}
		b.Loans = append(b.Loans, initial)
	}

	s.borrowers = append(s.borrowers, b)
	logger := s.logger.With(slog.String("borrowerID", b.ID))
	logger.InfoContext(ctx, "Borrower added", slog.Bool("withLoan", initial != nil))

	summary := borrower.Summarize(b.Clone(), now)
	persistErr := s.persist(ctx)
	if initial != nil {
		s.recorder.LoanDisbursed(initial.Principal)
		s.publishLoanDisbursed(ctx, b, initial)
	}
	return &summary, persistErr
}

func (s *ledgerService) AddLoan(ctx context.Context, borrowerID string, in LoanInput) (*LoanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.find(borrowerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	l, err := s.newLoan(in, now)
	if err != nil {
		s.logger.WarnContext(ctx, "Loan validation failed", slog.String("borrowerID", borrowerID), slog.Any("error", err))
		return nil, err
	}

	b.Loans = append(b.Loans, l)
	b.UpdatedAt = now
	s.logger.InfoContext(ctx, "Loan added",
		slog.String("borrowerID", b.ID),
		slog.String("loanID", l.ID),
		slog.String("principal", l.Principal.String()),
		slog.String("terms", l.Terms.String()))

	result := &LoanResult{
		BorrowerID:   b.ID,
		Loan:         l.Clone(),
		Accrual:      l.Evaluate(now),
		TotalBalance: borrower.TotalBalance(b, now),
	}
	persistErr := s.persist(ctx)
	s.recorder.LoanDisbursed(l.Principal)
	s.publishLoanDisbursed(ctx, b, l)
	return result, persistErr
}

func (s *ledgerService) RecordPayment(ctx context.Context, borrowerID, loanID string, in PaymentInput) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p, err := loan.NewPayment(s.newID(), in.Amount, in.Date, in.Notes, now)
	if err != nil {
		s.logger.WarnContext(ctx, "Payment validation failed", slog.Any("error", err))
		return nil, err
	}

	b, err := s.find(borrowerID)
	if err != nil {
		return nil, err
	}
	l, ok := b.FindLoan(loanID)
	if !ok {
		s.logger.WarnContext(ctx, "Loan not found", slog.String("borrowerID", borrowerID), slog.String("loanID", loanID))
		return nil, apperrors.NewNotFoundError("loan", loanID)
	}
	if err := checkPaymentDate(p.Date, l.Date, now); err != nil {
		s.logger.WarnContext(ctx, "Payment date rejected",
			slog.String("loanID", l.ID), slog.Time("date", p.Date), slog.Any("error", err))
		return nil, err
	}

	l.Payments = append(l.Payments, p)
	b.UpdatedAt = now

	receipt := &Receipt{
		PaymentID:     p.ID,
		Date:          p.Date,
		BorrowerID:    b.ID,
		BorrowerName:  b.Name,
		LoanID:        l.ID,
		Amount:        p.Amount,
		LoanRemaining: l.Evaluate(now).Remaining,
		TotalBalance:  borrower.TotalBalance(b, now),
	}
	s.logger.InfoContext(ctx, "Payment recorded",
		slog.String("borrowerID", b.ID),
		slog.String("loanID", l.ID),
		slog.String("amount", p.Amount.String()),
		slog.String("remaining", receipt.LoanRemaining.StringFixed(2)))

	persistErr := s.persist(ctx)
	s.recorder.PaymentReceived(p.Amount)
	if err := s.pub.PublishPaymentReceived(ctx, event.PaymentReceivedEvent{
		BorrowerID:    b.ID,
		LoanID:        l.ID,
		PaymentID:     p.ID,
		Amount:        p.Amount,
		LoanRemaining: receipt.LoanRemaining,
		TotalBalance:  receipt.TotalBalance,
		Timestamp:     now,
	}); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish payment received event", slog.Any("error", err))
	}
	return receipt, persistErr
}

// checkPaymentDate keeps receipts between the loan's origination and today,
// compared by calendar day.
func checkPaymentDate(date, origination, now time.Time) error {
	if caldate.Before(date, origination) {
		return apperrors.NewValidationError("date", "must not be before the loan date "+caldate.Format(origination))
	}
	if caldate.Before(now, date) {
		return apperrors.NewValidationError("date", "must not be in the future")
	}
	return nil
}

func (s *ledgerService) EditBorrowerProfile(ctx context.Context, borrowerID string, update borrower.ProfileUpdate) (*borrower.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := update.Validate(); err != nil {
		return nil, err
	}
	b, err := s.find(borrowerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := b.Apply(update, now); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Borrower profile updated", slog.String("borrowerID", b.ID))

	summary := borrower.Summarize(b.Clone(), now)
	return &summary, s.persist(ctx)
}

func (s *ledgerService) DeleteBorrower(ctx context.Context, borrowerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.borrowers, func(b *borrower.Borrower) bool { return b.ID == borrowerID })
	if idx < 0 {
		s.logger.WarnContext(ctx, "Borrower not found", slog.String("borrowerID", borrowerID))
		return apperrors.NewNotFoundError("borrower", borrowerID)
	}

	removed := s.borrowers[idx]
	s.borrowers = slices.Delete(s.borrowers, idx, idx+1)
	s.logger.InfoContext(ctx, "Borrower deleted", slog.String("borrowerID", borrowerID), slog.Int("loans", len(removed.Loans)))

	persistErr := s.persist(ctx)
	if err := s.pub.PublishBorrowerDeleted(ctx, event.BorrowerDeletedEvent{
		BorrowerID: borrowerID,
		LoanCount:  len(removed.Loans),
		Timestamp:  s.now(),
	}); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish borrower deleted event", slog.Any("error", err))
	}
	return persistErr
}

func (s *ledgerService) Borrower(ctx context.Context, borrowerID string, asOf time.Time) (*Detail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.find(borrowerID)
	if err != nil {
		return nil, err
	}
	c := b.Clone()
	return &Detail{
		Summary: borrower.Summarize(c, asOf),
		History: journal.Flatten([]*borrower.Borrower{c}),
	}, nil
}

func (s *ledgerService) Worklist(ctx context.Context, asOf time.Time, q borrower.Query) borrower.Worklist {
	return borrower.Top(s.Borrowers(ctx), asOf, q)
}

// Borrowers returns a deep copy of every borrower in insertion order.
func (s *ledgerService) Borrowers(ctx context.Context) []*borrower.Borrower {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneAll()
}

func (s *ledgerService) Books(ctx context.Context, r journal.DateRange) journal.Books {
	return journal.Project(s.Borrowers(ctx), r)
}

func (s *ledgerService) WriteCSV(ctx context.Context, w io.Writer, book journal.Book, r journal.DateRange) error {
	txs := r.Filter(journal.Flatten(s.Borrowers(ctx)))
	return journal.WriteCSV(w, book, txs)
}

func (s *ledgerService) CollectionList(ctx context.Context, asOf time.Time) string {
	return borrower.CollectionList(s.Borrowers(ctx), asOf)
}

func (s *ledgerService) Dashboard(ctx context.Context, asOf time.Time) Dashboard {
	all := s.Borrowers(ctx)
	ledger := journal.GeneralLedger(journal.Flatten(all))

	d := Dashboard{
		AsOf:             asOf,
		Borrowers:        len(all),
		TotalOutstanding: decimal.Zero,
		TotalDisbursed:   decimal.Zero,
		TotalCollected:   decimal.Zero,
		CashOnHand:       ledger.Cash.Net,
	}
	for _, b := range all {
		summary := borrower.Summarize(b, asOf)
		d.Loans += len(b.Loans)
		d.TotalOutstanding = d.TotalOutstanding.Add(summary.Balance)
		for _, st := range summary.Loans {
			d.TotalDisbursed = d.TotalDisbursed.Add(st.Loan.Principal)
			d.TotalCollected = d.TotalCollected.Add(st.Accrual.TotalPaid)
		}
		switch summary.Urgency {
		case borrower.Overdue:
			d.OverdueCount++
		case borrower.DueSoon:
			d.DueSoonCount++
		case borrower.Active:
			d.ActiveCount++
		default:
			d.PaidCount++
		}
	}
	return d
}

func (s *ledgerService) ExportSnapshot(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := encodeSnapshot(s.borrowers, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to encode snapshot for export", slog.Any("error", err))
		return nil, apperrors.ErrInternalServer
	}
	s.logger.InfoContext(ctx, "Snapshot exported", slog.Int("bytes", len(data)), slog.Int("borrowers", len(s.borrowers)))
	return data, nil
}

// ImportSnapshot replaces the whole ledger. Nothing changes unless the entire
// document parses.
func (s *ledgerService) ImportSnapshot(ctx context.Context, data []byte) (*ImportResult, error) {
	decoded, err := decodeSnapshot(data, s.defaultTerms, s.now())
	if err != nil {
		s.logger.WarnContext(ctx, "Rejected snapshot import", slog.Any("error", err))
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.borrowers = decoded.Borrowers
	result := &ImportResult{Borrowers: len(decoded.Borrowers), Migrated: decoded.Migrated}
	for _, b := range decoded.Borrowers {
		result.Loans += len(b.Loans)
	}
	s.logger.InfoContext(ctx, "Snapshot imported",
		slog.Int("borrowers", result.Borrowers),
		slog.Int("loans", result.Loans),
		slog.Int("migrated", result.Migrated))
	return result, s.persist(ctx)
}

func (s *ledgerService) find(borrowerID string) (*borrower.Borrower, error) {
	for _, b := range s.borrowers {
		if b.ID == borrowerID {
			return b, nil
		}
	}
	s.logger.Warn("Borrower not found", slog.String("borrowerID", borrowerID))
	return nil, apperrors.NewNotFoundError("borrower", borrowerID)
}

func (s *ledgerService) cloneAll() []*borrower.Borrower {
	out := make([]*borrower.Borrower, 0, len(s.borrowers))
	for _, b := range s.borrowers {
		out = append(out, b.Clone())
	}
	return out
}

// persist writes the current state through to the store. The in-memory state
// is kept whatever the outcome; callers return the error next to their result.
func (s *ledgerService) persist(ctx context.Context) error {
	data, err := encodeSnapshot(s.borrowers, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to encode snapshot", slog.Any("error", err))
		return apperrors.ErrInternalServer
	}

	start := time.Now()
	err = s.store.Save(ctx, data)
	s.recorder.SnapshotSaved(len(data), time.Since(start), err)
	if err == nil {
		s.logger.DebugContext(ctx, "Snapshot saved", slog.Int("bytes", len(data)))
		return nil
	}

	if errors.Is(err, apperrors.ErrPersistenceCapacity) {
		s.logger.WarnContext(ctx, "Snapshot store is full, change kept in memory only",
			slog.Int("bytes", len(data)), slog.Any("error", err))
		return err
	}
	s.logger.ErrorContext(ctx, "Failed to save snapshot, change kept in memory only", slog.Any("error", err))
	if apperrors.IsPersistence(err) {
		return err
	}
	return apperrors.WrapDatabaseError(err, "failed to save snapshot")
}

func (s *ledgerService) publishLoanDisbursed(ctx context.Context, b *borrower.Borrower, l *loan.Loan) {
	err := s.pub.PublishLoanDisbursed(ctx, event.LoanDisbursedEvent{
		BorrowerID:   b.ID,
		BorrowerName: b.Name,
		LoanID:       l.ID,
		Principal:    l.Principal,
		Terms:        l.Terms.String(),
		DueDate:      l.DueDate(),
		Timestamp:    s.now(),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish loan disbursed event", slog.String("loanID", l.ID), slog.Any("error", err))
	}
}
