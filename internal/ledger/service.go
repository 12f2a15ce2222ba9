package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/renovo/backend/internal/database"
	"github.com/renovo/backend/internal/metrics"
	"github.com/renovo/backend/internal/models"
	"github.com/renovo/backend/internal/realtime"
	"github.com/renovo/backend/internal/telemetry"
)

var (
	ErrAlreadyUnlocked     = errors.New("project already unlocked")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrProjectNotFound     = errors.New("project not found")
	ErrContractorNotFound  = errors.New("contractor not found")
	ErrNotContractor       = errors.New("user is not a contractor")
	ErrNotApproved         = errors.New("contractor is not approved")
	ErrCostMismatch        = errors.New("credit cost does not match project")
	ErrUnknownPackage      = errors.New("unknown credit package")
	ErrNotUnlocked         = errors.New("project not unlocked")
	ErrAlreadyRefunded     = errors.New("unlock already refunded")
	ErrNotEntitled         = errors.New("not entitled to private details")
	ErrForbidden           = errors.New("forbidden")
	ErrStoreUnavailable    = errors.New("ledger store unavailable")
)

// Receipt describes a committed balance change.
type Receipt struct {
	Unlock      *models.ProjectUnlock     `json:"unlock,omitempty"`
	Transaction *models.CreditTransaction `json:"transaction"`
	Balance     int                       `json:"balance"`
}

// Reconciliation compares a contractor's stored balance with the balance
// implied by their transaction history.
type Reconciliation struct {
	ContractorUID uuid.UUID `json:"contractorUid"`
	Balance       int       `json:"balance"`
	LedgerSum     int       `json:"ledgerSum"`
	Drift         int       `json:"drift"`
	Entries       int       `json:"entries"`
}

func (r *Reconciliation) Balanced() bool { return r.Drift == 0 }

type Service interface {
	UnlockProject(ctx context.Context, contractorUID, projectID uuid.UUID, creditCost int) (*Receipt, error)
	// Unlock charges the project's listed credit cost.
	Unlock(ctx context.Context, contractorUID, projectID uuid.UUID) (*Receipt, error)
	BuyCredits(ctx context.Context, contractorUID uuid.UUID, packageID string) (*Receipt, error)
	RefundUnlock(ctx context.Context, actor models.Actor, contractorUID, projectID uuid.UUID, reason string) (*Receipt, error)
	GetContractorUnlocks(ctx context.Context, contractorUID uuid.UUID) ([]*models.ProjectUnlock, error)
	GetProjectPrivateDetails(ctx context.Context, projectID uuid.UUID) (*models.ProjectPrivateDetails, error)
	PrivateDetailsFor(ctx context.Context, actor models.Actor, projectID uuid.UUID) (*models.ProjectPrivateDetails, error)
	HasUnlocked(ctx context.Context, contractorUID, projectID uuid.UUID) (bool, error)
	Balance(ctx context.Context, contractorUID uuid.UUID) (int, error)
	History(ctx context.Context, contractorUID uuid.UUID) ([]*models.CreditTransaction, error)
	Reconcile(ctx context.Context, contractorUID uuid.UUID) (*Reconciliation, error)
}

type service struct {
	db       database.TxBeginner
	users    UserStore
	projects ProjectStore
	unlocks  UnlockStore
	credits  CreditStore
	pub      realtime.Publisher
	locks    *keyedMutex
	log      *slog.Logger
}

func NewService(db database.TxBeginner, users UserStore, projects ProjectStore, unlocks UnlockStore, credits CreditStore, pub realtime.Publisher, log *slog.Logger) *service {
	if log == nil {
		log = slog.Default()
	}
	return &service{
		db:       db,
		users:    users,
		projects: projects,
		unlocks:  unlocks,
		credits:  credits,
		pub:      pub,
		locks:    newKeyedMutex(),
		log:      log,
	}
}

var _ Service = (*service)(nil)

func (s *service) UnlockProject(ctx context.Context, contractorUID, projectID uuid.UUID, creditCost int) (receipt *Receipt, err error) {
	ctx, span := telemetry.Start(ctx, "ledger.UnlockProject",
		attribute.String("contractor.uid", contractorUID.String()),
		attribute.String("project.id", projectID.String()),
		attribute.Int("credit.cost", creditCost))
	defer func() {
		metrics.ObserveLedger("unlock", resultLabel(err))
		telemetry.End(span, err)
	}()

	defer s.locks.Lock(contractorUID)()

	unlockID := models.UnlockID(contractorUID, projectID)
	err = database.InTx(ctx, s.db, func(tx pgx.Tx) error {
		existing, err := s.unlocks.GetTx(ctx, tx, unlockID)
		if err != nil {
			return s.storeErr("probe unlock", err)
		}
		if existing != nil {
			return ErrAlreadyUnlocked
		}

		contractor, err := s.lockContractor(ctx, tx, contractorUID)
		if err != nil {
			return err
		}
		if !contractor.IsApproved() {
			return ErrNotApproved
		}
		if contractor.CreditBalance < creditCost {
			return ErrInsufficientCredits
		}

		project, err := s.projects.GetByIDTx(ctx, tx, projectID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProjectNotFound
		}
		if err != nil {
			return s.storeErr("load project", err)
		}
		if project.CreditCost != creditCost {
			return ErrCostMismatch
		}

		unlock := &models.ProjectUnlock{
			ID:            unlockID,
			ContractorUID: contractorUID,
			ProjectID:     projectID,
			HomeownerUID:  project.HomeownerUID,
			CreditCost:    creditCost,
		}
		if err := s.unlocks.CreateTx(ctx, tx, unlock); err != nil {
			if database.IsDuplicate(err) {
				return ErrAlreadyUnlocked
			}
			return s.storeErr("insert unlock", err)
		}

		balance, err := s.users.DeductCredits(ctx, tx, contractorUID, creditCost)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInsufficientCredits
		}
		if err != nil {
			return s.storeErr("deduct credits", err)
		}

		entry := &models.CreditTransaction{
			ID:               uuid.New(),
			ContractorUID:    contractorUID,
			Type:             models.TransactionUnlock,
			CreditAmount:     creditCost,
			RelatedProjectID: &projectID,
		}
		if err := s.credits.CreateTx(ctx, tx, entry); err != nil {
			return s.storeErr("insert transaction", err)
		}

		receipt = &Receipt{Unlock: unlock, Transaction: entry, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, s.txErr(err)
	}

	metrics.AddCredits(models.TransactionUnlock, creditCost)
	s.log.Info("project unlocked",
		"contractor", contractorUID, "project", projectID, "cost", creditCost, "balance", receipt.Balance)
	s.pub.Publish(ctx, realtime.UserTopic(contractorUID), "balance", "")
	s.pub.Publish(ctx, realtime.UnlocksTopic(contractorUID), "unlocked", projectID.String())
	return receipt, nil
}

func (s *service) Unlock(ctx context.Context, contractorUID, projectID uuid.UUID) (*Receipt, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, s.txErr(s.storeErr("load project", err))
	}
	return s.UnlockProject(ctx, contractorUID, projectID, project.CreditCost)
}

func (s *service) BuyCredits(ctx context.Context, contractorUID uuid.UUID, packageID string) (receipt *Receipt, err error) {
	ctx, span := telemetry.Start(ctx, "ledger.BuyCredits",
		attribute.String("contractor.uid", contractorUID.String()),
		attribute.String("package.id", packageID))
	defer func() {
		metrics.ObserveLedger("purchase", resultLabel(err))
		telemetry.End(span, err)
	}()

	pkg, ok := models.FindCreditPackage(packageID)
	if !ok {
		return nil, ErrUnknownPackage
	}

	defer s.locks.Lock(contractorUID)()

	err = database.InTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := s.lockContractor(ctx, tx, contractorUID); err != nil {
			return err
		}
		balance, err := s.users.AddCredits(ctx, tx, contractorUID, pkg.Credits)
		if err != nil {
			return s.storeErr("add credits", err)
		}
		entry := &models.CreditTransaction{
			ID:                  uuid.New(),
			ContractorUID:       contractorUID,
			Type:                models.TransactionPurchase,
			CreditAmount:        pkg.Credits,
			Cost:                pkg.Price,
			StripeTransactionID: "sim_" + uuid.NewString(),
		}
		if err := s.credits.CreateTx(ctx, tx, entry); err != nil {
			return s.storeErr("insert transaction", err)
		}
		receipt = &Receipt{Transaction: entry, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, s.txErr(err)
	}

	metrics.AddCredits(models.TransactionPurchase, pkg.Credits)
	s.log.Info("credits purchased", "contractor", contractorUID, "package", pkg.ID, "credits", pkg.Credits, "balance", receipt.Balance)
	s.pub.Publish(ctx, realtime.UserTopic(contractorUID), "balance", "")
	return receipt, nil
}

func (s *service) RefundUnlock(ctx context.Context, actor models.Actor, contractorUID, projectID uuid.UUID, reason string) (receipt *Receipt, err error) {
	ctx, span := telemetry.Start(ctx, "ledger.RefundUnlock",
		attribute.String("contractor.uid", contractorUID.String()),
		attribute.String("project.id", projectID.String()))
	defer func() {
		metrics.ObserveLedger("refund", resultLabel(err))
		telemetry.End(span, err)
	}()

	if !actor.Is(models.RoleAdmin) {
		return nil, ErrForbidden
	}

	defer s.locks.Lock(contractorUID)()

	err = database.InTx(ctx, s.db, func(tx pgx.Tx) error {
		unlock, err := s.unlocks.GetTx(ctx, tx, models.UnlockID(contractorUID, projectID))
		if err != nil {
			return s.storeErr("load unlock", err)
		}
		if unlock == nil {
			return ErrNotUnlocked
		}
		if _, err := s.lockContractor(ctx, tx, contractorUID); err != nil {
			return err
		}
		prior, err := s.credits.FindRefundTx(ctx, tx, contractorUID, projectID)
		if err != nil {
			return s.storeErr("find refund", err)
		}
		if prior != nil {
			return ErrAlreadyRefunded
		}

		balance, err := s.users.AddCredits(ctx, tx, contractorUID, unlock.CreditCost)
		if err != nil {
			return s.storeErr("add credits", err)
		}
		entry := &models.CreditTransaction{
			ID:               uuid.New(),
			ContractorUID:    contractorUID,
			Type:             models.TransactionRefund,
			CreditAmount:     unlock.CreditCost,
			RelatedProjectID: &projectID,
		}
		if err := s.credits.CreateTx(ctx, tx, entry); err != nil {
			if database.IsDuplicate(err) {
				return ErrAlreadyRefunded
			}
			return s.storeErr("insert transaction", err)
		}
		receipt = &Receipt{Unlock: unlock, Transaction: entry, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, s.txErr(err)
	}

	metrics.AddCredits(models.TransactionRefund, receipt.Transaction.CreditAmount)
	s.log.Info("unlock refunded",
		"contractor", contractorUID, "project", projectID, "credits", receipt.Transaction.CreditAmount,
		"admin", actor.UID, "reason", reason)
	s.pub.Publish(ctx, realtime.UserTopic(contractorUID), "balance", "")
	return receipt, nil
}

func (s *service) GetContractorUnlocks(ctx context.Context, contractorUID uuid.UUID) ([]*models.ProjectUnlock, error) {
	list, err := s.unlocks.ListByContractor(ctx, contractorUID)
	if err != nil {
		return nil, s.txErr(s.storeErr("list unlocks", err))
	}
	if list == nil {
		list = []*models.ProjectUnlock{}
	}
	return list, nil
}

func (s *service) GetProjectPrivateDetails(ctx context.Context, projectID uuid.UUID) (*models.ProjectPrivateDetails, error) {
	d, err := s.projects.GetPrivateDetails(ctx, projectID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, s.txErr(s.storeErr("load private details", err))
	}
	return d, nil
}

// PrivateDetailsFor releases private details to the owning homeowner, admins
// and contractors holding an unlock for the project.
func (s *service) PrivateDetailsFor(ctx context.Context, actor models.Actor, projectID uuid.UUID) (*models.ProjectPrivateDetails, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleHomeowner:
		project, err := s.projects.GetByID(ctx, projectID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		if err != nil {
			return nil, s.txErr(s.storeErr("load project", err))
		}
		if project.HomeownerUID != actor.UID {
			return nil, ErrNotEntitled
		}
	case models.RoleContractor:
		ok, err := s.HasUnlocked(ctx, actor.UID, projectID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNotEntitled
		}
	default:
		return nil, ErrNotEntitled
	}
	return s.GetProjectPrivateDetails(ctx, projectID)
}

func (s *service) HasUnlocked(ctx context.Context, contractorUID, projectID uuid.UUID) (bool, error) {
	ok, err := s.unlocks.Exists(ctx, contractorUID, projectID)
	if err != nil {
		return false, s.txErr(s.storeErr("probe unlock", err))
	}
	return ok, nil
}

func (s *service) Balance(ctx context.Context, contractorUID uuid.UUID) (int, error) {
	u, err := s.users.GetByID(ctx, contractorUID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrContractorNotFound
	}
	if err != nil {
		return 0, s.txErr(s.storeErr("load contractor", err))
	}
	if !u.IsContractor() {
		return 0, ErrNotContractor
	}
	return u.CreditBalance, nil
}

func (s *service) History(ctx context.Context, contractorUID uuid.UUID) ([]*models.CreditTransaction, error) {
	list, err := s.credits.ListByContractor(ctx, contractorUID)
	if err != nil {
		return nil, s.txErr(s.storeErr("list transactions", err))
	}
	if list == nil {
		list = []*models.CreditTransaction{}
	}
	return list, nil
}

// Reconcile holds the contractor row lock while reading the ledger so no
// write can land between the two reads. Drift is reported, never corrected.
func (s *service) Reconcile(ctx context.Context, contractorUID uuid.UUID) (rec *Reconciliation, err error) {
	ctx, span := telemetry.Start(ctx, "ledger.Reconcile", attribute.String("contractor.uid", contractorUID.String()))
	defer func() {
		metrics.ObserveLedger("reconcile", resultLabel(err))
		telemetry.End(span, err)
	}()

	defer s.locks.Lock(contractorUID)()

	err = database.InTx(ctx, s.db, func(tx pgx.Tx) error {
		contractor, err := s.lockContractor(ctx, tx, contractorUID)
		if err != nil {
			return err
		}
		entries, err := s.credits.ListByContractor(ctx, contractorUID)
		if err != nil {
			return s.storeErr("list transactions", err)
		}
		sum := models.LedgerSum(entries)
		rec = &Reconciliation{
			ContractorUID: contractorUID,
			Balance:       contractor.CreditBalance,
			LedgerSum:     sum,
			Drift:         contractor.CreditBalance - sum,
			Entries:       len(entries),
		}
		return nil
	})
	if err != nil {
		return nil, s.txErr(err)
	}

	metrics.SetDrift(contractorUID.String(), rec.Drift)
	if !rec.Balanced() {
		s.log.Error("ledger drift detected",
			"contractor", contractorUID, "balance", rec.Balance, "ledger_sum", rec.LedgerSum, "drift", rec.Drift)
	}
	return rec, nil
}

func (s *service) lockContractor(ctx context.Context, tx pgx.Tx, uid uuid.UUID) (*models.User, error) {
	u, err := s.users.GetByIDForUpdate(ctx, tx, uid)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrContractorNotFound
	}
	if err != nil {
		return nil, s.storeErr("lock contractor", err)
	}
	if !u.IsContractor() {
		return nil, ErrNotContractor
	}
	return u, nil
}

func (s *service) storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, database.Classify(err))
}

// txErr surfaces backend outages as ErrStoreUnavailable and leaves domain
// errors untouched.
func (s *service) txErr(err error) error {
	if errors.Is(err, database.ErrUnavailable) && !errors.Is(err, ErrStoreUnavailable) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyUnlocked):
		return "already_unlocked"
	case errors.Is(err, ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, ErrNotApproved), errors.Is(err, ErrNotContractor), errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrProjectNotFound), errors.Is(err, ErrContractorNotFound), errors.Is(err, ErrNotUnlocked):
		return "not_found"
	case errors.Is(err, ErrStoreUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
