package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/internal/repository"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
	"github.com/noah-isme/mentormatch-api/pkg/tracing"
)

// PartnerInfo is the partner display data stamped onto applications.
type PartnerInfo struct {
	HasPartner bool
	PartnerID  *string
	Name       *string
	Email      *string
}

func partnerInfoOf(partner *models.Student) PartnerInfo {
	if partner == nil {
		return PartnerInfo{}
	}
	return PartnerInfo{
		HasPartner: true,
		PartnerID:  strPtr(partner.ID),
		Name:       strPtr(partner.Name),
		Email:      strPtr(partner.Email),
	}
}

// PartnershipPairingService owns the paired state between students.
type PartnershipPairingService struct {
	repos    *Repositories
	logger   *zap.Logger
	observer WorkflowObserver
	now      func() time.Time
}

// PairingServiceOption configures the pairing service.
type PairingServiceOption func(*PartnershipPairingService)

// WithPairingObserver records workflow outcomes.
func WithPairingObserver(observer WorkflowObserver) PairingServiceOption {
	return func(s *PartnershipPairingService) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// WithPairingClock overrides the time source.
func WithPairingClock(now func() time.Time) PairingServiceOption {
	return func(s *PartnershipPairingService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPartnershipPairingService constructs the pairing service.
func NewPartnershipPairingService(repos *Repositories, logger *zap.Logger, opts ...PairingServiceOption) *PartnershipPairingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &PartnershipPairingService{repos: repos, logger: logger, observer: nopObserver{}, now: utcNow}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// pairWrites queues the mutual pairing of a and b inside tx.
func pairWrites(tx docstore.Tx, students *repository.StudentRepository, aID, bID string, now time.Time) error {
	for _, pair := range [][2]string{{aID, bID}, {bID, aID}} {
		if err := students.UpdateTx(tx, pair[0], docstore.Fields{
			repository.FieldPartnerID:         pair[1],
			repository.FieldPartnershipStatus: models.PartnershipPaired,
			repository.FieldUpdatedAt:         now,
		}); err != nil {
			return err
		}
	}
	return nil
}

// resetWrites queues a return to the unpartnered state for each student.
func resetWrites(tx docstore.Tx, students *repository.StudentRepository, now time.Time, ids ...string) error {
	for _, id := range ids {
		if err := students.UpdateTx(tx, id, docstore.Fields{
			repository.FieldPartnerID:         nil,
			repository.FieldPartnershipStatus: models.PartnershipNone,
			repository.FieldUpdatedAt:         now,
		}); err != nil {
			return err
		}
	}
	return nil
}

func isPendingStatus(s models.PartnershipStatus) bool {
	return s == models.PartnershipPendingSent || s == models.PartnershipPendingReceived
}

// PairStudents pairs two unpaired students directly. actorID, when set, is recorded in the audit log.
func (s *PartnershipPairingService) PairStudents(ctx context.Context, studentAID, studentBID, actorID string) (err error) {
	ctx, span := tracing.Start(ctx, "partnership.PairStudents")
	defer func() {
		tracing.End(span, err)
		s.observer.ObserveWorkflow("partnership.pair", err)
	}()

	if studentAID == "" || studentBID == "" {
		return validationError("both student ids are required")
	}
	if studentAID == studentBID {
		return validationError("a student cannot be paired with themselves")
	}

	var a, b *models.Student
	err = s.repos.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var txErr error
		if a, txErr = s.repos.Students.GetTx(tx, studentAID); txErr != nil {
			return storeError(txErr, "Student", "load student")
		}
		if b, txErr = s.repos.Students.GetTx(tx, studentBID); txErr != nil {
			return storeError(txErr, "Student", "load student")
		}
		if a.Status() == models.PartnershipPaired || b.Status() == models.PartnershipPaired {
			return invalidState("Both students must be unpaired before they can be paired")
		}
		return pairWrites(tx, s.repos.Students, studentAID, studentBID, s.now())
	})
	if err != nil {
		return storeError(err, "Student", "pair students")
	}

	s.afterPairing(ctx, a, b)
	if actorID != "" {
		s.audit(ctx, actorID, models.AuditActionAdminPair, studentAID, studentBID)
	}
	s.logger.Info("students paired", zap.String("student_a", studentAID), zap.String("student_b", studentBID))
	return nil
}

// afterPairing runs the post-commit cleanup shared by accept and direct pairing.
func (s *PartnershipPairingService) afterPairing(ctx context.Context, a, b *models.Student) {
	for _, id := range []string{a.ID, b.ID} {
		if _, err := s.CancelAllPendingRequests(ctx, id); err != nil {
			s.logger.Warn("cancel pending requests after pairing failed", zap.String("student_id", id), zap.Error(err))
		}
	}
	for _, pair := range [][2]*models.Student{{a, b}, {b, a}} {
		if _, err := s.UpdatePartnerInfoOnApplications(ctx, pair[0].ID, partnerInfoOf(pair[1])); err != nil {
			s.logger.Warn("propagate partner info failed", zap.String("student_id", pair[0].ID), zap.Error(err))
		}
	}
}

// UnpairStudents dissolves a mutual pairing and clears partner data from active applications.
func (s *PartnershipPairingService) UnpairStudents(ctx context.Context, studentAID, studentBID, actorID string) (err error) {
	ctx, span := tracing.Start(ctx, "partnership.UnpairStudents")
	defer func() {
		tracing.End(span, err)
		s.observer.ObserveWorkflow("partnership.unpair", err)
	}()

	if studentAID == "" || studentBID == "" {
		return validationError("both student ids are required")
	}
	if studentAID == studentBID {
		return validationError("a student cannot be unpaired from themselves")
	}

	err = s.repos.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		a, txErr := s.repos.Students.GetTx(tx, studentAID)
		if txErr != nil {
			return storeError(txErr, "Student", "load student")
		}
		b, txErr := s.repos.Students.GetTx(tx, studentBID)
		if txErr != nil {
			return storeError(txErr, "Student", "load student")
		}
		if !a.IsPairedWith(studentBID) || !b.IsPairedWith(studentAID) {
			return invalidState("These students are not currently partners")
		}
		return resetWrites(tx, s.repos.Students, s.now(), studentAID, studentBID)
	})
	if err != nil {
		return storeError(err, "Student", "unpair students")
	}

	for _, id := range []string{studentAID, studentBID} {
		if _, cerr := s.UpdatePartnerInfoOnApplications(ctx, id, PartnerInfo{}); cerr != nil {
			s.logger.Warn("clear partner info failed", zap.String("student_id", id), zap.Error(cerr))
		}
	}
	if actorID != "" {
		s.audit(ctx, actorID, models.AuditActionAdminUnpair, studentAID, studentBID)
	}
	s.logger.Info("students unpaired", zap.String("student_a", studentAID), zap.String("student_b", studentBID))
	return nil
}

// CancelAllPendingRequests cancels every pending request where entityID is either party and
// resets counterparts left in a pending state with nothing else outstanding. It returns the
// number of cancelled requests.
func (s *PartnershipPairingService) CancelAllPendingRequests(ctx context.Context, entityID string) (int, error) {
	pending, err := s.repos.PartnershipRequests.ListPendingInvolving(ctx, entityID)
	if err != nil {
		return 0, storeError(err, "Partnership request", "list pending requests")
	}
	if len(pending) == 0 {
		return 0, nil
	}

	now := s.now()
	writer := docstore.NewChunkedWriter(s.repos.Store)
	counterparts := make(map[string]struct{}, len(pending))
	for _, req := range pending {
		if err := writer.Update(ctx, s.repos.PartnershipRequests.Ref(req.ID), docstore.Fields{
			repository.FieldStatus:      models.RequestCancelled,
			repository.FieldRespondedAt: now,
		}); err != nil {
			return writer.Committed(), storeError(err, "Partnership request", "cancel pending requests")
		}
		counterparts[req.Counterpart(entityID)] = struct{}{}
	}
	if err := writer.Flush(ctx); err != nil {
		return writer.Committed(), storeError(err, "Partnership request", "cancel pending requests")
	}

	for id := range counterparts {
		if err := s.releaseIfIdle(ctx, id); err != nil {
			s.logger.Warn("reset counterpart failed", zap.String("student_id", id), zap.Error(err))
		}
	}
	return writer.Committed(), nil
}

// releaseIfIdle resets a student stuck in pending_* once no pending request involves them.
func (s *PartnershipPairingService) releaseIfIdle(ctx context.Context, studentID string) error {
	remaining, err := s.repos.PartnershipRequests.ListPendingInvolving(ctx, studentID)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return nil
	}
	return s.repos.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		student, err := s.repos.Students.GetTx(tx, studentID)
		if err != nil {
			return err
		}
		if !isPendingStatus(student.Status()) {
			return nil
		}
		return resetWrites(tx, s.repos.Students, s.now(), studentID)
	})
}

// UpdatePartnerInfoOnApplications stamps partner data onto the student's pending and approved
// applications in chunked batches. It returns the number of applications written.
func (s *PartnershipPairingService) UpdatePartnerInfoOnApplications(ctx context.Context, studentID string, info PartnerInfo) (int, error) {
	apps, err := s.repos.Applications.ListOwnedActive(ctx, studentID)
	if err != nil {
		return 0, storeError(err, "Application", "list applications")
	}
	writer := docstore.NewChunkedWriter(s.repos.Store)
	for _, app := range apps {
		if err := writer.Update(ctx, s.repos.Applications.Ref(app.ID), docstore.Fields{
			repository.FieldHasPartner:   info.HasPartner,
			repository.FieldPartnerID:    info.PartnerID,
			repository.FieldPartnerName:  info.Name,
			repository.FieldPartnerEmail: info.Email,
		}); err != nil {
			return writer.Committed(), storeError(err, "Application", "update partner info")
		}
	}
	if err := writer.Flush(ctx); err != nil {
		return writer.Committed(), storeError(err, "Application", "update partner info")
	}
	return writer.Committed(), nil
}

func (s *PartnershipPairingService) audit(ctx context.Context, actorID, action, studentAID, studentBID string) {
	payload, _ := json.Marshal(map[string]string{"studentAId": studentAID, "studentBId": studentBID})
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   repository.CollectionStudents,
		ResourceID: &studentAID,
		NewValues:  payload,
		CreatedAt:  s.now(),
	}
	if err := s.repos.Audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
