package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/erp-automation/internal/persistence"
)

// DocumentCanceller sets a document's status to Cancelled regardless of its
// workflow state.
type DocumentCanceller struct {
	store  persistence.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewDocumentCanceller wires the force_cancel endpoint.
func NewDocumentCanceller(store persistence.Store, now func() time.Time, logger *slog.Logger) *DocumentCanceller {
	if now == nil {
		now = time.Now
	}
	return &DocumentCanceller{store: store, now: now, logger: defaultLogger(logger)}
}

// ForceCancel cancels the document identified by doctype and id. Unknown
// doctypes and missing documents are reported in the result rather than as
// errors. Only administrators may call it.
func (c *DocumentCanceller) ForceCancel(ctx context.Context, principal Principal, doctype, id string) (ForceCancelResult, error) {
	logger := serviceLogger(ctx, c.logger, "document_canceller", "force_cancel", "principal_id", principal.UserID, "doctype", doctype, "doc_id", id)
	if principal.UserID == "" || !principal.IsAdmin {
		logger.Warn("force cancel denied", "error_kind", ErrorKind(ErrUnauthorized))
		return ForceCancelResult{}, ErrUnauthorized
	}

	cancel, ok := c.cancellers()[doctype]
	if !ok {
		return ForceCancelResult{Success: false, Message: "unsupported doctype"}, nil
	}

	var already bool
	err := c.store.WithinTransaction(ctx, func(ctx context.Context, tx persistence.Repositories) error {
		var err error
		already, err = cancel(ctx, tx, id, c.now())
		return err
	})
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ForceCancelResult{Success: false, Message: "not found"}, nil
	case err != nil:
		err = mapRepoError(err)
		logger.Error("force cancel failed", "error", err, "error_kind", ErrorKind(err))
		return ForceCancelResult{}, err
	case already:
		return ForceCancelResult{Success: true, Message: "already cancelled"}, nil
	}
	logger.Info("document cancelled")
	return ForceCancelResult{Success: true, Message: "document cancelled"}, nil
}

// cancelFunc reports whether the document was already cancelled.
type cancelFunc func(ctx context.Context, tx persistence.Repositories, id string, now time.Time) (bool, error)

func (c *DocumentCanceller) cancellers() map[string]cancelFunc {
	return map[string]cancelFunc{
		DocTypeMeeting: func(ctx context.Context, tx persistence.Repositories, id string, now time.Time) (bool, error) {
			doc, err := tx.GetMeeting(ctx, id)
			if err != nil || doc.Status == persistence.StatusCancelled {
				return err == nil, err
			}
			doc.Status, doc.UpdatedAt = persistence.StatusCancelled, now
			return false, tx.UpdateMeeting(ctx, doc)
		},
		DocTypeTask: func(ctx context.Context, tx persistence.Repositories, id string, now time.Time) (bool, error) {
			doc, err := tx.GetTask(ctx, id)
			if err != nil || doc.Status == persistence.StatusCancelled {
				return err == nil, err
			}
			doc.Status, doc.UpdatedAt = persistence.StatusCancelled, now
			return false, tx.UpdateTask(ctx, doc)
		},
		DocTypeEngineeringAssignment: func(ctx context.Context, tx persistence.Repositories, id string, now time.Time) (bool, error) {
			doc, err := tx.GetAssignment(ctx, id)
			if err != nil || doc.Status == persistence.StatusCancelled {
				return err == nil, err
			}
			doc.Status, doc.UpdatedAt = persistence.StatusCancelled, now
			return false, tx.UpdateAssignment(ctx, doc)
		},
		DocTypeEngineeringTask: func(ctx context.Context, tx persistence.Repositories, id string, now time.Time) (bool, error) {
			doc, err := tx.GetEngineeringTask(ctx, id)
			if err != nil || doc.Status == persistence.StatusCancelled {
				return err == nil, err
			}
			doc.Status, doc.UpdatedAt = persistence.StatusCancelled, now
			return false, tx.UpdateEngineeringTask(ctx, doc)
		},
	}
}
