package session

import (
	"context"
	"time"

	"github.com/armtemiy/armlab/pkg/domain"
)

// launch starts the background save for req.
// The request context is detached so a finished HTTP call does not cancel it.
func (m *Manager) launch(ctx context.Context, caller domain.Caller, req *domain.PersistRequest) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.persist(context.WithoutCancel(ctx), caller, req)
	}()
}

func (m *Manager) persist(ctx context.Context, caller domain.Caller, req *domain.PersistRequest) {
	var userID *string
	if caller.User != nil && caller.User.ID != "" {
		id, err := m.results.UpsertUser(ctx, caller.User.ID, caller.User.Username, caller.Access.IsAdmin)
		if err != nil {
			// The outcome is still worth keeping without an owner.
			m.logger.Warn("user upsert failed, storing anonymous result",
				"session_id", req.SessionID,
				"user_id", caller.User.ID,
				"err", err,
			)
		} else {
			userID = &id
		}
	}

	status := domain.SaveSaved
	err := m.results.InsertDiagnosticResult(ctx, userID, req.TreeID, req.Answers, req.Snapshot)
	if err != nil {
		status = domain.SaveFailed
		m.logger.Error("failed to store diagnostic result",
			"session_id", req.SessionID,
			"tree_id", req.TreeID,
			"node_id", req.NodeID,
			"err", err,
		)
	}

	m.settle(ctx, req, status, err)
}

// settle writes the save outcome back to the session if it is still current.
func (m *Manager) settle(ctx context.Context, req *domain.PersistRequest, status domain.SaveStatus, saveErr error) {
	stale := false

	err := m.WithLock(ctx, req.SessionID, func(ctx context.Context) error {
		state, err := m.store.Load(ctx, req.SessionID)
		if err != nil {
			return err
		}
		if state.Generation != req.Generation {
			stale = true
			return nil
		}

		state.Save = status
		state.SaveError = ""
		if saveErr != nil {
			state.SaveError = saveErr.Error()
		}
		state.UpdatedAt = time.Now()
		return m.store.Save(ctx, req.SessionID, state)
	})
	if err != nil {
		m.logger.Warn("could not record save outcome",
			"session_id", req.SessionID,
			"err", err,
		)
	}
	if stale {
		m.logger.Debug("dropping stale save outcome",
			"session_id", req.SessionID,
			"generation", req.Generation,
		)
	}

	if m.hooks.OnPersist != nil {
		m.hooks.OnPersist(ctx, &domain.PersistEvent{
			EventBase: domain.EventBase{
				Timestamp: time.Now(),
				Type:      domain.EventPersist,
				SessionID: req.SessionID,
			},
			TreeID: req.TreeID,
			NodeID: req.NodeID,
			Status: status,
			Stale:  stale,
			Err:    saveErr,
		})
	}
}
