package repo

import (
	"context"
	"errors"
	"time"

	"liftlog/internal/model"
	"liftlog/internal/store"
)

// EnsureUser creates the local row for userID if it does not exist yet
// and returns it. Sign-in flows call this so every foreign key has a
// parent before the first plan is created.
func (r *Repo) EnsureUser(ctx context.Context, userID, email, displayName string) (*model.User, error) {
	rec, err := r.s.Get(ctx, TableUsers, userID)
	if err == nil {
		return userFromRecord(rec), nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, dbErr("ensure user", err)
	}
	now := fmtTime(time.Now())
	err = r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		return tx.Create(ctx, TableUsers, store.Record{
			"id":               userID,
			"email":            email,
			"display_name":     displayName,
			"avatar_url":       nil,
			"default_rest_sec": int64(90),
			"created_at":       now,
			"updated_at":       now,
		})
	})
	if err != nil {
		return nil, dbErr("ensure user", err)
	}
	r.logger.Printf("created local user %s", userID)
	return r.GetUser(ctx, userID)
}

// GetUser returns a user row by ID.
func (r *Repo) GetUser(ctx context.Context, userID string) (*model.User, error) {
	rec, err := r.s.Get(ctx, TableUsers, userID)
	if err != nil {
		return nil, dbErr("get user", err)
	}
	return userFromRecord(rec), nil
}

// UpdateUserSettings changes the user's display name and default rest.
func (r *Repo) UpdateUserSettings(ctx context.Context, userID, displayName string, defaultRestSec int) (*model.User, error) {
	err := r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		if _, err := tx.Get(ctx, TableUsers, userID); err != nil {
			return err
		}
		return tx.Update(ctx, TableUsers, userID, store.Record{
			"display_name":     displayName,
			"default_rest_sec": int64(defaultRestSec),
			"updated_at":       fmtTime(time.Now()),
		})
	})
	if err != nil {
		return nil, dbErr("update user settings", err)
	}
	return r.GetUser(ctx, userID)
}
