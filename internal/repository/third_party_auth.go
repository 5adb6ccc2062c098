// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"codeberg.org/oliverandrich/loginflow/internal/models"
)

// ListThirdPartyAuthsByUserID returns all provider links for a user.
func (r *Repository) ListThirdPartyAuthsByUserID(ctx context.Context, userID string) ([]models.ThirdPartyAuth, error) {
	var auths []models.ThirdPartyAuth
	err := r.db.SelectContext(ctx, &auths,
		`SELECT * FROM user_third_party_auths WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	return auths, nil
}

// GetThirdPartyAuth looks up a provider link by provider name and the
// provider's own account ID.
func (r *Repository) GetThirdPartyAuth(ctx context.Context, provider, providerID string) (*models.ThirdPartyAuth, error) {
	var auth models.ThirdPartyAuth
	err := r.db.GetContext(ctx, &auth,
		`SELECT * FROM user_third_party_auths WHERE provider = ? AND provider_id = ?`, provider, providerID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &auth, nil
}

// LinkThirdPartyAuth stores a new provider link for a user.
func (r *Repository) LinkThirdPartyAuth(ctx context.Context, auth *models.ThirdPartyAuth) error {
	if auth.ID == "" {
		auth.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	auth.CreatedAt = now
	auth.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_third_party_auths (id, user_id, provider, provider_id, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		auth.ID, auth.UserID, auth.Provider, auth.ProviderID, auth.Payload, auth.CreatedAt, auth.UpdatedAt)
	return err
}

// UnlinkThirdPartyAuth removes a provider link.
func (r *Repository) UnlinkThirdPartyAuth(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_third_party_auths WHERE id = ?`, id)
	return err
}
