package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kestrelhealth/claimdeck/pkg/entity"
)

// Domain actions are two-phase: the collaborator is called first, and the
// local collection is only touched after the backend confirms. On failure no
// local mutation happens and the error goes back to the caller; these are
// user-initiated commands whose failure must be visible.

// SubmitClaim submits a draft claim to its payer.
func (st *Store) SubmitClaim(ctx context.Context, id int64) (entity.Claim, error) {
	return commandAndApply(ctx, st, st.Claims, entity.TableClaims, id, "submit", nil)
}

// DenyClaim marks a claim denied with a reason code.
func (st *Store) DenyClaim(ctx context.Context, id int64, reason string) (entity.Claim, error) {
	return commandAndApply(ctx, st, st.Claims, entity.TableClaims, id, "deny",
		map[string]any{"reason": reason})
}

// ReopenClaim moves a denied claim back into review.
func (st *Store) ReopenClaim(ctx context.Context, id int64) (entity.Claim, error) {
	return commandAndApply(ctx, st, st.Claims, entity.TableClaims, id, "reopen", nil)
}

// ApprovePriorAuth approves a prior authorization request.
func (st *Store) ApprovePriorAuth(ctx context.Context, id int64) (entity.PriorAuth, error) {
	return commandAndApply(ctx, st, st.PriorAuths, entity.TablePriorAuths, id, "approve", nil)
}

// DenyPriorAuth denies a prior authorization request with a reason.
func (st *Store) DenyPriorAuth(ctx context.Context, id int64, reason string) (entity.PriorAuth, error) {
	return commandAndApply(ctx, st, st.PriorAuths, entity.TablePriorAuths, id, "deny",
		map[string]any{"reason": reason})
}

// PostPayment posts a pending remittance against its claim.
func (st *Store) PostPayment(ctx context.Context, id int64) (entity.Payment, error) {
	return commandAndApply(ctx, st, st.Payments, entity.TablePayments, id, "post", nil)
}

// ReconcilePayment marks a posted payment reconciled against the bank feed.
func (st *Store) ReconcilePayment(ctx context.Context, id int64) (entity.Payment, error) {
	return commandAndApply(ctx, st, st.Payments, entity.TablePayments, id, "reconcile", nil)
}

// DeactivateProvider retires a provider from new claims.
func (st *Store) DeactivateProvider(ctx context.Context, id int64) (entity.Provider, error) {
	return commandAndApply(ctx, st, st.Providers, entity.TableProviders, id, "deactivate", nil)
}

// commandAndApply issues the command and upserts the confirmed row the
// backend returns.
func commandAndApply[T any, K comparable](
	ctx context.Context,
	st *Store,
	s *Slice[T, K],
	table string,
	id K,
	action string,
	payload any,
) (T, error) {
	var zero T
	log := st.log.WithTable(table).WithOperation(action)

	raw, err := st.client.Command(ctx, table, s.keyOf(id), action, payload)
	if err != nil {
		log.Warn("command failed", "id", s.keyOf(id), "error", err)
		return zero, fmt.Errorf("%s %s %s: %w", action, table, s.keyOf(id), err)
	}
	var rec T
	if err := json.Unmarshal(raw, &rec); err != nil {
		log.Warn("command response undecodable", "id", s.keyOf(id), "error", err)
		return zero, fmt.Errorf("decode %s %s response: %w", action, table, err)
	}
	s.Upsert(rec)
	log.Info("command applied", "id", s.keyOf(id))
	return rec, nil
}
