package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kestrelhealth/claimdeck/pkg/entity"
	"github.com/kestrelhealth/claimdeck/pkg/realtime"
)

// RealtimeBindings returns one envelope handler per watched table, wired to
// the owning slice's mutation functions: INSERT upserts (a replayed insert
// for a known id degrades to an update), UPDATE merges the new row guarded
// by its update stamp, DELETE removes.
func (st *Store) RealtimeBindings() map[string]realtime.Handler {
	return map[string]realtime.Handler{
		entity.TablePatients:   bindSlice(st.Patients),
		entity.TableClaims:     bindSlice(st.Claims),
		entity.TablePriorAuths: bindSlice(st.PriorAuths),
		entity.TablePayments:   bindSlice(st.Payments),
		entity.TableProviders:  bindSlice(st.Providers),
		entity.TablePayers:     bindSlice(st.Payers),
		entity.TableAdmins:     bindSlice(st.Admins),
		entity.TableClaimLines: bindChildSet(st.ClaimLines),
		entity.TableCoverages:  bindChildSet(st.Coverages),
	}
}

func bindSlice[T any, K comparable](s *Slice[T, K]) realtime.Handler {
	return func(env realtime.Envelope) error {
		switch env.EventType {
		case realtime.EventInsert:
			var rec T
			if err := json.Unmarshal(env.New, &rec); err != nil {
				return fmt.Errorf("decode %s insert: %w", s.desc.Table, err)
			}
			s.Upsert(rec)
			return nil

		case realtime.EventUpdate:
			var rec T
			if err := json.Unmarshal(env.New, &rec); err != nil {
				return fmt.Errorf("decode %s update: %w", s.desc.Table, err)
			}
			var patch map[string]any
			if err := json.Unmarshal(env.New, &patch); err != nil {
				return fmt.Errorf("decode %s update patch: %w", s.desc.Table, err)
			}
			var stamp time.Time
			if s.stampOf != nil {
				stamp = s.stampOf(rec)
			}
			applied, err := s.UpdateIfNewer(s.idOf(rec), patch, stamp)
			if err != nil {
				return err
			}
			if !applied {
				return realtime.ErrStaleRow
			}
			return nil

		case realtime.EventDelete:
			var rec T
			if err := json.Unmarshal(env.Old, &rec); err != nil {
				return fmt.Errorf("decode %s delete: %w", s.desc.Table, err)
			}
			s.Remove(s.idOf(rec))
			return nil

		default:
			return fmt.Errorf("unknown event type %q for %s", env.EventType, s.desc.Table)
		}
	}
}

func bindChildSet[P comparable, K comparable, C any](c *ChildSet[P, K, C]) realtime.Handler {
	return func(env realtime.Envelope) error {
		switch env.EventType {
		case realtime.EventInsert:
			var row C
			if err := json.Unmarshal(env.New, &row); err != nil {
				return fmt.Errorf("decode %s insert: %w", c.table, err)
			}
			if err := c.AddChild(row); errors.Is(err, ErrDuplicateID) {
				// Replayed insert: apply as an update instead.
				var patch map[string]any
				if err := json.Unmarshal(env.New, &patch); err != nil {
					return err
				}
				return c.UpdateChild(c.idOf(row), patch)
			} else if err != nil {
				return err
			}
			return nil

		case realtime.EventUpdate:
			var row C
			if err := json.Unmarshal(env.New, &row); err != nil {
				return fmt.Errorf("decode %s update: %w", c.table, err)
			}
			var patch map[string]any
			if err := json.Unmarshal(env.New, &patch); err != nil {
				return fmt.Errorf("decode %s update patch: %w", c.table, err)
			}
			return c.UpdateChild(c.idOf(row), patch)

		case realtime.EventDelete:
			var row C
			if err := json.Unmarshal(env.Old, &row); err != nil {
				return fmt.Errorf("decode %s delete: %w", c.table, err)
			}
			c.RemoveChild(c.idOf(row))
			return nil

		default:
			return fmt.Errorf("unknown event type %q for %s", env.EventType, c.table)
		}
	}
}
