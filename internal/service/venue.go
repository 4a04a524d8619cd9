package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iliyamo/karaoke-booking/internal/metrics"
	"github.com/iliyamo/karaoke-booking/internal/model"
)

// VenueRegistry answers "which venue is this DJ at right now?" and keeps
// at most one venue per DJ active.
type VenueRegistry struct {
	store Store
	log   zerolog.Logger
}

// NewVenueRegistry returns a registry backed by store.
func NewVenueRegistry(store Store, logger zerolog.Logger) *VenueRegistry {
	return &VenueRegistry{store: store, log: logger.With().Str("component", "venue-registry").Logger()}
}

// Toggle flips the active flag of venueID. Turning a venue on turns every
// other venue of the DJ off in the same transaction. All of the DJ's venue
// rows are locked first so that concurrent toggles serialize. Sessions
// bound to a venue that goes inactive are not touched here; they fail
// their next validation.
func (r *VenueRegistry) Toggle(ctx context.Context, venueID, djID uint64) (bool, error) {
	var active bool
	err := r.store.WithinTx(ctx, func(q Queries) error {
		venues, err := q.LockVenuesForDJ(ctx, djID)
		if err != nil {
			return fmt.Errorf("lock venues: %w", err)
		}
		var target *model.Venue
		for i := range venues {
			if venues[i].ID == venueID {
				target = &venues[i]
				break
			}
		}
		if target == nil {
			return ErrVenueNotFound
		}

		if target.Active {
			active = false
			return q.SetVenueActive(ctx, venueID, false)
		}
		if err := q.DeactivateVenues(ctx, djID); err != nil {
			return fmt.Errorf("deactivate venues: %w", err)
		}
		if err := q.SetVenueActive(ctx, venueID, true); err != nil {
			return fmt.Errorf("activate venue: %w", err)
		}
		active = true
		return nil
	})
	if err != nil {
		return false, err
	}
	metrics.RecordVenueToggle(active)
	r.log.Info().Uint64("dj_id", djID).Uint64("venue_id", venueID).Bool("active", active).Msg("venue toggled")
	return active, nil
}

// ActiveVenue returns the DJ's active venue, or nil when there is none.
func (r *VenueRegistry) ActiveVenue(ctx context.Context, djID uint64) (*model.Venue, error) {
	var v *model.Venue
	err := r.store.Run(ctx, func(q Queries) error {
		var err error
		v, err = activeVenue(ctx, q, djID)
		return err
	})
	return v, err
}

// activeVenue wraps Queries.ActiveVenue, mapping "no rows" to nil.
func activeVenue(ctx context.Context, q Queries, djID uint64) (*model.Venue, error) {
	v, err := q.ActiveVenue(ctx, djID)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active venue: %w", err)
	}
	return v, nil
}
