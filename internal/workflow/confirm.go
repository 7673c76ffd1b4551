// Package workflow implements the operator decision flow over scored
// candidate matches.
package workflow

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/facilityhub/registry-cli/internal/model"
	"github.com/facilityhub/registry-cli/internal/store"
)

// Confirmer applies confirm and deny decisions to candidate matches.
type Confirmer struct {
	store store.Store
}

// NewConfirmer creates a Confirmer.
func NewConfirmer(st store.Store) *Confirmer {
	return &Confirmer{store: st}
}

// ConfirmOrDeny records an operator decision on one match of a processed
// record. Denying only flips that match's confirmed flag. Confirming
// additionally creates the permanent factory cross-reference, at most once
// per match: repeating a confirm is a no-op on the graph.
func (c *Confirmer) ConfirmOrDeny(ctx context.Context, recordID, matchID string, confirm bool) (*model.CandidateRecord, error) {
	rec, err := c.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	match := rec.FindMatch(matchID)
	if match == nil {
		return nil, eris.Wrapf(store.ErrMatchNotFound, "workflow: record %s match %s", recordID, matchID)
	}

	if err := c.store.SetMatchConfirmed(ctx, recordID, matchID, confirm); err != nil {
		return nil, err
	}
	decided := confirm
	match.Confirmed = &decided

	if !confirm {
		zap.L().Info("match denied",
			zap.String("record_id", recordID),
			zap.String("match_id", matchID),
		)
		return rec, nil
	}

	if err := c.linkConfirmed(ctx, rec, match); err != nil {
		return nil, err
	}
	return rec, nil
}

// linkConfirmed creates the Confirm cross-reference and appends it to the
// matched factory. When the uploader has no attribution source the linkage
// is skipped: there is nothing to attribute the confirmation to.
func (c *Confirmer) linkConfirmed(ctx context.Context, rec *model.CandidateRecord, match *model.Match) error {
	src, err := c.store.GetSourceByUploader(ctx, rec.UploaderID)
	if err != nil {
		return err
	}
	if src == nil {
		zap.L().Warn("confirm without attribution source, skipping cross-reference",
			zap.String("record_id", rec.ID),
			zap.String("match_id", match.MatchID),
			zap.String("uploader_id", rec.UploaderID),
		)
		return nil
	}

	cf, created, err := c.store.CreateConfirm(ctx, model.Confirm{
		Name:      rec.RawName,
		Address:   rec.RawAddress,
		FactoryID: match.NameID,
		AddressID: match.AddressID,
		SourceID:  src.ID,
		RecordID:  rec.ID,
		MatchID:   match.MatchID,
	})
	if err != nil {
		return err
	}
	if err := c.store.AddFactoryLinks(ctx, match.NameID, cf.ID, src.ID); err != nil {
		return err
	}

	zap.L().Info("match confirmed",
		zap.String("record_id", rec.ID),
		zap.String("match_id", match.MatchID),
		zap.String("factory_id", match.NameID),
		zap.String("confirm_id", cf.ID),
		zap.Bool("created", created),
	)
	return nil
}
