package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/roster-system/models"
	"github.com/Dosada05/roster-system/repositories"
)

func eligibleProfile() models.ProfileDetail {
	return models.ProfileDetail{Consent: true, Paid: true, Active: true}
}

func TestClassifyPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *models.ProfileDetail)
		variant ID
		want    Eligibility
	}{
		{"eligible", func(p *models.ProfileDetail) {}, DFV, Eligible},
		{"no consent wins over everything", func(p *models.ProfileDetail) {
			p.Consent, p.Paid, p.Active, p.Idle = false, false, false, true
		}, DFV, NoDSE},
		{"not paid wins over inactive", func(p *models.ProfileDetail) {
			p.Paid, p.Active = false, false
		}, DFV, NotPaid},
		{"inactive wins over idle", func(p *models.ProfileDetail) {
			p.Active, p.Idle = false, true
		}, DFV, NotActive},
		{"idle", func(p *models.ProfileDetail) { p.Idle = true }, DFV, Idle},
		{"open ignores activity", func(p *models.ProfileDetail) {
			p.Active, p.Idle = false, true
		}, Open, Eligible},
		{"open still needs consent", func(p *models.ProfileDetail) { p.Consent = false }, Open, NoDSE},
		{"unknown variant falls back to default", func(p *models.ProfileDetail) { p.Idle = true }, ID("nope"), Idle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := eligibleProfile()
			tt.mutate(&p)
			assert.Equal(t, tt.want, Classify(p, tt.variant))
		})
	}
}

func TestClassifyNoConsentAlwaysNoDSE(t *testing.T) {
	for _, variant := range []ID{DFV, DM, Open} {
		for mask := 0; mask < 8; mask++ {
			p := models.ProfileDetail{
				Consent: false,
				Paid:    mask&1 != 0,
				Active:  mask&2 != 0,
				Idle:    mask&4 != 0,
			}
			assert.Equal(t, NoDSE, Classify(p, variant), "variant=%s mask=%d", variant, mask)
		}
	}
}

func TestRegisterAddsVariantWithoutCallSiteChanges(t *testing.T) {
	Register(Rules{
		ID:     "beach",
		Active: func(p models.ProfileDetail) bool { return p.ClubID != 0 },
	})

	p := eligibleProfile()
	assert.Equal(t, NotActive, Classify(p, "BEACH"))
	p.ClubID = 12
	assert.Equal(t, Eligible, Classify(p, "beach"))
	assert.False(t, Lookup("beach").ExclusiveRosters)
}

func TestEligibilityString(t *testing.T) {
	assert.Equal(t, "NO_DSE", NoDSE.String())
	assert.Equal(t, "ELIGIBLE", Eligible.String())
}

type stubLookup struct {
	found  *models.Roster
	err    error
	called bool
}

func (s *stubLookup) FindConflictingRoster(_ context.Context, _ repositories.SQLExecutor, _ int, _ *models.Roster) (*models.Roster, error) {
	s.called = true
	return s.found, s.err
}

func TestCanJoinRoster(t *testing.T) {
	ctxID := 1
	player := &models.Player{ID: 10}
	ctx := context.Background()

	t.Run("no context skips the store", func(t *testing.T) {
		lookup := &stubLookup{found: &models.Roster{ID: 2}}
		d, err := NewEngine(lookup).CanJoinRoster(ctx, nil, player, &models.Roster{ID: 1})
		require.NoError(t, err)
		assert.Equal(t, OK, d.Outcome)
		assert.False(t, lookup.called)
	})

	t.Run("conflict names the other team", func(t *testing.T) {
		lookup := &stubLookup{found: &models.Roster{ID: 2, Team: &models.Team{Name: "Team A"}}}
		roster := &models.Roster{ID: 1, ContextID: &ctxID, Context: &models.Context{ID: ctxID, Acronym: "DFV"}}
		d, err := NewEngine(lookup).CanJoinRoster(ctx, nil, player, roster)
		require.NoError(t, err)
		assert.Equal(t, AlreadyInDifferentRoster, d.Outcome)
		assert.Equal(t, "Team A", d.TeamName)
	})

	t.Run("non exclusive context allows", func(t *testing.T) {
		lookup := &stubLookup{found: &models.Roster{ID: 2}}
		roster := &models.Roster{ID: 1, ContextID: &ctxID, Context: &models.Context{ID: ctxID, Acronym: "OPEN"}}
		d, err := NewEngine(lookup).CanJoinRoster(ctx, nil, player, roster)
		require.NoError(t, err)
		assert.Equal(t, OK, d.Outcome)
		assert.False(t, lookup.called)
	})

	t.Run("store errors propagate", func(t *testing.T) {
		boom := errors.New("boom")
		roster := &models.Roster{ID: 1, ContextID: &ctxID, Context: &models.Context{ID: ctxID, Acronym: "DM"}}
		_, err := NewEngine(&stubLookup{err: boom}).CanJoinRoster(ctx, nil, player, roster)
		assert.ErrorIs(t, err, boom)
	})
}
