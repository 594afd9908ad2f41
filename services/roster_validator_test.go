package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/roster-system/models"
	"github.com/Dosada05/roster-system/policy"
)

func TestAdjustedAge(t *testing.T) {
	born := date(1991, time.May, 20)
	assert.Equal(t, 33, AdjustedAge(2024, born, models.GenderMale, models.AgeMasters))
	assert.Equal(t, 36, AdjustedAge(2024, born, models.GenderFemale, models.AgeMasters))
	assert.Equal(t, 33, AdjustedAge(2024, born, models.GenderFemale, models.AgeGrandmasters))

	youth := date(2007, time.December, 31)
	assert.Equal(t, 17, AdjustedAge(2024, youth, models.GenderMale, models.AgeU17))
	assert.Equal(t, 16, AdjustedAge(2024, youth, models.GenderFemale, models.AgeU17))
}

func TestCheckPlayerFit(t *testing.T) {
	season := &models.Season{ID: 1, Year: 2024}
	player := func(g models.Gender, born *time.Time) *models.Player {
		return &models.Player{ID: 1, FederationNumber: 1001, Gender: g, BirthDate: born}
	}

	tests := []struct {
		name     string
		divType  models.DivisionType
		divAge   models.DivisionAge
		player   *models.Player
		wantCode string
	}{
		{"woman in masters with allowance", models.DivisionWomen, models.AgeMasters, player(models.GenderFemale, ptr(date(1994, time.January, 1))), ""},
		{"man in masters too young", models.DivisionOpen, models.AgeMasters, player(models.GenderMale, ptr(date(1994, time.January, 1))), CodeWrongAge},
		{"man in masters old enough", models.DivisionOpen, models.AgeMasters, player(models.GenderMale, ptr(date(1991, time.January, 1))), ""},
		{"woman in U17 one year over", models.DivisionWomen, models.AgeU17, player(models.GenderFemale, ptr(date(2006, time.June, 1))), ""},
		{"man in U17 one year over", models.DivisionOpen, models.AgeU17, player(models.GenderMale, ptr(date(2006, time.June, 1))), CodeWrongAge},
		{"man in women division", models.DivisionWomen, models.AgeRegular, player(models.GenderMale, nil), CodeWrongGender},
		{"unknown gender in women division", models.DivisionWomen, models.AgeRegular, player(models.GenderNA, nil), CodeWrongGender},
		{"woman in open division", models.DivisionOpen, models.AgeRegular, player(models.GenderFemale, nil), ""},
		{"regular ignores missing birth date", models.DivisionMixed, models.AgeRegular, player(models.GenderNA, nil), ""},
		{"age rule needs birth date", models.DivisionMixed, models.AgeU20, player(models.GenderMale, nil), CodeMissingBirthDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roster := &models.Roster{ID: 9, DivisionType: tt.divType, DivisionAge: tt.divAge, Season: season}
			err := CheckPlayerFit(roster, tt.player)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantCode, RuleCode(err))
		})
	}
}

func TestCheckPlayerFitMissingBirthDateIsDataIntegrity(t *testing.T) {
	roster := &models.Roster{DivisionType: models.DivisionOpen, DivisionAge: models.AgeU23, Season: &models.Season{Year: 2024}}
	err := CheckPlayerFit(roster, &models.Player{Gender: models.GenderMale})
	requireRule(t, err, ErrDataIntegrity, CodeMissingBirthDate)
}

func TestCheckPlayerFitAgeParams(t *testing.T) {
	roster := &models.Roster{DivisionType: models.DivisionOpen, DivisionAge: models.AgeMasters, Season: &models.Season{Year: 2024}}
	err := CheckPlayerFit(roster, &models.Player{Gender: models.GenderMale, BirthDate: ptr(date(2000, time.April, 1))})
	re := requireRule(t, err, ErrConflict, CodeWrongAge)
	assert.Equal(t, "MASTERS", re.Params["division_age"])
	assert.Equal(t, "24", re.Params["age"])
}

func TestCheckRemovalAllowed(t *testing.T) {
	rp := &models.RosterPlayer{RosterID: 1, PlayerID: 2, DateAdded: date(2024, time.January, 10)}
	blocking := []time.Time{date(2024, time.January, 5), date(2024, time.February, 1)}

	t.Run("tournament after joining has started", func(t *testing.T) {
		err := CheckRemovalAllowed(rp, blocking, date(2024, time.February, 2))
		re := requireRule(t, err, ErrConflict, CodeRemovalBlocked)
		assert.Equal(t, "2024-02-01", re.Params["blocking_date"])
	})

	t.Run("start day itself blocks", func(t *testing.T) {
		today := time.Date(2024, time.February, 1, 8, 30, 0, 0, time.UTC)
		assert.Error(t, CheckRemovalAllowed(rp, blocking, today))
	})

	t.Run("only tournaments before joining", func(t *testing.T) {
		assert.NoError(t, CheckRemovalAllowed(rp, blocking, date(2024, time.January, 31)))
	})

	t.Run("tournament on joining day does not block", func(t *testing.T) {
		sameDay := []time.Time{date(2024, time.January, 10)}
		assert.NoError(t, CheckRemovalAllowed(rp, sameDay, date(2024, time.March, 1)))
	})

	t.Run("no registrations", func(t *testing.T) {
		assert.NoError(t, CheckRemovalAllowed(rp, nil, date(2024, time.March, 1)))
	})
}

func TestRequireTeamAdmin(t *testing.T) {
	env := newTestEnv()
	require.NoError(t, RequireTeamAdmin(t.Context(), nil, memTeams{env.store}, teamOne, adminOne))
	err := RequireTeamAdmin(t.Context(), nil, memTeams{env.store}, teamOne, adminTwo)
	requireRule(t, err, ErrUnauthorized, CodeNotTeamAdmin)
}

func TestEligibilityRejectionCodes(t *testing.T) {
	assert.Equal(t, CodeNotPaid, eligibilityRejection(policy.NotPaid).Code)
	assert.Equal(t, CodeNoConsent, eligibilityRejection(policy.NoDSE).Code)
	assert.Equal(t, CodeNotActive, eligibilityRejection(policy.NotActive).Code)
	assert.Equal(t, CodeIdle, eligibilityRejection(policy.Idle).Code)
	assert.Equal(t, CodeNotEligible, eligibilityRejection(policy.Eligibility(99)).Code)
}
