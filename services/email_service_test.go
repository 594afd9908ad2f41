package services

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/roster-system/config"
	"github.com/Dosada05/roster-system/models"
)

func TestRenderMessage(t *testing.T) {
	msg := Message{
		Subject:    "Subject",
		Paragraphs: []string{"First <b>paragraph</b>", "Second"},
		Link:       "https://rosters.example.org/teams/1",
	}

	body, err := RenderMessage(msg, Recipient{Email: "anna@example.org", Name: "Anna Berg"})
	require.NoError(t, err)
	assert.Contains(t, body, "Hello Anna Berg,")
	assert.Contains(t, body, "First &lt;b&gt;paragraph&lt;/b&gt;")
	assert.Contains(t, body, "<p style=\"white-space: pre-line;\">Second</p>")
	assert.Contains(t, body, `href="https://rosters.example.org/teams/1"`)

	body, err = RenderMessage(Message{Paragraphs: []string{"Only"}}, Recipient{Email: "x@example.org"})
	require.NoError(t, err)
	assert.Contains(t, body, "Hello,")
	assert.NotContains(t, body, "href")
}

func TestIneligiblePlayerMessage(t *testing.T) {
	player := &models.Player{FederationNumber: 1001, FirstName: "Clara", LastName: "Stein"}
	roster := &models.Roster{
		DivisionType: models.DivisionWomen,
		DivisionAge:  models.AgeU20,
		NameAddition: "II",
		Team:         &models.Team{Name: "Flying Discs"},
		Season:       &models.Season{Year: 2024, Surface: "beach"},
	}

	msg := IneligiblePlayerMessage(player, roster)
	assert.Equal(t, ineligibleSubject, msg.Subject)
	require.Len(t, msg.Paragraphs, 2)
	assert.Contains(t, msg.Paragraphs[0], "Clara Stein (federation number 1001)")
	assert.Contains(t, msg.Paragraphs[0], "Flying Discs II for the season 2024 women U20 beach")
	assert.Contains(t, msg.Paragraphs[1], "data-sharing agreement")
}

func TestEmailServiceRequiresConfiguration(t *testing.T) {
	svc := NewEmailService(&config.Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := svc.Send(t.Context(), Message{Subject: "x"}, []Recipient{{Email: "anna@example.org"}})
	assert.ErrorIs(t, err, ErrEmailNotConfigured)
}

func TestSendEmailRejectsHeaderInjection(t *testing.T) {
	svc := NewEmailService(&config.Config{SMTPHost: "smtp.example.org", SMTPPort: 587, SMTPFrom: "no-reply@example.org"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := svc.SendEmail(t.Context(), "anna@example.org\r\nBcc: eve@example.org", "x", "body")
	assert.ErrorContains(t, err, "invalid recipient")
}
