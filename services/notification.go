package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dosada05/roster-system/models"
)

// Message is a system message rendered by a Notifier.
type Message struct {
	Subject    string
	Paragraphs []string
	// Link, if set, is appended as a call to action.
	Link string
}

type Recipient struct {
	Email string
	Name  string
}

// Notifier sends a message to each recipient.
type Notifier interface {
	Send(ctx context.Context, msg Message, recipients []Recipient) error
}

const ineligibleSubject = "Player without eligibility"

const ineligibleExplanation = `Possible reasons:
	The player has not yet been registered by their club for the coming calendar year
	The player is now registered as a passive member
	The player has withdrawn their data-sharing agreement
	The player is assigned to no or the wrong division in the federation registry
	The federation fees for the player have not been paid yet`

// IneligiblePlayerMessage builds the notification sent to team admins when a
// rostered player of the running season loses eligibility.
func IneligiblePlayerMessage(player *models.Player, roster *models.Roster) Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The player %s (federation number %d) has to be removed from roster ", player.FullName(), player.FederationNumber)
	if roster.Team != nil {
		sb.WriteString(roster.Team.Name)
	}
	if roster.NameAddition != "" {
		sb.WriteString(" ")
		sb.WriteString(roster.NameAddition)
	}
	sb.WriteString(" for the season")
	if roster.Season != nil {
		fmt.Fprintf(&sb, " %d", roster.Season.Year)
	}
	fmt.Fprintf(&sb, " %s", roster.DivisionType)
	if roster.DivisionAge != models.AgeRegular {
		fmt.Fprintf(&sb, " %s", roster.DivisionAge)
	}
	if roster.Season != nil && roster.Season.Surface != "" {
		fmt.Fprintf(&sb, " %s", roster.Season.Surface)
	}
	sb.WriteString(" for any upcoming tournaments, because they no longer meet the requirements for playing eligibility in the federation.")

	return Message{
		Subject:    ineligibleSubject,
		Paragraphs: []string{sb.String(), ineligibleExplanation},
	}
}

func recipientFor(u models.User) Recipient {
	return Recipient{Email: u.Email, Name: u.DisplayName()}
}
