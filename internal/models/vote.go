package models

import "time"

// Vote is a poll; Votes maps every option to its voter names
type Vote struct {
	ID            string              `json:"id"`
	Question      string              `json:"question"`
	Options       []string            `json:"options"`
	Votes         map[string][]string `json:"votes"`
	CreatedBy     string              `json:"createdBy"`
	CreatedAt     time.Time           `json:"createdAt"`
	ExpiresAt     *time.Time          `json:"expiresAt"`
	AllowMultiple bool                `json:"allowMultiple"`
}

// Expired reports whether the vote no longer accepts ballots at now
func (v *Vote) Expired(now time.Time) bool {
	return v.ExpiresAt != nil && !now.Before(*v.ExpiresAt)
}

// VoteInput is the request body for creating a vote
type VoteInput struct {
	Question      string     `json:"question"`
	Options       []string   `json:"options"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	AllowMultiple bool       `json:"allowMultiple"`
}

// VoteResult is the tally of one option
type VoteResult struct {
	Option     string   `json:"option"`
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
	Voters     []string `json:"voters"`
}
