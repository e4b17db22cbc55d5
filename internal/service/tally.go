package service

import "tripmate/server/internal/models"

// ApplyCast returns the vote after voter picks option. Single-select votes first
// drop the voter from every option; the target option is then toggled, so picking
// the same option again retracts the ballot.
func ApplyCast(v models.Vote, option, voter string) (models.Vote, error) {
	if !contains(v.Options, option) {
		return v, ErrUnknownOption
	}

	had := contains(v.Votes[option], voter)
	next := make(map[string][]string, len(v.Options))
	for _, o := range v.Options {
		voters := append([]string{}, v.Votes[o]...)
		if !v.AllowMultiple || o == option {
			voters = without(voters, voter)
		}
		next[o] = voters
	}
	if !had {
		next[option] = append(next[option], voter)
	}
	v.Votes = next
	return v, nil
}

// Tally counts each declared option. Percentages use the number of distinct
// voters as denominator, so a multi-select voter is counted once.
func Tally(v models.Vote) []models.VoteResult {
	distinct := DistinctVoters(v)
	results := make([]models.VoteResult, 0, len(v.Options))
	for _, o := range v.Options {
		voters := append([]string{}, v.Votes[o]...)
		r := models.VoteResult{Option: o, Count: len(voters), Voters: voters}
		if distinct > 0 {
			r.Percentage = float64(len(voters)) * 100 / float64(distinct)
		}
		results = append(results, r)
	}
	return results
}

// DistinctVoters is the tally denominator
func DistinctVoters(v models.Vote) int {
	seen := make(map[string]struct{})
	for _, o := range v.Options {
		for _, name := range v.Votes[o] {
			seen[name] = struct{}{}
		}
	}
	return len(seen)
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func without(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, x := range list {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}
