// ABOUTME: Team list for the login picker
// ABOUTME: Reads the remote teams table and falls back to the cached snapshot

package auth

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/dmuller/fieldsync/internal/remote"
)

// Team is one entry of the team picker.
type Team struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Teams lists the teams to choose from. Online, it reads the remote table
// and refreshes the teams snapshot unless the list is empty; offline, or when the remote call fails,
// it reads the snapshot. The bool reports whether the snapshot was used.
func (r *Resolver) Teams(ctx context.Context, online bool) ([]Team, bool, error) {
	if online {
		rows, err := r.source.QueryAll(ctx, teamsTable)
		if err == nil {
			if len(rows) > 0 {
				if err := r.cache.Set(ctx, teamsTable, rows); err != nil {
					r.logger.Warn("caching teams failed", "error", err)
				}
			}
			return decodeTeams(rows), false, nil
		}
		r.logger.Warn("remote team list failed, using cache", "error", err)
	}

	rows, ok, err := r.cache.Get(ctx, teamsTable)
	if err != nil {
		return nil, true, fmt.Errorf("reading cached teams: %w", err)
	}
	if !ok {
		return []Team{}, true, nil
	}
	return decodeTeams(rows), true, nil
}

// decodeTeams skips unreadable rows and sorts by code, numerically when both
// codes are integers.
func decodeTeams(rows []json.RawMessage) []Team {
	teams := make([]Team, 0, len(rows))
	for _, raw := range rows {
		row, err := remote.DecodeRow(raw)
		if err != nil {
			continue
		}
		teams = append(teams, Team{
			ID:   remote.FieldString(row["id"]),
			Code: remote.FieldString(row["code"]),
			Name: remote.FieldString(row["name"]),
		})
	}
	slices.SortStableFunc(teams, func(a, b Team) int {
		x, errA := strconv.Atoi(a.Code)
		y, errB := strconv.Atoi(b.Code)
		if errA == nil && errB == nil {
			return cmp.Compare(x, y)
		}
		return cmp.Compare(a.Code, b.Code)
	})
	return teams
}
