// ABOUTME: Login state machine: remote lookup first, cached users snapshot as fallback
// ABOUTME: Persists the session and starts cache warming after a remote success

package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/dmuller/fieldsync/internal/metrics"
	"github.com/dmuller/fieldsync/internal/remote"
	"github.com/dmuller/fieldsync/internal/session"
	"github.com/dmuller/fieldsync/internal/tablecache"
	"github.com/dmuller/fieldsync/internal/warmer"
)

// Collections read during login.
const (
	teamsTable = "teams"
	usersTable = "users"
)

// Warmer starts a background cache warm.
type Warmer interface {
	Start(ctx context.Context, tables []string) <-chan warmer.Result
}

// Request holds the login inputs. Online is sampled once by the caller.
type Request struct {
	TeamCode string
	RepCode  string
	Online   bool
}

// Result is the terminal state of a login attempt.
type Result struct {
	Outcome Outcome
	Session session.Session
	// Message is shown to the user; empty on success.
	Message string
	// Path is "input", "remote" or "local": where the outcome was decided.
	Path  string
	Trace []State
	// Warming receives the result of the cache warm started after a remote
	// success. Nil otherwise.
	Warming <-chan warmer.Result
}

// OK reports whether the login succeeded.
func (r Result) OK() bool { return r.Outcome == Success }

// Options configure a Resolver.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// WarmTables are warmed after a remote login. Nil means warmer.DefaultTables.
	WarmTables []string
}

// Resolver runs login attempts.
type Resolver struct {
	source     remote.Source
	cache      *tablecache.Cache
	sessions   *session.Store
	warmer     Warmer
	warmTables []string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewResolver creates a Resolver. w may be nil to disable warming.
func NewResolver(source remote.Source, cache *tablecache.Cache, sessions *session.Store, w Warmer, opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.WarmTables == nil {
		opts.WarmTables = warmer.DefaultTables
	}
	return &Resolver{
		source:     source,
		cache:      cache,
		sessions:   sessions,
		warmer:     w,
		warmTables: opts.WarmTables,
		logger:     opts.Logger.With("component", "auth"),
		metrics:    opts.Metrics,
	}
}

// attempt carries the state of one Login call between transitions.
type attempt struct {
	req     Request
	teamID  string
	matches []json.RawMessage
	user    map[string]any
	result  Result
}

func (a *attempt) finish(o Outcome, path string) State {
	a.result.Outcome = o
	a.result.Message = outcomeMessages[o]
	a.result.Path = path
	return StateTerminal
}

// Login runs the state machine to a terminal state.
func (r *Resolver) Login(ctx context.Context, req Request) Result {
	a := &attempt{req: Request{
		TeamCode: strings.TrimSpace(req.TeamCode),
		RepCode:  strings.TrimSpace(req.RepCode),
		Online:   req.Online,
	}}

	state := StateStart
	for state != StateTerminal {
		a.result.Trace = append(a.result.Trace, state)
		state = r.step(ctx, a, state)
	}
	a.result.Trace = append(a.result.Trace, StateTerminal)

	r.metrics.LoginFinished(a.result.Outcome.String(), a.result.Path)
	r.logger.Info("login finished",
		"outcome", a.result.Outcome,
		"path", a.result.Path,
		"team", a.req.TeamCode,
		"rep", a.req.RepCode,
		"online", a.req.Online,
	)
	return a.result
}

func (r *Resolver) step(ctx context.Context, a *attempt, s State) State {
	switch s {
	case StateStart:
		return r.start(a)
	case StateTryRemote:
		return r.tryRemote(ctx, a)
	case StateRemoteSuccess:
		return r.remoteSuccess(ctx, a)
	case StateRemoteFail:
		return StateTryLocal
	case StateTryLocal:
		return r.tryLocal(ctx, a)
	case StateLocalSuccess:
		return r.localSuccess(ctx, a)
	case StateLocalFail:
		return a.finish(InvalidCredentials, "local")
	default:
		r.logger.Error("login reached unknown state", "state", s)
		return a.finish(Error, "input")
	}
}

func (r *Resolver) start(a *attempt) State {
	switch {
	case a.req.TeamCode == "":
		return a.finish(SelectTeam, "input")
	case a.req.RepCode == "":
		return a.finish(EnterCode, "input")
	case !a.req.Online:
		return StateTryLocal
	default:
		return StateTryRemote
	}
}

func (r *Resolver) tryRemote(ctx context.Context, a *attempt) State {
	raw, err := r.source.QuerySingle(ctx, teamsTable, remote.Filters{"code": a.req.TeamCode})
	if err != nil {
		r.logger.Warn("remote team lookup failed", "team", a.req.TeamCode, "error", err)
		return StateRemoteFail
	}
	team, err := remote.DecodeRow(raw)
	if err != nil {
		r.logger.Warn("remote team row unreadable", "team", a.req.TeamCode, "error", err)
		return StateRemoteFail
	}
	a.teamID = remote.FieldString(team["id"])
	if a.teamID == "" {
		r.logger.Warn("remote team has no id", "team", a.req.TeamCode)
		return StateRemoteFail
	}

	rows, err := r.source.QueryWhere(ctx, usersTable, remote.Filters{
		"user_id": a.req.RepCode,
		"team_id": a.teamID,
	})
	if err != nil {
		r.logger.Warn("remote credential lookup failed", "rep", a.req.RepCode, "error", err)
		return StateRemoteFail
	}
	if len(rows) == 0 {
		return a.finish(InvalidCredentials, "remote")
	}

	user, err := remote.DecodeRow(rows[0])
	if err != nil {
		r.logger.Warn("remote user row unreadable", "rep", a.req.RepCode, "error", err)
		return StateRemoteFail
	}
	a.matches = rows
	a.user = user
	return StateRemoteSuccess
}

func (r *Resolver) remoteSuccess(ctx context.Context, a *attempt) State {
	r.saveSession(ctx, a)
	r.sessions.AppendHistory(ctx, a.result.Session.RepCode)
	a.result.Session.History = r.sessions.History(ctx)

	if err := r.cache.Set(ctx, usersTable, a.matches); err != nil {
		r.logger.Warn("caching matched users failed", "error", err)
	}

	if r.warmer != nil {
		a.result.Warming = r.warmer.Start(ctx, r.warmTables)
	}
	return a.finish(Success, "remote")
}

func (r *Resolver) tryLocal(ctx context.Context, a *attempt) State {
	rows, ok, err := r.cache.Get(ctx, usersTable)
	if err != nil {
		r.logger.Error("reading cached users failed", "error", err)
		return a.finish(Error, "local")
	}
	if !ok || len(rows) == 0 {
		return a.finish(NoOfflineData, "local")
	}

	teamKeys := []string{a.req.TeamCode}
	if id := r.cachedTeamID(ctx, a.req.TeamCode); id != "" && id != a.req.TeamCode {
		teamKeys = append(teamKeys, id)
	}

	for _, raw := range rows {
		row, err := remote.DecodeRow(raw)
		if err != nil {
			r.logger.Debug("skipping unreadable cached user", "error", err)
			continue
		}
		if matchesUser(row, a.req.RepCode, teamKeys) {
			a.user = row
			return StateLocalSuccess
		}
	}
	return StateLocalFail
}

// matchesUser accepts either team_id or team_code, compared loosely.
func matchesUser(row map[string]any, rep string, teamKeys []string) bool {
	if remote.FieldString(row["user_id"]) != rep {
		return false
	}
	teamID := remote.FieldString(row["team_id"])
	teamCode := remote.FieldString(row["team_code"])
	for _, k := range teamKeys {
		if teamID == k || teamCode == k {
			return true
		}
	}
	return false
}

// cachedTeamID resolves a team code to its id through the teams snapshot.
func (r *Resolver) cachedTeamID(ctx context.Context, code string) string {
	rows, ok, err := r.cache.Get(ctx, teamsTable)
	if err != nil || !ok {
		return ""
	}
	for _, raw := range rows {
		row, err := remote.DecodeRow(raw)
		if err != nil {
			continue
		}
		if remote.FieldString(row["code"]) == code {
			return remote.FieldString(row["id"])
		}
	}
	return ""
}

func (r *Resolver) localSuccess(ctx context.Context, a *attempt) State {
	r.saveSession(ctx, a)
	a.result.Session.History = r.sessions.History(ctx)
	return a.finish(Success, "local")
}

func (r *Resolver) saveSession(ctx context.Context, a *attempt) {
	rep := remote.FieldString(a.user["user_id"])
	if rep == "" {
		rep = a.req.RepCode
	}
	sess := session.Session{
		TeamCode: a.req.TeamCode,
		RepCode:  rep,
		RepName:  remote.FieldString(a.user["name"]),
	}
	r.sessions.Save(ctx, sess)
	a.result.Session = sess
}
