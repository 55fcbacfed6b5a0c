// Package remote is the collaborator that owns the source of truth: named
// collections of JSON rows that can be fetched whole or filtered by equality.
//
// Client talks to a Supabase/PostgREST endpoint. MockSource is an in-memory
// Source for tests and demos, with per-collection failure injection.
//
// Any error returned by a Source is a transport-level failure. A query that
// completes with no rows is not an error, except for QuerySingle which
// reports ErrNotFound.
package remote
