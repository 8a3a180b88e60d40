package store

import "errors"

// ErrStoreLocked is returned by Open when another process already holds the
// exclusive writer handle on the database file.
var ErrStoreLocked = errors.New("store: database is locked by another writer")

// ErrSchemaLocked is returned by SyncConfig when a concurrent writer already
// holds the in-process write lock; sync_config fails fast rather than
// blocking.
var ErrSchemaLocked = errors.New("store: schema is locked by a concurrent sync_config")

// ErrUnknownSource is returned by RecordChange when the referenced source is
// not present in the Source dimension.
var ErrUnknownSource = errors.New("store: unknown source")

// ErrUnknownSkill is returned by fact-recording methods when the referenced
// skill is not present in the Skill dimension.
var ErrUnknownSkill = errors.New("store: unknown skill")
