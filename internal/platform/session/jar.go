package session

import (
	"maps"
	"time"

	"sample_app/internal/feature/auth/usecase"
)

// Jar is the session of one request. It implements usecase.Session and
// records what must be written back to the Store once the request is done.
type Jar struct {
	id        string
	values    map[string]string
	createdAt time.Time
	expiresAt time.Time

	// stored reports whether id exists in the Store.
	stored bool
	dirty  bool
	// stale holds ids dropped by Reset that still need deleting.
	stale []string

	newID func() (string, error)
	// issue writes the session id cookie; an empty id removes it.
	issue func(id string)
}

var _ usecase.Session = (*Jar)(nil)

func newJar(newID func() (string, error), issue func(id string)) *Jar {
	return &Jar{
		values: make(map[string]string),
		newID:  newID,
		issue:  issue,
	}
}

func loadedJar(id string, data *Data, newID func() (string, error), issue func(id string)) *Jar {
	j := newJar(newID, issue)
	j.id = id
	maps.Copy(j.values, data.Values)
	j.createdAt = data.CreatedAt
	j.expiresAt = data.ExpiresAt
	j.stored = true
	return j
}

// ID returns the current session id, or "" when none has been issued.
func (j *Jar) ID() string {
	return j.id
}

func (j *Jar) Get(key string) (string, bool) {
	v, ok := j.values[key]
	return v, ok
}

func (j *Jar) Set(key, value string) {
	if j.id == "" {
		id, err := j.newID()
		if err != nil {
			// Without an id the value lives for this request only.
			j.values[key] = value
			return
		}
		j.id = id
		j.issue(id)
	}
	j.values[key] = value
	j.dirty = true
}

func (j *Jar) Delete(key string) {
	if _, ok := j.values[key]; !ok {
		return
	}
	delete(j.values, key)
	j.dirty = true
}

// Reset drops every value and abandons the session id, so the next Set
// starts a session under a fresh id.
func (j *Jar) Reset() {
	if j.stored {
		j.stale = append(j.stale, j.id)
	}
	if j.id != "" {
		j.issue("")
	}
	j.id = ""
	j.stored = false
	j.values = make(map[string]string)
	j.createdAt = time.Time{}
	j.expiresAt = time.Time{}
	j.dirty = true
}
