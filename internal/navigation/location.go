// Package navigation keeps the selected job in sync with a location (a URL carrying
// an optional job_id query parameter) and its history.
package navigation

import "net/url"

// JobIDParam is the query parameter naming the job being shown.
const JobIDParam = "job_id"

// ReadJobID returns the job id carried by u. A missing or empty parameter means no job.
func ReadJobID(u *url.URL) (string, bool) {
	if u == nil {
		return "", false
	}
	id := u.Query().Get(JobIDParam)
	return id, id != ""
}

// WithJobID returns a copy of u with the job id set, or removed when jobID is empty.
// Other query parameters and the fragment are kept.
func WithJobID(u *url.URL, jobID string) *url.URL {
	out := &url.URL{Path: "/"}
	if u != nil {
		cp := *u
		out = &cp
	}

	q := out.Query()
	if jobID == "" {
		q.Del(JobIDParam)
	} else {
		q.Set(JobIDParam, jobID)
	}
	out.RawQuery = q.Encode()
	return out
}

// Root is the location with no job selected.
func Root() *url.URL {
	return &url.URL{Path: "/"}
}
