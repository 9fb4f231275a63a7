package types

// ProjectDocument is the wire shape of a plan document held by the remote
// project resource. Messages is optional on fetch: an empty project has
// no log yet.
type ProjectDocument struct {
	Messages []Message `json:"messages,omitempty"`
}
