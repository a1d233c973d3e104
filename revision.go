package reach

import (
	"errors"
	"fmt"
)

// ErrUnknownRevision is returned when a revision name isn't one of the
// revisions of the form.
var ErrUnknownRevision = errors.New("unknown revision")

// Revision is a revision of the predict page. Each revision keeps everything
// the previous one had.
type Revision int

const (
	// RevisionClassic is the plain form, result title and toasts.
	RevisionClassic Revision = iota + 1

	// RevisionThemed adds the dark/light theme toggle and a random
	// background photo.
	RevisionThemed

	// RevisionAnimated adds entry and toast animations and emoji copy.
	RevisionAnimated
)

var revisionNames = map[Revision]string{
	RevisionClassic:  "classic",
	RevisionThemed:   "themed",
	RevisionAnimated: "animated",
}

// ParseRevision returns the Revision with the passed name.
func ParseRevision(name string) (Revision, error) {
	for rev, revName := range revisionNames {
		if revName == name {
			return rev, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRevision, name)
}

// String returns the revision's config name.
func (r Revision) String() string {
	if name, ok := revisionNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Revision(%d)", int(r))
}

// Themed reports whether the revision has the theme toggle and background
// photo.
func (r Revision) Themed() bool {
	return r >= RevisionThemed
}

// Animated reports whether the revision has animations and emoji copy.
func (r Revision) Animated() bool {
	return r >= RevisionAnimated
}
