package progress

import (
	"errors"
	"fmt"
)

// ErrNotUpdated matches every NotUpdatedError via errors.Is.
var ErrNotUpdated = errors.New("nothing updated")

// ErrInvalidStatus is returned for a status outside of the known set.
var ErrInvalidStatus = errors.New("invalid watch status")

// NotUpdatedError reports that a status write touched no rows, which means the profile
// has not favorited the content. It is a client error, not a storage failure.
type NotUpdatedError struct {
	Kind      string
	ProfileID uint
	ContentID uint
}

func (e *NotUpdatedError) Error() string {
	return fmt.Sprintf("%s %d is not tracked by profile %d", e.Kind, e.ContentID, e.ProfileID)
}

func (e *NotUpdatedError) Is(target error) bool {
	return target == ErrNotUpdated
}

func notUpdated(kind string, profileID, contentID uint) error {
	return &NotUpdatedError{Kind: kind, ProfileID: profileID, ContentID: contentID}
}
