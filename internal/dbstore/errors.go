package dbstore

import "errors"

var (
	errNotAMap            = errors.New("dbstore: canonical payload is not a map")
	errMissingCurrent     = errors.New("dbstore: genre payload missing current")
	errMissingGenreID     = errors.New("dbstore: genre payload missing genreId")
	errUnresolvableParent = errors.New("dbstore: genre parent chain unresolvable")
	errMissingTagGroup    = errors.New("dbstore: tag payload missing tagGroup")
	errMissingTagGroupID  = errors.New("dbstore: tag group missing tagGroupId")
)
