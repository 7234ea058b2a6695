package cache

import "fmt"

// Cache key layout. Every derived read model of a profile lives under ProfilePrefix so a
// mutation touching the profile's hierarchy can drop all of them at once.
const (
	profilePrefix           = "profile_"
	showsSuffix             = "shows"
	showDetailsSuffix       = "show_details_"
	unwatchedEpisodesSuffix = "unwatched_episodes"
	moviesSuffix            = "movies"
)

// ProfilePrefix returns the namespace of all cached entries of a profile.
// The trailing separator keeps profile 1 from matching profile 12.
func ProfilePrefix(profileID uint) string {
	return fmt.Sprintf("%s%d_", profilePrefix, profileID)
}

// ShowsKey is the key of a profile's favorited show list.
func ShowsKey(profileID uint) string {
	return ProfilePrefix(profileID) + showsSuffix
}

// ShowDetailsKey is the key of a profile's view of one show with its seasons and episodes.
func ShowDetailsKey(profileID, showID uint) string {
	return fmt.Sprintf("%s%s%d", ProfilePrefix(profileID), showDetailsSuffix, showID)
}

// UnwatchedEpisodesKey is the key of a profile's next unwatched episodes list.
func UnwatchedEpisodesKey(profileID uint) string {
	return ProfilePrefix(profileID) + unwatchedEpisodesSuffix
}

// MoviesKey is the key of a profile's favorited movie list.
func MoviesKey(profileID uint) string {
	return ProfilePrefix(profileID) + moviesSuffix
}
