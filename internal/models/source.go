package models

import "time"

// Profile is the scraped profile of a target handle, as returned by the
// scrape capability.
type Profile struct {
	UserID         string     `json:"userId"`
	Name           string     `json:"name"`
	Username       string     `json:"username"`
	Avatar         string     `json:"avatar"`
	Biography      string     `json:"biography"`
	URL            string     `json:"url"`
	FollowersCount int        `json:"followersCount"`
	FollowingCount int        `json:"followingCount"`
	FriendsCount   int        `json:"friendsCount"`
	MediaCount     int        `json:"mediaCount"`
	IsPrivate      bool       `json:"isPrivate"`
	IsVerified     bool       `json:"isVerified"`
	IsBlueVerified bool       `json:"isBlueVerified"`
	LikesCount     int        `json:"likesCount"`
	ListedCount    int        `json:"listedCount"`
	Location       string     `json:"location"`
	TweetsCount    int        `json:"tweetsCount"`
	CanDM          bool       `json:"canDm"`
	Joined         *time.Time `json:"joined,omitempty"`
	Website        string     `json:"website"`
	PinnedTweetIDs []string   `json:"pinnedTweetIds"`
}

// Tweet is one timeline item fetched for a target handle.
type Tweet struct {
	TweetID   string    `json:"tweetId"`
	Text      string    `json:"text"`
	URL       string    `json:"url"`
	AuthorID  string    `json:"authorId"`
	Photos    []Media   `json:"photos,omitempty"`
	Videos    []Media   `json:"videos,omitempty"`
	URLs      []string  `json:"urls,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Media is a photo or video attached to a tweet.
type Media struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// InsightSource is a tracked target handle. The batch runner iterates
// these, and profile scrapes keep the row up to date.
type InsightSource struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Username       string    `json:"username" db:"username"`
	Icon           string    `json:"icon" db:"icon"`
	Bio            string    `json:"bio" db:"bio"`
	TwitterURL     string    `json:"twitterUrl" db:"twitter_url"`
	FollowersCount int       `json:"followersCount" db:"followers_count"`
	FollowingCount int       `json:"followingCount" db:"following_count"`
	TweetsCount    int       `json:"tweetsCount" db:"tweets_count"`
	IsPrivate      bool      `json:"isPrivate" db:"is_private"`
	IsVerified     bool      `json:"isVerified" db:"is_verified"`
	Location       string    `json:"location" db:"location"`
	Website        string    `json:"website" db:"website"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}
