package view

import (
	"strconv"

	"trazio/internal/querycache"
)

// Query keys. Every post representation lives under postsKey so a toggle can
// patch and cancel all of them at once.
var (
	postsKey    = querycache.Key{"posts"}
	subjectsKey = querycache.Key{"subjects"}
)

func feedKey(page int) querycache.Key {
	return querycache.Key{"posts", "feed", strconv.Itoa(page)}
}

func postKey(id string) querycache.Key {
	return querycache.Key{"posts", "detail", id}
}

func userPostsKey(userID string) querycache.Key {
	return querycache.Key{"posts", "user", userID}
}

func hashtagKey(tag string) querycache.Key {
	return querycache.Key{"posts", "hashtag", tag}
}

func commentsKey(postID string) querycache.Key {
	return querycache.Key{"comments", postID}
}

func highlightsKey(postID string) querycache.Key {
	return querycache.Key{"highlights", postID}
}

func userKey(id string) querycache.Key {
	return querycache.Key{"users", id}
}
