package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session.
func (r *CacheKeyStruct) StudentSessionKey(studentID string) string {
	return fmt.Sprintf("login:%s", studentID)
}

// SessionFeedChannel returns the Pub/Sub channel carrying session change
// events for one test.
func (r *CacheKeyStruct) SessionFeedChannel(testID string) string {
	return fmt.Sprintf("test:%s:feed:sessions", testID)
}

// AnswerFeedChannel returns the Pub/Sub channel carrying answer change events.
// Answers are published on a single channel; consumers scope by session set.
func (r *CacheKeyStruct) AnswerFeedChannel() string {
	return "feed:answers"
}

var CacheKey = NewCacheKeyStruct()
