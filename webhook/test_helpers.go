package webhook

import "github.com/stretchr/testify/mock"

// MatchEvent creates a custom matcher for event arguments in mocks
func MatchEvent(matcher func(Event) bool) interface{} {
	return mock.MatchedBy(matcher)
}

// MatchCompletion creates a custom matcher for completion arguments in mocks
func MatchCompletion(matcher func(Completion) bool) interface{} {
	return mock.MatchedBy(matcher)
}
