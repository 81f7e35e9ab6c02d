package handler

import (
	"errors"
	"regexp"

	"github.com/goevery/ridepush/internal/ierr"
)

const maxTopicLength = 128

type TopicValidator struct {
	topicRegex *regexp.Regexp
}

func NewTopicValidator() *TopicValidator {
	return &TopicValidator{
		topicRegex: regexp.MustCompile(`^([\w-]+:?)*\w$`),
	}
}

func (v *TopicValidator) Validate(topic string) error {
	if len(topic) > maxTopicLength || !v.topicRegex.MatchString(topic) {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid topic"))
	}

	return nil
}
