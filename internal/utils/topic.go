package utils

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/julienschmidt/httprouter"
)

// TopicParam is the route parameter naming the topic on inference routes.
const TopicParam = "topic"

// MaxTopicLength bounds topic ids accepted in paths.
const MaxTopicLength = 100

// Topic ids look like "1" or "eth-usd_5m".
var validTopicPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

var (
	ErrEmptyTopic        = errors.New("topic cannot be empty")
	ErrTopicTooLong      = fmt.Errorf("topic too long (max %d characters)", MaxTopicLength)
	ErrInvalidTopicChars = errors.New("topic contains invalid characters")
)

// formatSuffixes are the extensions clients append to the topic, as in
// /api/inference/1.json.
var formatSuffixes = []string{".json", ".txt"}

// TopicFromRequest returns the topic route parameter with any format
// extension removed, and the result of validating it.
func TopicFromRequest(r *http.Request) (string, error) {
	topic := httprouter.ParamsFromContext(r.Context()).ByName(TopicParam)
	for _, suffix := range formatSuffixes {
		if trimmed, ok := strings.CutSuffix(topic, suffix); ok {
			topic = trimmed
			break
		}
	}
	return topic, ValidateTopic(topic)
}

// ValidateTopic rejects ids that are empty, too long or contain characters
// outside [a-zA-Z0-9_.-].
func ValidateTopic(topic string) error {
	switch {
	case topic == "":
		return ErrEmptyTopic
	case len(topic) > MaxTopicLength:
		return ErrTopicTooLong
	case !validTopicPattern.MatchString(topic):
		return ErrInvalidTopicChars
	}
	return nil
}
