package mqtt

import "fmt"

// Topic prefixes. Everything the booth publishes lives under a single
// root so external collaborators (slideshow UI, audio cue player,
// print service) can subscribe with one wildcard.
const (
	// TopicPrefix is the root of all booth topics.
	TopicPrefix = "booth"

	// TopicPrefixEvent is the base for republished bus events.
	TopicPrefixEvent = "booth/event"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "booth/system"
)

// Topics provides builders for booth MQTT topics. Using these helpers
// keeps topic naming consistent across the codebase.
type Topics struct{}

// Event returns the topic an event type is republished on.
//
// Example: booth/event/capture.completed
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixEvent, eventType)
}

// SystemStatus returns the online/offline status topic. Status
// messages are retained so new subscribers see the last state, and the
// LWT publishes here on unexpected disconnect.
//
// Example: booth/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllEvents returns a pattern matching every republished event.
//
// Pattern: booth/event/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/+", TopicPrefixEvent)
}

// AllTopics returns a pattern matching all booth topics.
//
// Pattern: booth/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
