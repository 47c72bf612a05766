// Package intent classifies user messages into coarse travel intents.
package intent

// Kind is the coarse category of a user request.
type Kind string

const (
	Booking     Kind = "booking"
	Attraction  Kind = "attraction"
	Weather     Kind = "weather"
	Translation Kind = "translation"
	General     Kind = "general"
)

// Kinds lists every intent.
var Kinds = []Kind{Booking, Attraction, Weather, Translation, General}

// Valid reports whether k is one of the known intents.
func (k Kind) Valid() bool {
	switch k {
	case Booking, Attraction, Weather, Translation, General:
		return true
	}
	return false
}

// Entity names a structured slot extracted from free text.
type Entity string

const (
	EntityLocation  Entity = "location"
	EntityDate      Entity = "date"
	EntityTime      Entity = "time"
	EntityPeople    Entity = "people"
	EntityPlaceType Entity = "place_type"
)

// Entities lists every entity in prompt order.
var Entities = []Entity{EntityLocation, EntityDate, EntityTime, EntityPeople, EntityPlaceType}

// Record is the classification of one user turn. Only entities present in
// the message are set.
type Record struct {
	Intent   Kind              `json:"intent"`
	Entities map[Entity]string `json:"entities"`
}

// DefaultRecord is used whenever classification is unavailable.
func DefaultRecord() Record {
	return Record{Intent: General, Entities: map[Entity]string{}}
}

// Fallback reasons reported in Outcome.Reason.
const (
	ReasonGenerationFailed = "generation_failed"
	ReasonMalformedJSON    = "malformed_json"
	ReasonMissingIntent    = "missing_intent"
	ReasonUnknownIntent    = "unknown_intent"
)

// Outcome is the result of Classify. When Fallback is true the record is
// DefaultRecord and Reason says why.
type Outcome struct {
	Record   Record
	Fallback bool
	Reason   string
	// Raw holds the intent literal the model returned when it was not a known Kind.
	Raw string
}
