package message

import (
	"regexp"

	"github.com/prodiguer/hermes/internal/enum"
)

var producerVersionPattern = regexp.MustCompile(`^\d+(\.\d+)*$`)

// Vocabulary is the closed set of terms an envelope's metadata is validated
// against. It is built once at start-up and never mutated.
type Vocabulary struct {
	types            map[enum.MessageType]struct{}
	users            map[enum.UserID]struct{}
	apps             map[enum.AppID]struct{}
	producers        map[enum.ProducerID]struct{}
	contentTypes     map[enum.ContentType]struct{}
	contentEncodings map[enum.ContentEncoding]struct{}
	priorities       map[enum.Priority]struct{}
	deliveryModes    map[enum.DeliveryMode]struct{}
}

type VocabularyTerms struct {
	Types     []enum.MessageType
	Users     []enum.UserID
	Apps      []enum.AppID
	Producers []enum.ProducerID
}

func NewVocabulary(terms VocabularyTerms) *Vocabulary {
	return &Vocabulary{
		types:     toSet(terms.Types),
		users:     toSet(terms.Users),
		apps:      toSet(terms.Apps),
		producers: toSet(terms.Producers),
		contentTypes: toSet([]enum.ContentType{
			enum.ContentTypeJSON,
			enum.ContentTypeBase64,
			enum.ContentTypeBase64JSON,
		}),
		contentEncodings: toSet([]enum.ContentEncoding{enum.ContentEncodingUTF8}),
		priorities: toSet([]enum.Priority{
			enum.PriorityLowest,
			enum.PriorityLow,
			enum.PriorityNormal,
			enum.PriorityHigh,
			enum.PriorityHighest,
		}),
		deliveryModes: toSet([]enum.DeliveryMode{enum.DeliveryNonPersistent, enum.DeliveryPersistent}),
	}
}

// DefaultVocabulary registers every term known to the platform.
func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(VocabularyTerms{
		Types: enum.MessageTypes,
		Users: []enum.UserID{enum.UserLibIGCM, enum.UserHermes},
		Apps: []enum.AppID{
			enum.AppHermes,
			enum.AppLibIGCM,
			enum.AppMonitoring,
			enum.AppMetrics,
			enum.AppConso,
			enum.AppSupervisor,
			enum.AppSMTP,
			enum.AppFrontEnd,
			enum.AppAlert,
		},
		Producers: []enum.ProducerID{
			enum.ProducerLibIGCM,
			enum.ProducerHermes,
			enum.ProducerSuperviseur,
			enum.ProducerProdiguer,
		},
	})
}

func (v *Vocabulary) HasType(t enum.MessageType) bool {
	_, ok := v.types[t]
	return ok
}

func (v *Vocabulary) HasUser(u enum.UserID) bool {
	_, ok := v.users[u]
	return ok
}

func (v *Vocabulary) HasApp(a enum.AppID) bool {
	_, ok := v.apps[a]
	return ok
}

func (v *Vocabulary) HasProducer(p enum.ProducerID) bool {
	_, ok := v.producers[p]
	return ok
}

func (v *Vocabulary) HasContentType(c enum.ContentType) bool {
	_, ok := v.contentTypes[c]
	return ok
}

func (v *Vocabulary) HasContentEncoding(c enum.ContentEncoding) bool {
	_, ok := v.contentEncodings[c]
	return ok
}

func (v *Vocabulary) HasPriority(p enum.Priority) bool {
	_, ok := v.priorities[p]
	return ok
}

func (v *Vocabulary) HasDeliveryMode(d enum.DeliveryMode) bool {
	_, ok := v.deliveryModes[d]
	return ok
}

func IsProducerVersion(s string) bool {
	return producerVersionPattern.MatchString(s)
}

func toSet[T comparable](items []T) map[T]struct{} {
	set := make(map[T]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
