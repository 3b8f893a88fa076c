package bus

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"

	"tours/entity"
)

const (
	EventsTopic         = "events"
	internalTopicPrefix = "internal-events.svc-tours."
)

// PerEventTopic is where the splitter forwards external events and where handlers subscribe.
func PerEventTopic(eventName string) string {
	return EventsTopic + "." + eventName
}

func InternalEventTopic(eventName string) string {
	return internalTopicPrefix + eventName
}

func NewEventBus(pub message.Publisher) (*cqrs.EventBus, error) {
	return cqrs.NewEventBusWithConfig(pub, cqrs.EventBusConfig{
		GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
			event, ok := params.Event.(entity.Event)
			if !ok {
				return "", fmt.Errorf("invalid event type: %T doesn't implement entity.Event", params.Event)
			}

			if event.IsInternal() {
				return InternalEventTopic(params.EventName), nil
			}
			// stored in the data lake and split per event name
			return EventsTopic, nil
		},
		Marshaler: NewMarshaler(),
	})
}

func NewMarshaler() cqrs.CommandEventMarshaler {
	return cqrs.JSONMarshaler{
		GenerateName: cqrs.StructName,
	}
}
