package events

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/tracing"
)

// propertiesFromDelivery flattens the AMQP metadata of d into the transport
// properties an envelope is validated against. Header values that are not
// strings are rendered with their default format, producers send numeric
// timestamps as integers.
func propertiesFromDelivery(d amqp091.Delivery) message.Properties {
	headers := make(map[string]string, len(d.Headers))
	for key, value := range d.Headers {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			headers[key] = v
		case []byte:
			headers[key] = string(v)
		default:
			headers[key] = fmt.Sprint(v)
		}
	}

	return message.Properties{
		MessageID:       d.MessageId,
		Type:            d.Type,
		UserID:          d.UserId,
		AppID:           d.AppId,
		ContentType:     d.ContentType,
		ContentEncoding: d.ContentEncoding,
		Priority:        d.Priority,
		DeliveryMode:    d.DeliveryMode,
		Headers:         headers,
	}
}

// traceHeader is the serialized span context a delivery carries, if any.
func traceHeader(d amqp091.Delivery) string {
	if v, ok := d.Headers[tracing.TraceHeader].(string); ok {
		return v
	}
	return ""
}

func publishingFromEnvelope(env *message.Envelope, trace string, now time.Time) amqp091.Publishing {
	props := env.Properties()

	headers := make(amqp091.Table, len(props.Headers)+1)
	for key, value := range props.Headers {
		headers[key] = value
	}
	if trace != "" {
		headers[tracing.TraceHeader] = trace
	}

	return amqp091.Publishing{
		Headers:         headers,
		ContentType:     props.ContentType,
		ContentEncoding: props.ContentEncoding,
		DeliveryMode:    props.DeliveryMode,
		Priority:        props.Priority,
		MessageId:       props.MessageID,
		Type:            props.Type,
		UserId:          props.UserID,
		AppId:           props.AppID,
		Timestamp:       now,
		Body:            env.Raw,
	}
}
